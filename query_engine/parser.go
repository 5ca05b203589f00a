package query_engine

import "fmt"

// Operator joins the two children of a Binary expression
type Operator byte

const (
	OpAnd Operator = '&'
	OpOr  Operator = '|'
)

// Expr is a node of a parsed query tree: a *Leaf or a *Binary.
type Expr interface {
	fmt.Stringer
	expr()
}

// Leaf holds a raw word, "phrase" or !word literal exactly as it was typed
type Leaf struct {
	Literal string
}

func (*Leaf) expr() {}

func (l *Leaf) String() string {
	return l.Literal
}

// Binary applies Op to the results of Left and Right
type Binary struct {
	Op    Operator
	Left  Expr
	Right Expr
}

func (*Binary) expr() {}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %c %s)", exprString(b.Left), b.Op, exprString(b.Right))
}

func exprString(e Expr) string {
	if e == nil {
		return "<invalid>"
	}
	return e.String()
}

// parser walks a token slice with its own cursor, so independent parses never
// share state.
type parser struct {
	tokens []Token
	pos    int
}

// Parse turns a token sequence into one root per top-level clause. A clause
// that cannot be parsed is returned as a nil root.
//
// Only parenthesized forms are boolean: a bare & or | between clauses is
// kept as an ordinary leaf.
func Parse(tokens []Token) []Expr {
	p := &parser{tokens: tokens}

	var roots []Expr
	for !p.done() {
		if p.peek().Kind == TokenSeparator {
			// a separator where a clause should start is an empty clause
			roots = append(roots, nil)
			p.pos++
			continue
		}

		roots = append(roots, p.parseExpr())

		// discard the rest of the clause, up to and including its separator
		for !p.done() && p.peek().Kind != TokenSeparator {
			p.pos++
		}
		p.pos++
	}

	return roots
}

// ParseQuery tokenizes and parses a raw query string
func ParseQuery(query string) []Expr {
	return Parse(Tokenize(query))
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) skipSeparators() {
	for !p.done() && p.peek().Kind == TokenSeparator {
		p.pos++
	}
}

// parseExpr parses one expression starting at the cursor. It returns nil
// when the expression is malformed or the tokens run out mid-expression.
func (p *parser) parseExpr() Expr {
	if p.done() {
		return nil
	}

	tok := p.peek()
	p.pos++
	if tok.Kind != TokenLParen {
		return &Leaf{Literal: tok.Text}
	}

	p.skipSeparators()
	left := p.parseExpr()
	if left == nil {
		return nil
	}

	p.skipSeparators()
	if p.done() || p.peek().Kind != TokenOperator {
		return nil
	}
	op := Operator(p.peek().Text[0])
	p.pos++

	p.skipSeparators()
	right := p.parseExpr()
	if right == nil {
		return nil
	}

	p.skipSeparators()
	if p.done() || p.peek().Kind != TokenRParen {
		return nil
	}
	p.pos++

	return &Binary{Op: op, Left: left, Right: right}
}
