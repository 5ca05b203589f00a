package query_engine

import "strings"

// TokenKind identifies the lexical class of a query token
type TokenKind uint8

const (
	// TokenWord is a term, a negated term (!term) or a quoted phrase.
	TokenWord TokenKind = iota
	// TokenOperator is & or |.
	TokenOperator
	// TokenLParen is (.
	TokenLParen
	// TokenRParen is ).
	TokenRParen
	// TokenSeparator is a single space between top-level clauses.
	TokenSeparator
)

// Token is one lexical unit of a query string
type Token struct {
	Kind TokenKind
	Text string
}

func (t Token) String() string {
	return t.Text
}

// Tokenize splits a raw query into tokens in source order. A phrase with no
// closing quote makes the whole query unusable and yields no tokens.
func Tokenize(query string) []Token {
	var (
		tokens  []Token
		pending strings.Builder
	)

	flush := func() {
		if pending.Len() > 0 {
			tokens = append(tokens, Token{Kind: TokenWord, Text: pending.String()})
			pending.Reset()
		}
	}

	for i := 0; i < len(query); i++ {
		c := query[i]
		switch c {
		case '(', ')', '&', '|', ' ':
			flush()
			tokens = append(tokens, Token{Kind: delimiterKind(c), Text: string(c)})
		case '"':
			end := strings.IndexByte(query[i+1:], '"')
			if end < 0 {
				return nil
			}
			// opening quote, phrase body and closing quote stay in the word
			pending.WriteString(query[i : i+end+2])
			i += end + 1
		default:
			pending.WriteByte(c)
		}
	}
	flush()

	return tokens
}

func delimiterKind(c byte) TokenKind {
	switch c {
	case '(':
		return TokenLParen
	case ')':
		return TokenRParen
	case '&', '|':
		return TokenOperator
	default:
		return TokenSeparator
	}
}
