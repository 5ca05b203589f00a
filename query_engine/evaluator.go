package query_engine

import "strings"

// evaluator resolves parsed expressions against a store
type evaluator struct {
	store Store
	terms termIndex // nil when the store keeps no postings
}

func newEvaluator(store Store) *evaluator {
	ev := &evaluator{store: store}
	if ti, ok := store.(termIndex); ok {
		ev.terms = ti
	}
	return ev
}

// evaluate returns the subset of candidates matched by e
func (ev *evaluator) evaluate(e Expr, candidates ResultSet) ResultSet {
	if e == nil || len(candidates) == 0 {
		return ResultSet{}
	}

	switch node := e.(type) {
	case *Binary:
		return ev.evaluateBinary(node, candidates)
	case *Leaf:
		return ev.evaluateLeaf(node.Literal, candidates)
	default:
		return ResultSet{}
	}
}

func (ev *evaluator) evaluateBinary(node *Binary, candidates ResultSet) ResultSet {
	switch node.Op {
	case OpAnd:
		// the right side only sees what the left side kept
		return ev.evaluate(node.Right, ev.evaluate(node.Left, candidates))
	case OpOr:
		left := ev.evaluate(node.Left, candidates)
		right := ev.evaluate(node.Right, candidates)
		result := make(ResultSet, len(left)+len(right))
		for u := range left {
			if candidates.Contains(u) {
				result.Add(u)
			}
		}
		for u := range right {
			if candidates.Contains(u) {
				result.Add(u)
			}
		}
		return result
	default:
		return ResultSet{}
	}
}

func (ev *evaluator) evaluateLeaf(literal string, candidates ResultSet) ResultSet {
	if literal == "" {
		return ResultSet{}
	}

	switch literal[0] {
	case '"':
		if len(literal) < 2 || literal[len(literal)-1] != '"' {
			return ResultSet{}
		}
		phrase := CollapseText(literal[1 : len(literal)-1])
		if phrase == "" {
			return ResultSet{}
		}
		return ev.filter(candidates, func(url string) bool {
			return ev.containsPhrase(url, phrase)
		})
	case '!':
		// A bare "!" negates the empty word, which no body contains.
		word := literal[1:]
		if !allAlnum(word) {
			return ResultSet{}
		}
		word = strings.ToLower(word)
		return ev.filter(candidates, func(url string) bool {
			return !ev.containsWord(url, word)
		})
	default:
		if !IsAlnum(literal) {
			return ResultSet{}
		}
		word := strings.ToLower(literal)
		return ev.filter(candidates, func(url string) bool {
			return ev.containsWord(url, word)
		})
	}
}

func (ev *evaluator) filter(candidates ResultSet, keep func(url string) bool) ResultSet {
	result := make(ResultSet)
	for u := range candidates {
		if keep(u) {
			result.Add(u)
		}
	}
	return result
}

// containsWord reports whether the document at url has word as a whole word
func (ev *evaluator) containsWord(url, word string) bool {
	if ev.terms != nil {
		return ev.terms.HasTerm(url, word)
	}
	return ev.containsPhrase(url, word)
}

// containsPhrase scans the padded body for the padded, normalized phrase
func (ev *evaluator) containsPhrase(url, phrase string) bool {
	body, ok := ev.store.Body(url)
	if !ok {
		return false
	}
	return strings.Contains(body, pad(phrase))
}
