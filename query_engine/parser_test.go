package query_engine

import (
	"sync"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(ParserTestSuite))

type ParserTestSuite struct{}

func (s *ParserTestSuite) TestSingleLeaf(c *gc.C) {
	roots := ParseQuery("fox")
	c.Assert(roots, gc.DeepEquals, []Expr{&Leaf{Literal: "fox"}})
}

func (s *ParserTestSuite) TestBinary(c *gc.C) {
	for _, q := range []string{"(fox | dog)", "(fox|dog)", "( fox | dog )"} {
		roots := ParseQuery(q)
		c.Assert(roots, gc.HasLen, 1, gc.Commentf("query %q", q))
		c.Assert(roots[0], gc.DeepEquals, &Binary{
			Op:    OpOr,
			Left:  &Leaf{Literal: "fox"},
			Right: &Leaf{Literal: "dog"},
		}, gc.Commentf("query %q", q))
	}
}

func (s *ParserTestSuite) TestNested(c *gc.C) {
	specs := []struct {
		query string
		exp   string
	}{
		{query: `((a & b) | c)`, exp: `((a & b) | c)`},
		{query: `(a & (b | !c))`, exp: `(a & (b | !c))`},
		{query: `("quick brown" & (fox|dog))`, exp: `("quick brown" & (fox | dog))`},
	}

	for specIndex, spec := range specs {
		c.Logf("[spec %d] %s", specIndex, spec.query)
		roots := ParseQuery(spec.query)
		c.Assert(roots, gc.HasLen, 1)
		c.Assert(roots[0], gc.NotNil)
		c.Assert(roots[0].String(), gc.Equals, spec.exp)
	}
}

func (s *ParserTestSuite) TestTopLevelClauses(c *gc.C) {
	roots := ParseQuery(`the (fox | dog) !cat`)
	c.Assert(roots, gc.HasLen, 3)
	c.Assert(roots[0].String(), gc.Equals, "the")
	c.Assert(roots[1].String(), gc.Equals, "(fox | dog)")
	c.Assert(roots[2].String(), gc.Equals, "!cat")
}

func (s *ParserTestSuite) TestBareOperatorsAreLeaves(c *gc.C) {
	roots := ParseQuery("fox & dog")
	c.Assert(roots, gc.DeepEquals, []Expr{
		&Leaf{Literal: "fox"},
		&Leaf{Literal: "&"},
		&Leaf{Literal: "dog"},
	})
}

func (s *ParserTestSuite) TestMalformedClauses(c *gc.C) {
	for _, q := range []string{
		"(a & )",
		"(a & b",
		"(a b)",
		"(a",
		"(",
		"(a ! b)",
	} {
		roots := ParseQuery(q)
		c.Assert(roots, gc.HasLen, 1, gc.Commentf("query %q", q))
		c.Assert(roots[0], gc.IsNil, gc.Commentf("query %q", q))
	}
}

func (s *ParserTestSuite) TestMalformedChildInvalidatesParent(c *gc.C) {
	roots := ParseQuery("((a b) | c)")
	c.Assert(roots, gc.HasLen, 1)
	c.Assert(roots[0], gc.IsNil)
}

func (s *ParserTestSuite) TestStraySeparatorsYieldEmptyClauses(c *gc.C) {
	roots := ParseQuery(" fox")
	c.Assert(roots, gc.HasLen, 2)
	c.Assert(roots[0], gc.IsNil)
	c.Assert(roots[1].String(), gc.Equals, "fox")

	roots = ParseQuery("fox  dog")
	c.Assert(roots, gc.HasLen, 3)
	c.Assert(roots[1], gc.IsNil)
}

func (s *ParserTestSuite) TestTrailingGarbageAfterClauseIsSkipped(c *gc.C) {
	roots := ParseQuery("(a & b)c d")
	c.Assert(roots, gc.HasLen, 2)
	c.Assert(roots[0].String(), gc.Equals, "(a & b)")
	c.Assert(roots[1].String(), gc.Equals, "d")
}

func (s *ParserTestSuite) TestEmptyInputs(c *gc.C) {
	c.Assert(ParseQuery(""), gc.HasLen, 0)
	c.Assert(ParseQuery(`"open`), gc.HasLen, 0)
	c.Assert(Parse(nil), gc.HasLen, 0)
}

func (s *ParserTestSuite) TestConcurrentParses(c *gc.C) {
	const query = `(the & ("quick brown" | !dog)) fox`
	exp := ParseQuery(query)

	var wg sync.WaitGroup
	results := make([][]Expr, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = ParseQuery(query)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		c.Assert(got, gc.DeepEquals, exp)
	}
}
