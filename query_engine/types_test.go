package query_engine

import (
	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(WebIndexTestSuite))

type WebIndexTestSuite struct{}

func (s *WebIndexTestSuite) TestAddAndLookup(c *gc.C) {
	idx := NewWebIndex()
	idx.Add(&Document{URL: "http://b.example/", Title: "B", Body: " bravo charlie "})
	idx.Add(&Document{URL: "http://a.example/", Title: "A", Body: " alpha bravo "})

	c.Assert(idx.Len(), gc.Equals, 2)
	c.Assert(idx.TermCount(), gc.Equals, 3)

	body, ok := idx.Body("http://a.example/")
	c.Assert(ok, gc.Equals, true)
	c.Assert(body, gc.Equals, " alpha bravo ")

	_, ok = idx.Body("http://missing.example/")
	c.Assert(ok, gc.Equals, false)

	c.Assert(idx.HasTerm("http://a.example/", "bravo"), gc.Equals, true)
	c.Assert(idx.HasTerm("http://a.example/", "charlie"), gc.Equals, false)
	c.Assert(idx.HasTerm("http://missing.example/", "bravo"), gc.Equals, false)

	docs := idx.Documents()
	c.Assert(docs, gc.HasLen, 2)
	c.Assert(docs[0].Title, gc.Equals, "A")
	c.Assert(docs[1].Title, gc.Equals, "B")
}

func (s *WebIndexTestSuite) TestReplaceDropsOldTerms(c *gc.C) {
	idx := NewWebIndex()
	idx.Add(&Document{URL: "u1", Body: " old words "})
	idx.Add(&Document{URL: "u1", Body: " new "})

	c.Assert(idx.Len(), gc.Equals, 1)
	c.Assert(idx.TermCount(), gc.Equals, 1)
	c.Assert(idx.HasTerm("u1", "old"), gc.Equals, false)
	c.Assert(idx.HasTerm("u1", "new"), gc.Equals, true)
}

func (s *WebIndexTestSuite) TestAddNormalizesBody(c *gc.C) {
	doc := &Document{URL: "u1", Body: "the FOX"}
	idx := NewWebIndex()
	idx.Add(doc)

	body, ok := idx.Body("u1")
	c.Assert(ok, gc.Equals, true)
	c.Assert(body, gc.Equals, " the fox ")
	c.Assert(doc.Body, gc.Equals, "the FOX")
	c.Assert(idx.HasTerm("u1", "fox"), gc.Equals, true)

	qe, err := NewQueryEngine(idx)
	c.Assert(err, gc.IsNil)
	c.Assert(qe.Query("fox").Sorted(), gc.DeepEquals, []string{"u1"})
	c.Assert(qe.Query(`"fox"`).Sorted(), gc.DeepEquals, []string{"u1"})
	c.Assert(qe.Query("!fox").Sorted(), gc.HasLen, 0)
}

func (s *WebIndexTestSuite) TestRemove(c *gc.C) {
	idx := NewWebIndex()
	idx.Add(&Document{URL: "u1", Body: " shared one "})
	idx.Add(&Document{URL: "u2", Body: " shared two "})

	c.Assert(idx.Remove("u1"), gc.Equals, true)
	c.Assert(idx.Remove("u1"), gc.Equals, false)
	c.Assert(idx.Len(), gc.Equals, 1)
	c.Assert(idx.HasTerm("u2", "shared"), gc.Equals, true)
	c.Assert(idx.TermCount(), gc.Equals, 2)
}

func (s *WebIndexTestSuite) TestResultSet(c *gc.C) {
	rs := NewResultSet("b", "a", "b")
	c.Assert(rs.Len(), gc.Equals, 2)
	c.Assert(rs.Contains("a"), gc.Equals, true)
	c.Assert(rs.Contains("c"), gc.Equals, false)

	rs.Add("c")
	c.Assert(rs.Sorted(), gc.DeepEquals, []string{"a", "b", "c"})
}
