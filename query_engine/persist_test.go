package query_engine

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	gc "gopkg.in/check.v1"
)

var _ = gc.Suite(new(PersistTestSuite))

type PersistTestSuite struct {
	dir string
	idx *WebIndex
}

func (s *PersistTestSuite) SetUpTest(c *gc.C) {
	s.dir = c.MkDir()
	s.idx = NewWebIndex()
	s.idx.Add(&Document{
		URL:       "http://example.com/a.html",
		Title:     "Page A",
		Body:      " the quick brown fox ",
		IndexedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	s.idx.Add(&Document{
		URL:       "http://example.com/b.html",
		Title:     "Page B",
		Body:      " the lazy dog ",
		IndexedAt: time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC),
	})
}

func (s *PersistTestSuite) assertSameIndex(c *gc.C, got *WebIndex) {
	exp := s.idx.Documents()
	docs := got.Documents()
	c.Assert(docs, gc.HasLen, len(exp))
	for i, doc := range docs {
		c.Assert(doc.URL, gc.Equals, exp[i].URL)
		c.Assert(doc.Title, gc.Equals, exp[i].Title)
		c.Assert(doc.Body, gc.Equals, exp[i].Body)
		c.Assert(doc.IndexedAt.Equal(exp[i].IndexedAt), gc.Equals, true)
	}
	c.Assert(got.TermCount(), gc.Equals, s.idx.TermCount())
}

func (s *PersistTestSuite) TestFormatForPath(c *gc.C) {
	c.Assert(FormatForPath("out/index.json"), gc.Equals, FormatJSON)
	c.Assert(FormatForPath("out/index"), gc.Equals, FormatJSON)
	c.Assert(FormatForPath("out/index.db"), gc.Equals, FormatSQLite)
	c.Assert(FormatForPath("out/INDEX.SQLITE"), gc.Equals, FormatSQLite)
	c.Assert(FormatForPath("out/index.sqlite3"), gc.Equals, FormatSQLite)
}

func (s *PersistTestSuite) TestJSONRoundTrip(c *gc.C) {
	path := filepath.Join(s.dir, "nested", "index.json")
	c.Assert(SaveIndex(path, s.idx), gc.IsNil)

	_, err := os.Stat(path + ".tmp")
	c.Assert(os.IsNotExist(err), gc.Equals, true)

	got, err := LoadIndex(path)
	c.Assert(err, gc.IsNil)
	s.assertSameIndex(c, got)
}

func (s *PersistTestSuite) TestSQLiteRoundTrip(c *gc.C) {
	path := filepath.Join(s.dir, "index.db")
	c.Assert(SaveIndex(path, s.idx), gc.IsNil)

	got, err := LoadIndex(path)
	c.Assert(err, gc.IsNil)
	s.assertSameIndex(c, got)
}

func (s *PersistTestSuite) TestSQLiteSnapshotReplacesPrevious(c *gc.C) {
	path := filepath.Join(s.dir, "index.sqlite")
	c.Assert(SaveIndex(path, s.idx), gc.IsNil)

	s.idx.Remove("http://example.com/a.html")
	c.Assert(SaveIndex(path, s.idx), gc.IsNil)

	got, err := LoadIndex(path)
	c.Assert(err, gc.IsNil)
	c.Assert(got.Len(), gc.Equals, 1)
	s.assertSameIndex(c, got)
}

func (s *PersistTestSuite) TestExplicitFormatOverridesExtension(c *gc.C) {
	path := filepath.Join(s.dir, "index.bin")
	c.Assert(SaveIndexAs(path, FormatSQLite, s.idx), gc.IsNil)

	got, err := LoadIndexAs(path, FormatSQLite)
	c.Assert(err, gc.IsNil)
	s.assertSameIndex(c, got)
}

func (s *PersistTestSuite) TestUnknownFormat(c *gc.C) {
	path := filepath.Join(s.dir, "index.json")
	err := SaveIndexAs(path, "xml", s.idx)
	c.Assert(errors.Is(err, ErrUnknownFormat), gc.Equals, true)

	c.Assert(SaveIndex(path, s.idx), gc.IsNil)
	_, err = LoadIndexAs(path, "xml")
	c.Assert(errors.Is(err, ErrUnknownFormat), gc.Equals, true)
}

func (s *PersistTestSuite) TestLoadMissingFile(c *gc.C) {
	_, err := LoadIndex(filepath.Join(s.dir, "missing.json"))
	c.Assert(err, gc.NotNil)
	c.Assert(errors.Is(err, os.ErrNotExist), gc.Equals, true)
}

func (s *PersistTestSuite) TestLoadCorruptJSON(c *gc.C) {
	path := filepath.Join(s.dir, "index.json")
	c.Assert(os.WriteFile(path, []byte("{not json"), 0644), gc.IsNil)

	_, err := LoadIndex(path)
	c.Assert(err, gc.ErrorMatches, "failed to parse index: .*")
}

func (s *PersistTestSuite) TestLoadQueryEngine(c *gc.C) {
	path := filepath.Join(s.dir, "index.json")
	c.Assert(SaveIndex(path, s.idx), gc.IsNil)

	qe, idx, err := LoadQueryEngine(path)
	c.Assert(err, gc.IsNil)
	c.Assert(idx.Len(), gc.Equals, 2)
	c.Assert(qe.Query("the !fox").Sorted(), gc.DeepEquals, []string{"http://example.com/b.html"})
	c.Assert(qe.Search(`"quick brown"`), gc.DeepEquals, []SearchResult{
		{URL: "http://example.com/a.html", Title: "Page A"},
	})
}

func (s *PersistTestSuite) TestLoadNormalizesHandWrittenBodies(c *gc.C) {
	path := filepath.Join(s.dir, "index.json")
	snap := `{"documents": [
  {"url": "u1", "title": "Fox", "body": "the FOX"},
  {"url": "u2", "title": "Dog", "body": "  lazy,dog"}
]}`
	c.Assert(os.WriteFile(path, []byte(snap), 0644), gc.IsNil)

	qe, idx, err := LoadQueryEngine(path)
	c.Assert(err, gc.IsNil)

	body, ok := idx.Body("u2")
	c.Assert(ok, gc.Equals, true)
	c.Assert(body, gc.Equals, " lazy dog ")

	for query, exp := range map[string][]string{
		"fox":          {"u1"},
		`"fox"`:        {"u1"},
		"!fox":         {"u2"},
		`"lazy dog"`:   {"u2"},
		"(dog & !fox)": {"u2"},
	} {
		c.Assert(qe.Query(query).Sorted(), gc.DeepEquals, exp, gc.Commentf("query %q", query))
	}
}

func (s *PersistTestSuite) TestSQLiteLoadNormalizesBodies(c *gc.C) {
	path := filepath.Join(s.dir, "index.db")
	c.Assert(SaveIndex(path, s.idx), gc.IsNil)

	db, err := openSQLite(path)
	c.Assert(err, gc.IsNil)
	_, err = db.Exec(`UPDATE documents SET body = ? WHERE url = ?`, "The Quick fox", "http://example.com/a.html")
	c.Assert(err, gc.IsNil)
	c.Assert(db.Close(), gc.IsNil)

	qe, _, err := LoadQueryEngine(path)
	c.Assert(err, gc.IsNil)
	c.Assert(qe.Query(`"quick fox"`).Sorted(), gc.DeepEquals, []string{"http://example.com/a.html"})
	c.Assert(qe.Query("quick").Sorted(), gc.DeepEquals, []string{"http://example.com/a.html"})
}
