package query_engine

import (
	"errors"

	"golang.org/x/xerrors"
)

// ErrNilStore is returned when an engine is built without a document store
var ErrNilStore = errors.New("query engine requires a document store")

// QueryEngine answers boolean and phrase queries against a document store
type QueryEngine struct {
	store Store
}

// NewQueryEngine binds a query engine to a populated document store
func NewQueryEngine(store Store) (*QueryEngine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if wi, ok := store.(*WebIndex); ok && wi == nil {
		return nil, ErrNilStore
	}
	return &QueryEngine{store: store}, nil
}

// LoadQueryEngine loads an index snapshot from path and binds an engine to it
func LoadQueryEngine(path string) (*QueryEngine, *WebIndex, error) {
	idx, err := LoadIndex(path)
	if err != nil {
		return nil, nil, xerrors.Errorf("failed to load index: %w", err)
	}

	qe, err := NewQueryEngine(idx)
	if err != nil {
		return nil, nil, err
	}
	return qe, idx, nil
}

// Query returns the URLs of every document matching query. Malformed input
// never fails: the offending leaf, clause or query simply matches nothing.
func (qe *QueryEngine) Query(query string) ResultSet {
	roots := ParseQuery(query)
	if len(roots) == 0 {
		return ResultSet{}
	}

	ev := newEvaluator(qe.store)

	// top-level clauses are implicitly conjoined
	urls := ev.evaluate(roots[0], NewResultSet(qe.store.URLs()...))
	for _, root := range roots[1:] {
		urls = ev.evaluate(root, urls)
	}
	return urls
}

// Explain returns the parsed clause trees for query. A nil entry marks a
// clause that matches nothing because it is malformed.
func (qe *QueryEngine) Explain(query string) []Expr {
	return ParseQuery(query)
}

// Search runs query and joins the matches with their titles, sorted by URL
func (qe *QueryEngine) Search(query string) []SearchResult {
	urls := qe.Query(query).Sorted()

	titles, _ := qe.store.(interface {
		Document(url string) (*Document, bool)
	})

	results := make([]SearchResult, 0, len(urls))
	for _, u := range urls {
		result := SearchResult{URL: u}
		if titles != nil {
			if doc, ok := titles.Document(u); ok {
				result.Title = doc.Title
			}
		}
		results = append(results, result)
	}
	return results
}

// GetStats returns index statistics
func (qe *QueryEngine) GetStats() map[string]interface{} {
	stats := map[string]interface{}{
		"total_documents": len(qe.store.URLs()),
	}
	if wi, ok := qe.store.(*WebIndex); ok {
		stats["total_terms"] = wi.TermCount()
	}
	return stats
}
