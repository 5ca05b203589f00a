package query_engine

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Document represents a crawled page in the document store
type Document struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IndexedAt time.Time `json:"indexed_at"`
}

// SearchResult represents a single search result
type SearchResult struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Store is the read side of a crawled index: every known document URL and
// the normalized body stored for it.
type Store interface {
	URLs() []string
	Body(url string) (string, bool)
}

// termIndex is implemented by stores that keep per-term posting sets.
type termIndex interface {
	HasTerm(url, term string) bool
}

// ResultSet is an unordered set of document URLs.
type ResultSet map[string]struct{}

// NewResultSet creates a result set holding the given URLs
func NewResultSet(urls ...string) ResultSet {
	rs := make(ResultSet, len(urls))
	for _, u := range urls {
		rs[u] = struct{}{}
	}
	return rs
}

// Add inserts a URL into the set
func (rs ResultSet) Add(url string) {
	rs[url] = struct{}{}
}

// Contains reports whether url is in the set
func (rs ResultSet) Contains(url string) bool {
	_, ok := rs[url]
	return ok
}

// Len returns the number of URLs in the set
func (rs ResultSet) Len() int {
	return len(rs)
}

// Sorted returns the URLs in lexical order
func (rs ResultSet) Sorted() []string {
	urls := make([]string, 0, len(rs))
	for u := range rs {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// WebIndex is the document store built by the crawler. It maps each URL to
// its normalized body and keeps a term -> URL posting set alongside it.
//
// Writes are serialized; once crawling is done the index can be shared by
// any number of concurrent queries.
type WebIndex struct {
	mutex     sync.RWMutex
	documents map[string]*Document
	terms     map[string]map[string]struct{}
}

// NewWebIndex creates an empty web index
func NewWebIndex() *WebIndex {
	return &WebIndex{
		documents: make(map[string]*Document),
		terms:     make(map[string]map[string]struct{}),
	}
}

// Add stores a copy of doc with its body normalized, replacing any earlier
// document with the same URL.
func (wi *WebIndex) Add(doc *Document) {
	stored := *doc
	stored.Body = NormalizeBody(doc.Body)
	doc = &stored

	wi.mutex.Lock()
	defer wi.mutex.Unlock()

	if old, exists := wi.documents[doc.URL]; exists {
		wi.dropTerms(old)
	}
	wi.documents[doc.URL] = doc

	for _, term := range strings.Fields(doc.Body) {
		postings := wi.terms[term]
		if postings == nil {
			postings = make(map[string]struct{})
			wi.terms[term] = postings
		}
		postings[doc.URL] = struct{}{}
	}
}

// Remove deletes the document stored for url
func (wi *WebIndex) Remove(url string) bool {
	wi.mutex.Lock()
	defer wi.mutex.Unlock()

	doc, exists := wi.documents[url]
	if !exists {
		return false
	}
	wi.dropTerms(doc)
	delete(wi.documents, url)
	return true
}

func (wi *WebIndex) dropTerms(doc *Document) {
	for _, term := range strings.Fields(doc.Body) {
		postings := wi.terms[term]
		delete(postings, doc.URL)
		if len(postings) == 0 {
			delete(wi.terms, term)
		}
	}
}

// URLs returns every document URL in the index
func (wi *WebIndex) URLs() []string {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	urls := make([]string, 0, len(wi.documents))
	for u := range wi.documents {
		urls = append(urls, u)
	}
	return urls
}

// Body returns the normalized body stored for url
func (wi *WebIndex) Body(url string) (string, bool) {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	doc, exists := wi.documents[url]
	if !exists {
		return "", false
	}
	return doc.Body, true
}

// Document returns the document stored for url
func (wi *WebIndex) Document(url string) (*Document, bool) {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	doc, exists := wi.documents[url]
	return doc, exists
}

// Documents returns all documents sorted by URL
func (wi *WebIndex) Documents() []*Document {
	wi.mutex.RLock()
	docs := make([]*Document, 0, len(wi.documents))
	for _, doc := range wi.documents {
		docs = append(docs, doc)
	}
	wi.mutex.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].URL < docs[j].URL
	})
	return docs
}

// HasTerm reports whether the document at url contains term as a whole word.
// The term must already be lowercase.
func (wi *WebIndex) HasTerm(url, term string) bool {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()

	_, ok := wi.terms[term][url]
	return ok
}

// Len returns the number of documents
func (wi *WebIndex) Len() int {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()
	return len(wi.documents)
}

// TermCount returns the number of distinct terms
func (wi *WebIndex) TermCount() int {
	wi.mutex.RLock()
	defer wi.mutex.RUnlock()
	return len(wi.terms)
}
