package main

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"webquery/query_engine"
)

// IndexResult represents the result of indexing a page
type IndexResult struct {
	Success        bool
	ProcessingTime time.Duration
	WorkerID       int
	Title          string
	WordCount      int
	Links          []string
	Error          string
}

// Indexer turns fetched pages into documents of a web index
type Indexer struct {
	index     *query_engine.WebIndex
	processor *TextProcessor
	output    OutputConfig
	logger    *logrus.Entry

	added    int64
	saveLock sync.Mutex
}

// NewIndexer creates an indexer writing into idx and snapshotting to output
func NewIndexer(idx *query_engine.WebIndex, processor *TextProcessor, output OutputConfig, logger *logrus.Entry) *Indexer {
	return &Indexer{
		index:     idx,
		processor: processor,
		output:    output,
		logger:    logger,
	}
}

// IndexPage processes a fetched page and adds it to the index
func (ix *Indexer) IndexPage(page *PageData, workerID int) *IndexResult {
	start := time.Now()

	if ct := strings.ToLower(page.ContentType); ct != "" && !strings.Contains(ct, "html") {
		return &IndexResult{
			WorkerID: workerID,
			Error:    "unsupported content type " + page.ContentType,
		}
	}

	processed := ix.processor.Process(page.Content, page.URL)

	ix.index.Add(&query_engine.Document{
		URL:       page.URL,
		Title:     processed.Title,
		Body:      processed.Body,
		IndexedAt: page.FetchTime,
	})

	// Save index periodically
	if n := atomic.AddInt64(&ix.added, 1); ix.output.SaveEvery > 0 && n%int64(ix.output.SaveEvery) == 0 {
		if err := ix.SaveIndex(); err != nil {
			ix.logger.WithError(err).Warn("failed to save index checkpoint")
		}
	}

	return &IndexResult{
		Success:        true,
		ProcessingTime: time.Since(start),
		WorkerID:       workerID,
		Title:          processed.Title,
		WordCount:      len(strings.Fields(processed.Body)),
		Links:          processed.Links,
	}
}

// SaveIndex saves the current index snapshot
func (ix *Indexer) SaveIndex() error {
	ix.saveLock.Lock()
	defer ix.saveLock.Unlock()

	if err := query_engine.SaveIndexAs(ix.output.Path, ix.output.Format, ix.index); err != nil {
		return err
	}

	ix.logger.WithFields(logrus.Fields{
		"path":      ix.output.Path,
		"documents": ix.index.Len(),
	}).Debug("index saved")
	return nil
}

// GetStats returns indexing statistics
func (ix *Indexer) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"total_terms":     ix.index.TermCount(),
		"total_documents": ix.index.Len(),
	}
}
