package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

// maxBodyBytes caps how much of a single page is read
const maxBodyBytes = 10 << 20

// ErrUnexpectedStatusCode indicates an HTTP response with unexpected status
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// PageData represents crawled page information
type PageData struct {
	URL         string
	StatusCode  int
	Content     string
	ContentType string
	FetchTime   time.Time
}

// URLFrontier manages the crawl queue in a thread-safe manner. Every URL is
// handed out at most once.
type URLFrontier struct {
	queue   chan string
	seen    map[string]bool
	visited map[string]bool
	pending int
	idle    chan struct{}
	mutex   sync.Mutex
}

// NewURLFrontier creates a new URL frontier
func NewURLFrontier(bufferSize int) *URLFrontier {
	return &URLFrontier{
		queue:   make(chan string, bufferSize),
		seen:    make(map[string]bool),
		visited: make(map[string]bool),
		idle:    make(chan struct{}),
	}
}

// AddURL queues a URL if it was never seen before
func (uf *URLFrontier) AddURL(url string) bool {
	uf.mutex.Lock()
	defer uf.mutex.Unlock()

	if uf.seen[url] {
		return false
	}

	select {
	case uf.queue <- url:
		uf.seen[url] = true
		uf.pending++
		return true
	default:
		return false // Queue full
	}
}

// GetURL gets the next URL from the frontier
func (uf *URLFrontier) GetURL(ctx context.Context) (string, bool) {
	select {
	case url := <-uf.queue:
		return url, true
	case <-ctx.Done():
		return "", false
	}
}

// MarkCompleted marks a URL as successfully crawled
func (uf *URLFrontier) MarkCompleted(url string) {
	uf.mutex.Lock()
	defer uf.mutex.Unlock()
	uf.visited[url] = true
	uf.done()
}

// MarkFailed marks a URL as finished without a page
func (uf *URLFrontier) MarkFailed(url string) {
	uf.mutex.Lock()
	defer uf.mutex.Unlock()
	uf.done()
}

func (uf *URLFrontier) done() {
	uf.pending--
	if uf.pending == 0 {
		close(uf.idle)
	}
}

// Idle is closed once every queued URL has been completed or failed
func (uf *URLFrontier) Idle() <-chan struct{} {
	return uf.idle
}

// Size returns the current queue size
func (uf *URLFrontier) Size() int {
	return len(uf.queue)
}

// VisitedCount returns the number of visited URLs
func (uf *URLFrontier) VisitedCount() int {
	uf.mutex.Lock()
	defer uf.mutex.Unlock()
	return len(uf.visited)
}

// RobotsRules represents robots.txt rules for the * user agent
type RobotsRules struct {
	Disallowed []string
	CrawlDelay time.Duration
}

// Allowed reports whether path may be crawled
func (r *RobotsRules) Allowed(path string) bool {
	if path == "" {
		path = "/"
	}
	for _, prefix := range r.Disallowed {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

// RobotsCache manages robots.txt caching
type RobotsCache struct {
	client    *http.Client
	userAgent string
	cache     map[string]*RobotsRules
	mutex     sync.RWMutex
}

// NewRobotsCache creates a new robots cache
func NewRobotsCache(client *http.Client, userAgent string) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		cache:     make(map[string]*RobotsRules),
	}
}

// GetRules gets robots.txt rules for a scheme://host origin. A missing or
// unreadable robots.txt allows everything.
func (rc *RobotsCache) GetRules(ctx context.Context, origin string) *RobotsRules {
	rc.mutex.RLock()
	if rules, exists := rc.cache[origin]; exists {
		rc.mutex.RUnlock()
		return rules
	}
	rc.mutex.RUnlock()

	rules := &RobotsRules{}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", http.NoBody)
	if err == nil {
		req.Header.Set("User-Agent", rc.userAgent)
		resp, err := rc.client.Do(req)
		if err == nil {
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode == http.StatusOK {
				body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
				if err == nil {
					rules = parseRobotsTxt(string(body))
				}
			}
		}
	}

	rc.mutex.Lock()
	rc.cache[origin] = rules
	rc.mutex.Unlock()

	return rules
}

// parseRobotsTxt parses the * group of a robots.txt file
func parseRobotsTxt(content string) *RobotsRules {
	rules := &RobotsRules{}

	var currentUserAgent string
	for _, line := range strings.Split(content, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		field := strings.TrimSpace(strings.ToLower(parts[0]))
		value := strings.TrimSpace(parts[1])

		switch field {
		case "user-agent":
			currentUserAgent = value
		case "crawl-delay":
			if currentUserAgent == "*" {
				if delay, err := strconv.ParseFloat(value, 64); err == nil && delay > 0 {
					rules.CrawlDelay = time.Duration(delay * float64(time.Second))
				}
			}
		case "disallow":
			if currentUserAgent == "*" && value != "" {
				rules.Disallowed = append(rules.Disallowed, value)
			}
		}
	}

	return rules
}

// Size returns the cache size
func (rc *RobotsCache) Size() int {
	rc.mutex.RLock()
	defer rc.mutex.RUnlock()
	return len(rc.cache)
}

// CrawlStats tracks crawling statistics
type CrawlStats struct {
	PagesCrawled int64
	PagesIndexed int64
	PagesFailed  int64
	PagesSkipped int64
	StartTime    time.Time
}

// MultithreadedCrawler fetches pages with a pool of workers and feeds them
// to the indexer
type MultithreadedCrawler struct {
	cfg CrawlerConfig

	urlFrontier *URLFrontier
	robotsCache *RobotsCache
	indexer     *Indexer
	client      *http.Client
	limiter     *rate.Limiter
	clock       clock.Clock
	logger      *logrus.Entry

	crawled int64
	indexed int64
	failed  int64
	skipped int64
	started time.Time
}

// NewMultithreadedCrawler creates a new crawler
func NewMultithreadedCrawler(cfg CrawlerConfig, indexer *Indexer, clk clock.Clock, logger *logrus.Entry) *MultithreadedCrawler {
	transport := &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	// local HTML trees are crawled through file:// URLs
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	client := &http.Client{
		Timeout:   cfg.Timeout(),
		Transport: transport,
	}

	limit := rate.Inf
	if cfg.Delay() > 0 {
		limit = rate.Every(cfg.Delay())
	}

	if clk == nil {
		clk = clock.WallClock
	}

	return &MultithreadedCrawler{
		cfg:         cfg,
		urlFrontier: NewURLFrontier(cfg.QueueSize),
		robotsCache: NewRobotsCache(client, cfg.UserAgent),
		indexer:     indexer,
		client:      client,
		limiter:     rate.NewLimiter(limit, cfg.Workers),
		clock:       clk,
		logger:      logger,
	}
}

// Crawl starts from the seed URLs and returns once the frontier is drained,
// the page limit is reached or ctx is cancelled.
func (mc *MultithreadedCrawler) Crawl(ctx context.Context, seedURLs []string) (*CrawlStats, error) {
	mc.started = mc.clock.Now()

	added := 0
	for _, rawURL := range seedURLs {
		normalized, err := normalizeURL(rawURL)
		if err != nil {
			mc.logger.WithField("url", rawURL).WithError(err).Warn("skipping invalid seed")
			continue
		}
		if mc.urlFrontier.AddURL(normalized) {
			added++
		}
	}
	if added == 0 {
		return mc.Stats(), xerrors.Errorf("no usable seed URLs in %v", seedURLs)
	}

	mc.logger.WithFields(logrus.Fields{
		"workers":   mc.cfg.Workers,
		"max_pages": mc.cfg.MaxPages,
		"delay":     mc.cfg.Delay(),
		"seeds":     added,
	}).Info("starting crawl")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < mc.cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			mc.crawlerWorker(ctx, cancel, workerID)
		}(i)
	}

	// Monitor progress
	go func() {
		for {
			select {
			case <-mc.clock.After(5 * time.Second):
				mc.logStats("crawl progress")
			case <-mc.urlFrontier.Idle():
				mc.logger.Debug("frontier drained")
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()

	mc.logStats("crawl completed")
	return mc.Stats(), nil
}

// crawlerWorker represents an individual crawler worker
func (mc *MultithreadedCrawler) crawlerWorker(ctx context.Context, stop context.CancelFunc, workerID int) {
	logger := mc.logger.WithField("worker", workerID)
	logger.Debug("starting crawler worker")

	for {
		if atomic.LoadInt64(&mc.crawled) >= mc.cfg.MaxPages {
			logger.Debug("maximum pages reached")
			stop()
			return
		}

		urlStr, ok := mc.urlFrontier.GetURL(ctx)
		if !ok {
			return
		}

		if mc.processURL(ctx, logger, workerID, urlStr) {
			mc.urlFrontier.MarkCompleted(urlStr)
		} else {
			mc.urlFrontier.MarkFailed(urlStr)
		}
	}
}

// processURL fetches, indexes and expands a single URL
func (mc *MultithreadedCrawler) processURL(ctx context.Context, logger *logrus.Entry, workerID int, urlStr string) bool {
	logger = logger.WithField("url", urlStr)

	parsed, err := url.Parse(urlStr)
	if err != nil {
		logger.WithError(err).Warn("invalid URL")
		atomic.AddInt64(&mc.failed, 1)
		return false
	}

	if mc.cfg.RespectRobots && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		rules := mc.robotsCache.GetRules(ctx, parsed.Scheme+"://"+parsed.Host)
		if !rules.Allowed(parsed.EscapedPath()) {
			logger.Debug("skipping due to robots.txt")
			atomic.AddInt64(&mc.skipped, 1)
			return false
		}
		if rules.CrawlDelay > 0 {
			select {
			case <-mc.clock.After(rules.CrawlDelay):
			case <-ctx.Done():
				return false
			}
		}
	}

	pageData, err := mc.fetchPage(ctx, urlStr)
	if err != nil {
		if ctx.Err() == nil {
			logger.WithError(err).Warn("failed to fetch page")
			atomic.AddInt64(&mc.failed, 1)
		}
		return false
	}
	atomic.AddInt64(&mc.crawled, 1)

	result := mc.indexer.IndexPage(pageData, workerID)
	if !result.Success {
		logger.WithField("err", result.Error).Warn("indexing failed")
		atomic.AddInt64(&mc.failed, 1)
		return false
	}
	atomic.AddInt64(&mc.indexed, 1)

	newLinks := 0
	for _, link := range result.Links {
		if mc.urlFrontier.AddURL(link) {
			newLinks++
		}
	}

	logger.WithFields(logrus.Fields{
		"title":     result.Title,
		"words":     result.WordCount,
		"new_links": newLinks,
	}).Debug("indexed page")

	return true
}

// fetchPage fetches a single page
func (mc *MultithreadedCrawler) fetchPage(ctx context.Context, rawURL string) (*PageData, error) {
	// Rate limiting
	if err := mc.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, xerrors.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", mc.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := mc.client.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Errorf("status %d: %w", resp.StatusCode, ErrUnexpectedStatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, xerrors.Errorf("failed to read response body: %w", err)
	}

	return &PageData{
		URL:         rawURL,
		StatusCode:  resp.StatusCode,
		Content:     string(body),
		ContentType: resp.Header.Get("Content-Type"),
		FetchTime:   mc.clock.Now(),
	}, nil
}

// Stats returns a snapshot of the crawl counters
func (mc *MultithreadedCrawler) Stats() *CrawlStats {
	return &CrawlStats{
		PagesCrawled: atomic.LoadInt64(&mc.crawled),
		PagesIndexed: atomic.LoadInt64(&mc.indexed),
		PagesFailed:  atomic.LoadInt64(&mc.failed),
		PagesSkipped: atomic.LoadInt64(&mc.skipped),
		StartTime:    mc.started,
	}
}

// logStats logs current crawling statistics
func (mc *MultithreadedCrawler) logStats(msg string) {
	stats := mc.Stats()
	elapsed := mc.clock.Now().Sub(stats.StartTime).Seconds()

	fields := logrus.Fields{
		"crawled":       stats.PagesCrawled,
		"indexed":       stats.PagesIndexed,
		"failed":        stats.PagesFailed,
		"skipped":       stats.PagesSkipped,
		"frontier":      mc.urlFrontier.Size(),
		"visited":       mc.urlFrontier.VisitedCount(),
		"robots_cached": mc.robotsCache.Size(),
		"runtime_sec":   fmt.Sprintf("%.2f", elapsed),
	}
	if elapsed > 0 && stats.PagesCrawled > 0 {
		fields["pages_per_sec"] = fmt.Sprintf("%.2f", float64(stats.PagesCrawled)/elapsed)
	}
	mc.logger.WithFields(fields).Info(msg)
}

// normalizeURL normalizes a URL to avoid duplicates
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""

	switch parsed.Scheme {
	case "http", "https", "file":
	default:
		return "", xerrors.Errorf("unsupported scheme %q", parsed.Scheme)
	}

	return parsed.String(), nil
}
