package frontend

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"webquery/query_engine"
)

const (
	indexEndpoint  = "/"
	searchEndpoint = "/search"

	defaultResultsPerPage = 10
	requestIDHeader       = "X-Request-ID"
)

// Searcher evaluates a query and returns every match sorted by URL.
type Searcher interface {
	Search(query string) []query_engine.SearchResult
}

// Config encapsulates the settings for configuring the front-end service.
type Config struct {
	// The query engine answering searches.
	Searcher Searcher

	// The address to listen for incoming requests.
	ListenAddr string

	// The number of results to display per page. Defaults to 10.
	ResultsPerPage int

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (cfg *Config) validate() error {
	var err error
	if cfg.ListenAddr == "" {
		err = multierror.Append(err, xerrors.New("listen address has not been specified"))
	}
	if cfg.Searcher == nil {
		err = multierror.Append(err, xerrors.New("searcher has not been provided"))
	}
	if cfg.ResultsPerPage < 0 {
		err = multierror.Append(err, xerrors.New("results per page must not be negative"))
	}
	if cfg.ResultsPerPage == 0 {
		cfg.ResultsPerPage = defaultResultsPerPage
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.Out = io.Discard
		cfg.Logger = logrus.NewEntry(l)
	}
	return err
}

// Service implements the web front-end for the query engine.
type Service struct {
	cfg    Config
	router *mux.Router
}

// NewService creates a new front-end service instance with the specified config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Errorf("front-end service: config validation failed: %w", err)
	}

	svc := &Service{
		router: mux.NewRouter(),
		cfg:    cfg,
	}

	svc.router.Use(svc.withRequestID)
	svc.router.HandleFunc(indexEndpoint, svc.renderSearchPage).Methods("GET")
	svc.router.HandleFunc(searchEndpoint, svc.serveSearchResults).Methods("GET")
	svc.router.NotFoundHandler = http.HandlerFunc(svc.render404Page)
	return svc, nil
}

// Name returns the service name used in logs.
func (svc *Service) Name() string { return "front-end" }

// ServeHTTP lets the service be mounted on an existing server.
func (svc *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	svc.router.ServeHTTP(w, r)
}

// Run serves requests until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:    svc.cfg.ListenAddr,
		Handler: svc.router,
	}

	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()

	svc.cfg.Logger.WithField("addr", l.Addr().String()).Info("starting front-end server")
	if err = srv.Serve(l); err == http.ErrServerClosed {
		err = nil
	}

	return err
}

func (svc *Service) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		r.Header.Set(requestIDHeader, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type pageResults struct {
	Query   string                      `json:"query"`
	Total   int                         `json:"total"`
	Offset  int                         `json:"offset"`
	Results []query_engine.SearchResult `json:"results"`
}

func (svc *Service) runQuery(r *http.Request) pageResults {
	searchTerms := r.URL.Query().Get("q")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	var matched []query_engine.SearchResult
	if searchTerms != "" {
		matched = svc.cfg.Searcher.Search(searchTerms)
	}
	if offset > len(matched) {
		offset = len(matched)
	}

	page := pageResults{
		Query:   searchTerms,
		Total:   len(matched),
		Offset:  offset,
		Results: []query_engine.SearchResult{},
	}
	if end := offset + svc.cfg.ResultsPerPage; end < len(matched) {
		page.Results = matched[offset:end]
	} else if offset < len(matched) {
		page.Results = matched[offset:]
	}

	svc.cfg.Logger.WithFields(logrus.Fields{
		"request_id": r.Header.Get(requestIDHeader),
		"query":      searchTerms,
		"matches":    page.Total,
	}).Debug("served search")
	return page
}

func (svc *Service) serveSearchResults(w http.ResponseWriter, r *http.Request) {
	page := svc.runQuery(r)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(page); err != nil {
		svc.cfg.Logger.WithField("err", err).Error("failed to encode search results")
	}
}

func (svc *Service) renderSearchPage(w http.ResponseWriter, r *http.Request) {
	page := svc.runQuery(r)

	data := struct {
		pageResults
		Start      int
		PrevOffset int
		NextOffset int
		HasPrev    bool
		HasNext    bool
	}{
		pageResults: page,
		Start:       page.Offset + 1,
		PrevOffset:  page.Offset - svc.cfg.ResultsPerPage,
		NextOffset:  page.Offset + svc.cfg.ResultsPerPage,
		HasPrev:     page.Offset > 0,
		HasNext:     page.Offset+svc.cfg.ResultsPerPage < page.Total,
	}
	if data.PrevOffset < 0 {
		data.PrevOffset = 0
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := searchPageTemplate.Execute(w, data); err != nil {
		svc.cfg.Logger.WithField("err", err).Error("failed to render search page")
	}
}

func (svc *Service) render404Page(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_ = notFoundTemplate.Execute(w, nil)
}

var searchPageTemplate = template.Must(template.New("search").Parse(`<!DOCTYPE html>
<html>
<head><title>webquery{{if .Query}} - {{.Query}}{{end}}</title></head>
<body>
<form action="/" method="get">
<input type="text" name="q" value="{{.Query}}" size="60">
<input type="submit" value="Search">
</form>
{{if .Query}}
<p>{{.Total}} matching documents</p>
<ol start="{{.Start}}">
{{range .Results}}<li><a href="{{.URL}}">{{if .Title}}{{.Title}}{{else}}{{.URL}}{{end}}</a></li>
{{end}}</ol>
{{if .HasPrev}}<a href="/?q={{.Query}}&offset={{.PrevOffset}}">previous</a>{{end}}
{{if .HasNext}}<a href="/?q={{.Query}}&offset={{.NextOffset}}">next</a>{{end}}
{{end}}
</body>
</html>
`))

var notFoundTemplate = template.Must(template.New("404").Parse(`<!DOCTYPE html>
<html><head><title>Not found</title></head><body><p>Page not found.</p></body></html>
`))
