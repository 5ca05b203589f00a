package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/xerrors"

	"webquery/query_engine"
	"webquery/query_engine/frontend"
)

var appName = "webquery-search"

const titleWidth = 60

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	logger := rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"host": host,
	})

	if err := makeApp(rootLogger, logger).Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		_ = os.Stderr.Sync()
		os.Exit(1)
	}
}

func makeApp(rootLogger *logrus.Logger, logger *logrus.Entry) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "run boolean and phrase queries against a crawled web index"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "index",
			Value:  "index_output/index.json",
			EnvVar: "INDEX_PATH",
			Usage:  "Index snapshot written by the crawler",
		},
		cli.StringFlag{
			Name:   "serve",
			EnvVar: "FRONTEND_LISTEN_ADDR",
			Usage:  "Serve the web front-end on this address instead of reading queries from stdin",
		},
		cli.IntFlag{
			Name:   "results-per-page",
			Value:  10,
			EnvVar: "RESULTS_PER_PAGE",
			Usage:  "Number of results per front-end page",
		},
		cli.BoolFlag{
			Name:  "explain",
			Usage: "Print the parsed clauses of every query",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "info",
			EnvVar: "LOG_LEVEL",
			Usage:  "One of debug, info, warn, error",
		},
	}
	app.Action = func(appCtx *cli.Context) error {
		level, err := logrus.ParseLevel(appCtx.String("log-level"))
		if err != nil {
			return xerrors.Errorf("invalid log level: %w", err)
		}
		rootLogger.SetLevel(level)

		qe, idx, err := query_engine.LoadQueryEngine(appCtx.String("index"))
		if err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"index":           appCtx.String("index"),
			"total_documents": idx.Len(),
			"total_terms":     idx.TermCount(),
		}).Info("index loaded")

		if addr := appCtx.String("serve"); addr != "" {
			return serve(qe, addr, appCtx.Int("results-per-page"), logger)
		}
		return repl(qe, os.Stdin, os.Stdout, appCtx.Bool("explain"))
	}
	return app
}

func serve(qe *query_engine.QueryEngine, addr string, perPage int, logger *logrus.Entry) error {
	svc, err := frontend.NewService(frontend.Config{
		Searcher:       qe,
		ListenAddr:     addr,
		ResultsPerPage: perPage,
		Logger:         logger.WithField("service", "front-end"),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return svc.Run(ctx)
}

// repl reads one query per line until EOF, quit or exit
func repl(qe *query_engine.QueryEngine, in io.Reader, out io.Writer, explain bool) error {
	stats := qe.GetStats()
	fmt.Fprintf(out, "Search Engine Ready!\n")
	fmt.Fprintf(out, "Index contains %d terms across %d documents\n",
		stats["total_terms"], stats["total_documents"])
	fmt.Fprintln(out, "\nEnter your search query (or 'quit' to exit):")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "quit" || query == "exit" {
			break
		}

		if explain {
			for i, root := range qe.Explain(query) {
				if root == nil {
					fmt.Fprintf(out, "  clause %d: <invalid>\n", i+1)
					continue
				}
				fmt.Fprintf(out, "  clause %d: %s\n", i+1, root)
			}
		}

		results := qe.Search(query)
		if len(results) == 0 {
			fmt.Fprintln(out, "No results found.")
			continue
		}

		fmt.Fprintf(out, "\nFound %d results:\n", len(results))
		fmt.Fprintln(out, strings.Repeat("-", titleWidth))
		for i, result := range results {
			title := result.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Fprintf(out, "%d. %s\n", i+1, runewidth.Truncate(title, titleWidth, "..."))
			fmt.Fprintf(out, "   URL: %s\n", result.URL)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "\nGoodbye!")
	return scanner.Err()
}
