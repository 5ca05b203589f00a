package main

import (
	"net/url"
	"path"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"webquery/query_engine"
)

// Elements whose text is never shown to a reader
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"video": true, "track": true, "audio": true,
	"source": true, "picture": true, "img": true,
}

// ProcessedPage is the text processor output for one HTML page
type ProcessedPage struct {
	Title string
	Body  string
	Links []string
}

// TextProcessor turns HTML into a normalized body and the links to follow
type TextProcessor struct {
	titlePolicy *bluemonday.Policy
	extensions  []string
}

// NewTextProcessor creates a text processor following links whose path ends
// with one of extensions. No extensions means every link is followed.
func NewTextProcessor(extensions []string) *TextProcessor {
	exts := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		exts = append(exts, strings.ToLower(ext))
	}

	return &TextProcessor{
		titlePolicy: bluemonday.StrictPolicy(),
		extensions:  exts,
	}
}

// Process extracts the title, normalized body and followable links of an
// HTML document fetched from baseURL.
func (tp *TextProcessor) Process(content string, baseURL string) *ProcessedPage {
	// links are only collected when the page has a usable base URL
	base, _ := url.Parse(baseURL)

	var (
		body      = query_engine.NewBodyBuilder()
		title     strings.Builder
		links     []string
		seen      = make(map[string]bool)
		skipDepth int
		inTitle   bool
	)

	z := html.NewTokenizer(strings.NewReader(content))
loop:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a broken document: keep whatever was read so far
			break loop
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if skippedElements[tok.Data] && tt == html.StartTagToken && !isVoidElement(tok.Data) {
				skipDepth++
			}
			if tok.Data == "title" {
				inTitle = tt == html.StartTagToken
			}
			if tok.Data == "a" && base != nil {
				if link, ok := tp.resolveLink(base, tok.Attr); ok && !seen[link] {
					seen[link] = true
					links = append(links, link)
				}
			}
			// tags always end a word
			body.Separate()
		case html.EndTagToken:
			tok := z.Token()
			if skippedElements[tok.Data] && skipDepth > 0 && !isVoidElement(tok.Data) {
				skipDepth--
			}
			if tok.Data == "title" {
				inTitle = false
			}
			body.Separate()
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := string(z.Text())
			if inTitle {
				title.WriteString(text)
			}
			body.WriteText(text)
		}
	}

	return &ProcessedPage{
		Title: tp.cleanTitle(title.String()),
		Body:  body.String(),
		Links: links,
	}
}

// cleanTitle strips any markup left inside <title> and collapses whitespace
func (tp *TextProcessor) cleanTitle(raw string) string {
	clean := html.UnescapeString(tp.titlePolicy.Sanitize(raw))
	return strings.Join(strings.Fields(clean), " ")
}

// resolveLink returns the absolute, fragment-free target of an anchor when
// it should be crawled
func (tp *TextProcessor) resolveLink(base *url.URL, attrs []html.Attribute) (string, bool) {
	for _, attr := range attrs {
		if !strings.EqualFold(attr.Key, "href") {
			continue
		}

		resolved, err := base.Parse(strings.TrimSpace(attr.Val))
		if err != nil {
			return "", false
		}
		resolved.Fragment = ""
		resolved.RawFragment = ""

		if !tp.followable(resolved) {
			return "", false
		}
		return resolved.String(), true
	}
	return "", false
}

func (tp *TextProcessor) followable(u *url.URL) bool {
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return false
	}

	if len(tp.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, allowed := range tp.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func isVoidElement(name string) bool {
	switch name {
	case "img", "source", "track":
		return true
	}
	return false
}
