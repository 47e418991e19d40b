// Package rss implements the Safeonweb campaign feed ingestion pipeline: a
// hand-rolled streaming RSS parser, the multilingual brand-name extractor run
// over each article's title, and the ingester that wires both into the
// SafeonwebCampaignStore.
package rss

import (
	"encoding/xml"
	"io"
	"strings"
	"time"
)

// Article is one <item> parsed from a Safeonweb RSS feed.
type Article struct {
	Title   string
	PubDate time.Time
}

// pubDateLayouts are tried in order: RFC 1123 with a numeric zone (the
// RFC 822 form most feeds use), RFC 1123 with a named zone, the same numeric
// form with a single-digit day, and RFC 3339.
var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z07:00",
}

// Parser streams an RSS 2.0 document, tracking element nesting, and emits
// one Article per <item> with a non-empty <title>.
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// Parse reads r token-by-token. It tolerates a leading BOM and unknown
// elements anywhere in the document -- only <item>/<title>/<pubDate> carry
// meaning, everything else is nesting the decoder walks past. A missing or
// unparseable <pubDate> falls back to the current time rather than failing
// the whole feed, matching the rest of this module's non-fatal parse-error
// posture.
func (p *Parser) Parse(r io.Reader) ([]Article, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = false

	var articles []Article
	var depth int
	var itemDepth = -1
	var title, pubDate strings.Builder
	var inTitle, inPubDate bool

	flush := func() {
		t := strings.TrimSpace(title.String())
		if t == "" {
			title.Reset()
			pubDate.Reset()
			return
		}
		articles = append(articles, Article{
			Title:   t,
			PubDate: p.parsePubDate(strings.TrimSpace(pubDate.String())),
		})
		title.Reset()
		pubDate.Reset()
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return articles, nil
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			switch el.Name.Local {
			case "item":
				itemDepth = depth
			case "title":
				if itemDepth >= 0 && depth == itemDepth+1 {
					inTitle = true
				}
			case "pubDate":
				if itemDepth >= 0 && depth == itemDepth+1 {
					inPubDate = true
				}
			}
		case xml.CharData:
			if inTitle {
				title.Write(el)
			}
			if inPubDate {
				pubDate.Write(el)
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "title":
				inTitle = false
			case "pubDate":
				inPubDate = false
			case "item":
				if depth == itemDepth {
					flush()
					itemDepth = -1
				}
			}
			depth--
		}
	}

	return articles, nil
}

func (p *Parser) parsePubDate(raw string) time.Time {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return p.now().UTC()
}
