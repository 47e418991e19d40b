// Package htmlparse extracts <a href> elements out of an email's HTML body.
// This is the one-shot HTML parse AnalysisContext is built from; it is kept
// as its own small adapter package, separate from internal/domain, so the
// domain package stays free of a third-party HTML parser dependency.
package htmlparse

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/stoik/phishd/internal/domain"
)

// ExtractLinks parses htmlBody and returns one domain.Link per <a href>
// element, in document order. If htmlBody is empty or fails to parse, it
// returns nil -- never an error -- since an unparseable body yields an
// empty AnalysisContext rather than a fatal failure.
func ExtractLinks(htmlBody string) []domain.Link {
	if strings.TrimSpace(htmlBody) == "" {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return nil
	}

	var links []domain.Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		links = append(links, domain.Link{
			Href:        href,
			DisplayText: strings.TrimSpace(s.Text()),
			Domain:      hostOf(href),
		})
	})
	return links
}

// hostOf returns the lowercased host of a URL, or "" if it cannot be
// parsed or has no host.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
