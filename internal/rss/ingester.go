package rss

import (
	"bytes"
	"context"
	"fmt"

	"github.com/stoik/phishd/internal/httpx"
	"github.com/stoik/phishd/internal/logging"
	"github.com/stoik/phishd/internal/ports"
)

// CampaignIngester fetches the Safeonweb RSS feed, extracts impersonated
// brand names from each advisory's title, and records them in the
// SafeonwebCampaignStore.
type CampaignIngester struct {
	feedURL string
	http    *httpx.Client
	parser  *Parser
	store   ports.SafeonwebCampaignStore
	log     *logging.Logger
}

func NewCampaignIngester(feedURL string, store ports.SafeonwebCampaignStore) *CampaignIngester {
	return &CampaignIngester{
		feedURL: feedURL,
		http:    httpx.New(),
		parser:  NewParser(),
		store:   store,
		log:     logging.New("safeonweb"),
	}
}

// Ingest fetches and parses the feed, then inserts every extracted brand per
// article. It returns the number of articles that yielded at least one
// brand. A fetch failure is returned directly; the caller decides whether
// to treat a failed ingest as fatal (it is not, for the periodic background
// refresh). A malformed feed is not an error: the parser stops at the first
// XML error and the articles read before it are ingested.
func (c *CampaignIngester) Ingest(ctx context.Context) (int, error) {
	body, err := c.http.Get(ctx, c.feedURL)
	if err != nil {
		return 0, fmt.Errorf("fetch safeonweb feed: %w", err)
	}

	articles, err := c.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("parse safeonweb feed: %w", err)
	}

	matched := 0
	for _, a := range articles {
		brands := ExtractBrands(a.Title)
		if len(brands) == 0 {
			continue
		}
		if err := c.store.InsertBrands(ctx, brands, a.PubDate, a.Title); err != nil {
			c.log.Printf("insert brands for %q: %v", a.Title, err)
			continue
		}
		matched++
	}

	return matched, nil
}
