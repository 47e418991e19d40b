// Package blacklist implements the IOC-feed updater: fetch a
// plaintext domain list over HTTP, parse it, and replace the
// BlacklistStore's rows for that source wholesale.
package blacklist

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stoik/phishd/internal/httpx"
	"github.com/stoik/phishd/internal/logging"
	"github.com/stoik/phishd/internal/ports"
)

// DefaultRefreshInterval is how often Updater.Refresh is due to re-pull its
// source: six hours, chosen because domain-reputation lists are a coarse,
// slow-moving signal that doesn't need minute-to-minute freshness, and this
// amortizes well against the per-message IDLE workload without leaving a
// stale list for more than half a working day.
const DefaultRefreshInterval = 6 * time.Hour

// Updater pulls one plaintext domain list from url and keeps a
// BlacklistStore's rows for source in sync with it.
type Updater struct {
	url             string
	source          string
	refreshInterval time.Duration
	http            *httpx.Client
	store           ports.BlacklistStore
	log             *logging.Logger
	now             func() time.Time
}

func NewUpdater(url, source string, store ports.BlacklistStore) *Updater {
	return &Updater{
		url:             url,
		source:          source,
		refreshInterval: DefaultRefreshInterval,
		http:            httpx.New(),
		store:           store,
		log:             logging.New("blacklist"),
		now:             time.Now,
	}
}

// parseDomainList splits text into lines, trims and lowercases each, and
// discards blank lines and lines beginning with "#".
func parseDomainList(text string) []string {
	var domains []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		domains = append(domains, line)
	}
	return domains
}

// NeedsRefresh reports whether source has no recorded entries yet, or its
// last update is older than refreshInterval.
func (u *Updater) NeedsRefresh(ctx context.Context) (bool, error) {
	lastUpdated, ok, err := u.store.LastUpdated(ctx, u.source)
	if err != nil {
		return false, fmt.Errorf("check last updated for %s: %w", u.source, err)
	}
	if !ok {
		return true, nil
	}
	return u.now().Sub(lastUpdated) > u.refreshInterval, nil
}

// Refresh fetches the configured URL, parses it, and replaces the store's
// rows for this source. On any failure the existing blacklist is left
// untouched -- a bad fetch never empties the list. Returns the number of
// domains in the new list.
func (u *Updater) Refresh(ctx context.Context) (int, error) {
	body, err := u.http.Get(ctx, u.url)
	if err != nil {
		return 0, fmt.Errorf("fetch blacklist %s: %w", u.source, err)
	}

	domains := parseDomainList(string(body))
	if err := u.store.ReplaceAll(ctx, domains, u.source); err != nil {
		return 0, fmt.Errorf("replace blacklist %s: %w", u.source, err)
	}

	u.log.Printf("refreshed %s: %d domains", u.source, len(domains))
	return len(domains), nil
}
