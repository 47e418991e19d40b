// Command phishd is the long-running monitor daemon: it wires the storage
// layer, the check pipeline, the blacklist/campaign background refreshers,
// and one imapmon.Monitor for the single account configured through
// environment variables, then blocks until terminated.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/stoik/phishd/internal/blacklist"
	"github.com/stoik/phishd/internal/config"
	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/domain/checks"
	"github.com/stoik/phishd/internal/imapmon"
	"github.com/stoik/phishd/internal/rss"
	"github.com/stoik/phishd/internal/storage"
	"golang.org/x/oauth2"
)

func main() {
	log.Println("Starting phishd...")

	dbPath := getEnv("PHISHD_DB_PATH", "phishd.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("database ready at %s", dbPath)

	verdicts := storage.NewVerdictStore(db)
	blacklistStore := storage.NewBlacklistStore(db)
	allowlistStore := storage.NewAllowlistStore(db)
	trustedLinkDomains := storage.NewTrustedLinkDomainStore(db)
	campaigns := storage.NewCampaignStore(db)

	analyzer := checks.NewAnalyzer(allowlistStore, blacklistStore, trustedLinkDomains, campaigns)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startBlacklistUpdater(ctx, blacklistStore)
	startCampaignIngester(ctx, campaigns)

	cfg := accountConfigFromEnv()
	cred := imapmon.Credential{Password: os.Getenv("PHISHD_PASSWORD")}
	if tok := os.Getenv("PHISHD_ACCESS_TOKEN"); tok != "" {
		cred.Token = &oauth2.Token{AccessToken: tok}
	}

	monitor := imapmon.NewMonitor(cfg, analyzer, verdicts, &logDelegate{}, 0)
	if err := monitor.Start(ctx, cred); err != nil {
		log.Fatalf("start monitor: %v", err)
	}
	log.Printf("monitoring %s as %s", cfg.IMAPServer, cfg.Username)

	<-ctx.Done()
	log.Println("shutting down...")
	if err := monitor.Stop(); err != nil {
		log.Printf("stop monitor: %v", err)
	}
	log.Println("phishd stopped")
}

// startBlacklistUpdater refreshes the configured blacklist source on
// DefaultRefreshInterval, logging and continuing on failure so a transient
// outage of the feed never brings the monitor down with it.
func startBlacklistUpdater(ctx context.Context, store *storage.BlacklistStore) {
	url := os.Getenv("PHISHD_BLACKLIST_URL")
	if url == "" {
		log.Println("blacklist: PHISHD_BLACKLIST_URL not set, skipping updater")
		return
	}
	source := getEnv("PHISHD_BLACKLIST_SOURCE", "default")
	updater := blacklist.NewUpdater(url, source, store)

	go func() {
		ticker := time.NewTicker(blacklist.DefaultRefreshInterval)
		defer ticker.Stop()
		runRefresh(ctx, updater)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runRefresh(ctx, updater)
			}
		}
	}()
}

func runRefresh(ctx context.Context, updater *blacklist.Updater) {
	n, err := updater.Refresh(ctx)
	if err != nil {
		log.Printf("blacklist refresh failed: %v", err)
		return
	}
	log.Printf("blacklist refreshed: %d domains", n)
}

// startCampaignIngester polls the Safeonweb RSS feed on the same cadence as
// the blacklist updater; campaigns are a slow-moving signal too.
func startCampaignIngester(ctx context.Context, store *storage.CampaignStore) {
	feedURL := os.Getenv("PHISHD_SAFEONWEB_FEED_URL")
	if feedURL == "" {
		log.Println("safeonweb: PHISHD_SAFEONWEB_FEED_URL not set, skipping ingester")
		return
	}
	ingester := rss.NewCampaignIngester(feedURL, store)

	go func() {
		ticker := time.NewTicker(blacklist.DefaultRefreshInterval)
		defer ticker.Stop()
		runIngest(ctx, ingester)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runIngest(ctx, ingester)
			}
		}
	}()
}

func runIngest(ctx context.Context, ingester *rss.CampaignIngester) {
	n, err := ingester.Ingest(ctx)
	if err != nil {
		log.Printf("safeonweb ingest failed: %v", err)
		return
	}
	log.Printf("safeonweb ingest: %d articles yielded brands", n)
}

// accountConfigFromEnv builds the single AccountConfig phishd monitors from
// environment variables, with getEnv(key, defaultValue) falling back to a
// sane default when unset.
func accountConfigFromEnv() config.AccountConfig {
	provider := config.Provider(getEnv("PHISHD_PROVIDER", string(config.ProviderCustom)))
	cfg := config.NewAccountConfig(
		getEnv("PHISHD_ACCOUNT_ID", "default"),
		getEnv("PHISHD_ACCOUNT_NAME", "default"),
		os.Getenv("PHISHD_USERNAME"),
		provider,
	)
	if provider == config.ProviderCustom {
		cfg.IMAPServer = getEnv("PHISHD_IMAP_SERVER", cfg.IMAPServer)
		if port, err := strconv.Atoi(os.Getenv("PHISHD_IMAP_PORT")); err == nil && port > 0 {
			cfg.IMAPPort = port
		}
		if os.Getenv("PHISHD_AUTH_METHOD") == string(config.AuthOAuth2) {
			cfg.AuthMethod = config.AuthOAuth2
		}
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// logDelegate is the simplest imapmon.Delegate: it just logs. A future UI
// layer would replace this with one that also updates on-screen state.
type logDelegate struct{}

func (logDelegate) OnConnect()    { log.Println("monitor connected") }
func (logDelegate) OnDisconnect() { log.Println("monitor disconnected") }
func (logDelegate) OnError(err error) {
	log.Printf("monitor error: %v", err)
}
func (logDelegate) OnEmail(v domain.Verdict) {
	log.Printf("verdict: subject=%q score=%d action=%v", v.Subject, v.Score, v.ActionTaken)
}
