// Command scan runs a one-shot benchmark scan against the last N messages
// in an account's INBOX on a dedicated connection pool, independent of any
// running phishd monitor, and prints the resulting verdict counts and
// per-phase timings.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strconv"

	"github.com/stoik/phishd/internal/config"
	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/domain/checks"
	"github.com/stoik/phishd/internal/imapmon"
	"github.com/stoik/phishd/internal/scan"
	"github.com/stoik/phishd/internal/storage"
	"golang.org/x/oauth2"
)

func main() {
	count := flag.Int("count", 100, "number of most recent messages to scan (0 scans the whole mailbox)")
	flag.Parse()

	log.Println("Starting benchmark scan...")

	dbPath := getEnv("PHISHD_DB_PATH", "phishd.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	verdicts := storage.NewVerdictStore(db)
	blacklistStore := storage.NewBlacklistStore(db)
	allowlistStore := storage.NewAllowlistStore(db)
	trustedLinkDomains := storage.NewTrustedLinkDomainStore(db)
	campaigns := storage.NewCampaignStore(db)

	analyzer := checks.NewAnalyzer(allowlistStore, blacklistStore, trustedLinkDomains, campaigns)

	cfg := accountConfigFromEnv()
	cred := imapmon.Credential{Password: os.Getenv("PHISHD_PASSWORD")}
	if tok := os.Getenv("PHISHD_ACCESS_TOKEN"); tok != "" {
		cred.Token = &oauth2.Token{AccessToken: tok}
	}

	scanner := scan.NewScanner(cfg, analyzer, verdicts)
	result, err := scanner.BenchmarkScan(context.Background(), *count, cred)
	if err != nil {
		log.Fatalf("benchmark scan: %v", err)
	}

	log.Printf("scanned %d messages, %d parts skipped", result.EmailCount, result.SkippedParts)
	log.Printf("phase0 (connect)  %s", result.Timings.Phase0)
	log.Printf("phase1 (bulk fetch) %s", result.Timings.Phase1)
	log.Printf("phase2 (body fetch) %s", result.Timings.Phase2)
	log.Printf("phase3 (headers)   %s", result.Timings.Phase3)
	log.Printf("phase4 (analyze)   %s", result.Timings.Phase4)
	log.Printf("phase5 (persist)   %s", result.Timings.Phase5)
	log.Printf("phase6 (cleanup)   %s", result.Timings.Phase6)

	highRisk := 0
	for _, v := range result.Verdicts {
		if v.ThreatLevel() != domain.ThreatClean {
			highRisk++
		}
	}
	if highRisk > 0 {
		log.Printf("=== %d of %d scanned messages scored above clean ===", highRisk, result.EmailCount)
	}
}

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
