package scan

import (
	"github.com/emersion/go-imap/client"

	"github.com/stoik/phishd/internal/config"
	"github.com/stoik/phishd/internal/imapmon"
	"github.com/stoik/phishd/internal/logging"
)

// spawnWorkers dials and authenticates up to n additional IMAP connections,
// each selecting INBOX. A connection that fails at any step is dropped
// rather than aborting the scan; if every connection fails, the caller
// falls back to running on the scan connection alone.
func spawnWorkers(cfg config.AccountConfig, cred imapmon.Credential, n int, log *logging.Logger) []*client.Client {
	workers := make([]*client.Client, 0, n)
	for i := 0; i < n; i++ {
		c, err := imapmon.Dial(cfg)
		if err != nil {
			log.Printf("worker %d: connect failed: %v", i, err)
			continue
		}
		if err := imapmon.Authenticate(c, cfg, cred); err != nil {
			log.Printf("worker %d: authenticate failed: %v", i, err)
			_ = c.Logout()
			continue
		}
		if _, err := c.Select("INBOX", false); err != nil {
			log.Printf("worker %d: select INBOX failed: %v", i, err)
			_ = c.Logout()
			continue
		}
		workers = append(workers, c)
	}
	return workers
}

// closeWorkers logs each worker out. Safe to call twice; Logout on an
// already-closed connection is ignored.
func closeWorkers(workers []*client.Client) {
	for _, c := range workers {
		_ = c.Logout()
	}
}
