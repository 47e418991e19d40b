// Package scan implements the benchmark-scan subsystem: a worker pool of
// parallel IMAP connections that rapidly analyzes the last N messages in a
// mailbox on a dedicated connection, leaving the IDLE monitor undisturbed.
package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emersion/go-imap/client"

	"github.com/stoik/phishd/internal/config"
	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/domain/checks"
	"github.com/stoik/phishd/internal/imapmon"
	"github.com/stoik/phishd/internal/logging"
	"github.com/stoik/phishd/internal/ports"
)

// WorkerCount is the maximum number of additional IMAP connections the scan
// subsystem opens alongside its own dedicated scan connection.
const WorkerCount = 10

// PhaseTimings reports how long each phase of a benchmark scan took.
type PhaseTimings struct {
	Phase0 time.Duration // connect, authenticate, select INBOX
	Phase1 time.Duration // bulk fetch of envelope/structure/flags/uid/date
	Phase2 time.Duration // body fetch across the worker pool
	Phase3 time.Duration // header fallback fetch/parse
	Phase4 time.Duration // analysis
	Phase5 time.Duration // persistence
	Phase6 time.Duration // cleanup
}

// Result is benchmarkScan's return value.
type Result struct {
	EmailCount   int
	SkippedParts int
	Timings      PhaseTimings
	Verdicts     []domain.Verdict
}

// Scanner runs benchmark scans for one account against a dedicated IMAP
// connection (plus up to WorkerCount helpers), independent of any running
// imapmon.Monitor for the same account.
type Scanner struct {
	cfg      config.AccountConfig
	analyzer *checks.Analyzer
	verdicts ports.VerdictStore
	log      *logging.Logger
}

// NewScanner constructs a Scanner for one account.
func NewScanner(cfg config.AccountConfig, analyzer *checks.Analyzer, verdicts ports.VerdictStore) *Scanner {
	return &Scanner{cfg: cfg, analyzer: analyzer, verdicts: verdicts, log: logging.New("scan")}
}

// BenchmarkScan analyzes the last count messages in INBOX (or all messages
// if count <= 0), phased and timed.
func (s *Scanner) BenchmarkScan(ctx context.Context, count int, cred imapmon.Credential) (Result, error) {
	var result Result
	var timings PhaseTimings

	// Phase 0: connect, authenticate, select INBOX.
	t0 := time.Now()
	scanConn, err := imapmon.Dial(s.cfg)
	if err != nil {
		return result, fmt.Errorf("phase0 connect: %w", err)
	}
	defer scanConn.Logout()

	if err := imapmon.Authenticate(scanConn, s.cfg, cred); err != nil {
		return result, fmt.Errorf("phase0 authenticate: %w", err)
	}
	mbox, err := scanConn.Select("INBOX", false)
	if err != nil {
		return result, fmt.Errorf("phase0 select: %w", err)
	}
	timings.Phase0 = time.Since(t0)

	if mbox.Messages == 0 {
		result.Timings = timings
		return result, nil
	}

	from, to := seqRange(count, mbox.Messages)

	// Phase 1: single bulk FETCH for envelope, structure, flags, uid,
	// internal date, plus the header fields we can grab cheaply in the
	// same round trip.
	t1 := time.Now()
	infos, err := bulkFetchInfo(scanConn, from, to)
	if err != nil {
		return result, fmt.Errorf("phase1 bulk fetch: %w", err)
	}
	timings.Phase1 = time.Since(t1)

	// Phase workers: up to WorkerCount additional connections; a worker
	// that fails to connect is dropped, and an all-failed pool falls back
	// to the scan connection alone.
	workers := spawnWorkers(s.cfg, cred, WorkerCount, s.log)
	pool := workers
	if len(pool) == 0 {
		pool = []*client.Client{scanConn}
	}
	defer closeWorkers(workers)

	// Phases 2-5 run per message, sharded across the pool by index mod
	// len(pool). Each connection is owned by exactly one goroutine, which
	// works through its shard serially; across shards, messages race, so
	// order is not guaranteed and each verdict is persisted as soon as its
	// own pipeline completes.
	var phase2, phase3, phase4, phase5 durationAccumulator
	var skipped int64
	var mu sync.Mutex
	var verdicts []domain.Verdict

	var wg sync.WaitGroup
	for w, conn := range pool {
		w, conn := w, conn
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; i < len(infos); i += len(pool) {
				info := infos[i]
				v, skippedParts, err := s.processOne(ctx, conn, info, &phase2, &phase3, &phase4, &phase5)
				if err != nil {
					s.log.Printf("message uid=%d: %v", info.Uid, err)
					continue
				}
				mu.Lock()
				verdicts = append(verdicts, v)
				mu.Unlock()
				atomic.AddInt64(&skipped, int64(skippedParts))
			}
		}()
	}
	wg.Wait()

	// Phase 5 (persist) timing is folded into processOne per message above
	// since persistence happens as each message's pipeline completes, not
	// as a separate barrier -- see durationAccumulator.

	timings.Phase2 = phase2.total()
	timings.Phase3 = phase3.total()
	timings.Phase4 = phase4.total()
	timings.Phase5 = phase5.total()

	// Phase 6: cleanup.
	t6 := time.Now()
	closeWorkers(workers)
	timings.Phase6 = time.Since(t6)

	result.EmailCount = len(verdicts)
	result.SkippedParts = int(skipped)
	result.Verdicts = verdicts
	result.Timings = timings
	return result, nil
}

// seqRange picks the sequence-number range to scan: the last count messages
// when count > 0, or the whole mailbox otherwise.
func seqRange(count int, total uint32) (from, to uint32) {
	if count <= 0 || uint32(count) >= total {
		return 1, total
	}
	return total - uint32(count) + 1, total
}

// durationAccumulator sums durations observed concurrently across workers.
type durationAccumulator struct {
	mu  sync.Mutex
	sum time.Duration
}

func (d *durationAccumulator) add(v time.Duration) {
	d.mu.Lock()
	d.sum += v
	d.mu.Unlock()
}

func (d *durationAccumulator) total() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sum
}

