// Package imapmon is the IMAP Monitor: the asynchronous state machine that
// owns one authenticated IMAP session per account, maintains an IDLE
// heartbeat, and drives the per-message analysis pipeline on new-mail
// notifications.
package imapmon

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-sasl"
	"golang.org/x/oauth2"

	"github.com/stoik/phishd/internal/config"
	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/domain/checks"
	"github.com/stoik/phishd/internal/logging"
	"github.com/stoik/phishd/internal/ports"
)

// MonitorState is one of the explicit states in the monitor's state
// machine: disconnected -> connecting -> connected -> monitoring ->
// (error | disconnected).
type MonitorState string

const (
	StateDisconnected MonitorState = "disconnected"
	StateConnecting   MonitorState = "connecting"
	StateConnected    MonitorState = "connected"
	StateMonitoring   MonitorState = "monitoring"
	StateError        MonitorState = "error"
)

// ErrAlreadyRunning is returned by Start when the monitor is not in
// StateDisconnected.
var ErrAlreadyRunning = errors.New("imapmon: monitor already running")

// ErrNotConnected is returned by the on-session action operations
// (MoveToJunk, FlagMessage, DeleteEmail) when no session is active.
var ErrNotConnected = errors.New("imapmon: no active session")

// DefaultHeartbeatInterval is how often the monitor re-issues
// DONE/NOOP/IDLE to keep the session alive across network middleboxes.
const DefaultHeartbeatInterval = 300 * time.Second

// stopTimeout bounds how long Stop waits for the IDLE loop to cleanly
// issue DONE and close the session before giving up.
const stopTimeout = 5 * time.Second

// Credential carries whichever secret the configured AuthMethod needs. The
// OAuth2 token itself is assumed already obtained -- the browser/
// authorization-code flow happens elsewhere -- so Token only ever needs
// its AccessToken field populated; Expiry/RefreshToken ride along unused
// but keep the shape callers already get back from a real token exchange,
// rather than inventing a bespoke string-only credential.
type Credential struct {
	Password string
	Token    *oauth2.Token
}

// Delegate receives monitor lifecycle and per-message notifications. It is
// a weak back-reference to any listening UI layer: plain callbacks, no
// shared ownership or cyclic reference.
type Delegate interface {
	OnConnect()
	OnDisconnect()
	OnError(err error)
	OnEmail(v domain.Verdict)
}

// NewMonitor constructs a Monitor for one account. analyzer, verdicts, and
// delegate must be non-nil; heartbeat <= 0 selects DefaultHeartbeatInterval.
func NewMonitor(cfg config.AccountConfig, analyzer *checks.Analyzer, verdicts ports.VerdictStore, delegate Delegate, heartbeat time.Duration) *Monitor {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &Monitor{
		cfg:       cfg,
		analyzer:  analyzer,
		verdicts:  verdicts,
		delegate:  delegate,
		heartbeat: heartbeat,
		log:       logging.New("imap"),
		state:     StateDisconnected,
	}
}

// Monitor owns one IMAP session for one AccountConfig.
type Monitor struct {
	cfg       config.AccountConfig
	analyzer  *checks.Analyzer
	verdicts  ports.VerdictStore
	delegate  Delegate
	heartbeat time.Duration
	log       *logging.Logger

	mu       sync.Mutex
	state    MonitorState
	lastErr  error
	client   *client.Client
	messages uint32 // last known mailbox message count

	cancel   context.CancelFunc
	idleDone chan struct{}
}

// State returns the monitor's current state.
func (m *Monitor) State() MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start connects and authenticates an IMAP session and begins the
// background IDLE loop. It fails into StateError, notifying the delegate,
// at any step; the underlying connection is torn down on failure.
func (m *Monitor) Start(ctx context.Context, cred Credential) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.state = StateConnecting
	m.mu.Unlock()

	c, err := Dial(m.cfg)
	if err != nil {
		return m.fail(fmt.Errorf("connect: %w", err))
	}

	if err := Authenticate(c, m.cfg, cred); err != nil {
		_ = c.Logout()
		return m.fail(fmt.Errorf("authenticate: %w", err))
	}

	mbox, err := c.Select("INBOX", false)
	if err != nil {
		_ = c.Logout()
		return m.fail(fmt.Errorf("select INBOX: %w", err))
	}

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.client = c
	m.messages = mbox.Messages
	m.state = StateMonitoring
	m.cancel = cancel
	m.idleDone = make(chan struct{})
	m.mu.Unlock()

	m.log.Printf("connected to %s, %d messages in INBOX", m.cfg.Username, mbox.Messages)
	m.delegate.OnConnect()

	go m.idleLoop(runCtx)
	return nil
}

// Stop cancels the IDLE loop, which issues DONE and closes the session
// without blocking beyond stopTimeout, and returns the monitor to
// StateDisconnected.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	done := m.idleDone
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			m.log.Printf("stop: idle loop did not exit within %s", stopTimeout)
		}
	}

	m.mu.Lock()
	m.state = StateDisconnected
	m.client = nil
	m.mu.Unlock()
	return nil
}

// fail transitions the monitor to StateError, notifies the delegate, and
// returns the error for the caller of Start.
func (m *Monitor) fail(err error) error {
	m.mu.Lock()
	m.state = StateError
	m.lastErr = err
	m.mu.Unlock()
	m.log.Printf("error: %v", err)
	m.delegate.OnError(err)
	return err
}

// Dial opens a TCP (or TLS, per cfg.UseTLS) connection to cfg's IMAP host.
// Exported for reuse by the scan subsystem, which dials its own pool of
// connections independent of any running Monitor.
func Dial(cfg config.AccountConfig) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.IMAPServer, cfg.IMAPPort)
	if cfg.UseTLS {
		return client.DialTLS(addr, &tls.Config{ServerName: cfg.IMAPServer})
	}
	return client.Dial(addr)
}

// Authenticate logs in on c per cfg.AuthMethod: LOGIN for a password
// account, XOAUTH2 for an OAuth2 one. Exported for the same reason as Dial.
func Authenticate(c *client.Client, cfg config.AccountConfig, cred Credential) error {
	switch cfg.AuthMethod {
	case config.AuthPassword:
		return c.Login(cfg.Username, cred.Password)
	case config.AuthOAuth2:
		if cred.Token == nil {
			return fmt.Errorf("oauth2 account %s: no access token supplied", cfg.Username)
		}
		return c.Authenticate(sasl.NewXoauth2Client(cfg.Username, cred.Token.AccessToken))
	default:
		return fmt.Errorf("unknown auth method %q", cfg.AuthMethod)
	}
}

// seqSetOf builds a single-number SeqSet, the shape every action operation
// (MoveToJunk, FlagMessage, DeleteEmail) and per-message fetch needs.
func seqSetOf(n uint32) *imap.SeqSet {
	s := new(imap.SeqSet)
	s.AddNum(n)
	return s
}
