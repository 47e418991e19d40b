package imapmon

import (
	"fmt"

	"github.com/emersion/go-imap"

	"github.com/stoik/phishd/internal/config"
)

// moveUID copies uid into dest, marks the source copy \Deleted, and
// expunges it. go-imap's base client package (unlike the move extension)
// has no UID MOVE command, so this is the standard COPY + STORE \Deleted +
// EXPUNGE sequence RFC 6851 itself documents as the fallback for servers
// without the MOVE capability -- the same wire-level effect as "UID MOVE".
func (m *Monitor) moveUID(uid uint32, dest string) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}

	seqset := seqSetOf(uid)
	if err := c.UidCopy(seqset, dest); err != nil {
		return fmt.Errorf("copy uid %d to %s: %w", uid, dest, err)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("flag uid %d deleted: %w", uid, err)
	}

	if err := c.Expunge(nil); err != nil {
		return fmt.Errorf("expunge after move to %s: %w", dest, err)
	}
	return nil
}

// MoveToJunk moves uid to the Junk mailbox on the already-connected
// session.
func (m *Monitor) MoveToJunk(uid uint32) error {
	return m.moveUID(uid, "Junk")
}

// DeleteEmail moves uid to the Trash mailbox on the already-connected
// session.
func (m *Monitor) DeleteEmail(uid uint32) error {
	return m.moveUID(uid, "Trash")
}

// FlagMessage sets \Flagged on uid without moving it.
func (m *Monitor) FlagMessage(uid uint32) error {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil {
		return ErrNotConnected
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqSetOf(uid), item, []interface{}{imap.FlaggedFlag}, nil); err != nil {
		return fmt.Errorf("flag uid %d: %w", uid, err)
	}
	return nil
}

// ConnectAndDelete establishes a fresh, short-lived session independent of
// the persistent monitor connection, moves uid to Trash, and tears the
// session down. Used when the persistent IDLE session is absent -- e.g.
// acting on a verdict surfaced from a prior scan, before the monitor has
// started.
func ConnectAndDelete(cfg config.AccountConfig, cred Credential, uid uint32) error {
	c, err := Dial(cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	if err := Authenticate(c, cfg, cred); err != nil {
		_ = c.Logout()
		return fmt.Errorf("authenticate: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		_ = c.Logout()
		return fmt.Errorf("select INBOX: %w", err)
	}

	seqset := seqSetOf(uid)
	if err := c.UidCopy(seqset, "Trash"); err != nil {
		_ = c.Logout()
		return fmt.Errorf("copy uid %d to Trash: %w", uid, err)
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		_ = c.Logout()
		return fmt.Errorf("flag uid %d deleted: %w", uid, err)
	}
	if err := c.Expunge(nil); err != nil {
		_ = c.Logout()
		return fmt.Errorf("expunge: %w", err)
	}

	return c.Logout()
}
