package imapmon

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/client"
)

// idleLoop holds IDLE outstanding on the session, re-issuing DONE -> NOOP ->
// IDLE every m.heartbeat to keep the connection alive across network
// middleboxes, and dispatches EXISTS notifications to the per-message
// pipeline. Cancellation of ctx issues DONE, waits for the IDLE command to
// complete, and logs the session out; Stop bounds how long its caller waits
// for that.
func (m *Monitor) idleLoop(ctx context.Context) {
	defer close(m.idleDone)
	defer m.teardown()

	updates := make(chan client.Update, 32)
	m.client.Updates = updates

	for {
		stop := make(chan struct{})
		idleErrCh := make(chan error, 1)
		go func() { idleErrCh <- m.client.Idle(stop, nil) }()

		heartbeat := time.NewTimer(m.heartbeat)

		cycleErr := m.runIdleCycle(ctx, stop, idleErrCh, updates, heartbeat)
		heartbeat.Stop()

		if cycleErr != nil {
			if cycleErr == errStopRequested {
				return
			}
			m.fail(fmt.Errorf("idle: %w", cycleErr))
			return
		}
		// cycleErr == nil means the heartbeat fired, DONE/NOOP completed,
		// and we loop around to re-issue IDLE.
	}
}

var errStopRequested = fmt.Errorf("imapmon: stop requested")

// runIdleCycle services one outstanding IDLE command until it ends, either
// because the heartbeat elapsed (triggering DONE/NOOP, return nil to
// re-IDLE), an EXISTS arrived (triggering DONE, then the per-message
// pipeline, then return nil to re-IDLE), the context was cancelled (return
// errStopRequested), or the IDLE command itself failed or was terminated by
// the server (return the error).
func (m *Monitor) runIdleCycle(ctx context.Context, stop chan struct{}, idleErrCh chan error, updates chan client.Update, heartbeat *time.Timer) error {
	for {
		select {
		case <-ctx.Done():
			close(stop)
			<-idleErrCh
			return errStopRequested

		case upd := <-updates:
			first, last, ok := m.noteUpdate(upd)
			if !ok {
				// EXPUNGE, RECENT, FETCH, flag changes: no reaction yet,
				// and no command to issue, so IDLE stays outstanding.
				continue
			}
			// The session carries one command at a time: end IDLE before
			// the pipeline's FETCHes go out.
			close(stop)
			if err := <-idleErrCh; err != nil {
				return fmt.Errorf("done: %w", err)
			}
			m.processNewMessages(ctx, first, last)
			return nil

		case err := <-idleErrCh:
			// The IDLE command returned on its own (server BYE, network
			// drop, or a prior close(stop) we issued). Either way this
			// cycle is over.
			return err

		case <-heartbeat.C:
			close(stop)
			if err := <-idleErrCh; err != nil {
				return fmt.Errorf("done: %w", err)
			}
			if err := m.client.Noop(); err != nil {
				return fmt.Errorf("noop: %w", err)
			}
			return nil
		}
	}
}

// noteUpdate records one server event against the monitor's last known
// message count. Only an EXISTS that grew the mailbox drives analysis; it
// returns the new messages' sequence range and ok=true. Every other event
// type is a no-op for now.
func (m *Monitor) noteUpdate(upd client.Update) (first, last uint32, ok bool) {
	mboxUpdate, isMbox := upd.(*client.MailboxUpdate)
	if !isMbox {
		return 0, 0, false
	}

	m.mu.Lock()
	prev := m.messages
	next := mboxUpdate.Mailbox.Messages
	if next > prev {
		m.messages = next
	}
	m.mu.Unlock()

	if next <= prev {
		return 0, 0, false
	}
	return prev + 1, next, true
}

// processNewMessages runs the per-message pipeline for each sequence number
// in [first, last], serially and in arrival order.
func (m *Monitor) processNewMessages(ctx context.Context, first, last uint32) {
	for seq := first; seq <= last; seq++ {
		m.log.Printf("EXISTS(%d): new message at sequence %d", last, seq)
		if err := m.handleNewMessage(ctx, seq); err != nil {
			// A single message's pipeline failing (fetch, parse, analyze)
			// never tears down the session -- only connection-level
			// failures do that.
			m.log.Printf("message %d: %v", seq, err)
		}
	}
}

// teardown issues DONE (already done by the time this runs in the normal
// exit path) and logs the session out, releasing the IMAP connection on
// every exit path from idleLoop.
func (m *Monitor) teardown() {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.Logout(); err != nil {
		m.log.Printf("logout: %v", err)
	}
	m.delegate.OnDisconnect()
}
