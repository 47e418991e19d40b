package imapmon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-message/mail"

	"github.com/stoik/phishd/internal/emailbuild"
	"github.com/stoik/phishd/internal/mailutil"
)

// handleNewMessage runs the strictly serial per-message pipeline: fetch
// info, fetch bodies, fetch headers, build ParsedEmail, analyze, save,
// notify.
func (m *Monitor) handleNewMessage(ctx context.Context, seqNum uint32) error {
	info, err := m.fetchMessageInfo(seqNum)
	if err != nil {
		return fmt.Errorf("fetch message info: %w", err)
	}

	rawBody, htmlBody, textBody, err := m.fetchBodies(info.Uid)
	if err != nil {
		return fmt.Errorf("fetch bodies: %w", err)
	}

	headers := envelopeHeaders(info.Envelope)
	if emailbuild.HeadersMissingAuthSignals(headers) {
		for k, v := range mailutil.ParseRawHeaders(rawBody) {
			headers[k] = v
		}
	}

	email := emailbuild.Build(emailbuild.Raw{
		EnvelopeFrom:    emailbuild.FormatAddresses(info.Envelope.From),
		EnvelopeSubject: info.Envelope.Subject,
		EnvelopeDate:    info.InternalDate,
		Headers:         headers,
		HTMLBody:        htmlBody,
		TextBody:        textBody,
	})

	uid := info.Uid
	verdict := m.analyzer.Analyze(ctx, &email, time.Now(), &uid)

	if err := m.verdicts.Save(ctx, verdict); err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}

	m.delegate.OnEmail(verdict)
	return nil
}

// fetchMessageInfo fetches the envelope, UID, and internal date for one
// sequence number -- the first step of the per-message pipeline.
func (m *Monitor) fetchMessageInfo(seqNum uint32) (*imap.Message, error) {
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate}
	messages := make(chan *imap.Message, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil {
		return nil, ErrNotConnected
	}

	go func() { errCh <- c.Fetch(seqSetOf(seqNum), items, messages) }()

	var info *imap.Message
	for msg := range messages {
		info = msg
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("no message at sequence %d", seqNum)
	}
	return info, nil
}

// fetchBodies fetches the whole RFC 822 message by UID and walks its MIME
// parts with go-message/mail, returning the raw bytes (used as a header
// source if the envelope alone is insufficient) plus the decoded HTML and
// plain-text bodies.
func (m *Monitor) fetchBodies(uid uint32) (raw []byte, htmlBody, textBody string, err error) {
	m.mu.Lock()
	c := m.client
	m.mu.Unlock()
	if c == nil {
		return nil, "", "", ErrNotConnected
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}
	messages := make(chan *imap.Message, 1)
	errCh := make(chan error, 1)

	go func() { errCh <- c.UidFetch(seqSetOf(uid), items, messages) }()

	var body io.Reader
	for msg := range messages {
		body = msg.GetBody(section)
	}
	if err := <-errCh; err != nil {
		return nil, "", "", err
	}
	if body == nil {
		return nil, "", "", fmt.Errorf("server returned no body for UID %d", uid)
	}

	rawBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, "", "", fmt.Errorf("read body: %w", err)
	}

	html, text := decodeBodies(rawBytes)
	return rawBytes, html, text, nil
}

// decodeBodies walks an RFC 822 message's MIME parts with go-message/mail,
// which handles content-transfer-encoding decoding itself, and
// concatenates every text/html and text/plain part found. Parse failures
// yield empty bodies rather than an error -- an unparseable message is a
// non-fatal condition.
func decodeBodies(raw []byte) (htmlBody, textBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return "", ""
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		b, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch contentType {
		case "text/html":
			htmlBody += string(b)
		case "text/plain":
			textBody += string(b)
		}
	}
	return htmlBody, textBody
}

// envelopeHeaders seeds a header map from the fields the IMAP ENVELOPE
// response carries. It never carries Authentication-Results or
// Return-Path -- those are only available by fetching and parsing the raw
// message, which is exactly why the pipeline always ends up doing so.
func envelopeHeaders(env *imap.Envelope) map[string]string {
	h := make(map[string]string, 2)
	if env == nil {
		return h
	}
	if from := emailbuild.FormatAddresses(env.From); from != "" {
		h["From"] = from
	}
	if env.Subject != "" {
		h["Subject"] = env.Subject
	}
	return h
}
