// Package emailbuild assembles a domain.ParsedEmail out of the pieces the
// IMAP monitor's per-message pipeline and the scan subsystem's phase 4 both
// gather independently (envelope fields, a raw header map that may or may
// not have been fetched, and decoded body text). Both call sites need the
// exact same "prefer the parsed header over the envelope, fall back to a
// fresh UUID for a missing Message-Id" logic, so it lives here once instead
// of twice.
package emailbuild

import (
	"time"

	"github.com/google/uuid"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/mailutil"
)

// Raw carries everything known about one message before it becomes a
// ParsedEmail: envelope-derived defaults plus whatever header map was
// fetched (which may be empty if the envelope alone was sufficient).
type Raw struct {
	EnvelopeFrom    string
	EnvelopeSubject string
	EnvelopeDate    time.Time
	Headers         map[string]string
	HTMLBody        string
	TextBody        string
}

// Build constructs a ParsedEmail, preferring header values over envelope
// defaults where both are present, and falling back to a fresh UUID when
// Message-Id is absent. This makes verdict identity unstable across
// re-scans of a message missing that header, a known limitation rather
// than a bug.
func Build(raw Raw) domain.ParsedEmail {
	headers := raw.Headers
	if headers == nil {
		headers = map[string]string{}
	}

	messageID, _ := mailutil.Lookup(headers, "Message-Id")
	if messageID == "" {
		messageID = uuid.NewString()
	}

	from := raw.EnvelopeFrom
	if hdrFrom, ok := mailutil.Lookup(headers, "From"); ok && hdrFrom != "" {
		from = hdrFrom
	}
	fromDomain := domain.ExtractDomain(from)

	returnPath, _ := mailutil.Lookup(headers, "Return-Path")
	returnPathDomain := ""
	if returnPath != "" {
		returnPathDomain = domain.ExtractDomain(returnPath)
	}

	authResults, _ := mailutil.Lookup(headers, "Authentication-Results")

	subject := raw.EnvelopeSubject
	if hdrSubject, ok := mailutil.Lookup(headers, "Subject"); ok && hdrSubject != "" {
		subject = hdrSubject
	}

	return domain.ParsedEmail{
		MessageID:             messageID,
		From:                  from,
		FromDomain:            fromDomain,
		ReturnPath:            returnPath,
		ReturnPathDomain:      returnPathDomain,
		AuthenticationResults: authResults,
		Subject:               subject,
		HTMLBody:              raw.HTMLBody,
		TextBody:              raw.TextBody,
		ReceivedDate:          raw.EnvelopeDate,
		Headers:               headers,
	}
}

// HeadersMissingAuthSignals reports whether headers carries neither
// Authentication-Results nor Return-Path -- the trigger, in both the
// monitor's pipeline and the scan subsystem's phase 3, for falling back to
// fetching and parsing the raw message headers.
func HeadersMissingAuthSignals(headers map[string]string) bool {
	if _, ok := mailutil.Lookup(headers, "Authentication-Results"); ok {
		return false
	}
	if _, ok := mailutil.Lookup(headers, "Return-Path"); ok {
		return false
	}
	return true
}
