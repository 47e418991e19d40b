package scan

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/stoik/phishd/internal/domain"
	"github.com/stoik/phishd/internal/emailbuild"
	"github.com/stoik/phishd/internal/mailutil"
)

// bulkInfo is one message's phase-1 bulk-fetch result: everything cheap
// enough to pull in a single FETCH over the whole sequence range.
type bulkInfo struct {
	SeqNum        uint32
	Uid           uint32
	Envelope      *imap.Envelope
	InternalDate  time.Time
	BodyStructure *imap.BodyStructure
	Headers       map[string]string // Authentication-Results/Return-Path, if the server returned them inline
}

// bulkHeaderSection requests just the two headers every check downstream
// needs to decide whether a raw-header fallback fetch (phase 3) is
// necessary at all.
var bulkHeaderSection = &imap.BodySectionName{
	BodyPartName: imap.BodyPartName{
		Specifier: imap.HeaderSpecifier,
		Fields:    []string{"Authentication-Results", "Return-Path"},
	},
	Peek: true,
}

// bulkFetchInfo issues the single phase-1 FETCH over [from, to] and returns
// one bulkInfo per message, ordered by sequence number.
func bulkFetchInfo(c *client.Client, from, to uint32) ([]bulkInfo, error) {
	seqset := new(imap.SeqSet)
	seqset.AddRange(from, to)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchUid,
		imap.FetchInternalDate,
		imap.FetchBodyStructure,
		imap.FetchFlags,
		bulkHeaderSection.FetchItem(),
	}

	messages := make(chan *imap.Message, 32)
	errCh := make(chan error, 1)
	go func() { errCh <- c.Fetch(seqset, items, messages) }()

	var out []bulkInfo
	for msg := range messages {
		info := bulkInfo{
			SeqNum:        msg.SeqNum,
			Uid:           msg.Uid,
			Envelope:      msg.Envelope,
			InternalDate:  msg.InternalDate,
			BodyStructure: msg.BodyStructure,
		}
		if r := msg.GetBody(bulkHeaderSection); r != nil {
			if raw, err := io.ReadAll(r); err == nil {
				info.Headers = mailutil.ParseRawHeaders(raw)
			}
		}
		if info.Headers == nil {
			info.Headers = map[string]string{}
		}
		out = append(out, info)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SeqNum < out[j].SeqNum })
	return out, nil
}

// processOne runs phases 2 (body fetch), 3 (header fallback), 4 (analysis)
// and 5 (persistence) for one message on the given pooled connection,
// accumulating elapsed time into the shared per-phase accumulators.
func (s *Scanner) processOne(ctx context.Context, c *client.Client, info bulkInfo, phase2, phase3, phase4, phase5 *durationAccumulator) (domain.Verdict, int, error) {
	t2 := time.Now()
	htmlBody, textBody, skipped, err := fetchBody(c, info.Uid, info.BodyStructure)
	phase2.add(time.Since(t2))
	if err != nil {
		return domain.Verdict{}, skipped, err
	}

	headers := info.Headers
	t3 := time.Now()
	if emailbuild.HeadersMissingAuthSignals(headers) {
		if raw, err := fetchRawHeaders(c, info.Uid); err == nil {
			for k, v := range mailutil.ParseRawHeaders(raw) {
				headers[k] = v
			}
		}
	}
	phase3.add(time.Since(t3))

	email := emailbuild.Build(emailbuild.Raw{
		EnvelopeFrom:    envelopeFrom(info.Envelope),
		EnvelopeSubject: envelopeSubject(info.Envelope),
		EnvelopeDate:    info.InternalDate,
		Headers:         headers,
		HTMLBody:        htmlBody,
		TextBody:        textBody,
	})

	t4 := time.Now()
	uid := info.Uid
	verdict := s.analyzer.Analyze(ctx, &email, time.Now(), &uid)
	phase4.add(time.Since(t4))

	t5 := time.Now()
	err = s.verdicts.Save(ctx, verdict)
	phase5.add(time.Since(t5))
	if err != nil {
		return domain.Verdict{}, skipped, err
	}

	return verdict, skipped, nil
}

func envelopeFrom(env *imap.Envelope) string {
	if env == nil {
		return ""
	}
	return emailbuild.FormatAddresses(env.From)
}

func envelopeSubject(env *imap.Envelope) string {
	if env == nil {
		return ""
	}
	return env.Subject
}

// fetchRawHeaders fetches the full header block for uid, used only when
// the phase-1 bulk response didn't already carry Authentication-Results or
// Return-Path.
func fetchRawHeaders(c *client.Client, uid uint32) ([]byte, error) {
	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Specifier: imap.HeaderSpecifier}, Peek: true}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- c.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages) }()

	var body io.Reader
	for msg := range messages {
		body = msg.GetBody(section)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	if body == nil {
		return nil, io.EOF
	}
	return io.ReadAll(body)
}
