package scan

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// walkParts walks bs depth-first, generalizing the part-walk idiom in
// wuhongjun15-Smart-bill-manager's countInvoiceAttachments: multipart
// containers recurse into their children, message/rfc822 parts recurse
// into their nested BodyStructure, and every other node is a leaf, visited
// with its 1-based IMAP part path.
func walkParts(bs *imap.BodyStructure, path []int, visit func(addr []int, part *imap.BodyStructure)) {
	if bs == nil {
		return
	}
	if strings.EqualFold(bs.MIMEType, "multipart") {
		for i, child := range bs.Parts {
			walkParts(child, append(append([]int{}, path...), i+1), visit)
		}
		return
	}
	if strings.EqualFold(bs.MIMEType, "message") && strings.EqualFold(bs.MIMESubType, "rfc822") && bs.BodyStructure != nil {
		walkParts(bs.BodyStructure, path, visit)
		return
	}
	if len(path) == 0 {
		path = []int{1}
	}
	visit(path, bs)
}

// selectBodyParts picks the text/html leaf to fetch, falling back to
// text/plain if no html part exists; every other leaf is counted as
// skipped.
func selectBodyParts(bs *imap.BodyStructure) (htmlPath, plainPath []int, skipped int) {
	var htmlAddr, plainAddr []int
	walkParts(bs, nil, func(addr []int, part *imap.BodyStructure) {
		mimeType := strings.ToLower(part.MIMEType)
		mimeSub := strings.ToLower(part.MIMESubType)
		switch {
		case mimeType == "text" && mimeSub == "html" && htmlAddr == nil:
			htmlAddr = append([]int{}, addr...)
		case mimeType == "text" && mimeSub == "plain" && plainAddr == nil:
			plainAddr = append([]int{}, addr...)
		default:
			skipped++
		}
	})
	if htmlAddr != nil {
		if plainAddr != nil {
			// the text/plain alternative is not fetched when html wins
			skipped++
		}
		return htmlAddr, nil, skipped
	}
	return nil, plainAddr, skipped
}

// fetchBody selects and fetches the single best body part for a message
// (text/html preferred, text/plain otherwise) and decodes its
// content-transfer-encoding. Every other part found in bs is counted as
// skipped.
func fetchBody(c *client.Client, uid uint32, bs *imap.BodyStructure) (htmlBody, textBody string, skipped int, err error) {
	if bs == nil {
		return "", "", 0, nil
	}

	htmlPath, plainPath, skippedCount := selectBodyParts(bs)
	skipped = skippedCount

	if htmlPath != nil {
		enc := encodingAt(bs, htmlPath)
		raw, ferr := fetchPart(c, uid, htmlPath)
		if ferr != nil {
			return "", "", skipped, ferr
		}
		return decodePart(raw, enc), "", skipped, nil
	}
	if plainPath != nil {
		enc := encodingAt(bs, plainPath)
		raw, ferr := fetchPart(c, uid, plainPath)
		if ferr != nil {
			return "", "", skipped, ferr
		}
		return "", decodePart(raw, enc), skipped, nil
	}
	return "", "", skipped, nil
}

// encodingAt re-walks bs to find the Content-Transfer-Encoding recorded for
// the part at addr, since selectBodyParts only returns the path.
func encodingAt(bs *imap.BodyStructure, addr []int) string {
	var encoding string
	walkParts(bs, nil, func(a []int, part *imap.BodyStructure) {
		if intsEqual(a, addr) {
			encoding = part.Encoding
		}
	})
	return encoding
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fetchPart fetches one MIME part's literal by its IMAP section path.
func fetchPart(c *client.Client, uid uint32, path []int) ([]byte, error) {
	section := &imap.BodySectionName{BodyPartName: imap.BodyPartName{Path: path}, Peek: true}
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

// decodePart decodes raw per its IMAP-reported Content-Transfer-Encoding.
// An unrecognized or decode-failing encoding falls back to the raw bytes
// rather than erroring -- a malformed body is a non-fatal parse condition.
func decodePart(raw []byte, encoding string) string {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return string(raw)
		}
		return string(decoded)
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return string(raw)
		}
		return string(decoded)
	default:
		return string(raw)
	}
}
