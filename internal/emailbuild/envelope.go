package emailbuild

import (
	"fmt"
	"strings"

	"github.com/emersion/go-imap"
)

// FormatAddresses renders IMAP envelope addresses back into a raw "From"
// header value (`"Display Name" <local@domain>`, comma-joined for more
// than one address) -- shared by the monitor's per-message pipeline and
// the scan subsystem's phase 1/4, both of which start from an
// ENVELOPE-derived address list before any raw header is available.
func FormatAddresses(addrs []*imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, FormatAddress(a))
	}
	return strings.Join(parts, ", ")
}

// FormatAddress renders a single IMAP envelope address.
func FormatAddress(a *imap.Address) string {
	mailbox := a.MailboxName + "@" + a.HostName
	if a.PersonalName == "" {
		return mailbox
	}
	return fmt.Sprintf("%q <%s>", a.PersonalName, mailbox)
}
