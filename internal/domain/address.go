package domain

import "strings"

// twoPartTLDs are the known two-label ccTLD/gTLD combinations under which a
// third label is still part of the registrable domain. This is a small,
// explicit table rather than a full Public Suffix List lookup: see
// DESIGN.md for why baseDomain does not use golang.org/x/net/publicsuffix.
var twoPartTLDs = map[string]bool{
	"co.uk":  true,
	"com.au": true,
	"co.nz":  true,
	"co.za":  true,
	"com.br": true,
	"co.jp":  true,
	"co.in":  true,
}

// ExtractDomain extracts the lowercased domain from a raw address string
// such as `"Display Name" <local@domain>` or a bare "local@domain". Returns
// "" if the string has no '@' or the part after it is empty.
func ExtractDomain(raw string) string {
	s := raw
	if lt := strings.LastIndex(s, "<"); lt != -1 {
		if gt := strings.LastIndex(s, ">"); gt != -1 && gt > lt {
			s = s[lt+1 : gt]
		}
	}

	at := strings.LastIndex(s, "@")
	if at == -1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(s[at+1:]))
	return domain
}

// BaseDomain returns the registrable domain of d: the last two labels,
// unless the last two labels form a known two-part TLD (e.g. "co.uk"), in
// which case the last three labels are returned.
func BaseDomain(d string) string {
	parts := strings.Split(d, ".")
	if len(parts) < 2 {
		return d
	}
	lastTwo := strings.Join(parts[len(parts)-2:], ".")
	if len(parts) >= 3 && twoPartTLDs[lastTwo] {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return lastTwo
}

// DisplayName returns the text before the last '<' in a raw "from" value,
// stripped of surrounding quotes and whitespace. Returns "" if there is no
// angle-bracketed address.
func DisplayName(from string) string {
	lt := strings.LastIndex(from, "<")
	if lt == -1 || strings.LastIndex(from, ">") == -1 {
		return ""
	}
	name := strings.TrimSpace(from[:lt])
	name = strings.Trim(name, `"'`)
	return strings.TrimSpace(name)
}

// SenderEmail returns the bare local@domain address out of a raw "from"
// value, following the same angle-bracket extraction as ExtractDomain.
func SenderEmail(from string) string {
	s := from
	if lt := strings.LastIndex(s, "<"); lt != -1 {
		if gt := strings.LastIndex(s, ">"); gt != -1 && gt > lt {
			return strings.TrimSpace(s[lt+1 : gt])
		}
	}
	return strings.TrimSpace(s)
}

// LocalPart returns the portion of an email address before the last '@'.
func LocalPart(email string) string {
	at := strings.LastIndex(email, "@")
	if at == -1 {
		return email
	}
	return email[:at]
}
