package rss

import (
	"regexp"
	"strings"
	"unicode"
)

// brandPatterns are tried in order against an advisory title; the first one
// that matches wins. Each captures the brand phrase in group 1. The Dutch
// "van" pattern (4) requires a trailing verb phrase to avoid over-matching
// ordinary "van de politie" style text that isn't naming an impersonated
// brand.
var brandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)in naam van (?:de |het )?(.+)`),
	regexp.MustCompile(`(?i)namens (?:de |het )?(.+)`),
	regexp.MustCompile(`(?i)in the name of (?:the )?(.+)`),
	regexp.MustCompile(`(?i)(?:die )?van (?:de |het )?(.+?)\s+(?:lijken te komen|te komen|komen)`),
	regexp.MustCompile(`(?i)(?:appear|seem)s? to come from (?:the )?(.+)`),
}

// stopPattern marks where a captured brand phrase ends: the first English or
// Dutch finite verb, or sentence-level punctuation.
var stopPattern = regexp.MustCompile(`(?i)\b(are|is|was|were|has|have|had|worden|wordt|zijn|gaan|komt)\b|[:\x{2013}\x{2014}-]`)

// splitConjunction divides a cleaned brand phrase on an English/Dutch "and".
var splitConjunction = regexp.MustCompile(`(?i)\s+(?:en|and)\s+`)

// ExtractBrands applies the pattern list to title and returns the brand
// names it finds, lowercased, with empty parts discarded. Returns nil if no
// pattern matches.
func ExtractBrands(title string) []string {
	for _, pat := range brandPatterns {
		m := pat.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		return splitBrandPhrase(m[1])
	}
	return nil
}

// splitBrandPhrase truncates the captured phrase at the first stop word or
// punctuation, then splits on a conjunction *before* trimming each part: a
// trailing "and"/"en" left dangling by the truncation (e.g. "Argenta and "
// immediately followed by a stop verb) produces an empty second part that
// is discarded, rather than leaking "argenta and" as a brand name.
func splitBrandPhrase(phrase string) []string {
	phrase = truncateAtStop(phrase)

	parts := splitConjunction.Split(phrase, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimFunc(p, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		p = strings.ToLower(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncateAtStop(s string) string {
	loc := stopPattern.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]]
}
