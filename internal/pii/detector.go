// Package pii detects and redacts personally identifiable information in
// free text: email addresses, IPv4 addresses, credit card numbers, and
// phone numbers. Detection is regex-based with a handful of structural
// post-filters (IPv4 octet ranges, Luhn checksum) to cut down on false
// positives, matching the original detector this was ported from.
package pii

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// EntityType names the kind of PII a Finding represents. The capitalization
// here is load-bearing: it matches the wire format produced by the original
// detector's type-name formatting.
type EntityType string

const (
	EntityEmail      EntityType = "Email"
	EntityIP         EntityType = "Ip"
	EntityCreditCard EntityType = "CreditCard"
	EntityPhone      EntityType = "Phone"
)

// Finding is a single detected span of PII in a piece of text.
type Finding struct {
	Type  EntityType
	Start int
	End   int
	Text  string
}

var (
	reEmail    = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	reIPv4     = regexp.MustCompile(`\b(\d{1,3}\.){3}\d{1,3}\b`)
	reCCDigits = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	rePhone    = regexp.MustCompile(`\b(?:\+?\d[\d -]{7,}\d)\b`)
)

// Enabled selects which detector types run. A missing "detectors" block in
// the policy document disables detection entirely (all flags false) without
// disabling Stage 2 itself, matching spec.md's default.
type Enabled struct {
	Email, IP, CreditCard, Phone bool
}

// AllTypes enables every detector, used by tests and callers that don't
// carry a policy document's detector selection.
func AllTypes() Enabled {
	return Enabled{Email: true, IP: true, CreditCard: true, Phone: true}
}

// Detector finds PII spans in text using a fixed set of compiled regexes.
// It holds no mutable state and is safe for concurrent use.
type Detector struct{}

// NewDetector returns a Detector. The regexes it uses are package-level
// singletons compiled once at init, so construction never fails.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns every enabled PII finding in text, with overlapping
// lower-priority findings dropped by the sweep in resolveOverlaps.
func (d *Detector) Detect(text string, enabled Enabled) []Finding {
	var findings []Finding

	if enabled.Email {
		for _, loc := range reEmail.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{Type: EntityEmail, Start: loc[0], End: loc[1], Text: text[loc[0]:loc[1]]})
		}
	}

	if enabled.IP {
		for _, loc := range reIPv4.FindAllStringIndex(text, -1) {
			candidate := text[loc[0]:loc[1]]
			if isValidIPv4(candidate) {
				findings = append(findings, Finding{Type: EntityIP, Start: loc[0], End: loc[1], Text: candidate})
			}
		}
	}

	if enabled.CreditCard {
		for _, loc := range reCCDigits.FindAllStringIndex(text, -1) {
			candidate := text[loc[0]:loc[1]]
			digits := onlyDigits(candidate)
			if len(digits) < 13 || len(digits) > 19 {
				continue
			}
			if !luhnValid(digits) {
				continue
			}
			findings = append(findings, Finding{Type: EntityCreditCard, Start: loc[0], End: loc[1], Text: candidate})
		}
	}

	if enabled.Phone {
		for _, loc := range rePhone.FindAllStringIndex(text, -1) {
			candidate := text[loc[0]:loc[1]]
			digits := onlyDigits(candidate)
			if len(digits) < 8 || len(digits) > 15 {
				continue
			}
			findings = append(findings, Finding{Type: EntityPhone, Start: loc[0], End: loc[1], Text: candidate})
		}
	}

	return resolveOverlaps(findings)
}

// Mask runs Detect with the given enabled types and returns the fully
// redacted text alongside the findings that were redacted, replacing each
// finding's span with token.
func (d *Detector) Mask(text, token string, enabled Enabled) (string, []Finding) {
	findings := d.Detect(text, enabled)
	return applyRedactions(text, findings, token), findings
}

// resolveOverlaps sorts findings by (start asc, end desc) and drops any
// finding whose start falls before the end of a higher-priority finding
// already kept, so overlapping matches (e.g. a credit-card-shaped run
// inside a longer phone-shaped run) don't double-count the same span.
func resolveOverlaps(findings []Finding) []Finding {
	if len(findings) < 2 {
		return findings
	}

	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].End > findings[j].End
	})

	kept := findings[:0:0]
	lastEnd := -1
	for _, f := range findings {
		if f.Start < lastEnd {
			continue
		}
		kept = append(kept, f)
		lastEnd = f.End
	}
	return kept
}

// applyRedactions replaces each finding's span with token, working
// right-to-left so earlier byte offsets in findings stay valid as later
// (higher-offset) spans are replaced first.
func applyRedactions(text string, findings []Finding, token string) string {
	out := text
	for i := len(findings) - 1; i >= 0; i-- {
		f := findings[i]
		out = out[:f.Start] + token + out[f.End:]
	}
	return out
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isValidIPv4 checks that s is four dot-separated octets, each in [0, 255].
func isValidIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// luhnValid reports whether digits passes the Luhn checksum, doubling every
// second digit starting from the rightmost.
func luhnValid(digits string) bool {
	sum := 0
	alternate := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if alternate {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alternate = !alternate
	}
	return sum%10 == 0
}
