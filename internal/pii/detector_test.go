package pii

import "testing"

func TestDetector_MasksEmailFully(t *testing.T) {
	d := NewDetector()
	masked, findings := d.Mask("contact me at jane.doe@example.com please", "[REDACTED]", AllTypes())

	if len(findings) != 1 || findings[0].Type != EntityEmail {
		t.Fatalf("expected single email finding, got %+v", findings)
	}
	if masked != "contact me at [REDACTED] please" {
		t.Fatalf("unexpected masked text: %q", masked)
	}
}

func TestDetector_MasksIPv4Fully(t *testing.T) {
	d := NewDetector()
	masked, findings := d.Mask("connect to 192.168.1.10 now", "[REDACTED]", AllTypes())

	if len(findings) != 1 || findings[0].Type != EntityIP {
		t.Fatalf("expected single ip finding, got %+v", findings)
	}
	if masked != "connect to [REDACTED] now" {
		t.Fatalf("unexpected masked text: %q", masked)
	}
}

func TestDetector_RejectsInvalidIPv4Octets(t *testing.T) {
	d := NewDetector()
	findings := d.Detect("version 999.999.999.999 is out of range", AllTypes())
	for _, f := range findings {
		if f.Type == EntityIP {
			t.Fatalf("expected no ip finding for out-of-range octets, got %+v", f)
		}
	}
}

func TestDetector_MasksCreditCardOnlyIfLuhnValid(t *testing.T) {
	d := NewDetector()

	// 4111111111111111 is a well-known Luhn-valid test card number.
	valid := "card number 4111111111111111 expires soon"
	_, findings := d.Mask(valid, "[REDACTED]", AllTypes())
	if len(findings) != 1 || findings[0].Type != EntityCreditCard {
		t.Fatalf("expected credit card finding for valid luhn, got %+v", findings)
	}

	invalid := "card number 4111111111111112 expires soon"
	_, findings = d.Mask(invalid, "[REDACTED]", AllTypes())
	for _, f := range findings {
		if f.Type == EntityCreditCard {
			t.Fatalf("expected no credit card finding for invalid luhn, got %+v", f)
		}
	}
}

func TestDetector_MasksMultipleTypesAndPreservesText(t *testing.T) {
	d := NewDetector()
	text := "reach jane@example.com or call +1 555 123 4567 about 192.0.2.5"
	masked, findings := d.Mask(text, "[REDACTED]", AllTypes())

	if len(findings) < 2 {
		t.Fatalf("expected multiple findings, got %+v", findings)
	}
	if masked == text {
		t.Fatal("expected masked text to differ from original")
	}
	for _, f := range findings {
		if text[f.Start:f.End] != f.Text {
			t.Fatalf("finding span %v does not match original text slice %q", f, text[f.Start:f.End])
		}
	}
}

func TestDetector_OverlapResolutionKeepsFirstByStartThenLongest(t *testing.T) {
	d := NewDetector()
	// A long digit run that could be read as an overlapping phone or
	// credit-card-shaped match; only the first (by start, then longest) survives.
	findings := d.Detect("4111111111111111", AllTypes())
	seen := make(map[int]bool)
	for _, f := range findings {
		if seen[f.Start] {
			t.Fatalf("overlapping findings not resolved: %+v", findings)
		}
		seen[f.Start] = true
	}
}

func TestDetector_OnlyEnabledTypesAreDetected(t *testing.T) {
	d := NewDetector()
	text := "reach jane@example.com or call +1 555 123 4567 about 192.0.2.5"

	findings := d.Detect(text, Enabled{Email: true})
	if len(findings) != 1 || findings[0].Type != EntityEmail {
		t.Fatalf("expected only an email finding with email-only detectors, got %+v", findings)
	}

	findings = d.Detect(text, Enabled{})
	if len(findings) != 0 {
		t.Fatalf("expected no findings with all detectors disabled, got %+v", findings)
	}
}
