package document

import (
	"math"
	"testing"
)

const sampleOCRText = `REPUBLIC OF EXAMPLE
IDENTITY CARD
Jonathan Albert Smith
Born 14/05/1990
12 Oak Street
No 123-45-6789 issued 2015`

func TestExtractClaimsFromScanText(t *testing.T) {
	claims := extractClaims(sampleOCRText)

	if claims.Name != "Jonathan Albert Smith" {
		t.Errorf("name = %q, want %q", claims.Name, "Jonathan Albert Smith")
	}
	if claims.DateOfBirth != "1990-05-14" {
		t.Errorf("date of birth = %q, want %q", claims.DateOfBirth, "1990-05-14")
	}
	if claims.Address != "12 Oak Street" {
		t.Errorf("address = %q, want %q", claims.Address, "12 Oak Street")
	}
	if claims.IDNumber != "123-45-6789" {
		t.Errorf("id number = %q, want %q", claims.IDNumber, "123-45-6789")
	}
}

func TestExtractClaimsDegradesPerField(t *testing.T) {
	claims := extractClaims("completely unreadable scan ###")
	if claims.Name != "" || claims.DateOfBirth != "" || claims.Address != "" || claims.IDNumber != "" {
		t.Fatalf("expected empty claims, got %+v", claims)
	}
}

func TestExtractDateOfBirthIgnoresImplausibleYears(t *testing.T) {
	if got := extractDateOfBirth("printed 14/05/1850"); got != "" {
		t.Fatalf("expected empty date for year outside range, got %q", got)
	}
	if got := extractDateOfBirth("expiry 14/05/1850 born 14/05/1990"); got != "1990-05-14" {
		t.Fatalf("expected fallthrough to plausible date, got %q", got)
	}
}

func TestExtractAddressDoesNotCrossLines(t *testing.T) {
	if got := extractAddress("Born 14/05/1990\n12 Oak Street"); got != "12 Oak Street" {
		t.Fatalf("address = %q, want street number from the same line only", got)
	}
}

func TestExtractNamePrefersLongestRun(t *testing.T) {
	text := "Oak Street\nJonathan Albert Smith"
	if got := extractName(text); got != "Jonathan Albert Smith" {
		t.Fatalf("name = %q, want longest title-case run", got)
	}
}

func TestQualityScoreIsMeanOfTamperAndSecurity(t *testing.T) {
	q := Quality{TamperScore: 0.8, SecurityScore: 0.4}
	if got := q.Score(); math.Abs(got-0.6) > 1e-12 {
		t.Fatalf("document score = %v, want 0.6", got)
	}
}
