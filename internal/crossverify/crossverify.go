// Package crossverify quantifies agreement between the claims printed on an
// identity document and what the applicant said aloud in the verification
// video. It is pure domain logic and never returns an error; a missing input
// degrades the affected sub-score to exactly 0.0.
package crossverify

import (
	"strings"

	dateparser "github.com/markusmobius/go-dateparser"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/example/kyc-verify/internal/document"
)

// Score returns the agreement between document claims and the spoken
// transcript as the equal-weighted mean of the name, date-of-birth, and
// address sub-scores, each in [0,1].
func Score(claims *document.Claims, spokenText string) float64 {
	if claims == nil {
		return 0
	}
	name := nameMatch(claims.Name, spokenText)
	dob := dateOfBirthMatch(claims.DateOfBirth, spokenText)
	address := addressMatch(claims.Address, spokenText)
	return (name + dob + address) / 3
}

// nameMatch compares the claimed name against the whole transcript with a
// token-sorted set ratio: case-insensitive, word-order invariant, tolerant
// of minor edit differences, and 1.0 when the name is fully contained in a
// longer utterance.
func nameMatch(name, spokenText string) float64 {
	if name == "" || spokenText == "" {
		return 0
	}
	return float64(fuzzy.TokenSetRatio(strings.ToLower(name), strings.ToLower(spokenText))) / 100
}

// dateOfBirthMatch is all-or-nothing: the claimed date and the first date
// expression found in the transcript must name the same calendar day. Near
// misses score 0.0, as does an unparsable claim or a transcript with no
// recognizable date.
func dateOfBirthMatch(claimedDOB, spokenText string) float64 {
	if claimedDOB == "" || spokenText == "" {
		return 0
	}
	claimed, err := dateparser.Parse(nil, claimedDOB)
	if err != nil {
		return 0
	}
	_, found, err := dateparser.Search(nil, spokenText)
	if err != nil || len(found) == 0 {
		return 0
	}
	spoken := found[0].Date.Time
	cy, cm, cd := claimed.Time.Date()
	sy, sm, sd := spoken.Date()
	if cy == sy && cm == sm && cd == sd {
		return 1
	}
	return 0
}

// addressMatch uses a partial ratio so that a claimed address fragment
// contained in the spoken sentence (or vice versa) still scores fully.
func addressMatch(address, spokenText string) float64 {
	if address == "" || spokenText == "" {
		return 0
	}
	return float64(fuzzy.PartialRatio(strings.ToLower(address), strings.ToLower(spokenText))) / 100
}
