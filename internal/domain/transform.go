package domain

import (
	"fmt"
	"sync"
	"time"
	"unicode"
)

// crmTimeLayout is the timestamp format the CRM API returns, e.g.
// "2023-04-12T09:30:15.000Z". Timestamps are always UTC.
const crmTimeLayout = "2006-01-02T15:04:05.000Z"

var (
	istOnce sync.Once
	istLoc  *time.Location
)

// ist returns the Asia/Kolkata location. Falls back to a fixed +05:30 zone
// when the tz database is unavailable (e.g. scratch containers).
func ist() *time.Location {
	istOnce.Do(func() {
		loc, err := time.LoadLocation("Asia/Kolkata")
		if err != nil {
			loc = time.FixedZone("IST", 5*3600+30*60)
		}
		istLoc = loc
	})
	return istLoc
}

// TitleCase capitalizes every letter that follows a non-letter, so hyphenated
// and apostrophized names come out as "Mary-Jane" and "O'Brien". The CRM
// delivers names pre-lowercased; everything else passes through unchanged.
func TitleCase(s string) string {
	runes := []rune(s)
	prevLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) && !prevLetter {
			runes[i] = unicode.ToUpper(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return string(runes)
}

// ToIST parses a CRM UTC timestamp and converts it to Asia/Kolkata time.
func ToIST(value string) (time.Time, error) {
	t, err := time.Parse(crmTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse crm timestamp %q: %w", value, err)
	}
	return t.In(ist()), nil
}
