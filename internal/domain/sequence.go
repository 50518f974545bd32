package domain

import "fmt"

// SequenceWidth is the fixed counter width in issued IDs. With a two-letter
// prefix and a two-digit year suffix the full ID is always 8 characters.
const SequenceWidth = 4

// SequenceMax is the largest counter value a bucket can issue. The counter
// never wraps; callers get ErrSequenceExhausted and must roll the bucket.
const SequenceMax = 9999

// Sequence is one (prefix, branch, period) counter bucket. Period is a
// YYYYMM string; LastValue is the most recently issued integer.
type Sequence struct {
	Prefix    string
	Branch    string
	Period    string
	LastValue int
}

// FormatSequenceID renders a business ID: prefix + last two digits of the
// year + zero-padded counter, e.g. LN260042.
func FormatSequenceID(prefix, period string, value int) string {
	yearSuffix := ""
	if len(period) >= 4 {
		yearSuffix = period[2:4]
	}
	return fmt.Sprintf("%s%s%0*d", prefix, yearSuffix, SequenceWidth, value)
}
