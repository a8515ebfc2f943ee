package gateway

import "regexp"

// The gateway reports outcomes as dotted result codes. Classification is an
// ordered scan over these patterns; the first match wins and anything
// unmatched is a decline.
var successPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^000\.000\.`),      // transaction succeeded
	regexp.MustCompile(`^000\.100\.1`),     // succeeded in test mode
	regexp.MustCompile(`^000\.400\.0[^3]`), // succeeded with manual review flag
	regexp.MustCompile(`^000\.400\.100`),   // succeeded, risk check pending
}

// IsSuccessCode classifies a gateway result code.
func IsSuccessCode(code string) bool {
	for _, p := range successPatterns {
		if p.MatchString(code) {
			return true
		}
	}
	return false
}
