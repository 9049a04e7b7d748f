package phone

import "strings"

// Normalize converts any phone representation the transport provider may hand
// us into the single canonical form used for storage and comparison: bare
// digits prefixed with the country code, no "+", no JID suffix.
//
// The rule is applied at every store boundary — a value is never trusted to be
// "probably normalized" by a prior layer.
func Normalize(raw, defaultCountry string) string {
	s := strings.TrimSpace(raw)
	// Drop provider JID suffixes like @s.whatsapp.net, @c.us, @g.us.
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	digits := onlyDigits(s)
	if digits == "" {
		return ""
	}
	if defaultCountry != "" && !strings.HasPrefix(digits, defaultCountry) {
		digits = defaultCountry + digits
	}
	return digits
}

func onlyDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
