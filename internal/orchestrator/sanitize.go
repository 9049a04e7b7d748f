package orchestrator

import "strings"

// sanitizeText strips the annotation brackets some upstream flows leave in
// message text and trims whitespace.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "【", "")
	s = strings.ReplaceAll(s, "】", "")
	return strings.TrimSpace(s)
}
