package wizard

import "strings"

// negativeTokens are answers meaning "nothing to report". Matching is
// case-insensitive after trimming.
var negativeTokens = map[string]struct{}{
	"нет":  {},
	"no":   {},
	"none": {},
	"-":    {},
}

// Normalize trims the answer and collapses negative tokens to an empty
// string so the renderer can drop the section entirely.
func Normalize(text string) string {
	t := strings.TrimSpace(text)
	if _, ok := negativeTokens[strings.ToLower(t)]; ok {
		return ""
	}
	return t
}
