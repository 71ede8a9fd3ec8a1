package core

import "strings"

// markupEscaper neutralizes characters that client renderers treat as
// live markup, so a message can never inject content into another
// client's view. Applied once, before storage and broadcast.
var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"`", "&#96;",
)

// SanitizeText trims and escapes message text.
func SanitizeText(text string) string {
	return markupEscaper.Replace(strings.TrimSpace(text))
}
