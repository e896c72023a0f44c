// ABOUTME: Content sanitization for text forwarded to clients
// ABOUTME: Strips NUL bytes, normalizes line endings, repairs invalid UTF-8

package claude

import (
	"strings"
	"unicode/utf8"
)

// SanitizeContent prepares extracted text for transmission: NUL bytes are
// removed, CRLF and CR line endings are normalized to LF, and invalid UTF-8
// sequences are replaced with the replacement rune.
func SanitizeContent(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\x00", "")
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	if !utf8.ValidString(content) {
		content = strings.ToValidUTF8(content, string(utf8.RuneError))
	}

	return content
}
