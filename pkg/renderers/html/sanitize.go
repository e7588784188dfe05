package html

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var (
	markupPolicyOnce sync.Once
	markupPolicy     *bluemonday.Policy
)

// sanitizeMarkup cleans author-supplied HTML (descriptions, html and markup
// elements) down to user generated content markup.
func sanitizeMarkup(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(markupSanitizer().Sanitize(trimmed))
}

// renderHelp converts Markdown help text to sanitised HTML.
func renderHelp(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	out := blackfriday.Run([]byte(trimmed), blackfriday.WithExtensions(blackfriday.CommonExtensions))
	return sanitizeMarkup(string(out))
}

func markupSanitizer() *bluemonday.Policy {
	markupPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.RequireNoFollowOnLinks(true)
		policy.AllowAttrs("class").OnElements("span", "div", "p", "code")
		markupPolicy = policy
	})
	return markupPolicy
}
