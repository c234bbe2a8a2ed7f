package audit

import (
	"fmt"
	"strings"

	"github.com/franpass87/FP-Privacy-and-Cookie-Policy-sub000/internal/services"
)

// NoticeLimit is how many services the admin notice names before summarizing.
const NoticeLimit = 3

// FormatServicesList joins service names, naming at most limit of them and
// summarizing the rest as "+N more". A limit of zero or less names all.
func FormatServicesList(list []services.Summary, limit int) string {
	names := make([]string, 0, len(list))
	for _, s := range list {
		names = append(names, displayName(s))
	}
	if limit <= 0 || len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s +%d more", strings.Join(names[:limit], ", "), len(names)-limit)
}

// Notice renders the admin notice for alert as Markdown. It is empty when the
// alert is not active.
func Notice(alert Alert) string {
	if !alert.Active {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Integration changes detected** on %s.\n\n", alert.DetectedAt.UTC().Format("2006-01-02"))
	if len(alert.Added) > 0 {
		fmt.Fprintf(&b, "- New: %s\n", escapeMarkdown(FormatServicesList(alert.Added, NoticeLimit)))
	}
	if len(alert.Removed) > 0 {
		fmt.Fprintf(&b, "- Removed: %s\n", escapeMarkdown(FormatServicesList(alert.Removed, NoticeLimit)))
	}
	b.WriteString("\nReview the cookie banner categories and regenerate the privacy policy, then dismiss this notice.\n")
	return b.String()
}

func displayName(s services.Summary) string {
	if s.Name != "" {
		return s.Name
	}
	return s.Slug
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
