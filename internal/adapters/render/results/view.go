// Package results renders merged query responses, session history, and
// credential status for the terminal.
package results

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/medverus-cli/internal/domain"
)

type RenderOptions struct {
	Now time.Time
}

// Render formats one merged query response.
func Render(response domain.MergedQueryResponse, opts RenderOptions) string {
	s := newStyles()

	lines := []string{
		s.title.Render("Medverus Query Results"),
		s.header.Render(fmt.Sprintf("sources: %s · results: %d · took %s",
			joinSources(response.Sources), len(response.Results), response.Duration.Round(time.Millisecond))),
	}

	if len(response.Results) == 0 {
		lines = append(lines, s.empty.Render("No results."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for i, item := range response.Results {
		lines = append(lines, s.section.Render(renderItem(i+1, item, s)))
	}

	if len(response.Citations) > 0 {
		lines = append(lines, s.section.Render(renderCitations(response.Citations, s)))
	}
	if len(response.Flags) > 0 {
		lines = append(lines, s.section.Render(s.warning.Render("flags: ")+s.flag.Render(strings.Join(response.Flags, ", "))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderItem(rank int, item domain.ResultItem, s styles) string {
	parts := []string{
		s.result.Render(fmt.Sprintf("%d. %s", rank, item.Title)) +
			s.confidence.Render(fmt.Sprintf("  [%.2f · %s]", item.Confidence, item.Source)),
	}
	if item.Content != "" {
		parts = append(parts, s.detail.Render(truncate(item.Content, 200)))
	}
	if item.URL != "" {
		parts = append(parts, s.url.Render(item.URL))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderCitations(citations []domain.Citation, s styles) string {
	lines := []string{s.header.Render(fmt.Sprintf("citations: %d", len(citations)))}
	for _, citation := range citations {
		label := citation.Title
		if label == "" {
			label = citation.URL
		}
		lines = append(lines, s.detail.Render("· "+label+" ")+s.url.Render(citation.URL))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderHistory formats recent sessions, newest first.
func RenderHistory(sessions []domain.SearchSession, opts RenderOptions) string {
	s := newStyles()

	lines := []string{
		s.title.Render("Recent Queries"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(sessions))),
	}

	if len(sessions) == 0 {
		lines = append(lines, s.empty.Render("No recorded sessions."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, session := range sessions {
		age := ""
		if !opts.Now.IsZero() {
			age = " · " + humanAge(opts.Now.Sub(session.Timestamp))
		}
		lines = append(lines, s.section.Render(lipgloss.JoinVertical(lipgloss.Left,
			s.result.Render(truncate(session.Query, 80)),
			s.detail.Render(fmt.Sprintf("%s · %d results%s",
				joinSources(session.Sources), len(session.Response.Results), age)),
		)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// RenderStatus formats the decoded cached credential.
func RenderStatus(credential domain.Credential, now time.Time) string {
	s := newStyles()

	remaining := credential.ExpiresAt.Sub(now).Round(time.Second)
	expiry := fmt.Sprintf("expires in %s", remaining)
	if remaining <= 0 {
		expiry = "expired"
	}

	lines := []string{
		s.title.Render("Medverus Session"),
		s.result.Render(credential.Email) + s.detail.Render(fmt.Sprintf("  (%s, %s)", credential.Tier, credential.Status)),
		s.detail.Render(expiry),
	}
	if credential.Status != domain.StatusActive {
		lines = append(lines, s.warning.Render("credential is not active; queries will be rejected"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func joinSources(sources []domain.SourceID) string {
	names := make([]string, 0, len(sources))
	for _, source := range sources {
		names = append(names, string(source))
	}
	return strings.Join(names, ", ")
}

func humanAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(age.Hours()/24))
	}
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit-1] + "…"
}
