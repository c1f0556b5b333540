package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	pgerrors "pglauncher/internal/errors"
	"pglauncher/internal/launcher"
	"pglauncher/internal/probe"
	"pglauncher/internal/release"
)

const (
	noticeWidth = 80
	projectURL  = "https://github.com/supabase-community/postgres-language-server"
)

var errNotFound = errors.New("postgres-language-server binary not found")

type noticeStyle struct {
	label string
	style lipgloss.Style
}

var (
	noticeInfo    = noticeStyle{label: "Note", style: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BE9FD"))}
	noticeUpdate  = noticeStyle{label: "Update", style: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B"))}
	noticeWarning = noticeStyle{label: "Warning", style: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB86C"))}
	noticeError   = noticeStyle{label: "Error", style: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5555"))}

	pathStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

func noticeKindStyle(kind launcher.NoticeKind) noticeStyle {
	switch kind {
	case launcher.NoticeUpdate:
		return noticeUpdate
	case launcher.NoticeMigration:
		return noticeWarning
	default:
		return noticeInfo
	}
}

// renderNotice formats a labelled message wrapped to width.
func renderNotice(s noticeStyle, message string, width int) string {
	indent := len(s.label) + 2
	body := wordwrap.String(strings.TrimSpace(message), width-indent)
	body = strings.ReplaceAll(body, "\n", "\n"+strings.Repeat(" ", indent))
	return s.style.Render(s.label+":") + " " + body + "\n"
}

// formatCommandError turns a failed command into the text shown on stderr.
func formatCommandError(err error) string {
	if errors.Is(err, errNotFound) {
		return formatNotFoundMessage()
	}

	var probeErr probe.Error
	if errors.As(err, &probeErr) && probeErr.Kind != probe.ErrorNotInstalled {
		return formatProbeFailure(probeErr)
	}

	switch {
	case pgerrors.IsCode(err, pgerrors.CodeInvariantViolation):
		return renderNotice(noticeError, err.Error()+". The binary may be corrupt; delete it or point the bin setting elsewhere.", noticeWidth)
	case errors.Is(err, release.ErrRateLimited):
		return renderNotice(noticeError, "The GitHub API rate limit was reached. Try again later or pass a release tag explicitly.", noticeWidth)
	case errors.Is(err, release.ErrNetworkFailure):
		return renderNotice(noticeError, err.Error()+". Check your network connection.", noticeWidth)
	}
	return renderNotice(noticeError, err.Error(), noticeWidth)
}

func formatNotFoundMessage() string {
	return fmt.Sprintf(`Error: postgres-language-server was not found

Looked in:
  - the bin setting (.pglauncher/config.yaml or PGL_BIN)
  - the project's node_modules and Yarn Plug'n'Play install
  - the directories on PATH
  - previously downloaded releases

Install it with your package manager:
  npm install --save-dev @postgres-language-server/cli

Or download a release:
  pglauncher download

Releases: %s/releases

`, projectURL)
}

func formatProbeFailure(err probe.Error) string {
	bin := err.Bin
	if strings.TrimSpace(bin) == "" {
		bin = "postgres-language-server"
	}
	cause := "unknown error"
	if err.Err != nil {
		if text := strings.TrimSpace(err.Err.Error()); text != "" {
			cause = text
		}
	}
	return fmt.Sprintf(`Error: Could not determine the postgres-language-server version

Attempted to run: %s --version
Error: %s

Troubleshooting:
  - Check the binary runs: %s --version
  - Download a fresh copy: pglauncher download

`, bin, cause, bin)
}
