// Package prompt asks the user questions on the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"pglauncher/internal/debug"
	"pglauncher/internal/release"
)

// ErrNotInteractive is returned when a choice is needed but stdin is not a TTY.
var ErrNotInteractive = errors.New("no interactive terminal available")

var (
	// isInteractiveTTYFunc is used to check if stdin is a TTY.
	isInteractiveTTYFunc = isInteractiveTTY

	// runFormFunc runs a huh form; tests replace it.
	runFormFunc = runForm
)

// Choice is one selectable release.
type Choice struct {
	Label string
	Tag   string
}

// ReleaseChoices labels releases for selection. The first release is marked
// latest, prereleases are marked, and the installed version is flagged.
func ReleaseChoices(releases []release.Release, installed string) []Choice {
	installed = release.TrimV(installed)
	choices := make([]Choice, 0, len(releases))
	for i, r := range releases {
		var markers []string
		if i == 0 {
			markers = append(markers, "latest")
		}
		if r.Prerelease {
			markers = append(markers, "prerelease")
		}
		label := r.Tag
		if len(markers) > 0 {
			label += " (" + strings.Join(markers, ", ") + ")"
		}
		if installed != "" && r.Version() == installed {
			label += " (currently installed)"
		}
		choices = append(choices, Choice{Label: label, Tag: r.Tag})
	}
	return choices
}

// Terminal prompts through huh forms on the controlling terminal.
type Terminal struct {
	// AutoConfirm answers yes to the download question and picks the
	// latest release without asking.
	AutoConfirm bool
}

// ConfirmDownload asks whether the binary may be downloaded. Without a TTY
// the answer is no.
func (t Terminal) ConfirmDownload(ctx context.Context) (bool, error) {
	if t.AutoConfirm {
		return true, nil
	}
	if !isInteractiveTTYFunc() {
		debug.Log("download prompt skipped: stdin is not a terminal")
		return false, nil
	}

	var confirmed bool
	confirm := huh.NewConfirm().
		Title("postgres-language-server was not found. Download it now?").
		Description("The binary is stored in the launcher's global directory.").
		Affirmative("Download").
		Negative("No").
		Value(&confirmed)

	if err := runFormFunc(ctx, confirm); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("download prompt: %w", err)
	}
	return confirmed, nil
}

// SelectRelease asks which release to install and returns its tag.
func (t Terminal) SelectRelease(ctx context.Context, releases []release.Release, installed string) (string, error) {
	if len(releases) == 0 {
		return "", release.ErrNoReleases
	}
	if t.AutoConfirm {
		return releases[0].Tag, nil
	}
	if !isInteractiveTTYFunc() {
		return "", ErrNotInteractive
	}

	choices := ReleaseChoices(releases, installed)
	options := make([]huh.Option[string], 0, len(choices))
	for _, c := range choices {
		options = append(options, huh.NewOption(c.Label, c.Tag))
	}

	choice := releases[0].Tag
	sel := huh.NewSelect[string]().
		Title("Which version should be installed?").
		Options(options...).
		Value(&choice)

	if err := runFormFunc(ctx, sel); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", fmt.Errorf("release prompt: %w", err)
	}
	return choice, nil
}

func runForm(ctx context.Context, field huh.Field) error {
	return huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx)
}

// isInteractiveTTY checks if stdin is connected to an interactive terminal.
func isInteractiveTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
