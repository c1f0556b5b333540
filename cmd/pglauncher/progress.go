package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	progressSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6"))
	progressLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8F8F2"))
	progressCountStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

type downloadUpdate struct {
	written int64
	total   int64
	done    bool
}

type downloadMsg downloadUpdate

// downloadModel draws a progress bar when the size is known and a spinner
// otherwise.
type downloadModel struct {
	spinner  spinner.Model
	progress progress.Model

	written int64
	total   int64

	updates chan downloadUpdate

	// quit is closed to end the program; progress updates may be dropped
	// but the end signal never is.
	quit     chan struct{}
	quitOnce sync.Once
}

func newDownloadModel() *downloadModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = progressSpinnerStyle

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	return &downloadModel{
		spinner:  s,
		progress: p,
		updates:  make(chan downloadUpdate, 16),
		quit:     make(chan struct{}),
	}
}

func (m *downloadModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

func (m *downloadModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		select {
		case u := <-m.updates:
			return downloadMsg(u)
		case <-m.quit:
			return downloadMsg{done: true}
		}
	}
}

func (m *downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case downloadMsg:
		if msg.done {
			return m, tea.Quit
		}
		m.written = msg.written
		m.total = msg.total
		var cmds []tea.Cmd
		if m.total > 0 {
			cmds = append(cmds, m.progress.SetPercent(m.percent()))
		}
		cmds = append(cmds, m.waitForUpdate())
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.progress.Update(msg)
		m.progress = model.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *downloadModel) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	return float64(m.written) / float64(m.total)
}

func (m *downloadModel) View() string {
	var b strings.Builder
	if m.total > 0 {
		b.WriteString(m.progress.View())
		b.WriteString(" ")
		b.WriteString(progressCountStyle.Render(formatTransfer(m.written, m.total)))
	} else {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(progressLabelStyle.Render("Downloading " + formatBytes(m.written)))
	}
	return b.String() + "\n"
}

func (m *downloadModel) stop() {
	m.quitOnce.Do(func() { close(m.quit) })
}

func (m *downloadModel) send(u downloadUpdate) {
	select {
	case m.updates <- u:
	default:
		// Drop if channel is full
	}
}

// progressDisplay renders download progress on a terminal. The program is
// started by the first report, so commands that never download draw nothing.
type progressDisplay struct {
	out         io.Writer
	interactive bool

	mu      sync.Mutex
	program *tea.Program
	model   *downloadModel
	done    chan struct{}
	stopped bool
}

func newProgressDisplay(w io.Writer) *progressDisplay {
	return &progressDisplay{out: w, interactive: isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Report receives downloader progress.
func (d *progressDisplay) Report(written, total int64) {
	if d == nil || !d.interactive {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.program == nil {
		d.start()
	}
	d.model.send(downloadUpdate{written: written, total: total})
}

func (d *progressDisplay) start() {
	d.model = newDownloadModel()
	d.program = tea.NewProgram(d.model,
		tea.WithOutput(d.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	d.done = make(chan struct{})
	go func() {
		_, _ = d.program.Run()
		close(d.done)
	}()
}

// Stop ends the display, if one was started.
func (d *progressDisplay) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.stopped || d.program == nil {
		d.stopped = true
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()

	d.model.stop()
	select {
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
		d.program.Kill()
	}
}

func formatTransfer(written, total int64) string {
	return fmt.Sprintf("%s / %s", formatBytes(written), formatBytes(total))
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
