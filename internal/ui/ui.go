package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/signx/internal/labels"
	"github.com/desertthunder/signx/internal/models"
	"github.com/desertthunder/signx/internal/shared"
	"github.com/desertthunder/signx/internal/workflow"
)

// Signal carries "the machine changed" notifications. It holds at most one pending
// notification, so a burst of changes wakes the TUI once.
type Signal chan struct{}

func NewSignal() Signal {
	return make(Signal, 1)
}

// Notify matches [workflow.Opts.OnChange]. It never blocks.
func (s Signal) Notify(workflow.Snapshot) {
	select {
	case s <- struct{}{}:
	default:
	}
}

// Opts holds the collaborators of the TUI that are not part of the machine.
type Opts struct {
	DownloadDir string
	Open        func(url string) error // defaults to [shared.OpenBrowser]
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	machine *workflow.Machine
	changes Signal
	opts    Opts
	snap    workflow.Snapshot
	width   int
	height  int
	labels  list.Model
	path    textinput.Model
	spinner spinner.Model
	bar     progress.Model
	notice  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a TUI over machine. changes must be the [Signal] whose Notify was given to
// the machine as its OnChange callback.
func NewModel(ctx context.Context, machine *workflow.Machine, changes Signal, opts Opts) *Model {
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}

	path := textinput.New()
	path.Placeholder = "/path/to/video.mp4"
	path.Prompt = "video: "
	path.CharLimit = 4096
	path.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:     ctx,
		machine: machine,
		changes: changes,
		opts:    opts,
		snap:    machine.Snapshot(),
		path:    path,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	m.labels = newLabelList(labels.Catalog(), m.snap.Expected.Has)
	return m
}

// Init enters the session and starts listening for machine changes.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.start(), m.waitForChange(), m.spinner.Tick)
}

// Snapshot returns the state the model last rendered from.
func (m *Model) Snapshot() workflow.Snapshot {
	return m.snap
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.labels.SetSize(msg.Width-4, msg.Height-8)
		m.path.Width = max(msg.Width-12, 20)
		m.bar.Width = min(max(msg.Width-8, 10), 80)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.exit) {
			return m.quit()
		}
		switch m.snap.Phase {
		case workflow.SelectingLabels:
			return m.handleLabelKeys(msg)
		case workflow.SelectingFile, workflow.Failed:
			return m.handleFileKeys(msg)
		case workflow.Completed:
			return m.handleResultKeys(msg)
		default:
			if key.Matches(msg, m.keys.quit) {
				return m.quit()
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgStarted:
		if err := errOf(msg); err != nil && !errors.Is(err, shared.ErrSessionClosed) {
			m.err = err
		}
		return m, nil

	case MsgChanged:
		m.apply(msg.data.(workflow.Snapshot))
		return m, m.waitForChange()

	case MsgSubmitted:
		err := errOf(msg)
		if errors.Is(err, shared.ErrValidation) || errors.Is(err, shared.ErrSubmissionInFlight) {
			m.err = err
		}
		return m, nil

	case MsgDownloaded:
		res := msg.data.(struct {
			path string
			err  error
		})
		if res.err == nil {
			m.notice = "Saved to " + res.path
		}
		return m, nil

	case MsgOpened:
		if err := errOf(msg); err != nil {
			m.err = err
		} else {
			m.notice = "Opened " + m.snap.Reference
		}
		return m, nil
	}
	return m, nil
}

// apply moves the view to a newer snapshot. Older snapshots are dropped.
func (m *Model) apply(snap workflow.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	prev := m.snap
	m.snap = snap

	if snap.Session != prev.Session || snap.Phase == workflow.SelectingLabels {
		m.syncLabels()
	}
	if snap.Phase != prev.Phase {
		m.err = nil
		m.notice = ""
		switch snap.Phase {
		case workflow.SelectingFile, workflow.Failed:
			m.path.Focus()
		default:
			m.path.Blur()
		}
	}
	if snap.Session != prev.Session {
		m.path.Reset()
	}
}

func (m *Model) syncLabels() {
	for i, item := range m.labels.Items() {
		li := item.(labelItem)
		li.expected = m.snap.Expected.Has(li.label)
		m.labels.SetItem(i, li)
	}
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.machine.Leave()
	return m, tea.Quit
}

func (m *Model) handleLabelKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.toggle):
		item, ok := m.labels.SelectedItem().(labelItem)
		if !ok {
			return m, nil
		}
		on, err := m.machine.ToggleLabel(item.label)
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err, m.notice = nil, ""
		item.expected = on
		return m, m.labels.SetItem(m.labels.Index(), item)
	case key.Matches(msg, m.keys.next):
		if err := m.machine.Advance(); err != nil {
			m.err = err
			return m, nil
		}
		if m.machine.Snapshot().Phase == workflow.SelectingLabels {
			m.notice = "Select at least one label to continue"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.labels, cmd = m.labels.Update(msg)
	return m, cmd
}

func (m *Model) handleFileKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		if err := m.machine.Back(); err != nil {
			m.err = err
		}
		return m, nil
	case key.Matches(msg, m.keys.pick):
		m.pickFile()
		return m, nil
	case key.Matches(msg, m.keys.submit):
		m.err, m.notice = nil, ""
		return m, m.submit()
	}

	var cmd tea.Cmd
	m.path, cmd = m.path.Update(msg)
	return m, cmd
}

func (m *Model) pickFile() {
	m.err, m.notice = nil, ""
	candidate, err := models.NewFileCandidate(strings.TrimSpace(m.path.Value()))
	if err != nil {
		m.err = err
		return
	}
	if err := m.machine.PickFile(candidate); err != nil {
		m.err = err
		return
	}
	m.notice = fmt.Sprintf("Selected %s (%s). Press ctrl+s to process it.", candidate.Name(), humanSize(candidate.Size()))
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.download):
		m.err, m.notice = nil, "Downloading..."
		return m, m.download()
	case key.Matches(msg, m.keys.open):
		m.err, m.notice = nil, ""
		return m, m.open()
	case key.Matches(msg, m.keys.reset):
		if err := m.machine.Reset(); err != nil {
			m.err = err
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) start() tea.Cmd {
	ctx, machine := m.ctx, m.machine
	return func() tea.Msg {
		return startedMsg(machine.Start(ctx))
	}
}

func (m *Model) waitForChange() tea.Cmd {
	ctx, machine, changes := m.ctx, m.machine, m.changes
	return func() tea.Msg {
		select {
		case <-changes:
			return changedMsg(machine.Snapshot())
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) submit() tea.Cmd {
	ctx, machine := m.ctx, m.machine
	return func() tea.Msg {
		return submittedMsg(machine.Submit(ctx))
	}
}

func (m *Model) download() tea.Cmd {
	ctx, machine, dir := m.ctx, m.machine, m.opts.DownloadDir
	return func() tea.Msg {
		path, err := machine.Download(ctx, dir)
		return downloadedMsg(path, err)
	}
}

func (m *Model) open() tea.Cmd {
	ref, open := m.snap.Reference, m.opts.Open
	return func() tea.Msg {
		return openedMsg(open(ref))
	}
}

// View renders the UI based on the current phase.
func (m *Model) View() string {
	var body string
	switch m.snap.Phase {
	case workflow.SelectingLabels:
		body = m.renderLabels()
	case workflow.SelectingFile, workflow.Failed:
		body = m.renderFile()
	case workflow.Submitting:
		body = m.renderSubmitting()
	case workflow.AwaitingCompletion:
		body = m.renderProgress()
	case workflow.Completed:
		body = m.renderResult()
	}
	return body + m.renderFooter()
}

func (m *Model) renderFooter() string {
	var b strings.Builder
	if m.notice != "" {
		b.WriteString("\n" + styles.help.Render(m.notice))
	}
	if m.err != nil {
		b.WriteString("\n" + styles.err.Render("Error: "+m.err.Error()))
	}
	return b.String()
}

func (m *Model) renderLabels() string {
	helpKeys := []key.Binding{m.keys.toggle, m.keys.next, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	count := fmt.Sprintf("%d selected", m.snap.Expected.Len())
	return fmt.Sprintf("%s\n%s\n\n%s", m.labels.View(), styles.help.Render(count), helpView)
}

func (m *Model) renderFile() string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Choose a video to process"))
	b.WriteString("\nExpected: " + m.snap.Expected.String() + "\n\n")

	if m.snap.Phase == workflow.Failed {
		kind := workflow.ErrorKind(m.snap.Err)
		b.WriteString(styles.err.Render(fmt.Sprintf("Processing failed (%s): %s", kind, m.snap.LastError)))
		b.WriteString("\n" + styles.help.Render("Choose the file again to retry.") + "\n\n")
	}

	b.WriteString(m.path.View() + "\n")
	if m.snap.Candidate != "" {
		b.WriteString(styles.ok.Render("Selected: "+m.snap.Candidate) + "\n")
	}

	helpKeys := []key.Binding{m.keys.pick, m.keys.submit, m.keys.back, m.keys.exit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) renderSubmitting() string {
	title := styles.title.Render("Uploading")
	return fmt.Sprintf("%s\n%s Sending video for processing...\n\n%s",
		title, m.spinner.View(), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

func (m *Model) renderProgress() string {
	title := styles.title.Render("Processing")
	pct := float64(m.snap.Progress) / 100
	return fmt.Sprintf("%s\n%s\n%s\n\n%s",
		title, m.bar.ViewAs(pct), m.snap.Status, m.help.ShortHelpView([]key.Binding{m.keys.quit}))
}

func (m *Model) renderResult() string {
	var b strings.Builder
	b.WriteString(styles.ok.Render("✓ Processing complete"))
	b.WriteString("\n\n")
	if a := m.snap.Artifact; a != nil {
		b.WriteString("Video: " + a.ID + "\n")
		b.WriteString("Playback: " + m.snap.Reference + "\n\n")
	}

	cmp := m.snap.Comparison()
	if cmp.Empty() {
		b.WriteString(styles.help.Render("No labels expected or detected.") + "\n")
	} else {
		b.WriteString(renderComparison(cmp))
		b.WriteString(fmt.Sprintf("\n%d matched • %d missed • %d unexpected\n",
			len(cmp.Matched()), len(cmp.Missed()), len(cmp.Unexpected())))
	}

	if m.snap.Downloaded != "" {
		b.WriteString("\n" + styles.ok.Render("Saved to "+m.snap.Downloaded) + "\n")
	}
	if m.snap.LastError != "" {
		b.WriteString("\n" + styles.err.Render("Download failed: "+m.snap.LastError) + "\n")
	}

	helpKeys := []key.Binding{m.keys.download, m.keys.open, m.keys.reset, m.keys.quit}
	b.WriteString("\n" + m.help.ShortHelpView(helpKeys))
	return styles.box.Render(b.String())
}

func renderComparison(cmp labels.Comparison) string {
	width := 0
	for _, e := range cmp.Entries {
		width = max(width, len(e.Label))
	}

	var b strings.Builder
	for _, e := range cmp.Entries {
		var marker, note string
		switch e.Status {
		case labels.Both:
			marker, note = "✓", "expected and detected"
		case labels.ExpectedOnly:
			marker, note = "✗", "expected, not detected"
		default:
			marker, note = "+", "detected, not expected"
		}
		row := fmt.Sprintf("%s %-*s  %s", marker, width, e.Label, note)
		b.WriteString(styles.statusStyle(e.Status).Render(row) + "\n")
	}
	return b.String()
}

func humanSize(n int64) string {
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
