package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/nconklindev/harmony/internal/auth"
	"github.com/nconklindev/harmony/internal/codec"
	"github.com/nconklindev/harmony/internal/errs"
	"github.com/nconklindev/harmony/internal/mapping"
	"github.com/nconklindev/harmony/internal/types"
	"github.com/nconklindev/harmony/internal/unify"
	"github.com/nconklindev/harmony/internal/workspace"
)

type state int

const (
	stateFilePicker state = iota
	stateMapping
	statePreview
	stateProcessing
	stateComplete
	stateError
)

// Options configures the terminal workflow.
type Options struct {
	Workspace  *workspace.Workspace
	Actor      auth.Actor
	ExportPath string
	// CanSave enables the save step on the completion screen.
	CanSave bool
	Logger  *zap.Logger
}

type Model struct {
	state      state
	ws         *workspace.Workspace
	actor      auth.Actor
	exportPath string
	canSave    bool
	logger     *zap.Logger

	filepicker filepicker.Model
	progress   progress.Model
	notice     string

	fileCursor   int
	headerCursor int

	preview    []types.MappedRow
	result     *unify.BatchResult
	exported   string
	saveResult *types.SaveResult
	saving     bool

	err          error
	width        int
	height       int
	progressChan chan float64
	resultChan   chan processResultMsg
}

type fileAddedMsg struct {
	name  string
	added bool
	err   error
}

type processResultMsg struct {
	result   *unify.BatchResult
	exported string
	err      error
}

type processCompleteMsg processResultMsg

type saveCompleteMsg struct {
	result types.SaveResult
	err    error
}

type progressMsg float64

type waitForProgressMsg struct{}

func InitialModel(opts Options) Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".xlsx", ".xlsm"}
	fp.CurrentDirectory, _ = os.Getwd()

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(highlight)
	fp.Styles.File = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF"))
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exportPath := opts.ExportPath
	if exportPath == "" {
		exportPath = "unified_candidate_data.xlsx"
	}

	return Model{
		state:      stateFilePicker,
		ws:         opts.Workspace,
		actor:      opts.Actor,
		exportPath: exportPath,
		canSave:    opts.CanSave,
		logger:     logger.Named("ui"),
		filepicker: fp,
		progress:   progress.New(progress.WithGradient("#2DD4BF", "#5EEAD4")),
	}
}

func (m Model) Init() tea.Cmd {
	return m.filepicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		height := msg.Height - 16
		if height < 5 {
			height = 5
		}
		m.filepicker.Height = height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.state {
		case stateFilePicker:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "tab":
				if len(m.ws.Files()) > 0 {
					m.notice = ""
					m.state = stateMapping
				}
				return m, nil
			}

		case stateMapping:
			return m.updateMapping(msg)

		case statePreview:
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "esc":
				m.state = stateMapping
			case "enter":
				m.state = stateProcessing
				return m.processAll()
			}
			return m, nil

		case stateComplete:
			switch msg.String() {
			case "s":
				if m.canSave && m.saveResult == nil && !m.saving {
					m.saving = true
					return m, m.save()
				}
			case "q", "enter", "esc":
				return m, tea.Quit
			}
			return m, nil

		case stateError:
			return m, tea.Quit
		}

	case fileAddedMsg:
		switch {
		case errs.IsKind(msg.err, errs.Authorization):
			m.err = msg.err
			m.state = stateError
		case msg.err != nil:
			m.notice = ErrorStyle.Render(fmt.Sprintf("✗ %s: %v", msg.name, msg.err))
		case msg.added:
			m.notice = SuccessStyle.Render(fmt.Sprintf("✓ Added %s", msg.name))
		default:
			m.notice = SubtitleStyle.Render(fmt.Sprintf("%s already added or empty", msg.name))
		}
		return m, nil

	case processCompleteMsg:
		if msg.err != nil {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		m.result = msg.result
		m.exported = msg.exported
		m.state = stateComplete
		return m, nil

	case saveCompleteMsg:
		m.saving = false
		m.saveResult = &msg.result
		if msg.err != nil {
			m.notice = ErrorStyle.Render(msg.err.Error())
		}
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateProcessing {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	if m.state == stateFilePicker {
		var cmd tea.Cmd
		m.filepicker, cmd = m.filepicker.Update(msg)

		if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
			return m, m.addFile(path)
		}
		return m, cmd
	}

	return m, nil
}

func (m Model) updateMapping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	files := m.ws.Files()
	if len(files) == 0 {
		m.state = stateFilePicker
		return m, nil
	}
	if m.fileCursor >= len(files) {
		m.fileCursor = len(files) - 1
	}
	current := files[m.fileCursor]

	var err error
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "esc":
		m.state = stateFilePicker
	case "up", "k":
		if m.headerCursor > 0 {
			m.headerCursor--
		}
	case "down", "j":
		if m.headerCursor < len(current.File.Headers)-1 {
			m.headerCursor++
		}
	case "left", "h", "[":
		if m.fileCursor > 0 {
			m.fileCursor--
			m.headerCursor = 0
		}
	case "right", "l", "]":
		if m.fileCursor < len(files)-1 {
			m.fileCursor++
			m.headerCursor = 0
		}
	case " ", "enter":
		if len(current.File.Headers) > 0 {
			header := current.File.Headers[m.headerCursor]
			next := cycleTarget(current.File.Mapping[header], m.ws.Fields())
			_, err = m.ws.SetMapping(m.actor, current.Name, header, next)
		}
	case "x", "backspace":
		if len(current.File.Headers) > 0 {
			_, err = m.ws.SetMapping(m.actor, current.Name, current.File.Headers[m.headerCursor], "")
		}
	case "s":
		err = m.ws.SuggestMappings(m.actor)
	case "p":
		var rows []types.MappedRow
		rows, err = m.ws.GeneratePreview(m.actor)
		if err == nil {
			m.preview = rows
			m.state = statePreview
		}
	}

	if err != nil {
		m.err = err
		m.state = stateError
	}
	return m, nil
}

// cycleTarget returns the field after current, wrapping through unmapped.
func cycleTarget(current string, fields []string) string {
	if current == "" {
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	for i, f := range fields {
		if f == current {
			if i+1 < len(fields) {
				return fields[i+1]
			}
			return ""
		}
	}
	return ""
}

func (m Model) addFile(path string) tea.Cmd {
	ws, actor := m.ws, m.actor
	return func() tea.Msg {
		f := codec.DiskFile{Path: path}
		added, err := ws.AddFile(context.Background(), actor, f)
		return fileAddedMsg{name: f.Name(), added: added, err: err}
	}
}

func (m Model) processAll() (Model, tea.Cmd) {
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan processResultMsg, 1)

	progressChan := m.progressChan
	resultChan := m.resultChan
	ws, actor, exportPath, logger := m.ws, m.actor, m.exportPath, m.logger

	cmd := tea.Batch(
		func() tea.Msg {
			go func() {
				var msg processResultMsg
				msg.result, msg.err = ws.ProcessAll(context.Background(), actor, progressChan)
				if msg.err == nil && len(msg.result.Rows) > 0 {
					msg.exported, msg.err = export(ws, actor, exportPath)
					if msg.err != nil {
						logger.Error("Export failed", zap.String("path", exportPath), zap.Error(msg.err))
					}
				}

				resultChan <- msg

				close(progressChan)
				close(resultChan)
			}()

			return waitForProgressMsg{}
		},
		m.progress.Init(),
	)

	return m, cmd
}

func export(ws *workspace.Workspace, actor auth.Actor, path string) (string, error) {
	data, err := ws.Export(actor)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func (m Model) save() tea.Cmd {
	ws, actor := m.ws, m.actor
	return func() tea.Msg {
		result, err := ws.Save(context.Background(), actor)
		return saveCompleteMsg{result: result, err: err}
	}
}

func waitForProgress(progressChan chan float64, resultChan chan processResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			res, ok := <-resultChan
			if ok {
				return processCompleteMsg(res)
			}
			return nil
		}

		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateFilePicker:
		return m.viewFilePicker()
	case stateMapping:
		return m.viewMapping()
	case statePreview:
		return m.viewPreview()
	case stateProcessing:
		return m.viewProcessing()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("◆ Harmony - Candidate Spreadsheet Unifier"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Select CSV or XLSX files to add"))
	s.WriteString("\n")

	files := m.ws.Files()
	if len(files) > 0 {
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Name
		}
		s.WriteString(CheckedStyle.Render(fmt.Sprintf("Added (%d): %s", len(files), strings.Join(names, ", "))))
		s.WriteString("\n")
	}
	if m.notice != "" {
		s.WriteString(m.notice)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(m.filepicker.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: add file • tab: map headers • q: quit"))

	return s.String()
}

func (m Model) viewMapping() string {
	var s strings.Builder

	files := m.ws.Files()
	if len(files) == 0 {
		return ""
	}
	idx := m.fileCursor
	if idx >= len(files) {
		idx = len(files) - 1
	}
	current := files[idx]
	fm := current.File

	s.WriteString(TitleStyle.Render("◆ Map Headers"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("File %d of %d: %s • %d%% mapped",
		idx+1, len(files), current.Name, mapping.MappedPercent(&fm))))
	s.WriteString("\n\n")

	for i, header := range fm.Headers {
		cursor := " "
		if m.headerCursor == i {
			cursor = ">"
		}

		target := "unmapped"
		if f, ok := fm.Mapping.Target(header); ok {
			target = f
		}

		sample := mapping.SampleValue(&fm, i).String()
		if len(sample) > 24 {
			sample = sample[:21] + "..."
		}

		line := fmt.Sprintf("%s %-24s → %-14s %s", cursor, header, target, SubtitleStyle.Render(sample))

		switch {
		case m.headerCursor == i:
			line = SelectedStyle.Render(line)
		case target != "unmapped":
			line = CheckedStyle.Render(line)
		default:
			line = UnselectedStyle.Render(line)
		}

		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("↑/↓: header • ←/→: file • space: next field • x: clear • s: suggest • p: preview • esc: add files • q: quit"))

	return BoxStyle.Render(s.String())
}

func (m Model) viewPreview() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("◆ Preview"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("%d sample row(s) across %d file(s)",
		len(m.preview), len(unify.Concat(m.preview).Sources()))))
	s.WriteString("\n\n")

	if len(m.preview) == 0 {
		s.WriteString(UnselectedStyle.Render("No preview rows"))
	} else {
		s.WriteString(previewTable(m.preview, m.width).Render())
	}

	s.WriteString("\n")
	s.WriteString(HelpStyle.Render("enter: process all rows • esc: back to mapping • q: quit"))

	return s.String()
}

func previewTable(rows []types.MappedRow, width int) *table.Table {
	headers := rows[0].Keys()
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(accent)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return CheckedStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	if width > 0 {
		t = t.Width(width)
	}

	for _, r := range rows {
		cells := make([]string, 0, len(headers))
		cells = append(cells, r.Source, fmt.Sprint(r.Row))
		for _, f := range r.Fields {
			cells = append(cells, r.Get(f).String())
		}
		t = t.Row(cells...)
	}
	return t
}

func (m Model) viewProcessing() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("◆ Processing..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Unifying %d file(s)...", len(m.ws.Files())))
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())

	return BoxStyle.Render(s.String())
}

func (m Model) viewComplete() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ Unification Complete!"))
	s.WriteString("\n\n")

	stats := unify.Concat(m.result.Rows).Stats(m.ws.Fields())
	s.WriteString(fmt.Sprintf("Files processed: %d of %d\n", m.result.Succeeded(), m.result.Files))
	s.WriteString(fmt.Sprintf("Rows unified:    %d\n", stats.Rows))
	s.WriteString(fmt.Sprintf("Completion:      %d%% of %d cells\n", stats.Completion, stats.TotalCells))

	for _, fe := range m.result.FailedFiles {
		s.WriteString(ErrorStyle.Render(fmt.Sprintf("✗ %s: %v", fe.File, fe.Err)))
		s.WriteString("\n")
	}

	if m.exported != "" {
		maxPathLen := m.width - 20
		if maxPathLen < 30 {
			maxPathLen = 30
		}
		out := m.exported
		if len(out) > maxPathLen {
			out = "..." + out[len(out)-maxPathLen+3:]
		}
		s.WriteString("\n")
		s.WriteString(SuccessStyle.Render(fmt.Sprintf("Exported: %s", out)))
		s.WriteString("\n")
	}

	switch {
	case m.saving:
		s.WriteString("\nSaving candidates...\n")
	case m.saveResult != nil:
		s.WriteString(fmt.Sprintf("\nSaved %d candidate(s), %d failed\n", m.saveResult.Success, m.saveResult.Error))
	}
	if m.notice != "" {
		s.WriteString(m.notice)
		s.WriteString("\n")
	}

	help := "Press q to exit"
	if m.canSave && m.saveResult == nil {
		help = "s: save to database • q: exit"
	}
	s.WriteString("\n")
	s.WriteString(HelpStyle.Render(help))

	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder

	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press any key to exit"))

	return BoxStyle.Render(s.String())
}
