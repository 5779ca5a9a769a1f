package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"

	"github.com/Nomadcxx/anipar/internal/batch"
	"github.com/Nomadcxx/anipar/internal/parser"
	"github.com/Nomadcxx/anipar/internal/reporter"
)

// Custom messages for progress updates
type progressMsg batch.Progress
type parseCompleteMsg reporter.Report
type parseErrorMsg struct{ err error }

// ParseFunc runs a batch, sending progress to the channel, and returns its report
type ParseFunc func(ctx context.Context, progress chan<- batch.Progress) (reporter.Report, error)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewSummary ViewMode = iota
	ViewEntries
	ViewDetail
	ViewParsing
)

// entriesHeaderLines precede the first entry row in the entries view
const entriesHeaderLines = 2

// maxLogLines caps the parsing log
const maxLogLines = 1000

// Model represents the TUI state
type Model struct {
	report   reporter.Report
	mode     ViewMode
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	filtering   bool
	filterInput textinput.Model
	filter      string
	visible     []int // indexes into report.Entries
	selected    int   // index into visible

	// Parsing state
	parsing         bool
	parseLogs       []string
	currentProgress string
	progressPercent float64
	parseErr        error
	cancelled       bool

	run      ParseFunc
	ctx      context.Context
	cancel   context.CancelFunc
	progress chan batch.Progress
}

// NewModel creates a new TUI model browsing a finished report
func NewModel(report reporter.Report) Model {
	ti := textinput.New()
	ti.Placeholder = "filter titles..."
	ti.CharLimit = 200
	ti.Width = 60
	ti.Prompt = "/ "

	m := Model{
		report:      report,
		mode:        ViewSummary,
		filterInput: ti,
	}
	m.applyFilter()
	return m
}

// NewParsingModel creates a TUI model that runs a batch and shows its
// progress, switching to the summary once the report is ready
func NewParsingModel(ctx context.Context, run ParseFunc) Model {
	m := NewModel(reporter.Report{})
	m.mode = ViewParsing
	m.parsing = true
	m.run = run
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.progress = make(chan batch.Progress, 64)
	return m
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	if !m.parsing {
		return nil
	}
	return tea.Batch(m.startParse(), waitForProgress(m.progress))
}

func (m Model) startParse() tea.Cmd {
	ctx, run, ch := m.ctx, m.run, m.progress
	return func() tea.Msg {
		report, err := run(ctx, ch)
		close(ch)
		if err != nil {
			return parseErrorMsg{err}
		}
		return parseCompleteMsg(report)
	}
}

// waitForProgress delivers the next progress update; nil once the batch is done
func waitForProgress(ch <-chan batch.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return progressMsg(p)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.currentProgress = msg.Message
		m.progressPercent = msg.Percentage

		if msg.Stage == "parsing" && msg.Current > 0 {
			m.parseLogs = append(m.parseLogs, fmt.Sprintf("%02d:%02d %d/%d %s",
				msg.ElapsedSeconds/60, msg.ElapsedSeconds%60, msg.Current, msg.Total, msg.Message))
			if len(m.parseLogs) > maxLogLines {
				m.parseLogs = m.parseLogs[len(m.parseLogs)-maxLogLines:]
			}
		}

		if m.mode == ViewParsing {
			m.viewport.SetContent(m.renderParsing())
			m.viewport.GotoBottom()
		}
		if m.progress == nil {
			return m, nil
		}
		return m, waitForProgress(m.progress)

	case parseCompleteMsg:
		m.parsing = false
		m.report = reporter.Report(msg)
		m.applyFilter()
		m.setMode(ViewSummary)
		return m, nil

	case parseErrorMsg:
		m.parsing = false
		m.parseErr = msg.err
		m.parseLogs = append(m.parseLogs, "ERROR: "+msg.err.Error())
		m.viewport.SetContent(m.renderParsing())
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q":
			if m.parsing {
				m.cancelled = true
				m.cancel()
			}
			return m, tea.Quit

		case "esc":
			switch {
			case m.mode == ViewParsing:
				return m, nil
			case m.mode == ViewDetail:
				m.setMode(ViewEntries)
				m.scrollToSelected()
				return m, nil
			case m.mode == ViewEntries && m.filter != "":
				m.filterInput.SetValue("")
				m.applyFilter()
				m.setMode(ViewEntries)
				return m, nil
			case m.mode != ViewSummary:
				m.setMode(ViewSummary)
				return m, nil
			}
			return m, tea.Quit

		case "f1":
			if !m.parsing {
				m.setMode(ViewSummary)
			}
			return m, nil

		case "f2", "tab":
			if !m.parsing {
				m.setMode(ViewEntries)
				m.scrollToSelected()
			}
			return m, nil

		case "/":
			if m.mode == ViewEntries {
				m.filtering = true
				m.viewport.SetContent(m.renderEntries())
				return m, m.filterInput.Focus()
			}
			return m, nil

		case "up", "k":
			if m.mode == ViewEntries {
				if m.selected > 0 {
					m.selected--
					m.viewport.SetContent(m.renderEntries())
					m.scrollToSelected()
				}
				return m, nil
			}

		case "down", "j":
			if m.mode == ViewEntries {
				if m.selected < len(m.visible)-1 {
					m.selected++
					m.viewport.SetContent(m.renderEntries())
					m.scrollToSelected()
				}
				return m, nil
			}

		case "enter":
			if m.mode == ViewEntries && len(m.visible) > 0 {
				m.setMode(ViewDetail)
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4) // Leave room for header/footer
			m.viewport.SetContent(m.render())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

		return m, nil
	}

	// Handle viewport updates (scrolling)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// updateFilter handles keys while the filter input has focus
func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.filtering = false
		m.filterInput.Blur()
		m.filterInput.SetValue("")
		m.applyFilter()
		m.viewport.SetContent(m.renderEntries())
		m.viewport.GotoTop()
		return m, nil

	case "enter":
		m.filtering = false
		m.filterInput.Blur()
		m.viewport.SetContent(m.renderEntries())
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if m.filterInput.Value() != m.filter {
		m.applyFilter()
		m.viewport.GotoTop()
	}
	m.viewport.SetContent(m.renderEntries())
	return m, cmd
}

// applyFilter recomputes the visible entries from the filter input
func (m *Model) applyFilter() {
	m.filter = m.filterInput.Value()
	m.visible = nil
	for i, e := range m.report.Entries {
		if matchesFilter(e, m.filter) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = 0
}

// matchesFilter is a case-folded substring match over the raw title,
// the recovered title and the fansub
func matchesFilter(e batch.Entry, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	fold := cases.Fold()
	q := fold.String(query)
	if strings.Contains(fold.String(e.Raw), q) {
		return true
	}
	if e.Result == nil {
		return false
	}
	return strings.Contains(fold.String(e.Result.Title), q) ||
		strings.Contains(fold.String(e.Result.Fansub), q)
}

func (m *Model) setMode(mode ViewMode) {
	m.mode = mode
	m.viewport.SetContent(m.render())
	m.viewport.GotoTop()
}

// scrollToSelected keeps the selected row inside the viewport
func (m *Model) scrollToSelected() {
	if m.mode != ViewEntries || m.viewport.Height <= 0 {
		return
	}
	line := m.selected + entriesHeaderLines
	if line < m.viewport.YOffset {
		m.viewport.SetYOffset(line)
	} else if line >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(line - m.viewport.Height + 1)
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var header string
	var footer string

	switch m.mode {
	case ViewSummary:
		header = FormatHeader("ANIPAR PARSE SUMMARY", m.width)
		footer = FormatFooter(m.width,
			FormatKeybinding("F2", "Entries"),
			FormatKeybinding("Esc", "Exit"),
		)

	case ViewEntries:
		header = FormatHeader(fmt.Sprintf("ENTRIES (%d/%d)", len(m.visible), len(m.report.Entries)), m.width)
		if m.filtering {
			footer = FormatFooter(m.width,
				FormatKeybinding("Enter", "Apply"),
				FormatKeybinding("Esc", "Clear"),
			)
		} else {
			footer = FormatFooter(m.width,
				FormatKeybinding("↑↓", "Navigate"),
				FormatKeybinding("Enter", "Details"),
				FormatKeybinding("/", "Filter"),
				FormatKeybinding("F1", "Summary"),
				FormatKeybinding("Esc", "Back"),
			)
		}

	case ViewDetail:
		header = FormatHeader("ENTRY DETAILS", m.width)
		footer = FormatFooter(m.width,
			FormatKeybinding("↑↓", "Scroll"),
			FormatKeybinding("Esc", "Back"),
		)

	case ViewParsing:
		header = FormatHeader("PARSING IN PROGRESS", m.width)
		status := "Please wait..."
		if m.parseErr != nil {
			status = "Parsing failed"
		}
		footer = FormatFooter(m.width,
			FormatKeybinding("Ctrl+C", "Cancel"),
			MutedStyle.Render(status),
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		m.viewport.View(),
		footer,
	)
}

func (m Model) render() string {
	switch m.mode {
	case ViewEntries:
		return m.renderEntries()
	case ViewDetail:
		return m.renderDetail()
	case ViewParsing:
		return m.renderParsing()
	}
	return m.renderSummary()
}

// renderSummary renders the summary view
func (m Model) renderSummary() string {
	var sb strings.Builder
	s := m.report.Summary

	sb.WriteString(FormatASCIIHeader() + "\n\n")

	sb.WriteString(InfoStyle.Render("Generated: ") + ContentStyle.Render(m.report.Timestamp.Format("2006-01-02 15:04:05")) + "\n")
	sb.WriteString(InfoStyle.Render("Source: ") + ContentStyle.Render(m.report.Source) + "\n\n")

	sb.WriteString(TitleStyle.Render("TOTALS") + "\n")
	stat := func(label string, n int) {
		sb.WriteString(InfoStyle.Render(label) + StatStyle.Render(fmt.Sprintf("%d", n)) + "\n")
	}
	stat("Titles: ", s.Total)
	stat("With fansub: ", s.WithFansub)
	stat("With episode: ", s.WithEpisode)
	stat("With season: ", s.WithSeason)
	if s.Untitled > 0 {
		sb.WriteString(ErrorStyle.Render(fmt.Sprintf("No title recovered: %d", s.Untitled)) + "\n")
	}
	sb.WriteString("\n")

	m.renderTop(&sb, "TOP FANSUBS", s.ByFansub)
	m.renderTop(&sb, "RESOLUTIONS", s.ByResolution)
	m.renderTop(&sb, "LANGUAGES", s.ByLanguage)
	m.renderTop(&sb, "TYPES", s.ByType)

	return sb.String()
}

func (m Model) renderTop(sb *strings.Builder, heading string, tally map[string]int) {
	if len(tally) == 0 {
		return
	}
	sb.WriteString(TitleStyle.Render(heading) + "\n")
	for i, c := range batch.Sorted(tally) {
		if i == 5 {
			break
		}
		fmt.Fprintf(sb, "  %s %s - %s\n",
			WarningStyle.Render(fmt.Sprintf("%d.", i+1)),
			ContentStyle.Render(c.Key),
			StatStyle.Render(fmt.Sprintf("%d", c.Count)))
	}
	sb.WriteString("\n")
}

// renderEntries renders one row per visible entry
func (m Model) renderEntries() string {
	var sb strings.Builder

	if m.filtering {
		sb.WriteString(m.filterInput.View() + "\n\n")
	} else if m.filter != "" {
		sb.WriteString(MutedStyle.Render("Filter: ") + InfoStyle.Render(m.filter) + "\n\n")
	} else {
		sb.WriteString(MutedStyle.Render("Press / to filter") + "\n\n")
	}

	if len(m.visible) == 0 {
		sb.WriteString(MutedStyle.Render("No matching titles") + "\n")
		return sb.String()
	}

	for row, idx := range m.visible {
		e := m.report.Entries[idx]
		if row == m.selected {
			sb.WriteString(HighlightStyle.Render("→ "+plainRow(e)) + "\n")
			continue
		}
		sb.WriteString("  " + styledRow(e) + "\n")
	}

	return sb.String()
}

// renderDetail renders every recovered field of the selected entry
func (m Model) renderDetail() string {
	e, ok := m.Selected()
	if !ok {
		return MutedStyle.Render("No entry selected")
	}

	var sb strings.Builder
	sb.WriteString(TitleStyle.Render(fmt.Sprintf("LINE %d", e.Line)) + "\n")
	sb.WriteString(MutedStyle.Render("Raw: ") + ContentStyle.Render(e.Raw) + "\n\n")

	for _, f := range reporter.Describe(e.Result) {
		sb.WriteString(fmt.Sprintf("  %s %s\n",
			InfoStyle.Render(fmt.Sprintf("%-11s", f.Name+":")),
			ContentStyle.Render(f.Value)))
	}

	if e.Result == nil || e.Result.Title == "" {
		sb.WriteString("\n" + ErrorStyle.Render("No title could be recovered from this line") + "\n")
	}

	return sb.String()
}

// renderParsing renders the batch progress view
func (m Model) renderParsing() string {
	var sb strings.Builder

	sb.WriteString(FormatASCIIHeader() + "\n\n")

	sb.WriteString(renderProgressBar(m.progressPercent, 50) + "\n")
	sb.WriteString(fmt.Sprintf("  %s %.1f%%\n\n", m.currentProgress, m.progressPercent))

	sb.WriteString(TitleStyle.Render("PARSE LOG") + "\n")
	sb.WriteString(strings.Repeat("─", 80) + "\n")

	startIdx := 0
	if len(m.parseLogs) > 20 {
		startIdx = len(m.parseLogs) - 20
	}
	for _, line := range m.parseLogs[startIdx:] {
		style := MutedStyle
		if strings.HasPrefix(line, "ERROR:") {
			style = ErrorStyle
		}
		sb.WriteString(style.Render(line) + "\n")
	}

	if m.cancelled {
		sb.WriteString("\n" + ErrorStyle.Render("Parsing cancelled by user") + "\n")
	}

	return sb.String()
}

// renderProgressBar creates a text-based progress bar
func renderProgressBar(percent float64, width int) string {
	filled := int((percent / 100.0) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return SuccessStyle.Render("[" + strings.Repeat("█", filled) + strings.Repeat(" ", width-filled) + "]")
}

// Helper functions

func displayTitle(r *parser.Result) string {
	if r == nil || r.Title == "" {
		return "(untitled)"
	}
	return r.Title
}

// episodeLabel is a compact S01E06 / E01-12 marker, empty when no episode is known
func episodeLabel(r *parser.Result) string {
	if r == nil {
		return ""
	}
	var label string
	if r.Season != nil {
		label = fmt.Sprintf("S%02d", *r.Season)
	}
	switch {
	case r.Episode != nil:
		label += fmt.Sprintf("E%02d", *r.Episode)
	case r.EpisodeRange != nil:
		label += fmt.Sprintf("E%02d-%02d", r.EpisodeRange.From, r.EpisodeRange.To)
	}
	return label
}

func rowParts(e batch.Entry) (line, title, fansub, episode, resolution string) {
	line = fmt.Sprintf("%4d", e.Line)
	title = displayTitle(e.Result)
	if e.Result != nil {
		if e.Result.Fansub != "" {
			fansub = "[" + e.Result.Fansub + "]"
		}
		resolution = e.Result.File.Video.Resolution
	}
	episode = episodeLabel(e.Result)
	return
}

func plainRow(e batch.Entry) string {
	line, title, fansub, episode, resolution := rowParts(e)
	parts := []string{line, title}
	for _, p := range []string{fansub, episode, resolution} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func styledRow(e batch.Entry) string {
	line, title, fansub, episode, resolution := rowParts(e)
	titleStyle := ContentStyle
	if e.Result == nil || e.Result.Title == "" {
		titleStyle = ErrorStyle
	}
	parts := []string{MutedStyle.Render(line), titleStyle.Render(title)}
	if fansub != "" {
		parts = append(parts, WarningStyle.Render(fansub))
	}
	if episode != "" {
		parts = append(parts, SuccessStyle.Render(episode))
	}
	if resolution != "" {
		parts = append(parts, InfoStyle.Render(resolution))
	}
	return strings.Join(parts, " ")
}

// Mode returns the active view
func (m Model) Mode() ViewMode {
	return m.mode
}

// Report returns the report being browsed
func (m Model) Report() reporter.Report {
	return m.report
}

// Visible returns the entries that pass the current filter
func (m Model) Visible() []batch.Entry {
	out := make([]batch.Entry, len(m.visible))
	for i, idx := range m.visible {
		out[i] = m.report.Entries[idx]
	}
	return out
}

// Selected returns the highlighted entry
func (m Model) Selected() (batch.Entry, bool) {
	if m.selected < 0 || m.selected >= len(m.visible) {
		return batch.Entry{}, false
	}
	return m.report.Entries[m.visible[m.selected]], true
}

// Filtering reports whether the filter input has focus
func (m Model) Filtering() bool {
	return m.filtering
}

// Err returns the batch error, if parsing failed
func (m Model) Err() error {
	return m.parseErr
}

// Cancelled reports whether the user aborted parsing
func (m Model) Cancelled() bool {
	return m.cancelled
}
