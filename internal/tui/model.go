// Package tui renders a live dashboard for a run: per-status counts, a
// progress bar, iteration signals and a tail of recent task activity.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hivekit/hive/internal/events"
	"github.com/hivekit/hive/internal/scheduler"
)

// maxActivityLines bounds the activity tail kept in memory.
const maxActivityLines = 12

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	spinner   spinner.Model
	eventSub  <-chan events.Event
	counts    scheduler.Snapshot
	iteration int
	coverage  float64
	activity  []string
	state     string
	reason    string
	width     int
	height    int
	quitting  bool
	finished  bool
}

// New creates a dashboard model subscribed to all bus events.
func New(bus *events.Bus) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleStatusRunning

	return Model{
		spinner:  sp,
		eventSub: bus.SubscribeAll(256),
	}
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.eventSub))
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case events.TaskStartedEvent:
		m.addActivity(StyleStatusRunning.Render("▸") + fmt.Sprintf(" %s → %s", msg.ID, msg.AgentID))
		return m, waitForEvent(m.eventSub)

	case events.TaskCompletedEvent:
		m.addActivity(StyleStatusComplete.Render("✓") + fmt.Sprintf(" %s (%s)", msg.ID, msg.Duration.Round(time.Millisecond)))
		return m, waitForEvent(m.eventSub)

	case events.TaskFailedEvent:
		m.addActivity(StyleStatusFailed.Render("✗") + fmt.Sprintf(" %s: %s", msg.ID, msg.Err))
		return m, waitForEvent(m.eventSub)

	case events.TaskUnassignableEvent:
		m.addActivity(StyleStatusBlocked.Render("?") + fmt.Sprintf(" %s needs %s", msg.ID, strings.Join(msg.Requires, ",")))
		return m, waitForEvent(m.eventSub)

	case events.ProgressEvent:
		m.counts = msg.Counts
		return m, waitForEvent(m.eventSub)

	case events.IterationFinishedEvent:
		m.iteration = msg.Iteration
		m.coverage = msg.Coverage
		return m, waitForEvent(m.eventSub)

	case events.RunFinishedEvent:
		m.finished = true
		m.state = msg.State
		m.reason = msg.Reason
		m.counts = msg.Counts
		return m, waitForEvent(m.eventSub)
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var b strings.Builder

	title := StyleTitle.Render("Hive Run")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.finished {
		b.WriteString(fmt.Sprintf("State: %s (%s)\n\n", m.state, m.reason))
	} else {
		b.WriteString(fmt.Sprintf("%s Iteration %d  coverage %.0f%%\n\n", m.spinner.View(), m.iteration, m.coverage*100))
	}

	b.WriteString(fmt.Sprintf("Completed:   %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.counts.Completed))))
	b.WriteString(fmt.Sprintf("In progress: %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.counts.InProgress))))
	b.WriteString(fmt.Sprintf("Failed:      %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.counts.Failed))))
	b.WriteString(fmt.Sprintf("Blocked:     %s\n", StyleStatusBlocked.Render(fmt.Sprintf("%d", m.counts.Blocked))))
	b.WriteString(fmt.Sprintf("Waiting:     %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.counts.Pending+m.counts.Ready))))

	b.WriteString("\n")
	b.WriteString(m.progressBar())
	b.WriteString("\n\n")

	for _, line := range m.activity {
		b.WriteString(line)
		b.WriteString("\n")
	}

	content := StyleBorder.
		Width(m.width - 2).
		Render(b.String())

	return lipgloss.JoinVertical(lipgloss.Left, content, HelpView())
}

// progressBar renders a segmented bar over all terminal statuses.
func (m Model) progressBar() string {
	total := m.counts.Total()
	if total == 0 {
		return ""
	}

	barWidth := min(m.width-8, 40)
	completedWidth := (m.counts.Completed * barWidth) / total
	failedWidth := (m.counts.Failed * barWidth) / total
	blockedWidth := (m.counts.Blocked * barWidth) / total
	restWidth := barWidth - completedWidth - failedWidth - blockedWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusBlocked.Render(strings.Repeat("x", max(0, blockedWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, restWidth)))

	resolved := m.counts.Completed + m.counts.Failed + m.counts.Blocked
	return fmt.Sprintf("[%s]  %d/%d", bar, resolved, total)
}

func (m *Model) addActivity(line string) {
	m.activity = append(m.activity, line)
	if len(m.activity) > maxActivityLines {
		m.activity = m.activity[len(m.activity)-maxActivityLines:]
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
