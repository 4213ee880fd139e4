package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/shellbridge/internal/windowdir"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
)

const helpText = "4/6/8/2: halves  7/9/1/3: quarters  c: capture  r: refresh  /: filter  q: quit"

// windowItem is one row of the window list.
type windowItem struct {
	snap windowdir.Snapshot
}

func (i windowItem) Title() string {
	name := i.snap.Name
	if name == "" {
		name = "(untitled)"
	}
	if i.snap.Active {
		return okStyle.Render("●") + " " + name
	}
	return dimStyle.Render("·") + " " + name
}

func (i windowItem) Description() string {
	return fmt.Sprintf("%d  pid %d  %s", i.snap.WindowID, i.snap.PID, i.snap.Geometry)
}

func (i windowItem) FilterValue() string { return i.snap.Name }

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	height := m.contentHeight()
	listWidth := m.listWidth()
	detailWidth := m.width - listWidth
	if detailWidth < 10 {
		detailWidth = 10
	}

	left := lipgloss.NewStyle().Width(listWidth).Height(height).Render(m.list.View())
	var right string
	if item, ok := m.selected(); ok {
		right = renderDetail(item.snap, detailWidth, height)
	} else {
		right = lipgloss.NewStyle().
			Width(detailWidth).
			Height(height).
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No windows")
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusBar(),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
		dimStyle.Width(m.width).Padding(0, 1).Render(helpText),
	)
}

func (m Model) renderStatusBar() string {
	var parts []string
	if m.connected {
		parts = append(parts, okStyle.Render("●")+fmt.Sprintf(" %d windows", m.count))
	} else {
		parts = append(parts, dimStyle.Render("●")+" no window list")
	}
	switch {
	case m.status == "":
	case m.statusErr:
		parts = append(parts, errStyle.Render(m.status))
	default:
		parts = append(parts, m.status)
	}
	return lipgloss.NewStyle().
		Width(m.width).
		Background(lipgloss.Color("235")).
		Foreground(lipgloss.Color("250")).
		Padding(0, 1).
		Render(strings.Join(parts, "  "))
}

func renderDetail(s windowdir.Snapshot, width, height int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render(s.Name))
	b.WriteString("\n\n")

	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	field("window:", fmt.Sprintf("%d (0x%x)", s.WindowID, uint32(s.WindowID)))
	field("pid:", fmt.Sprint(s.PID))
	field("geometry:", s.Geometry.String())
	if names := s.StateNames(); len(names) > 0 {
		field("state:", strings.Join(names, ", "))
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 2).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("236")).
		Render(b.String())
}
