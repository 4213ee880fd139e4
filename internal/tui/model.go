// Package tui is the interactive window browser behind "shellbridge top".
package tui

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/shellbridge/internal/shellstate"
	"github.com/1broseidon/shellbridge/internal/windowdir"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultRefresh = 2 * time.Second
)

// Session is the part of client.Session the browser drives.
type Session interface {
	Windows(ctx context.Context) ([]windowdir.Snapshot, error)
	Capture(ctx context.Context, windowID int32) (*image.RGBA, error)
	Split(ctx context.Context, windowID int32, splitType shellstate.SplitType) error
}

// SaveFunc stores a captured image and returns where it went.
type SaveFunc func(windowID int32, img *image.RGBA) (string, error)

type Options struct {
	Timeout time.Duration
	Refresh time.Duration
	Save    SaveFunc
}

// splitKeys follows the numeric keypad: 4 and 6 are the halves beside 5,
// the corners are quarters.
var splitKeys = map[string]shellstate.SplitType{
	"4": shellstate.SplitLeft,
	"6": shellstate.SplitRight,
	"8": shellstate.SplitTop,
	"2": shellstate.SplitBottom,
	"7": shellstate.SplitLeft | shellstate.SplitTop,
	"9": shellstate.SplitRight | shellstate.SplitTop,
	"1": shellstate.SplitLeft | shellstate.SplitBottom,
	"3": shellstate.SplitRight | shellstate.SplitBottom,
}

type windowsMsg struct {
	list []windowdir.Snapshot
	err  error
}

type actionMsg struct {
	text string
	err  error
}

type tickMsg time.Time

// Model is the bubbletea model for the window browser.
type Model struct {
	ctx     context.Context
	session Session
	opts    Options

	list      list.Model
	count     int
	connected bool
	status    string
	statusErr bool

	width  int
	height int
}

func New(ctx context.Context, session Session, opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Windows"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	return Model{ctx: ctx, session: session, opts: opts, list: l}
}

// Run shows the browser until the user quits or ctx ends.
func Run(ctx context.Context, session Session, opts Options) error {
	p := tea.NewProgram(New(ctx, session, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.listWidth(), m.contentHeight())
		return m, nil

	case windowsMsg:
		if msg.err != nil {
			m.connected = false
			m.setStatus(msg.err.Error(), true)
			return m, nil
		}
		m.connected = true
		m.count = len(msg.list)
		items := make([]list.Item, 0, len(msg.list))
		for _, s := range msg.list {
			items = append(items, windowItem{snap: s})
		}
		cmd := m.list.SetItems(items)
		return m, cmd

	case actionMsg:
		if msg.err != nil {
			m.setStatus(msg.err.Error(), true)
		} else {
			m.setStatus(msg.text, false)
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		key := msg.String()
		switch key {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			return m, m.fetch()
		case "c":
			if item, ok := m.selected(); ok {
				return m, m.capture(item.snap)
			}
			return m, nil
		}
		if t, ok := splitKeys[key]; ok {
			if item, ok := m.selected(); ok {
				return m, m.split(item.snap, t)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m Model) selected() (windowItem, bool) {
	item, ok := m.list.SelectedItem().(windowItem)
	return item, ok
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.opts.Timeout)
		defer cancel()
		snaps, err := m.session.Windows(ctx)
		return windowsMsg{list: snaps, err: err}
	}
}

func (m Model) split(s windowdir.Snapshot, t shellstate.SplitType) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.opts.Timeout)
		defer cancel()
		if err := m.session.Split(ctx, s.WindowID, t); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("split %d %s", s.WindowID, t)}
	}
}

func (m Model) capture(s windowdir.Snapshot) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.opts.Timeout)
		defer cancel()
		img, err := m.session.Capture(ctx, s.WindowID)
		if err != nil {
			return actionMsg{err: err}
		}
		text := fmt.Sprintf("captured %d (%dx%d)", s.WindowID, img.Bounds().Dx(), img.Bounds().Dy())
		if m.opts.Save != nil {
			path, err := m.opts.Save(s.WindowID, img)
			if err != nil {
				return actionMsg{err: err}
			}
			text += " to " + path
		}
		return actionMsg{text: text}
	}
}

func (m Model) listWidth() int {
	w := m.width * 2 / 5
	if w < 24 {
		w = 24
	}
	return w
}

// contentHeight is what remains after the status and help bars.
func (m Model) contentHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}
