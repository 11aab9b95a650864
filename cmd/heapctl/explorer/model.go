// Package explorer is the interactive report browser behind heapctl explore.
package explorer

import (
	"fmt"
	"strconv"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/internal/printer"
	"github.com/joshuapare/heapkit/profile"
)

// Pane identifies which table has focus
type Pane int

const (
	OwnersPane Pane = iota
	RegionsPane
	BlocksPane
)

const defaultTableHeight = 15

// Model browses one profiling report: owners, regions, and the blocks of a
// selected owner.
type Model struct {
	rep     *profile.Report
	records []profile.UsageRecord

	keys    KeyMap
	help    help.Model
	owners  table.Model
	regions table.Model
	blocks  table.Model

	focused  Pane
	selected *profile.UsageRecord
	status   string
	width    int
	height   int

	copyText func(string) error
}

// New returns a model for rep.
func New(rep *profile.Report) Model {
	records := append([]profile.UsageRecord(nil), rep.Usage...)
	if rep.Unknown != nil {
		records = append(records, *rep.Unknown)
	}
	m := Model{
		rep:      rep,
		records:  records,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		copyText: clipboard.WriteAll,
		status:   "enter: blocks of owner · tab: regions",
	}
	m.owners = newTable([]table.Column{
		{Title: "Owner", Width: 6},
		{Title: "Label", Width: 32},
		{Title: "Heap", Width: 10},
		{Title: "Pool", Width: 10},
		{Title: "Total", Width: 10},
		{Title: "Blocks", Width: 7},
	}, ownerRows(records))
	m.regions = newTable([]table.Column{
		{Title: "Region", Width: 14},
		{Title: "State", Width: 16},
		{Title: "Size", Width: 10},
		{Title: "Free", Width: 10},
		{Title: "Allocated", Width: 10},
	}, regionRows(rep.Regions))
	m.blocks = newTable([]table.Column{
		{Title: "Address", Width: 12},
		{Title: "Length", Width: 8},
		{Title: "Region", Width: 14},
		{Title: "Kind", Width: 12},
	}, nil)
	m.focus(OwnersPane)
	return m
}

// WithClipboard replaces the clipboard writer.
func (m Model) WithClipboard(fn func(string) error) Model {
	m.copyText = fn
	return m
}

func newTable(cols []table.Column, rows []table.Row) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(defaultTableHeight),
	)
	t.SetStyles(tableStyles())
	return t
}

func ownerRows(records []profile.UsageRecord) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, u := range records {
		owner := fmt.Sprintf("0x%02X", u.Owner)
		if u.Owner == profile.UnknownOwner {
			owner = "-"
		}
		rows = append(rows, table.Row{
			owner, u.Label,
			printer.Bytes(int64(u.HeapBytes)), printer.Bytes(int64(u.PoolBytes)),
			printer.Bytes(int64(u.Total())), strconv.Itoa(len(u.Blocks)),
		})
	}
	return rows
}

func regionRows(regions []profile.RegionReport) []table.Row {
	rows := make([]table.Row, 0, len(regions))
	for _, rr := range regions {
		size, free := "-", "-"
		if rr.Region.Available {
			size = printer.Bytes(int64(rr.Region.Size))
		}
		if rr.Free != nil && rr.Counted() {
			free = printer.Bytes(int64(rr.Free.Total))
		}
		rows = append(rows, table.Row{
			rr.Region.Name, rr.State.String(), size, free, printer.Bytes(int64(rr.Allocated)),
		})
	}
	return rows
}

func blockRows(blocks []profile.BlockRef) []table.Row {
	rows := make([]table.Row, 0, len(blocks))
	for _, b := range blocks {
		rows = append(rows, table.Row{printer.Addr(b.Address), strconv.Itoa(b.Length), b.Region, b.Kind.String()})
	}
	return rows
}

// Focused returns the pane with focus.
func (m Model) Focused() Pane { return m.focused }

// Status returns the status line.
func (m Model) Status() string { return m.status }

func (m *Model) focus(p Pane) {
	m.focused = p
	for pane, t := range map[Pane]*table.Model{OwnersPane: &m.owners, RegionsPane: &m.regions, BlocksPane: &m.blocks} {
		if pane == p {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

func (m *Model) active() *table.Model {
	switch m.focused {
	case RegionsPane:
		return &m.regions
	case BlocksPane:
		return &m.blocks
	default:
		return &m.owners
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(msg.Height-8, 3)
		m.owners.SetHeight(h)
		m.regions.SetHeight(h)
		m.blocks.SetHeight(h)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Tab):
			if m.focused == OwnersPane {
				m.focus(RegionsPane)
			} else {
				m.focus(OwnersPane)
			}
			return m, nil
		case key.Matches(msg, m.keys.Back):
			if m.focused == BlocksPane {
				m.focus(OwnersPane)
			}
			return m, nil
		case key.Matches(msg, m.keys.Enter):
			m.enter()
			return m, nil
		case key.Matches(msg, m.keys.Copy):
			m.copyAddress()
			return m, nil
		}
	}

	t := m.active()
	var cmd tea.Cmd
	*t, cmd = t.Update(msg)
	return m, cmd
}

func (m *Model) enter() {
	switch m.focused {
	case OwnersPane:
		i := m.owners.Cursor()
		if i < 0 || i >= len(m.records) {
			return
		}
		rec := m.records[i]
		m.selected = &rec
		m.blocks.SetRows(blockRows(rec.Blocks))
		m.blocks.SetCursor(0)
		m.focus(BlocksPane)
		m.status = fmt.Sprintf("%d block(s) owned by %s", len(rec.Blocks), ownerName(rec))
	case RegionsPane:
		i := m.regions.Cursor()
		if i < 0 || i >= len(m.rep.Regions) {
			return
		}
		rr := m.rep.Regions[i]
		switch {
		case rr.Error != "":
			m.status = rr.Region.Name + ": " + rr.Error
		case !rr.Region.Available:
			m.status = rr.Region.Name + ": " + rr.Region.Reason
		default:
			m.status = fmt.Sprintf("%s: %s to %s, %d corrupt header(s)",
				rr.Region.Name, printer.Addr(rr.Region.Start), printer.Addr(rr.Region.End), len(rr.Corrupt))
		}
	}
}

func (m *Model) copyAddress() {
	if m.focused != BlocksPane || m.selected == nil {
		m.status = "Open an owner's blocks to copy an address"
		return
	}
	i := m.blocks.Cursor()
	if i < 0 || i >= len(m.selected.Blocks) {
		return
	}
	addr := printer.Addr(m.selected.Blocks[i].Address)
	if err := m.copyText(addr); err != nil {
		logger.Warn("clipboard write failed", "error", err)
		m.status = "Copy failed: " + err.Error()
		return
	}
	m.status = "Copied " + addr
}

func ownerName(u profile.UsageRecord) string {
	if u.Label != "" {
		return u.Label
	}
	return fmt.Sprintf("owner 0x%02X", u.Owner)
}

// View implements tea.Model
func (m Model) View() string {
	title := fmt.Sprintf("%s heaps · processor %d · %s", m.rep.Layout, m.rep.Processor, m.rep.Mode)
	var pane string
	switch m.focused {
	case RegionsPane:
		title += " · regions"
		pane = m.regions.View()
	case BlocksPane:
		if m.selected != nil {
			title += " · " + ownerName(*m.selected)
		}
		pane = m.blocks.View()
	default:
		title += " · owners"
		pane = m.owners.View()
	}

	summary := fmt.Sprintf("total %s  free %s  allocated %s",
		printer.Bytes(int64(m.rep.TotalSize())),
		printer.Bytes(int64(m.rep.TotalFree())),
		printer.Bytes(int64(m.rep.TotalAllocated())))
	if d := m.rep.Diagnostics; d != nil {
		switch {
		case d.HasCriticalIssues() || d.HasErrors():
			summary += "  " + errorStyle.Render(fmt.Sprintf("%d issue(s)", len(d.Diagnostics)))
		case len(d.Diagnostics) > 0:
			summary += "  " + warnStyle.Render(fmt.Sprintf("%d warning(s)", len(d.Diagnostics)))
		default:
			summary += "  " + okStyle.Render("no issues")
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(title),
		paneStyle.Render(pane),
		summary,
		statusStyle.Render(m.status),
		m.help.View(m.keys),
	)
}
