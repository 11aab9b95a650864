package explorer

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap"
	"github.com/joshuapare/heapkit/pkg/types"
	"github.com/joshuapare/heapkit/profile"
)

func testReport() *profile.Report {
	return &profile.Report{
		Layout: "DM",
		Mode:   heap.ModeSnapshot,
		Regions: []profile.RegionReport{
			{
				Region:    heap.HeapRegion{Name: "HEAP_MAIN", Start: 0x4000, End: 0x4FFF, Size: 4096, Available: true},
				State:     profile.StateAggregated,
				Free:      &heap.FreeSummary{Total: 512},
				Allocated: 384,
			},
			{
				Region: heap.HeapRegion{Name: "HEAP_SLOW", Start: 0x6000, End: 0x63FF, Size: 1024, Available: true},
				State:  profile.StateFailed,
				Error:  "free list cycle",
			},
		},
		Usage: []profile.UsageRecord{
			{
				Owner: 3, Label: "audio", HeapBytes: 384,
				Blocks: []profile.BlockRef{
					{Address: 0x4200, Length: 256, Region: "HEAP_MAIN", Kind: heap.KindData},
					{Address: 0x4300, Length: 128, Region: "HEAP_MAIN", Kind: heap.KindData},
				},
			},
			{Owner: profile.NoTask, Label: "No task"},
		},
		Unknown:     &profile.UsageRecord{Owner: profile.UnknownOwner, Label: "Unknown (not in task list)"},
		Diagnostics: types.NewDiagnosticReport(),
	}
}

func send(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		require.True(t, ok)
	}
	return m
}

func keyRune(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

func TestNew(t *testing.T) {
	m := New(testReport())
	assert.Equal(t, OwnersPane, m.Focused())
	require.Len(t, m.records, 3, "usage plus the unknown bucket")

	view := m.View()
	assert.Contains(t, view, "audio")
	assert.Contains(t, view, "No task")
	assert.Contains(t, view, "DM heaps")
	assert.Contains(t, view, "total 4.0 KiB")
}

func TestEnterShowsOwnerBlocks(t *testing.T) {
	m := send(t, New(testReport()), tea.WindowSizeMsg{Width: 120, Height: 40}, tea.KeyMsg{Type: tea.KeyEnter})

	assert.Equal(t, BlocksPane, m.Focused())
	assert.Equal(t, "2 block(s) owned by audio", m.Status())
	assert.Contains(t, m.View(), "0x00004200")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, OwnersPane, m.Focused())
}

func TestCopyAddress(t *testing.T) {
	var copied string
	m := New(testReport()).WithClipboard(func(s string) error {
		copied = s
		return nil
	})

	m = send(t, m, keyRune('c'))
	assert.Empty(t, copied, "nothing to copy from the owners pane")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyDown}, keyRune('c'))
	assert.Equal(t, "0x00004300", copied)
	assert.Equal(t, "Copied 0x00004300", m.Status())

	m = m.WithClipboard(func(string) error { return errors.New("no display") })
	m = send(t, m, keyRune('c'))
	assert.Equal(t, "Copy failed: no display", m.Status())
}

func TestRegionsPane(t *testing.T) {
	m := send(t, New(testReport()), tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, RegionsPane, m.Focused())
	assert.Contains(t, m.View(), "REGION_FAILED")

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "HEAP_SLOW: free list cycle", m.Status())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, OwnersPane, m.Focused())
}

func TestQuit(t *testing.T) {
	_, cmd := New(testReport()).Update(keyRune('q'))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
