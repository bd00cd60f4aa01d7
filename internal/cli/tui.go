package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	errs "github.com/matzehuels/stackbom/pkg/errors"
	"github.com/matzehuels/stackbom/pkg/extract"
	"github.com/matzehuels/stackbom/pkg/extract/builtin"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
	headerStyle  = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// ManifestPickerModel - Interactive manifest selection
// =============================================================================

// manifestEntry is one row of the picker.
type manifestEntry struct {
	Path      string // absolute
	Rel       string // relative to the project root
	Type      string // extractor type
	Ecosystem string
}

// ManifestPickerModel is the bubbletea model for choosing manifests. Every
// manifest starts selected.
type ManifestPickerModel struct {
	Entries   []manifestEntry
	Chosen    []bool
	Cursor    int
	Offset    int
	Height    int
	Confirmed bool
}

// NewManifestPickerModel creates a picker over the discovered paths.
func NewManifestPickerModel(root string, paths []string, reg *extract.Registry) ManifestPickerModel {
	m := ManifestPickerModel{Height: 15}
	for _, p := range paths {
		e := manifestEntry{Path: p, Rel: relPath(root, p)}
		if ex, err := reg.Detect(p); err == nil {
			e.Type = ex.Type()
			e.Ecosystem = string(ex.Ecosystem())
		}
		m.Entries = append(m.Entries, e)
		m.Chosen = append(m.Chosen, true)
	}
	return m
}

func (m ManifestPickerModel) Init() tea.Cmd {
	return nil
}

func (m ManifestPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case " ", "x":
			if len(m.Chosen) > 0 {
				m.Chosen[m.Cursor] = !m.Chosen[m.Cursor]
			}
		case "a":
			all := m.count() < len(m.Chosen)
			for i := range m.Chosen {
				m.Chosen[i] = all
			}
		case "enter":
			m.Confirmed = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m ManifestPickerModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Manifests"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  space toggle  a all/none  ⏎ confirm  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Entries))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		check := "[ ]"
		if m.Chosen[i] {
			check = "[x]"
		}
		rows = append(rows, []string{cursor + check, e.Rel, e.Type, e.Ecosystem})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Manifest", "Type", "Ecosystem").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			idx := m.Offset + row
			if idx >= len(m.Entries) {
				return lipgloss.NewStyle()
			}
			base := lipgloss.NewStyle()
			if col >= 2 {
				base = base.Foreground(colorGray)
			}
			switch {
			case idx == m.Cursor && m.Chosen[idx]:
				return base.Foreground(colorGreen).Bold(true)
			case idx == m.Cursor:
				return base.Foreground(colorDim).Bold(true)
			case m.Chosen[idx]:
				return base
			}
			return base.Foreground(colorDim)
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d of %d selected", m.count(), len(m.Entries))))

	return b.String()
}

func (m ManifestPickerModel) count() int {
	n := 0
	for _, c := range m.Chosen {
		if c {
			n++
		}
	}
	return n
}

// Selected returns the chosen paths in their original order, or nil when
// the picker was dismissed.
func (m ManifestPickerModel) Selected() []string {
	if !m.Confirmed {
		return nil
	}
	var out []string
	for i, e := range m.Entries {
		if m.Chosen[i] {
			out = append(out, e.Path)
		}
	}
	return out
}

// pickManifests lets the user choose among paths. Dismissing the picker
// returns a cancellation error.
func pickManifests(root string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	model := NewManifestPickerModel(root, paths, builtin.Registry())
	final, err := tea.NewProgram(model, tea.WithOutput(uiOut)).Run()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "manifest picker")
	}
	picked := final.(ManifestPickerModel)
	if !picked.Confirmed {
		return nil, errs.New(errs.ErrCodeInvalidInput, "selection cancelled")
	}
	return picked.Selected(), nil
}
