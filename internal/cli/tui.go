package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/diagrender/pkg/cache"
)

// List styles
var (
	listDimStyle = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// CacheBrowserModel - Interactive cache entry browser
// =============================================================================

// CacheBrowserModel is the bubbletea model for browsing cached images.
// Entries can be deleted in place; enter selects one and quits.
type CacheBrowserModel struct {
	Entries  []cache.Entry
	Cursor   int
	Selected *cache.Entry
	Deleted  int
	Height   int
	Offset   int
	Err      error

	remove func(path string) error
}

// NewCacheBrowserModel creates a browser over entries.
func NewCacheBrowserModel(entries []cache.Entry) CacheBrowserModel {
	return CacheBrowserModel{
		Entries: entries,
		Height:  15,
		remove:  os.Remove,
	}
}

func (m CacheBrowserModel) Init() tea.Cmd {
	return nil
}

func (m CacheBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
		case "d", "delete":
			return m.deleteCurrent(), nil
		case "enter":
			if len(m.Entries) == 0 {
				return m, nil
			}
			e := m.Entries[m.Cursor]
			m.Selected = &e
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m CacheBrowserModel) deleteCurrent() CacheBrowserModel {
	if len(m.Entries) == 0 {
		return m
	}
	if err := m.remove(m.Entries[m.Cursor].Path); err != nil {
		m.Err = err
		return m
	}
	m.Err = nil
	m.Deleted++
	m.Entries = append(m.Entries[:m.Cursor:m.Cursor], m.Entries[m.Cursor+1:]...)
	if m.Cursor >= len(m.Entries) && m.Cursor > 0 {
		m.Cursor--
	}
	if m.Offset > m.Cursor {
		m.Offset = m.Cursor
	}
	return m
}

func (m CacheBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Cached Images"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  d delete  ⏎ select  q quit"))
	b.WriteString("\n\n")

	if len(m.Entries) == 0 {
		b.WriteString(listDimStyle.Render("  no cached images"))
		b.WriteString("\n")
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.Entries))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.Entries[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		part := "—"
		if e.Index > 0 {
			part = fmt.Sprintf("%d", e.Index)
		}
		rows = append(rows, []string{cursor, e.Path, part, e.Format, formatSize(e.Size), formatRelativeTime(e.ModTime)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Image", "Part", "Format", "Size", "Modified").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			isCurrent := m.Offset+row == m.Cursor

			base := lipgloss.NewStyle()
			if col >= 4 {
				base = base.Foreground(colorDim)
				if isCurrent {
					base = base.Foreground(colorGray)
				}
			}
			if isCurrent {
				if col < 4 {
					return base.Foreground(colorGreen).Bold(true)
				}
				return base.Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Entries))))
	if m.Err != nil {
		b.WriteString("  ")
		b.WriteString(styleFailed.Render(m.Err.Error()))
	}

	return b.String()
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	diff := time.Since(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
