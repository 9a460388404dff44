package status

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

type palette struct {
	title, label, good, bad, dim lipgloss.Style
}

func newPalette(styled bool) palette {
	if !styled {
		plain := lipgloss.NewStyle()
		return palette{title: plain, label: plain, good: plain, bad: plain, dim: plain}
	}
	return palette{
		title: lipgloss.NewStyle().Bold(true),
		label: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		good:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		bad:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		dim:   lipgloss.NewStyle().Faint(true),
	}
}

// WriteText writes a human-readable report. Colors are used only when
// styled is true.
func WriteText(w io.Writer, rep *Report, styled bool) error {
	p := newPalette(styled)
	mark := func(ok bool) string {
		if ok {
			return p.good.Render("ok")
		}
		return p.bad.Render("!!")
	}
	var b strings.Builder
	line := func(label string, ok bool, format string, args ...any) {
		fmt.Fprintf(&b, "%s %s %s\n", p.label.Render(fmt.Sprintf("%-9s", label)), mark(ok), fmt.Sprintf(format, args...))
	}
	detail := func(format string, args ...any) {
		b.WriteString("             ")
		b.WriteString(p.dim.Render(fmt.Sprintf(format, args...)))
		b.WriteString("\n")
	}

	b.WriteString(p.title.Render(fmt.Sprintf("memhook status (%s, %s scope)", rep.Host, rep.Scope)))
	b.WriteString("\n\n")

	if rep.TargetError != "" {
		line("Target", false, "%s", rep.TargetError)
	} else {
		line("Target", true, "%s", rep.TargetDir)

		m := rep.Manifest
		switch {
		case m.Error != "":
			line("Manifest", false, "%s", m.Error)
		case !m.Present:
			line("Manifest", false, "%s not found", m.Path)
		default:
			bound := 0
			for _, ev := range m.Events {
				if ev.Owned > 0 {
					bound++
				}
			}
			line("Manifest", len(m.Missing) == 0, "%s (%d/%d events)", m.Path, bound, bound+len(m.Missing))
			for _, ev := range m.Missing {
				detail("missing %s", ev)
			}
		}

		present := 0
		for _, s := range rep.Scripts {
			if s.Present {
				present++
			}
		}
		line("Scripts", present == len(rep.Scripts), "%d/%d present", present, len(rep.Scripts))
		for _, s := range rep.Scripts {
			switch {
			case !s.Present:
				detail("missing %s", s.Path)
			case !s.Executable:
				detail("not executable %s", s.Path)
			}
		}
	}

	if rep.Worker.Healthy {
		line("Worker", true, "%s healthy", rep.Worker.URL)
	} else {
		line("Worker", false, "%s unreachable", rep.Worker.URL)
		if rep.Worker.Error != "" {
			detail("%s", rep.Worker.Error)
		}
	}

	reg := rep.Registry
	switch {
	case reg.Error != "":
		line("Registry", false, "%s", reg.Error)
	case !reg.Registered:
		line("Registry", rep.Scope != "project", "%s not registered (%d projects)", reg.Project, reg.Entries)
	case !reg.Matches:
		line("Registry", false, "%s registered for %s", reg.Project, reg.WorkspacePath)
	default:
		line("Registry", true, "%s -> %s (since %s)", reg.Project, reg.WorkspacePath, reg.InstalledAt)
	}

	db := rep.Database
	switch {
	case db.Error != "":
		line("Database", false, "%s: %s", db.Path, db.Error)
	case !db.Present:
		line("Database", false, "%s not found", db.Path)
	default:
		line("Database", true, "%s (%s, %d tables)", db.Path, humanize.IBytes(uint64(max(db.SizeBytes, 0))), len(db.Tables))
		for _, t := range db.Tables {
			detail("%-24s %d", t.Name, t.Rows)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
