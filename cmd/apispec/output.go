// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/apispec/services/apispec"
	"github.com/AleutianAI/apispec/services/apispec/snapshot"
)

// styles are bound to one writer so colour is only emitted to terminals.
type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	good  lipgloss.Style
	warn  lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		label: r.NewStyle().Width(13),
		value: r.NewStyle().Bold(true),
		good:  r.NewStyle().Foreground(lipgloss.Color("10")),
		warn:  r.NewStyle().Foreground(lipgloss.Color("11")),
		bad:   r.NewStyle().Foreground(lipgloss.Color("9")),
		dim:   r.NewStyle().Faint(true),
	}
}

func (s styles) row(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %s%s\n", s.label.Render(label+":"), s.value.Render(value))
}

// renderSummary prints the run report, listing methods sorted by RPC name.
func renderSummary(w io.Writer, report *apispec.Report) {
	s := newStyles(w)

	fmt.Fprintln(w, s.title.Render("API document generated"))
	s.row(w, "Root", report.Root)
	if report.OutputPath != "" {
		s.row(w, "Output", report.OutputPath)
	}
	s.row(w, "Version", report.Version)
	s.row(w, "Run ID", report.RunID)
	s.row(w, "Files", fmt.Sprintf("%d scanned, %d failed", report.FilesScanned, len(report.FilesFailed)))
	s.row(w, "Endpoints", fmt.Sprint(report.Endpoints))
	s.row(w, "Data types", fmt.Sprint(report.DataTypes))
	s.row(w, "Duplicates", fmt.Sprint(len(report.Duplicates)))
	s.row(w, "Duration", report.Duration.Round(time.Millisecond).String())

	if len(report.Methods) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Methods (%d)", len(report.Methods))))
		nameWidth, catWidth := 0, 0
		for _, m := range report.Methods {
			nameWidth = max(nameWidth, len(m.RPCName))
			catWidth = max(catWidth, len(m.Category))
		}
		for _, m := range report.Methods {
			fmt.Fprintf(w, "  %s  %s  %s\n",
				s.good.Render(pad(m.RPCName, nameWidth)),
				pad(m.Category, catWidth),
				s.dim.Render(m.Source),
			)
		}
	}

	if len(report.FilesFailed) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.bad.Render("Failed files"))
		for _, f := range report.FilesFailed {
			fmt.Fprintf(w, "  %s: %s\n", f.File, f.Error)
		}
	}

	if len(report.Duplicates) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, s.warn.Render("Duplicate definitions (last one wins)"))
		for _, d := range report.Duplicates {
			fmt.Fprintf(w, "  %s %s: %s replaced %s\n", d.Kind, d.Name, loc(d.File, d.Line), loc(d.PreviousFile, d.PreviousLine))
		}
	}
}

func renderSnapshotList(w io.Writer, metas []*snapshot.Metadata) {
	s := newStyles(w)
	if len(metas) == 0 {
		fmt.Fprintln(w, s.dim.Render("No snapshots."))
		return
	}
	fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Snapshots (%d)", len(metas))))
	for _, m := range metas {
		created := time.UnixMilli(m.CreatedAtMilli).UTC().Format(time.RFC3339)
		label := ""
		if m.Label != "" {
			label = " " + s.warn.Render("["+m.Label+"]")
		}
		fmt.Fprintf(w, "  %s  %s  v%s  %d endpoints  %d schemas%s\n",
			s.good.Render(m.SnapshotID), s.dim.Render(created), m.Version, m.Endpoints, m.Schemas, label)
	}
}

func renderDiff(w io.Writer, d *snapshot.Diff) {
	s := newStyles(w)
	fmt.Fprintln(w, s.title.Render(fmt.Sprintf("Diff %s (v%s) -> %s (v%s)",
		d.BaseSnapshotID, d.BaseVersion, d.TargetSnapshotID, d.TargetVersion)))
	if d.Empty() {
		fmt.Fprintln(w, s.dim.Render("  No API changes."))
		return
	}

	list := func(title string, style lipgloss.Style, prefix string, names []string) {
		if len(names) == 0 {
			return
		}
		fmt.Fprintf(w, "  %s\n", title)
		for _, n := range names {
			fmt.Fprintf(w, "    %s\n", style.Render(prefix+" "+n))
		}
	}
	list("Endpoints added", s.good, "+", d.EndpointsAdded)
	list("Endpoints removed", s.bad, "-", d.EndpointsRemoved)
	if len(d.EndpointsModified) > 0 {
		fmt.Fprintln(w, "  Endpoints modified")
		for _, m := range d.EndpointsModified {
			fmt.Fprintf(w, "    %s %s\n", s.warn.Render("~ "+m.RPCName), s.dim.Render("("+strings.Join(m.Changes, ", ")+")"))
		}
	}
	list("Schemas added", s.good, "+", d.SchemasAdded)
	list("Schemas removed", s.bad, "-", d.SchemasRemoved)
	list("Schemas modified", s.warn, "~", d.SchemasModified)

	verdict := s.good.Render("compatible")
	if d.Summary.Breaking {
		verdict = s.bad.Render("breaking")
	}
	fmt.Fprintf(w, "  %d changes, %.0f%% of endpoints, %s\n", d.Summary.TotalChanges, d.Summary.ChangeRatio*100, verdict)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func loc(file string, line int) string {
	if line <= 0 {
		return file
	}
	return fmt.Sprintf("%s:%d", file, line)
}
