// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for ifeedctl.
//
// A Printer renders with lipgloss when it writes to a terminal and falls
// back to plain, tab-separated lines otherwise, so scripted use of
// ifeedctl stays parseable.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")

	// ColorInlier and ColorOutlier tint labels in session views.
	ColorInlier  = lipgloss.Color("#20B9B4")
	ColorOutlier = lipgloss.Color("#E67E22")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Inlier  lipgloss.Style
	Outlier lipgloss.Style
	Key     lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Inlier:  lipgloss.NewStyle().Foreground(ColorInlier),
	Outlier: lipgloss.NewStyle().Foreground(ColorOutlier).Bold(true),
	Key:     lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Printer writes styled or plain output.
type Printer struct {
	w     io.Writer
	plain bool
}

// NewPrinter returns a Printer for w. Output is plain when w is not a
// terminal or when NO_COLOR is set.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, plain: !isTerminal(w) || os.Getenv("NO_COLOR") != ""}
}

// NewPlainPrinter returns a Printer that never styles.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w, plain: true}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Plain reports whether styling is off.
func (p *Printer) Plain() bool {
	return p.plain
}

func (p *Printer) render(style lipgloss.Style, s string) string {
	if p.plain {
		return s
	}
	return style.Render(s)
}

// Title prints a heading. Plain output omits it.
func (p *Printer) Title(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

func (p *Printer) Success(text string) { p.status("OK", IconSuccess, Styles.Success, text) }
func (p *Printer) Warning(text string) { p.status("WARN", IconWarning, Styles.Warning, text) }
func (p *Printer) Error(text string)   { p.status("ERROR", IconError, Styles.Error, text) }

func (p *Printer) status(tag string, icon Icon, style lipgloss.Style, text string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s: %s\n", tag, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", style.Render(string(icon)), style.Render(text))
}

// Info prints a neutral line.
func (p *Printer) Info(text string) {
	if p.plain {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
}

// KeyValues prints aligned "key value" rows; plain output is key<TAB>value.
func (p *Printer) KeyValues(rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		if p.plain {
			fmt.Fprintf(p.w, "%s\t%s\n", r[0], r[1])
			continue
		}
		key := fmt.Sprintf("%-*s", width, r[0])
		fmt.Fprintf(p.w, "  %s  %s\n", Styles.Key.Render(key), r[1])
	}
}

// Table prints a header and rows; plain output is tab-separated.
func (p *Printer) Table(header []string, rows [][]string) {
	if p.plain {
		fmt.Fprintln(p.w, strings.Join(header, "\t"))
		for _, r := range rows {
			fmt.Fprintln(p.w, strings.Join(r, "\t"))
		}
		return
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i := range widths {
			if i < len(r) {
				widths[i] = max(widths[i], len(r[i]))
			}
		}
	}
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Render(fmt.Sprintf("%-*s", widths[i], cell))
		}
		fmt.Fprintln(p.w, strings.Join(parts, "  "))
	}
	line(header, Styles.Bold)
	for _, r := range rows {
		line(r, lipgloss.NewStyle())
	}
}

// Box prints content under a title in a rounded border.
func (p *Printer) Box(title, content string) {
	if p.plain {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, Styles.Box.Width(60).Render(Styles.Title.Render(title)+"\n"+content))
}

// Label colors a label token.
func (p *Printer) Label(token string) string {
	switch token {
	case "outlier", "Lout", "Pout":
		return p.render(Styles.Outlier, token)
	case "inlier", "Lin", "Pin":
		return p.render(Styles.Inlier, token)
	default:
		return p.render(Styles.Muted, token)
	}
}

// ProgressBar renders current/total as a bar, or "current/total" in plain
// mode. A zero total renders as empty.
func (p *Printer) ProgressBar(current, total, width int) string {
	if p.plain {
		return fmt.Sprintf("%d/%d", current, total)
	}
	pct := 0.0
	if total > 0 {
		pct = min(float64(current)/float64(total), 1)
	}
	filled := int(pct * float64(width))
	bar := Styles.Success.Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, pct*100)
}
