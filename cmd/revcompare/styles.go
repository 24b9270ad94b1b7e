package main

import (
	"fmt"
	"io"
	"strings"

	"validation-viewer/core/models"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7A89"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ECC71"))
)

// progressPrinter renders lookup progress as a single updating line
type progressPrinter struct {
	out   io.Writer
	width int
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out, width: 24}
}

func (p *progressPrinter) PhaseChanged(job models.GenerationJob) {
	switch job.Phase {
	case models.PhaseMissing:
		fmt.Fprintln(p.out, warnStyle.Render("comparison "+job.Key+" not generated yet"))
	case models.PhaseRequested:
		fmt.Fprintln(p.out, mutedStyle.Render("generation requested"))
	case models.PhaseComplete:
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, successStyle.Render("generation complete"))
	case models.PhaseError:
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, errorStyle.Render("lookup failed: "+errString(job.Err)))
	}
}

func (p *progressPrinter) ProgressUpdated(job models.GenerationJob) {
	if job.Phase == models.PhaseComplete {
		return
	}
	fmt.Fprint(p.out, "\r"+p.render(job.Progress))
}

func (p *progressPrinter) render(prog models.Progress) string {
	filled := 0
	if prog.TotalPackages > 0 {
		filled = p.width * prog.CurrentPackage / prog.TotalPackages
		if filled > p.width {
			filled = p.width
		}
	}
	bar := labelStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", p.width-filled))
	return fmt.Sprintf("%s %d/%d %s", bar, prog.CurrentPackage, prog.TotalPackages, prog.PackageName)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
