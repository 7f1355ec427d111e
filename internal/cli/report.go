package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/scenario"
)

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E53935")).Bold(true)
	skipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).PaddingLeft(6)
)

// outputTail is how many lines of a failing stage's output are shown.
const outputTail = 15

// renderReports prints one block per scenario and a summary line.
func renderReports(w io.Writer, reports []*scenario.Report) {
	passed := 0
	for _, r := range reports {
		renderReport(w, r)
		if r.Passed() {
			passed++
		}
	}
	summary := fmt.Sprintf("%d/%d scenarios passed", passed, len(reports))
	if passed == len(reports) {
		fmt.Fprintln(w, passStyle.Render(summary))
	} else {
		fmt.Fprintln(w, failStyle.Render(summary))
	}
}

func renderReport(w io.Writer, r *scenario.Report) {
	status := passStyle.Render("PASS")
	if !r.Passed() {
		status = failStyle.Render("FAIL")
	}
	fmt.Fprintf(w, "%s %s %s\n", status, headerStyle.Render(r.Scenario), skipStyle.Render(round(r.Duration)))

	if r.Verification != nil {
		for _, st := range r.Verification.Stages {
			mark := passStyle.Render("  ok  ")
			if !st.Passed() {
				mark = failStyle.Render("  fail")
			}
			fmt.Fprintf(w, "%s %-10s %s %s\n", mark, st.Stage.Kind, st.Stage.Name, skipStyle.Render(round(st.Duration)))
		}
		if skipped := r.Verification.Planned - len(r.Verification.Stages); skipped > 0 {
			fmt.Fprintf(w, "%s %d stage(s) not run\n", skipStyle.Render("  skip"), skipped)
		}
	}

	if r.Err == nil {
		return
	}
	fmt.Fprintf(w, "      %s in %s: %s\n", failStyle.Render(string(errs.GetCode(r.Err))), r.Phase, r.Err)
	if r.Verification != nil {
		if f := r.Verification.Failed(); f != nil && f.Output != "" {
			fmt.Fprintln(w, detailStyle.Render(tail(f.Output, outputTail)))
		}
	}
	if len(r.Entries) > 0 && errs.Is(r.Err, errs.EStructure) {
		fmt.Fprintln(w, detailStyle.Render("found: "+strings.Join(r.Entries, ", ")))
	}
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func round(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
