package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"diagramport/pkg/export"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorBlue   = lipgloss.Color("75")  // Light blue - links
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleHighlight for emphasized values.
	StyleHighlight = lipgloss.NewStyle().Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleSkipped = lipgloss.NewStyle().Foreground(colorGray)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconSkipped = "="
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(20)
	fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Job Outcome Output
// =============================================================================

// outcomeLine formats one finished job for display.
func outcomeLine(oc export.JobOutcome) string {
	switch oc.Status {
	case export.StatusSucceeded:
		return "  " + styleIconSuccess.Render(iconSuccess) + " " +
			StyleDim.Render(oc.Job.Describe()) + " " +
			StyleDim.Render(iconArrow) + " " + StyleValue.Render(oc.OutputPath)
	case export.StatusSkipped:
		return "  " + styleSkipped.Render(iconSkipped) + " " +
			StyleDim.Render(oc.Job.Describe()+" unchanged")
	default:
		return "  " + styleIconError.Render(iconError) + " " +
			StyleDim.Render(oc.Job.Describe()) + " " + StyleWarning.Render(oc.Reason)
	}
}

// printOutcome prints one finished job (plain output mode).
func printOutcome(oc export.JobOutcome) {
	fmt.Println(outcomeLine(oc))
}

// printBatchSummary prints the aggregate result of a batch run, including
// per-job failure reasons.
func printBatchSummary(result *export.BatchResult) {
	switch {
	case result.State == export.StateCancelled:
		printWarning("Cancelled after %d of %d exports", result.Succeeded+result.Failed+result.Skipped, result.Total)
	case result.Failed > 0:
		printWarning("Exported %d of %d diagrams (%d failed, %d unchanged)",
			result.Succeeded, result.Total, result.Failed, result.Skipped)
	case result.Total == 0:
		printInfo("No diagrams found")
	default:
		printSuccess("Exported %d diagrams (%d unchanged)", result.Succeeded, result.Skipped)
	}

	for _, f := range result.Failures {
		printDetail("%s %s: %s", iconError, f.Source, f.Reason)
	}
}

// printNextStep prints a suggested next command.
func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}
