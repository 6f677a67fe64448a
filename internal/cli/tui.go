package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"diagramport/pkg/export"
)

// =============================================================================
// BatchProgressModel - Live Export Progress
// =============================================================================

// progressFrames are the spinner glyphs for the live progress header.
var progressFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// recentLines is how many finished jobs stay visible under the header.
const recentLines = 6

// jobDoneMsg reports one finished job.
type jobDoneMsg struct {
	done    int
	total   int
	outcome export.JobOutcome
}

// batchDoneMsg reports batch completion (or a fatal pre-flight error).
type batchDoneMsg struct {
	result *export.BatchResult
	err    error
}

// tickMsg advances the spinner.
type tickMsg time.Time

// BatchProgressModel is the bubbletea model showing live export progress:
// a spinner, running counts, and the most recently finished jobs.
type BatchProgressModel struct {
	done   int
	total  int
	failed int
	recent []export.JobOutcome
	frame  int

	result *export.BatchResult
	err    error
}

// NewBatchProgressModel creates a progress model for a run whose job count
// is not yet known.
func NewBatchProgressModel() BatchProgressModel {
	return BatchProgressModel{}
}

func (m BatchProgressModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m BatchProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frame++
		return m, tick()
	case jobDoneMsg:
		m.done = msg.done
		m.total = msg.total
		if msg.outcome.Status == export.StatusFailed {
			m.failed++
		}
		m.recent = append(m.recent, msg.outcome)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
		return m, nil
	case batchDoneMsg:
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		// Ctrl-C is delivered through the parent context; everything else
		// is ignored while the batch runs.
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m BatchProgressModel) View() string {
	var b strings.Builder

	frame := progressFrames[m.frame%len(progressFrames)]
	header := fmt.Sprintf("Exporting diagrams… %d", m.done)
	if m.total > 0 {
		header = fmt.Sprintf("Exporting diagrams… %d/%d", m.done, m.total)
	}
	if m.failed > 0 {
		header += StyleWarning.Render(fmt.Sprintf("  (%d failed)", m.failed))
	}
	b.WriteString(styleIconSpinner.Render(frame) + " " + StyleDim.Render(header))
	b.WriteString("\n")

	for _, oc := range m.recent {
		b.WriteString(outcomeLine(oc))
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// Driving the Model
// =============================================================================

// exportWithProgress runs a batch while a bubbletea program displays live
// progress, and returns the batch result once both have finished.
func (c *CLI) exportWithProgress(ctx context.Context, runner *export.Runner, root string, eo export.Options) (*export.BatchResult, error) {
	p := tea.NewProgram(NewBatchProgressModel(), tea.WithContext(ctx), tea.WithoutSignalHandler())

	eo.OnJobDone = func(done, total int, oc export.JobOutcome) {
		p.Send(jobDoneMsg{done: done, total: total, outcome: oc})
	}

	resCh := make(chan batchDoneMsg, 1)
	go func() {
		result, err := runner.ExportBatch(ctx, root, eo)
		msg := batchDoneMsg{result: result, err: err}
		resCh <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		// The display failing must not kill the batch; fall through and
		// wait for the result anyway.
		c.Logger.Debug("progress display stopped", "err", err)
	}

	msg := <-resCh
	return msg.result, msg.err
}
