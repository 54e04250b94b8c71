package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/cwbudde/algo-granular/dsp/control"
	"github.com/cwbudde/algo-granular/dsp/granular"
	"github.com/cwbudde/algo-granular/stats/level"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7dcfff"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888")).Width(16)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// report renders engine statistics and the live parameter values.
func report(e *granular.Engine, out level.Level, elapsed time.Duration) string {
	st := e.Stats()
	cfg := e.Config()

	frames := out.Length
	rows := [][2]string{
		{"frames", fmt.Sprintf("%d (%.2fs)", frames, float64(frames)/cfg.SampleRate)},
		{"output", levelLine(out)},
		{"blocks", fmt.Sprint(st.Blocks)},
		{"grains", fmt.Sprintf("%d fetched, %d played", st.Fetched, st.Synthesized)},
		{"in flight", fmt.Sprintf("%d pending, %d active", st.PendingGrains, st.ActiveGrains)},
		{"envelopes", fmt.Sprintf("%d hits, %d misses", st.EnvelopeHits, st.EnvelopeMisses)},
		{"drops", dropLine(st)},
	}
	if elapsed > 0 && frames > 0 {
		realtime := float64(frames) / cfg.SampleRate / elapsed.Seconds()
		rows = append(rows, [2]string{"speed", fmt.Sprintf("%.1fx realtime", realtime)})
	}

	lines := []string{titleStyle.Render("engine")}
	for _, r := range rows {
		lines = append(lines, keyStyle.Render(r[0])+r[1])
	}
	lines = append(lines, "", titleStyle.Render("parameters"))
	for _, p := range e.Parameters() {
		lines = append(lines, keyStyle.Render(p.Name)+parameterLine(p))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func levelLine(l level.Level) string {
	s := fmt.Sprintf("peak %.1f dBFS, rms %.1f dBFS", l.PeakdB, l.RMSdB)
	if l.Clipped > 0 {
		return warnStyle.Render(fmt.Sprintf("%s, %d clipped", s, l.Clipped))
	}
	return s
}

func dropLine(st granular.Stats) string {
	s := fmt.Sprintf("table %d, pool %d, contended %d", st.TableDrops, st.PoolDrops, st.Contended)
	if st.ContractFaults > 0 {
		s += warnStyle.Render(fmt.Sprintf(", faults %d", st.ContractFaults))
	}
	if st.TableDrops+st.PoolDrops > 0 {
		return warnStyle.Render(s)
	}
	return s
}

func parameterLine(p control.ParameterInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%.3f (offset %.3f, range %g..%g)", p.Value, p.Offset, p.Min, p.Max)
	for _, m := range p.Modulators {
		fmt.Fprintf(&b, " [%d]%s*%g", m.Slot, m.Name, m.Amount)
	}
	return b.String()
}
