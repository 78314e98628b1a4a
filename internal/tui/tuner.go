// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"tuner/internal/transport"
	"tuner/internal/tuner"
)

// InTuneCents is the deviation shown as in tune.
const InTuneCents = 5.0

// gaugeSpan is the cents range covered by the needle, either side of zero.
const gaugeSpan = 50.0

type telemetryMsg tuner.Telemetry

type stoppedMsg struct {
	reason string
	err    error
}

// TunerModel renders the latest telemetry: the matched note, the offset
// from it and a needle gauge.
type TunerModel struct {
	source  string
	level   func() float64
	last    *tuner.Telemetry
	gauge   progress.Model
	meter   progress.Model
	stopped bool
	reason  string
	err     error
}

// NewTunerModel creates the display model. level may be nil.
func NewTunerModel(source string, level func() float64) TunerModel {
	return TunerModel{
		source: source,
		level:  level,
		gauge:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(41)),
		meter:  progress.New(progress.WithSolidFill("#25A065"), progress.WithoutPercentage(), progress.WithWidth(41)),
	}
}

func (m TunerModel) Init() tea.Cmd { return nil }

func (m TunerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := min(max(msg.Width-12, 10), 81)
		m.gauge.Width, m.meter.Width = w, w
	case telemetryMsg:
		t := tuner.Telemetry(msg)
		m.last = &t
	case stoppedMsg:
		m.stopped, m.reason, m.err = true, msg.reason, msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if key := msg.String(); key == "q" || key == "ctrl+c" || key == "esc" {
			return m, tea.Quit
		}
	}
	return m, nil
}

// needle maps cents onto [0, 1] with 0.5 meaning in tune.
func needle(cents float64) float64 {
	c := math.Max(-gaugeSpan, math.Min(gaugeSpan, cents))
	return (c + gaugeSpan) / (2 * gaugeSpan)
}

func (m TunerModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Tuner"))
	if m.source != "" {
		sb.WriteString(dimStyle.Render("  " + m.source))
	}
	sb.WriteString("\n\n")

	switch {
	case m.last == nil:
		sb.WriteString(dimStyle.Render("Waiting for audio..."))
		sb.WriteString("\n")
	case m.last.Match.Silent():
		sb.WriteString(noteStyle.Render("--"))
		sb.WriteString("\n")
		sb.WriteString(dimStyle.Render("No pitch detected"))
		sb.WriteString("\n")
	default:
		match := m.last.Match
		state := offTuneStyle.Render("flat")
		switch {
		case math.Abs(match.Cents) <= InTuneCents:
			state = inTuneStyle.Render("in tune")
		case match.Cents > 0:
			state = offTuneStyle.Render("sharp")
		}
		sb.WriteString(noteStyle.Render(match.Label))
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Reference %.2f Hz   Peak %.2f Hz   %+.2f Hz (%+.1f cents)  %s\n\n",
			match.Reference, match.Peak, match.Deviation, match.Cents, state)
		fmt.Fprintf(&sb, "  ♭ %s ♯\n", m.gauge.ViewAs(needle(match.Cents)))
	}

	if m.level != nil {
		fmt.Fprintf(&sb, "\nInput %s\n", m.meter.ViewAs(math.Min(1, m.level())))
	}
	if m.last != nil {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n#%d  %d Hz  resolution %.2f Hz\n",
			m.last.Sequence, m.last.SampleRate, m.last.Resolution)))
	}

	if m.stopped {
		line := "Session stopped: " + m.reason
		if m.err != nil {
			line += fmt.Sprintf(" (%v)", m.err)
		}
		sb.WriteString("\n" + offTuneStyle.Render(line) + "\n")
	} else {
		sb.WriteString("\n" + infoStyle.Render("q: Quit") + "\n")
	}
	return sb.String()
}

// Display runs the tuner view as a telemetry sink. Emit hands telemetry to
// a drop-oldest mailbox; a goroutine forwards it to the bubbletea program
// at the pace the program accepts it.
type Display struct {
	program *tea.Program
	mailbox *transport.Mailbox[tuner.Telemetry]
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewDisplay creates the display and starts forwarding telemetry.
func NewDisplay(source string, level func() float64, opts ...tea.ProgramOption) *Display {
	d := &Display{
		program: tea.NewProgram(NewTunerModel(source, level), opts...),
		mailbox: transport.NewMailbox[tuner.Telemetry](1),
		done:    make(chan struct{}),
	}
	d.wg.Add(1)
	go d.forward()
	return d
}

func (d *Display) forward() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case t := <-d.mailbox.C():
			d.program.Send(telemetryMsg(t))
		}
	}
}

// Emit implements tuner.Sink.
func (d *Display) Emit(t tuner.Telemetry) {
	d.mailbox.Put(t)
}

// Run shows the display until the user quits or Stopped is called.
func (d *Display) Run() error {
	_, err := d.program.Run()
	return err
}

// Stopped tells the display the session ended, which also ends Run.
func (d *Display) Stopped(reason string, err error) {
	d.program.Send(stoppedMsg{reason: reason, err: err})
}

// Close stops forwarding and tears the program down.
func (d *Display) Close() error {
	d.once.Do(func() {
		close(d.done)
		d.program.Kill()
		d.wg.Wait()
	})
	return nil
}

var _ transport.Publisher = (*Display)(nil)
