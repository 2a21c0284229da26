// Package progressbar implements a progress bar printed to a terminal
package progressbar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressBar is a manually managed progress bar. Increment records
// progress and Display redraws the bar on the current terminal line.
type ProgressBar struct {
	out      io.Writer
	label    string
	width    int
	max      int
	current  int
	every    int // Redraw the bar every this many increments
	start    time.Time
	finished bool
}

// New returns a new ProgressBar labelled by label that is width
// characters wide and reaches 100% after max calls to Increment. The
// bar is redrawn automatically every max/100 increments.
func New(out io.Writer, label string, width, max int) *ProgressBar {
	if max < 1 {
		max = 1
	}
	every := max / 100
	if every < 1 {
		every = 1
	}
	return &ProgressBar{
		out:   out,
		label: label,
		width: width,
		max:   max,
		every: every,
		start: time.Now(),
	}
}

// Increment increments the internal progress counter, redrawing the
// bar when enough progress has been made since the last redraw
func (p *ProgressBar) Increment() {
	if p.current >= p.max {
		return
	}
	p.current++
	if p.current%p.every == 0 || p.current == p.max {
		p.Display()
	}
}

// Fraction returns the fraction of progress made
func (p *ProgressBar) Fraction() float64 {
	return float64(p.current) / float64(p.max)
}

// String returns the current bar
func (p *ProgressBar) String() string {
	filled := int(p.Fraction() * float64(p.width))

	var bar strings.Builder
	if p.label != "" {
		bar.WriteString(p.label + " ")
	}
	bar.WriteString("|")
	bar.WriteString(strings.Repeat("█", filled))
	bar.WriteString(strings.Repeat(" ", p.width-filled))
	fmt.Fprintf(&bar, "| [%.2f%% | elapsed: %v]", p.Fraction()*100,
		time.Since(p.start).Truncate(time.Second))
	return bar.String()
}

// Display redraws the bar over the current terminal line
func (p *ProgressBar) Display() {
	fmt.Fprintf(p.out, "\r\033[K%v", p.String())
}

// Close draws the bar a final time and moves to the next line
func (p *ProgressBar) Close() {
	if p.finished {
		return
	}
	p.finished = true
	p.Display()
	fmt.Fprintln(p.out)
}
