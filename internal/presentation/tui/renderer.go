package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/tree"
	"github.com/muesli/termenv"
)

var statusColors = map[domain.Status]string{
	domain.StatusRunning: "#fbbf24",
	domain.StatusWaiting: "#60a5fa",
	domain.StatusSuccess: "#34d399",
	domain.StatusFailure: "#f87171",
}

// Renderer prints tick progress for `arbor run`.
type Renderer struct {
	w   io.Writer
	out *termenv.Output
	// Verbose also lists every node that is not uninitialized.
	Verbose bool
}

// NewRenderer creates a renderer writing to w. The color profile is detected
// from w unless overridden with termenv.WithProfile.
func NewRenderer(w io.Writer, opts ...termenv.OutputOption) *Renderer {
	return &Renderer{w: w, out: termenv.NewOutput(w, opts...)}
}

// Status returns the colored name of s.
func (r *Renderer) Status(s domain.Status) string {
	style := r.out.String(s.String())
	if c, ok := statusColors[s]; ok {
		style = style.Foreground(r.out.Color(c))
	}
	if s.IsTerminal() {
		style = style.Bold()
	}
	return style.String()
}

// Tick prints one line per frame: the root status followed by the nodes
// doing their own work this frame.
func (r *Renderer) Tick(frame uint64, status domain.Status, nodes []tree.NodeInfo) {
	var active []string
	for _, n := range nodes {
		if n.Active {
			active = append(active, n.ID)
		}
	}
	line := fmt.Sprintf("%s %s", r.out.String(fmt.Sprintf("[%4d]", frame)).Faint(), r.Status(status))
	if len(active) > 0 {
		line += "  " + strings.Join(active, ", ")
	}
	fmt.Fprintln(r.w, line)

	if !r.Verbose {
		return
	}
	for _, n := range nodes {
		if n.Status == domain.StatusUninitialized {
			continue
		}
		fmt.Fprintf(r.w, "       %-20s %-14s %s\n", n.ID, n.Kind, r.Status(n.Status))
	}
}

// Variables prints name=value pairs, one per line.
func (r *Renderer) Variables(vars []domain.VariableState) {
	for _, v := range vars {
		fmt.Fprintf(r.w, "       %s = %v\n", r.out.String(v.Name).Bold(), v.Value)
	}
}
