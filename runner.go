package arbor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/registry"
)

// Runner handles the frame loop of an Agent.
// This allows for easy testing and integration with different frontends (CLI, HTTP, game loops).
type Runner struct {
	// Input optionally carries event commands, one per line: the name of a
	// channel variable followed by its payload ("Spotted player 12").
	// "quit" or "exit" stops the loop.
	Input io.Reader
	// Output receives command errors. Nil discards them.
	Output io.Writer

	// MaxFrames stops the loop after that many ticks. Zero means no limit.
	MaxFrames int
	// Interval paces frames in wall-clock time. Zero ticks as fast as possible.
	Interval time.Duration
	// Loop restarts the tree when the root completes instead of stopping.
	Loop bool
	// Save persists the agent after every frame.
	Save bool

	// OnTick is called after every frame.
	OnTick func(a *Agent, status domain.Status)
}

// Run ticks a until its root completes, MaxFrames is reached, the input
// asks to quit or ctx is done. It returns the last root status.
func (r *Runner) Run(ctx context.Context, a *Agent) (domain.Status, error) {
	out := r.Output
	if out == nil {
		out = io.Discard
	}

	var commands <-chan string
	if r.Input != nil {
		commands = readLines(ctx, r.Input)
	}

	var pace <-chan time.Time
	if r.Interval > 0 {
		t := time.NewTicker(r.Interval)
		defer t.Stop()
		pace = t.C
	}

	status := a.Status()
	for frames := 0; r.MaxFrames == 0 || frames < r.MaxFrames; frames++ {
		if err := ctx.Err(); err != nil {
			return status, err
		}
		if quit := r.dispatch(a, commands, out); quit {
			return status, nil
		}

		status = a.Tick(ctx)
		if r.OnTick != nil {
			r.OnTick(a, status)
		}
		if r.Save {
			if err := a.Save(ctx); err != nil {
				return status, fmt.Errorf("save frame %d: %w", a.Frame(), err)
			}
		}

		if status.IsTerminal() {
			if !r.Loop {
				return status, nil
			}
			a.Restart()
		}

		if pace != nil {
			select {
			case <-ctx.Done():
				return status, ctx.Err()
			case <-pace:
			}
		}
	}
	return status, nil
}

// dispatch sends the commands received since the last frame.
func (r *Runner) dispatch(a *Agent, commands <-chan string, out io.Writer) (quit bool) {
	for {
		select {
		case line, ok := <-commands:
			if !ok {
				return false
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				return true
			}
			if err := send(a, fields[0], fields[1:]); err != nil {
				fmt.Fprintf(out, "send %s: %v\n", fields[0], err)
			}
		default:
			return false
		}
	}
}

func send(a *Agent, name string, raw []string) error {
	ch, ok := a.Channel(name)
	if !ok {
		return &UnknownVariableError{Name: name}
	}
	payload := ch.Payload()
	if len(raw) != len(payload) {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", domain.ErrTypeMismatch, name, len(payload), len(raw))
	}
	args := make([]any, len(raw))
	for i, s := range raw {
		v, err := registry.Coerce(payload[i], s)
		if err != nil {
			return err
		}
		args[i] = v
	}
	return ch.SendEventMessage(args...)
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
