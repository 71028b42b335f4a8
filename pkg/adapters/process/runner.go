package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/nodes"
	"github.com/aretw0/arbor/pkg/tree"
)

// DefaultTimeout bounds processes whose config sets no timeout.
const DefaultTimeout = time.Minute

// SaveToArg names the call argument holding the variable that receives stdout.
const SaveToArg = "save_to"

// Runner exposes allow-listed local processes as call_action functions.
//
// A call starts its process in the background and reports Running until the
// process exits: exit code zero is Success, anything else Failure. Arguments
// reach the process as ARBOR_ARG_<NAME> environment variables, never as flags.
// With a "save_to" argument, trimmed stdout is written into that variable,
// decoded as JSON unless the variable holds a string.
type Runner struct {
	mu       sync.Mutex
	registry map[string]ProcessConfig
	jobs     map[*tree.Base]*job

	baseDir string
	timeout time.Duration
	logger  *slog.Logger
}

type job struct {
	done   chan struct{}
	cancel context.CancelFunc
	stdout bytes.Buffer
	stderr bytes.Buffer
	err    error
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(actions map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, a := range actions {
			a.Name = name
			r.registry[name] = a
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) { r.baseDir = dir }
}

// WithTimeout sets the default process timeout.
func WithTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) { r.timeout = d }
}

// WithLogger sets the logger for process failures.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry: make(map[string]ProcessConfig),
		jobs:     make(map[*tree.Base]*job),
		timeout:  DefaultTimeout,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted command to the allow-list.
func (r *Runner) Register(name, command string, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registry[name] = ProcessConfig{Name: name, Command: command, Args: args}
}

// Names returns the registered action names, sorted.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Action returns the ActionFunc running the registered process name.
func (r *Runner) Action(name string) nodes.ActionFunc {
	return func(ctx context.Context, call nodes.ActionCall) (domain.Status, error) {
		return r.call(name, call)
	}
}

// Running returns the number of processes in flight.
func (r *Runner) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Close kills every process in flight.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for node, j := range r.jobs {
		j.cancel()
		delete(r.jobs, node)
	}
}

func (r *Runner) call(name string, call nodes.ActionCall) (domain.Status, error) {
	r.mu.Lock()
	cfg, ok := r.registry[name]
	if !ok {
		r.mu.Unlock()
		return domain.StatusFailure, fmt.Errorf("process action not registered: %s", name)
	}
	j, inFlight := r.jobs[call.Node]
	if inFlight && call.First {
		// The node restarted: the previous run is stale.
		j.cancel()
		inFlight = false
	}
	if !inFlight {
		j = r.start(cfg, call.Args)
		r.jobs[call.Node] = j
		r.mu.Unlock()
		return domain.StatusRunning, nil
	}
	r.mu.Unlock()

	select {
	case <-j.done:
	default:
		return domain.StatusRunning, nil
	}

	r.mu.Lock()
	delete(r.jobs, call.Node)
	r.mu.Unlock()

	if j.err != nil {
		r.logger.Warn("process failed", "action", name, "node", call.Node.ID(), "err", j.err, "stderr", strings.TrimSpace(j.stderr.String()))
		return domain.StatusFailure, fmt.Errorf("execute %s: %w", name, j.err)
	}
	if target, ok := call.Args[SaveToArg].(string); ok && target != "" {
		if err := save(call.Node, target, strings.TrimSpace(j.stdout.String())); err != nil {
			return domain.StatusFailure, err
		}
	}
	return domain.StatusSuccess, nil
}

func (r *Runner) start(cfg ProcessConfig, args map[string]any) *job {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	j := &job{done: make(chan struct{}), cancel: cancel}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = r.baseDir
	// Orphaned grandchildren must not hold the output pipes open past a kill.
	cmd.WaitDelay = 100 * time.Millisecond
	cmd.Env = append(cmd.Environ(), environment(cfg.Environment, args)...)
	cmd.Stdout = &j.stdout
	cmd.Stderr = &j.stderr

	go func() {
		defer close(j.done)
		defer cancel()
		j.err = cmd.Run()
	}()
	return j
}

// environment renders the static env and the call arguments as KEY=value
// pairs. Complex values are passed as JSON.
func environment(static map[string]string, args map[string]any) []string {
	env := make([]string, 0, len(static)+len(args))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		if k == SaveToArg {
			continue
		}
		var val string
		switch v := v.(type) {
		case nil:
		case string, bool, int, int64, uint64, float32, float64:
			val = fmt.Sprint(v)
		default:
			if data, err := json.Marshal(v); err == nil {
				val = string(data)
			} else {
				val = fmt.Sprint(v)
			}
		}
		env = append(env, "ARBOR_ARG_"+strings.ToUpper(k)+"="+val)
	}
	sort.Strings(env)
	return env
}

func save(node *tree.Base, name, output string) error {
	cell, ok := node.Blackboard().LookupName(name)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownVariable, name)
	}
	t := cell.Type()
	if t.Kind() == reflect.String {
		return cell.SetObjectValue(reflect.ValueOf(output).Convert(t).Interface())
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal([]byte(output), ptr.Interface()); err != nil {
		return fmt.Errorf("%w: decode output into %s: %v", domain.ErrTypeMismatch, name, err)
	}
	return cell.SetObjectValue(ptr.Elem().Interface())
}
