// Package engine abstracts the AI engine a phase run drives: start a
// turn, stream its output, stop it early (spec.md §4.6). The concrete
// adapter spawns a configured CLI binary through the Sandbox; engines
// are otherwise opaque to the orchestrator.
package engine

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/sandbox"
)

// Chunk is one piece of streamed engine output.
type Chunk struct {
	Text string
	Err  error // non-nil on the final chunk if the stream ended in error
}

// Engine is the capability the orchestrator drives for every phase:
// start a turn with a prompt, stream its output, and stop it if the
// coder loop is paused or cancelled.
type Engine interface {
	// Name identifies the engine for logging and run records.
	Name() string
	// Start begins a turn and returns a channel of output chunks. The
	// channel is closed when the turn ends, whether by completion,
	// cancellation, or error (carried in the final Chunk.Err).
	Start(ctx context.Context, prompt string) (<-chan Chunk, error)
	// Stop requests early termination of the most recent Start call.
	Stop() error
}

// Runner is the subset of sandbox.Runner a CLI-backed Engine needs.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*sandbox.Result, error)
}

// CLIEngine drives an external CLI binary (e.g. a configured AI coding
// assistant) through a Sandbox Runner, treating its full stdout as one
// chunk once the process exits (spec.md's engines are headless,
// single-shot processes — true incremental streaming would require a
// Sandbox primitive this spec does not define).
type CLIEngine struct {
	name    string
	binary  string
	args    []string
	runner  Runner
	log     *slog.Logger
	cancel  context.CancelFunc
}

// NewCLIEngine creates a CLIEngine named name that invokes binary with
// args prepended to the turn's prompt argument.
func NewCLIEngine(name, binary string, args []string, runner Runner, log *slog.Logger) *CLIEngine {
	if log == nil {
		log = slog.Default()
	}
	return &CLIEngine{name: name, binary: binary, args: args, runner: runner, log: log}
}

// Name implements Engine.
func (e *CLIEngine) Name() string { return e.name }

// Start implements Engine by running the configured binary with prompt
// appended to args, delivering stdout as a single chunk on completion.
func (e *CLIEngine) Start(ctx context.Context, prompt string) (<-chan Chunk, error) {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	ch := make(chan Chunk, 1)
	go func() {
		defer close(ch)
		defer cancel()

		args := append(append([]string{}, e.args...), prompt)
		res, err := e.runner.Run(runCtx, e.binary, args...)
		if err != nil {
			ch <- Chunk{Err: err}
			return
		}
		if res.ExitCode != 0 {
			ch <- Chunk{Text: res.Stdout, Err: errs.Newf(errs.CodeEngineFailure, "engine %s exited %d: %s", e.name, res.ExitCode, res.Stderr)}
			return
		}
		ch <- Chunk{Text: res.Stdout}
	}()
	return ch, nil
}

// Stop cancels the context driving the in-flight Start call, if any.
func (e *CLIEngine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

// NoEngine is a stub Engine for projects with no configured engine
// (e.g. dry runs, or a ControlState waiting on manual task entry).
type NoEngine struct{}

// Name implements Engine.
func (NoEngine) Name() string { return "none" }

// Start implements Engine by returning an immediately-closed, empty
// stream — there is nothing to run.
func (NoEngine) Start(ctx context.Context, prompt string) (<-chan Chunk, error) {
	ch := make(chan Chunk)
	close(ch)
	return ch, nil
}

// Stop implements Engine as a no-op.
func (NoEngine) Stop() error { return nil }

// Collect drains a Chunk channel into a single string, returning the
// first error encountered, if any.
func Collect(ch <-chan Chunk) (string, error) {
	var out []byte
	var firstErr error
	for c := range ch {
		out = append(out, c.Text...)
		if c.Err != nil && firstErr == nil {
			firstErr = c.Err
		}
	}
	return string(out), firstErr
}
