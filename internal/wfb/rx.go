package wfb

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// WithLogger sets the logger for the receiver
func WithLogger(logger *slog.Logger) func(r *Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(
			slog.String("feed", r.handler.Name()),
			slog.String("link", r.link),
		)
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(r *Receiver) {
	return func(r *Receiver) {
		r.parseErrorsThreshold = threshold
	}
}

// Receiver runs the stats feed process for one monitored link and emits
// parsed events until its context is cancelled or the process exits.
type Receiver struct {
	link    string
	handler Handler

	isRunning atomic.Bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// NewReceiver creates a new Receiver instance with a discard logger
func NewReceiver(link string, h Handler, options ...func(r *Receiver)) *Receiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Receiver{
		link:                 link,
		handler:              h,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Begin starts the receiver process and streams parsed stats events to the
// stats channel. The returned channel closes once the feed has fully stopped
// and carries the terminal error, if any.
func (r *Receiver) Begin(ctx context.Context, stats chan<- Stat) (<-chan error, error) {
	if r.isRunning.Load() {
		return nil, fmt.Errorf("receiver is already running")
	}

	r.isRunning.Store(true)

	ctx, r.cancel = context.WithCancel(ctx)
	cmd := r.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.isRunning.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.isRunning.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		r.isRunning.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error starting receiver: %w", err)
	}

	feedStopped := make(chan error)

	r.wg.Add(1)
	go func() {
		defer close(feedStopped)

		r.logger.Info("starting stats collection...")

		done := make(chan error, 3) // expects three results from three goroutines

		go r.handleStdout(stdout, stats, done)
		go r.handleStderr(stderr, done)
		go r.handleCmdWait(cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				r.cancel() // cancel context on error
				r.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		close(done)

		r.logger.Info("stats collection stopped")

		r.isRunning.Store(false)
		r.wg.Done()

		if len(errs) > 0 {
			feedStopped <- errors.Join(errs...)
		}
	}()

	return feedStopped, nil
}

func (r *Receiver) Stop() {
	if !r.isRunning.Load() {
		return // already stopped
	}

	r.cancel()
	r.wg.Wait()
	r.isRunning.Store(false)
}

// IsRunning returns true if the receiver process is running
func (r *Receiver) IsRunning() bool {
	return r.isRunning.Load()
}

// handleStdout reads the stats stream, parses lines and sends events to the stats channel.
func (r *Receiver) handleStdout(stdout io.Reader, stats chan<- Stat, done chan<- error) {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		if err := r.handler.Parse(line, stats); err != nil {
			parseErrors++
			r.logger.Warn(fmt.Sprintf("error parsing stats: %s", err.Error()), slog.String("line", line))

			if parseErrors >= r.parseErrorsThreshold {
				done <- ErrTooManyParseErrors
				return
			}

			continue
		}

		parseErrors = 0 // reset counter
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleStderr reads from stderr and logs errors.
func (r *Receiver) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		r.logger.Warn(fmt.Sprintf("%s >> %s", r.handler.Name(), line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the receiver process to exit and sends the error to the error channel
func (r *Receiver) handleCmdWait(cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		done <- fmt.Errorf("receiver exited with error: %w", err)
		return
	}

	done <- nil
}
