/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package harness runs a table of load tasks, one operating system process per
// task. The parent only tells each worker its index; the worker looks its task
// up in its own copy of the table, runs it to completion and exits.
package harness

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"github.com/tedsuo/ifrit"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
)

var logger = logging.NewLogger("delphi/harness")

// IndexEnv carries the worker index to the child process
const IndexEnv = "DELPHI_WORKER_INDEX"

// WorkerInfo identifies the running worker to its task
type WorkerInfo struct {
	Index int
	PID   int
}

// Task is one entry of a task table
type Task struct {
	Name string
	Run  func(ctx context.Context, w WorkerInfo) error
}

// CommandFunc builds the command that starts the worker for index. The
// harness adds IndexEnv to its environment.
type CommandFunc func(index int) *exec.Cmd

// Exit is the observed end of a worker process
type Exit struct {
	Index  int
	Name   string
	PID    int
	Code   int
	Signal string
	Err    error
}

// Harness spawns the workers of a task table
type Harness struct {
	tasks   []Task
	command CommandFunc
	stdout  io.Writer
	stderr  io.Writer
}

// Option configures a Harness
type Option func(*Harness)

// WithOutput redirects the workers' standard streams, which default to the parent's
func WithOutput(stdout, stderr io.Writer) Option {
	return func(h *Harness) {
		h.stdout, h.stderr = stdout, stderr
	}
}

// New returns a harness for tasks. command starts one worker.
func New(tasks []Task, command CommandFunc, opts ...Option) *Harness {
	h := &Harness{tasks: tasks, command: command, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run spawns one worker per task and waits for all of them. Cancelling ctx
// sends SIGTERM to the workers still running. Worker failures are reported in
// the returned exits, not as an error.
func (h *Harness) Run(ctx context.Context) ([]Exit, error) {
	if len(h.tasks) == 0 {
		return nil, errors.New("task table is empty")
	}
	if h.command == nil {
		return nil, errors.New("worker command is required")
	}

	exits := make([]Exit, len(h.tasks))
	wg := conc.NewWaitGroup()
	for i, task := range h.tasks {
		r := &workerRunner{index: i, name: task.Name, cmd: h.command(i), stdout: h.stdout, stderr: h.stderr}
		process := ifrit.Background(r)
		i := i
		wg.Go(func() {
			select {
			case err := <-process.Wait():
				exits[i] = r.exit(err)
				return
			case <-ctx.Done():
				process.Signal(syscall.SIGTERM)
			}
			exits[i] = r.exit(<-process.Wait())
		})
	}
	wg.Wait()
	return exits, nil
}

// workerRunner is an ifrit.Runner around one worker process
type workerRunner struct {
	index  int
	name   string
	cmd    *exec.Cmd
	stdout io.Writer
	stderr io.Writer
	pid    int
	code   int
	signal string
}

func (r *workerRunner) Run(signals <-chan os.Signal, ready chan<- struct{}) error {
	r.cmd.Env = append(append([]string{}, envOrInherited(r.cmd.Env)...), IndexEnv+"="+strconv.Itoa(r.index))
	if r.cmd.Stdout == nil {
		r.cmd.Stdout = r.stdout
	}
	if r.cmd.Stderr == nil {
		r.cmd.Stderr = r.stderr
	}
	r.code = -1

	if err := r.cmd.Start(); err != nil {
		return errors.Wrapf(err, "worker %d [%s] failed to start", r.index, r.name)
	}
	r.pid = r.cmd.Process.Pid
	logger.Infof("worker %d online", r.pid)
	close(ready)

	exited := make(chan error, 1)
	go func() { exited <- r.cmd.Wait() }()

	for {
		select {
		case sig := <-signals:
			logger.Debugf("forwarding %s to worker %d", sig, r.pid)
			r.cmd.Process.Signal(sig) // nolint: errcheck
		case err := <-exited:
			r.observe()
			logger.Infof("worker %d exit {code: %d, signal: %s}", r.pid, r.code, r.signal)
			if err != nil {
				return errors.Wrapf(err, "worker %d [%s]", r.index, r.name)
			}
			return nil
		}
	}
}

func (r *workerRunner) observe() {
	state := r.cmd.ProcessState
	if state == nil {
		return
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		r.signal = ws.Signal().String()
		return
	}
	r.code = state.ExitCode()
}

func (r *workerRunner) exit(err error) Exit {
	return Exit{Index: r.index, Name: r.name, PID: r.pid, Code: r.code, Signal: r.signal, Err: err}
}

func envOrInherited(env []string) []string {
	if env == nil {
		return os.Environ()
	}
	return env
}
