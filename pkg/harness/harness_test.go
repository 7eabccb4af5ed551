/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package harness

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTasks is the task table every test worker process rebuilds for itself
var testTasks = []Task{
	{Name: "ok", Run: func(ctx context.Context, w WorkerInfo) error {
		fmt.Printf("task %d ran in %d\n", w.Index, w.PID)
		return nil
	}},
	{Name: "fail", Run: func(ctx context.Context, w WorkerInfo) error {
		return errors.New("chaincode exploded")
	}},
	{Name: "sleep", Run: func(ctx context.Context, w WorkerInfo) error {
		time.Sleep(time.Minute)
		return nil
	}},
}

func TestMain(m *testing.M) {
	index, ok, err := WorkerIndex()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if ok {
		os.Exit(RunWorker(context.Background(), testTasks, index))
	}
	os.Exit(m.Run())
}

func selfCommand(index int) *exec.Cmd {
	return exec.Command(os.Args[0], "-test.run=^$")
}

// syncBuffer is written to by several worker processes' copy goroutines
type syncBuffer struct {
	mutex sync.Mutex
	buf   bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buf.String()
}

func TestRunOneProcessPerTask(t *testing.T) {
	out := &syncBuffer{}
	h := New(testTasks[:2], selfCommand, WithOutput(out, out))

	exits, err := h.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, exits, 2)

	assert.Equal(t, 0, exits[0].Code)
	assert.NoError(t, exits[0].Err)
	assert.Equal(t, "ok", exits[0].Name)
	assert.NotZero(t, exits[0].PID)
	assert.NotEqual(t, os.Getpid(), exits[0].PID)

	assert.Equal(t, 1, exits[1].Code)
	assert.Error(t, exits[1].Err)
	assert.NotEqual(t, exits[0].PID, exits[1].PID, "each task gets its own process")

	assert.True(t, strings.Contains(out.String(), fmt.Sprintf("task 0 ran in %d", exits[0].PID)))
}

func TestRunCancelSignalsWorkers(t *testing.T) {
	h := New(testTasks, selfCommand, WithOutput(&syncBuffer{}, &syncBuffer{}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(2*time.Second, cancel)

	start := time.Now()
	exits, err := h.Run(ctx)
	require.NoError(t, err)
	require.Len(t, exits, 3)
	assert.Equal(t, 0, exits[0].Code)
	assert.Equal(t, 1, exits[1].Code)
	assert.Equal(t, "terminated", exits[2].Signal)
	assert.Error(t, exits[2].Err)
	assert.Less(t, int64(time.Since(start)), int64(30*time.Second))
}

func TestRunValidation(t *testing.T) {
	_, err := New(nil, selfCommand).Run(context.Background())
	assert.Error(t, err)
	_, err = New(testTasks, nil).Run(context.Background())
	assert.Error(t, err)
}

func TestRunStartFailure(t *testing.T) {
	h := New(testTasks[:1], func(int) *exec.Cmd { return exec.Command("/nonexistent/delphi") })
	exits, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Error(t, exits[0].Err)
	assert.Equal(t, -1, exits[0].Code)
}

func TestRunWorker(t *testing.T) {
	assert.Equal(t, 0, RunWorker(context.Background(), testTasks, 0))
	assert.Equal(t, 1, RunWorker(context.Background(), testTasks, 1))
	assert.Equal(t, 2, RunWorker(context.Background(), testTasks, 7))
}

func TestWorkerIndex(t *testing.T) {
	_, ok, err := WorkerIndex()
	require.NoError(t, err)
	assert.False(t, ok)

	os.Setenv(IndexEnv, "3")
	defer os.Unsetenv(IndexEnv)
	index, ok, err := WorkerIndex()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, index)

	os.Setenv(IndexEnv, "three")
	_, _, err = WorkerIndex()
	assert.Error(t, err)
}
