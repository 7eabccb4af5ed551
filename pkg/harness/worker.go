/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package harness

import (
	"context"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// WorkerIndex returns the index passed by the parent, ok is false in the parent itself
func WorkerIndex() (index int, ok bool, err error) {
	v, present := os.LookupEnv(IndexEnv)
	if !present {
		return 0, false, nil
	}
	index, err = strconv.Atoi(v)
	if err != nil {
		return 0, true, errors.Wrapf(err, "invalid %s [%s]", IndexEnv, v)
	}
	return index, true, nil
}

// RunWorker runs tasks[index] to completion and returns the process exit code
func RunWorker(ctx context.Context, tasks []Task, index int) int {
	if index < 0 || index >= len(tasks) {
		logger.Errorf("worker index %d out of range, %d tasks", index, len(tasks))
		return 2
	}
	task := tasks[index]
	w := WorkerInfo{Index: index, PID: os.Getpid()}
	logger.Infof("worker %d running task %d [%s]", w.PID, index, task.Name)

	if err := task.Run(ctx, w); err != nil {
		logger.Errorf("task %d [%s] failed: %s", index, task.Name, err)
		return 1
	}
	return 0
}
