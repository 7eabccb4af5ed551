/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package multi holds errors collected from operations that target several
// nodes at once, such as a proposal fanned out to every endorser of a channel.
package multi

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Errors is used to represent multiple errors
type Errors []error

// New Errors object with the given errors. Only non-nil errors are added.
// A single error is returned as is.
func New(errs ...error) error {
	var m Errors
	for _, err := range errs {
		if err != nil {
			m = append(m, err)
		}
	}
	return m.ToError()
}

// Append err to errs, creating an Errors value when errs is not one already
func Append(errs error, err error) error {
	m, ok := errs.(Errors)
	if !ok {
		return New(errs, err)
	}
	if err == nil {
		return errs
	}
	return append(m, err)
}

// ToError returns nil for no errors, the error itself for one error and the
// Errors value otherwise
func (errs Errors) ToError() error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errs
	}
}

func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return errs[0].Error()
	}
	msgs := []string{"Multiple errors occurred:"}
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, " - ")
}

// Collector gathers errors from concurrent callers. The zero value is ready to use.
type Collector struct {
	mtx  sync.Mutex
	errs Errors
}

// Add records err against target. Nil errors are ignored.
func (c *Collector) Add(target string, err error) {
	if err == nil {
		return
	}
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if target != "" {
		err = errors.WithMessagef(err, "target [%s]", target)
	}
	c.errs = append(c.errs, err)
}

// Len is the number of recorded errors
func (c *Collector) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.errs)
}

// Err returns the recorded errors, see Errors.ToError
func (c *Collector) Err() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return append(Errors(nil), c.errs...).ToError()
}
