/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package multi

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	testErr := fmt.Errorf("test")
	var errs Errors

	assert.Equal(t, "", errs.Error())

	errs = append(errs, testErr)
	assert.Equal(t, testErr.Error(), errs.Error())

	errs = append(errs, testErr)
	assert.Equal(t, "Multiple errors occurred: - test - test", errs.Error())
}

func TestNewAndAppend(t *testing.T) {
	e1 := fmt.Errorf("e1")
	e2 := fmt.Errorf("e2")

	assert.Nil(t, New())
	assert.Nil(t, New(nil, nil))
	assert.Equal(t, e1, New(nil, e1))
	assert.Equal(t, Errors{e1, e2}, New(e1, e2))

	assert.Nil(t, Append(nil, nil))
	assert.Equal(t, e1, Append(nil, e1))
	assert.Equal(t, Errors{e1, e2}, Append(e1, e2))
	assert.Equal(t, Errors{e1}, Append(Errors{e1}, nil))
	assert.Equal(t, Errors{e1, e2}, Append(Errors{e1}, e2))
}

func TestCollector(t *testing.T) {
	var c Collector
	assert.Nil(t, c.Err())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				c.Add(fmt.Sprintf("peer%d", i), errors.New("unavailable"))
			} else {
				c.Add("peer", nil)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
	m, ok := c.Err().(Errors)
	assert.True(t, ok)
	assert.Len(t, m, 5)
	assert.Contains(t, m[0].Error(), "target [peer")
	assert.Equal(t, "unavailable", errors.Cause(m[0]).Error())
}
