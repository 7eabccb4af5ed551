/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package lookup reads typed values out of layered config backends. The
// first backend holding a key wins.
package lookup

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
)

// ConfigLookup resolves keys across backends
type ConfigLookup struct {
	backends []core.ConfigBackend
}

// New returns a lookup over backends, nil backends are skipped
func New(backends ...core.ConfigBackend) *ConfigLookup {
	l := &ConfigLookup{}
	for _, b := range backends {
		if b != nil {
			l.backends = append(l.backends, b)
		}
	}
	return l
}

// Lookup returns the raw value of key from the first backend that has it
func (c *ConfigLookup) Lookup(key string) (interface{}, bool) {
	for _, backend := range c.backends {
		if val, ok := backend.Lookup(key); ok {
			return val, true
		}
	}
	return nil, false
}

// GetBool is false when key is missing or not a boolean
func (c *ConfigLookup) GetBool(key string) bool {
	value, _ := c.Lookup(key)
	return cast.ToBool(value)
}

// GetString is empty when key is missing
func (c *ConfigLookup) GetString(key string) string {
	value, _ := c.Lookup(key)
	return cast.ToString(value)
}

// UnmarshalKey decodes the value of key into rawVal, weakly typed so that
// "30s" becomes a time.Duration and "1" an int. A missing key leaves rawVal
// untouched.
func (c *ConfigLookup) UnmarshalKey(key string, rawVal interface{}) error {
	value, ok := c.Lookup(key)
	if !ok {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           rawVal,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(value)
}
