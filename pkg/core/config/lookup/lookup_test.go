/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package lookup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapBackend map[string]interface{}

func (m mapBackend) Lookup(key string) (interface{}, bool) {
	v, ok := m[key]
	return v, ok
}

func TestLookupFallsBackAcrossBackends(t *testing.T) {
	primary := mapBackend{"TLS": "true", "domain": "Delphi.com"}
	secondary := mapBackend{"domain": "other.com", "retry.attempts": "12", "retry.delay": "2s"}
	l := New(nil, primary, secondary)

	assert.True(t, l.GetBool("TLS"))
	assert.Equal(t, "Delphi.com", l.GetString("domain"))
	assert.Equal(t, "12", l.GetString("retry.attempts"))
	_, ok := l.Lookup("retry.delay")
	assert.True(t, ok)

	assert.False(t, l.GetBool("missing"))
	assert.Equal(t, "", l.GetString("missing"))
	_, ok = l.Lookup("missing")
	assert.False(t, ok)
}

type channel struct {
	EventWaitTime time.Duration
	Orgs          map[string]struct {
		PeerIndexes []int
	}
}

func TestUnmarshalKey(t *testing.T) {
	l := New(mapBackend{
		"channels": map[string]interface{}{
			"delphichannel": map[string]interface{}{
				"eventWaitTime": "30s",
				"orgs": map[string]interface{}{
					"BU": map[string]interface{}{"peerIndexes": []interface{}{0, "1"}},
				},
			},
		},
	})

	var channels map[string]channel
	require.NoError(t, l.UnmarshalKey("channels", &channels))
	ch := channels["delphichannel"]
	assert.Equal(t, 30*time.Second, ch.EventWaitTime)
	assert.Equal(t, []int{0, 1}, ch.Orgs["BU"].PeerIndexes)

	var untouched map[string]channel
	require.NoError(t, l.UnmarshalKey("nope", &untouched))
	assert.Nil(t, untouched)
}
