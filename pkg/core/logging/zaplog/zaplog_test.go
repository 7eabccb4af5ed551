/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package zaplog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusumcheung1103/delphi-fabric/pkg/core/logging/api"
)

func TestLogfmtOutput(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Writer: &buf})
	require.NoError(t, err)

	l := p.GetLogger("delphi/msp")
	l.Infof("enrolled %s", "userB@PM")
	l.Debug("hidden at default level")
	l.With("org", "PM").Warn("conflict")
	require.NoError(t, p.Sync())

	out := buf.String()
	assert.Contains(t, out, `msg="enrolled userB@PM"`)
	assert.Contains(t, out, "module=delphi/msp")
	assert.Contains(t, out, "org=PM")
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 2, strings.Count(out, "\n"))
}

func TestModuleLevels(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(Config{Writer: &buf, Level: "error", Format: FormatJSON})
	require.NoError(t, err)

	chatty := p.GetLogger("delphi/retry")
	quiet := p.GetLogger("delphi/harness")
	p.SetLevel("delphi/retry", api.DEBUG)

	chatty.Debug("retry detail")
	quiet.Info("harness detail")
	quiet.Error("harness failure")

	out := buf.String()
	assert.Contains(t, out, `"msg":"retry detail"`)
	assert.NotContains(t, out, "harness detail")
	assert.Contains(t, out, "harness failure")
	assert.True(t, p.IsEnabledFor("delphi/retry", api.DEBUG))
	assert.Equal(t, api.ERROR, p.GetLevel("delphi/harness"))
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}
