/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel/invoke"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
	"github.com/yusumcheung1103/delphi-fabric/pkg/msp"
)

var sampleConfigFile = filepath.Join("..", "..", "pkg", "core", "config", "testdata", "orgs.yaml")

func TestParseTasks(t *testing.T) {
	specs, err := parseTasks("BU:0, PM:1,ENG:0")
	require.NoError(t, err)
	assert.Equal(t, []taskSpec{{"BU", 0}, {"PM", 1}, {"ENG", 0}}, specs)

	for _, bad := range []string{"", "BU", "BU:x", ":0", "BU:-1", "BU:0:1"} {
		_, err := parseTasks(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range []invoke.Mode{invoke.ValidatedCommit, invoke.ProposeOnly, invoke.FireAndForget} {
		parsed, err := parseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	mode, err := parseMode("Fire-And-Forget")
	require.NoError(t, err)
	assert.Equal(t, invoke.FireAndForget, mode)

	_, err = parseMode("commit")
	assert.Error(t, err)
}

func TestParseIndexesAndRole(t *testing.T) {
	indexes, err := parseIndexes("0, 2")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, indexes)
	indexes, err = parseIndexes("")
	require.NoError(t, err)
	assert.Nil(t, indexes)
	_, err = parseIndexes("a")
	assert.Error(t, err)

	role, err := parseRole("peer")
	require.NoError(t, err)
	assert.Equal(t, msp.RolePeer, role)
	_, err = parseRole("orderer")
	assert.Error(t, err)
}

func TestWorkerListenAddress(t *testing.T) {
	addr, err := workerListenAddress("127.0.0.1:9443", 0)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9444", addr)

	addr, err = workerListenAddress("127.0.0.1:9443", 2)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9446", addr)

	addr, err = workerListenAddress("127.0.0.1:0", 2)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", addr)

	addr, err = workerListenAddress("", 1)
	require.NoError(t, err)
	assert.Empty(t, addr)

	_, err = workerListenAddress("nohost", 1)
	assert.Error(t, err)
}

func TestWorkerState(t *testing.T) {
	cfg := &config.NetworkConfig{StateDBCacheDir: "/tmp/state"}
	workerState(cfg, 1)
	assert.Equal(t, filepath.Join("/tmp/state", "worker-1"), cfg.StateDBCacheDir)

	cfg = &config.NetworkConfig{}
	workerState(cfg, 1)
	assert.Empty(t, cfg.StateDBCacheDir)
}

func TestStressFlagsForwarded(t *testing.T) {
	parent := &stressFlags{}
	parentCmd := &cobra.Command{Use: "stress"}
	parent.register(parentCmd)
	require.NoError(t, parentCmd.ParseFlags([]string{"--times", "7", "--mode", "propose-only", "--args", "a,b", "--tasks", "PM:1"}))

	worker := &stressFlags{}
	workerCmd := &cobra.Command{Use: "worker"}
	worker.register(workerCmd)
	require.NoError(t, workerCmd.ParseFlags(parent.forward()))

	assert.Equal(t, 7, worker.times)
	assert.Equal(t, "propose-only", worker.mode)
	assert.Equal(t, []string{"a", "b"}, worker.args)
	assert.Equal(t, "PM:1", worker.tasks)
	assert.Equal(t, "stress", worker.chaincode)
	assert.Empty(t, worker.fcn)
	assert.Equal(t, 10*time.Second, worker.progress)

	tasks, err := worker.taskTable(nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "PM/peer1", tasks[0].Name)
}

func TestStressForwardsFcn(t *testing.T) {
	parent := &stressFlags{}
	parentCmd := &cobra.Command{Use: "stress"}
	parent.register(parentCmd)
	require.NoError(t, parentCmd.ParseFlags([]string{"--fcn", "put"}))

	worker := &stressFlags{}
	workerCmd := &cobra.Command{Use: "worker"}
	worker.register(workerCmd)
	require.NoError(t, workerCmd.ParseFlags(parent.forward()))
	assert.Equal(t, "put", worker.fcn)
}

func TestInvokeFlags(t *testing.T) {
	cmd := newInvokeCmd(&globalFlags{})
	for _, name := range []string{"user", "role", "tls"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, string(msp.RoleClient), cmd.Flags().Lookup("role").DefValue)
	_, required := cmd.Flags().Lookup("fcn").Annotations[cobra.BashCompOneRequiredFlag]
	assert.False(t, required, "an empty function name is valid")
	_, required = cmd.Flags().Lookup("chaincode").Annotations[cobra.BashCompOneRequiredFlag]
	assert.True(t, required)

	f := &invokeFlags{user: "newuser", role: "orderer"}
	_, err := f.client(context.Background(), nil)
	assert.Error(t, err, "role is checked before provisioning")
}

func TestGlobalFlagsArgs(t *testing.T) {
	assert.Empty(t, (&globalFlags{}).args())
	assert.Equal(t, []string{"--config", "net.yaml", "--log-format", "json"},
		(&globalFlags{configFile: "net.yaml", logFormat: "json"}).args())
}

// plainConfig writes a copy of the sample config with TLS turned off
func plainConfig(t *testing.T) string {
	raw, err := ioutil.ReadFile(sampleConfigFile)
	require.NoError(t, err)
	require.Contains(t, string(raw), "TLS: true")
	path := filepath.Join(t.TempDir(), "orgs.yaml")
	require.NoError(t, ioutil.WriteFile(path, bytes.Replace(raw, []byte("TLS: true"), []byte("TLS: false"), 1), 0600))
	return path
}

func TestTopologyCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", plainConfig(t), "topology", "delphiChannel"})
	require.NoError(t, root.Execute())

	var view channelView
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "delphichannel", view.Name)
	assert.Equal(t, "30s", view.EventWaitTime)
	assert.NotEmpty(t, view.Orderers)
	require.Len(t, view.Peers, 3)
	for _, p := range view.Peers {
		assert.Contains(t, p.URL, "grpc://localhost:")
	}
}

func TestConfigRequired(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"topology"})
	assert.Error(t, root.Execute())
}
