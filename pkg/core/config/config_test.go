/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
)

var sampleConfigFile = filepath.Join("testdata", "orgs.yaml")

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(FromFile(sampleConfigFile))
	require.NoError(t, err)

	assert.True(t, cfg.TLS)
	assert.Equal(t, "delphi.com", cfg.Domain)
	assert.Equal(t, "localhost", cfg.Hostname)
	assert.Equal(t, "/tmp/delphi/crypto-config", cfg.CryptoRoot)
	assert.Equal(t, 30, cfg.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Retry.Delay)
	assert.Equal(t, SecretBackendFile, cfg.Secrets.Backend)

	bu, err := cfg.Org("BU")
	require.NoError(t, err)
	assert.Equal(t, "bu", bu.Name)
	assert.Equal(t, "BUMSP", bu.MSP.ID)
	assert.Equal(t, "admin", bu.CA.Admin.Name)
	require.Len(t, bu.Peers, 2)
	port, ok := bu.Peers[1].HostPort(EndorsementPort)
	assert.True(t, ok)
	assert.Equal(t, 7061, port)
	_, ok = bu.Peers[1].HostPort(EventPort)
	assert.False(t, ok)

	ch, err := cfg.Channel("delphiChannel")
	require.NoError(t, err)
	assert.Equal(t, "delphichannel", ch.Name)
	assert.Equal(t, 30*time.Second, ch.EventWaitTime)
	assert.Equal(t, []string{"bu", "pm"}, ch.SortedOrgNames())
	assert.Equal(t, []int{0, 1}, ch.Orgs["bu"].PeerIndexes)

	assert.Equal(t, OrdererTypeKafka, cfg.Orderer.Type)
	ordererOrg := cfg.Orderer.Kafka.Orgs["ordererorg0.delphi.com"]
	assert.Equal(t, "ordererorg0.delphi.com", ordererOrg.Domain)
	assert.Len(t, ordererOrg.Orderers, 2)
	assert.Equal(t, "orderer0", cfg.Orderer.Solo.ContainerName)
}

func TestLookupErrors(t *testing.T) {
	cfg, err := Load(FromFile(sampleConfigFile))
	require.NoError(t, err)

	_, err = cfg.Org("HR")
	assert.True(t, status.Is(err, status.ClientStatus, status.UnknownOrganization))

	_, err = cfg.Channel("nochannel")
	assert.True(t, status.Is(err, status.ClientStatus, status.UnknownChannel))

	id, err := cfg.MSPID("pm")
	assert.NoError(t, err)
	assert.Equal(t, "PMMSP", id)
}

func TestCAURL(t *testing.T) {
	cfg, err := Load(FromFile(sampleConfigFile))
	require.NoError(t, err)

	url, err := cfg.CAURL("BU", false)
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:7054", url)

	url, err = cfg.CAURL("BU", true)
	require.NoError(t, err)
	assert.Equal(t, "https://localhost:7055", url)

	_, err = cfg.CAURL("PM", true)
	assert.True(t, status.Is(err, status.ClientStatus, status.MissingConfig))

	assert.Equal(t, "pm.delphi.com", cfg.OrgDomain("PM"))
}

func TestOrgDomainKeepsCase(t *testing.T) {
	cfg, err := Load(FromRaw([]byte(`{
		"domain": "delphi.com", "cryptoRoot": "/crypto",
		"orgs": {"BU": {"domain": "BU.delphi.com", "MSP": {"id": "BUMSP"}}, "PM": {"MSP": {"id": "PMMSP"}}}
	}`), "json"))
	require.NoError(t, err)

	assert.Equal(t, "BU.delphi.com", cfg.OrgDomain("bu"))
	assert.Equal(t, "BU.delphi.com", cfg.OrgDomain("BU"))
	assert.Equal(t, "pm.delphi.com", cfg.OrgDomain("PM"))
	assert.Equal(t, "hr.delphi.com", cfg.OrgDomain("HR"))
}

func TestMissingRequired(t *testing.T) {
	_, err := Load(FromRaw([]byte(`{"domain": "delphi.com"}`), "json"))
	assert.True(t, status.Is(err, status.ClientStatus, status.MissingConfig))

	_, err = Load(FromRaw([]byte(`{}`), ""))
	assert.Error(t, err)

	_, err = Load(FromFile(""))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	require.NoError(t, os.Setenv("DELPHITEST_HOSTNAME", "10.0.0.5"))
	defer os.Unsetenv("DELPHITEST_HOSTNAME")

	cfg, err := Load(FromFile(sampleConfigFile, WithEnvPrefix("DELPHITEST")))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.Hostname)
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/config/orgs" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"TLS": false, "domain": "delphi.com", "cryptoRoot": "/crypto",
			"orderer": {"type": "solo", "solo": {"container_name": "orderer0", "portHost": 7050}},
			"orgs": {"BU": {"MSP": {"id": "BUMSP"}, "peers": [{"portMap": [{"host": 7051, "container": 7051}]}]}},
			"channels": {"delphiChannel": {"orgs": {"BU": {"peerIndexes": [0]}}}}
		}`))
	}))
	defer srv.Close()

	cfg, err := Load(FromURL(srv.URL + "/", WithHTTPClient(srv.Client())))
	require.NoError(t, err)
	assert.False(t, cfg.TLS)
	assert.Equal(t, OrdererTypeSolo, cfg.Orderer.Type)
	assert.Equal(t, 7050, cfg.Orderer.Solo.PortHost)

	_, err = Load(FromURL(srv.URL + "/missing"))
	assert.Error(t, err)
}
