/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
)

const (
	testOrg    = "bu"
	testMSPID  = "BUMSP"
	testDomain = "delphi.com"
	adminName  = "admin"
	adminPass  = "adminpw"
)

func newTestConfig(root, caURL string) *config.NetworkConfig {
	return &config.NetworkConfig{
		Domain:     testDomain,
		Hostname:   "localhost",
		CryptoRoot: root,
		Orgs: map[string]*config.OrgConfig{
			testOrg: {
				Name: testOrg,
				MSP:  config.MSPConfig{ID: testMSPID, Name: "BUMSPName"},
				CA: config.CAConfig{
					URL:   caURL,
					Admin: config.CAAdmin{Name: adminName, Pass: adminPass},
					TLSCA: &config.CAConfig{URL: caURL},
				},
			},
			"nocaadmin": {
				Name: "nocaadmin",
				MSP:  config.MSPConfig{ID: "NoAdminMSP"},
				CA:   config.CAConfig{URL: caURL},
			},
		},
		Secrets: config.SecretsConfig{Backend: config.SecretBackendFile},
	}
}

// newCredential returns a self-signed credential for cn
func newCredential(t *testing.T, cn string) *Credential {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return &Credential{Key: key, Cert: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})}
}
