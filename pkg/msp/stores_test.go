/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
)

func TestCredentialStoreLayout(t *testing.T) {
	root := t.TempDir()
	s, err := NewCredentialStore(root, testDomain)
	require.NoError(t, err)

	user := IdentityIdentifier{Name: "alice", Org: "BU", Role: RoleClient}
	assert.Equal(t, "alice@bu.delphi.com", s.FormattedName(user))
	assert.Equal(t, filepath.Join(root, "peerOrganizations/bu.delphi.com/users/alice@bu.delphi.com/msp/keystore"), s.KeystoreDir(user))
	assert.Equal(t, filepath.Join(root, "peerOrganizations/bu.delphi.com/users/alice@bu.delphi.com/msp/signcerts/alice@bu.delphi.com-cert.pem"), s.SigncertPath(user))

	peer := IdentityIdentifier{Name: "peer1", Org: "bu", Role: RolePeer, TLS: true}
	assert.Equal(t, filepath.Join(root, "peerOrganizations/bu.delphi.com/peers/peer1.bu.delphi.com/tls"), s.Dir(peer))
}

func TestCredentialStoreOrgDomain(t *testing.T) {
	root := t.TempDir()
	s, err := NewCredentialStore(root, testDomain)
	require.NoError(t, err)
	s.SetOrgDomain("bu", "BU.delphi.com")

	user := IdentityIdentifier{Name: "alice", Org: "bu", Role: RoleClient}
	assert.Equal(t, "alice@BU.delphi.com", s.FormattedName(user))
	assert.Equal(t, filepath.Join(root, "peerOrganizations/BU.delphi.com/users/alice@BU.delphi.com/msp/keystore"), s.KeystoreDir(user))

	peer := IdentityIdentifier{Name: "peer0", Org: "PM", Role: RolePeer}
	assert.Equal(t, filepath.Join(root, "peerOrganizations/pm.delphi.com/peers/peer0.pm.delphi.com/msp"), s.Dir(peer))
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	s, err := NewCredentialStore(t.TempDir(), testDomain)
	require.NoError(t, err)
	id := IdentityIdentifier{Name: "alice", Org: testOrg, Role: RoleClient}

	ok, err := s.Exists(id)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = s.Load(id)
	assert.Equal(t, core.ErrKeyValueNotFound, errors.Cause(err))

	cred := newCredential(t, "alice")
	require.NoError(t, s.Store(id, cred))

	ok, err = s.Exists(id)
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, cred.Cert, loaded.Cert)
	assert.Equal(t, cred.Key.D, loaded.Key.D)

	_, err = os.Stat(filepath.Join(s.KeystoreDir(id), hexSKI(&cred.Key.PublicKey)+"_sk"))
	assert.NoError(t, err, "key file is named after the SKI")
}

func TestCredentialStoreForeignKeyName(t *testing.T) {
	s, err := NewCredentialStore(t.TempDir(), testDomain)
	require.NoError(t, err)
	id := IdentityIdentifier{Name: "Admin", Org: testOrg, Role: RoleClient}
	cred := newCredential(t, "Admin")
	require.NoError(t, s.Store(id, cred))

	// cryptogen style keystores use an arbitrary name
	keys, err := filepath.Glob(filepath.Join(s.KeystoreDir(id), "*_sk"))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.NoError(t, os.Rename(keys[0], filepath.Join(s.KeystoreDir(id), "priv_sk")))

	loaded, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, cred.Key.D, loaded.Key.D)
}

func TestIdentitySign(t *testing.T) {
	cred := newCredential(t, "alice")
	identity := NewIdentity(IdentityIdentifier{Name: "alice", Org: testOrg}, testMSPID, cred)

	msg := []byte("proposal bytes")
	sig, err := identity.Sign(msg)
	require.NoError(t, err)
	digest := sha256.Sum256(msg)
	assert.True(t, ecdsa.VerifyASN1(&cred.Key.PublicKey, digest[:], sig))

	creator, err := identity.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(creator), testMSPID)
	assert.Contains(t, string(creator), "BEGIN CERTIFICATE")
}

func TestFileSecretStorePlaintext(t *testing.T) {
	creds, err := NewCredentialStore(t.TempDir(), testDomain)
	require.NoError(t, err)
	s, err := NewFileSecretStore(creds, "")
	require.NoError(t, err)
	id := IdentityIdentifier{Name: "alice", Org: testOrg, Role: RoleClient}

	has, err := s.Has(id)
	require.NoError(t, err)
	assert.False(t, has)
	_, err = s.Get(id)
	assert.Equal(t, core.ErrKeyValueNotFound, errors.Cause(err))

	require.NoError(t, s.Put(id, "alicepw"))
	secret, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "alicepw", secret)

	path, err := s.Path(id)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(creds.Dir(id), "pwdFile"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.Error(t, s.Put(id, ""))
}

func TestFileSecretStoreSealed(t *testing.T) {
	creds, err := NewCredentialStore(t.TempDir(), testDomain)
	require.NoError(t, err)
	s, err := NewFileSecretStore(creds, "correct horse")
	require.NoError(t, err)
	id := IdentityIdentifier{Name: "alice", Org: testOrg, Role: RoleClient}

	require.NoError(t, s.Put(id, "alicepw"))
	path, err := s.Path(id)
	require.NoError(t, err)
	raw, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), sealedPrefix))
	assert.NotContains(t, string(raw), "alicepw")

	secret, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "alicepw", secret)

	wrong, err := NewFileSecretStore(creds, "battery staple")
	require.NoError(t, err)
	_, err = wrong.Get(id)
	assert.Error(t, err)

	none, err := NewFileSecretStore(creds, "")
	require.NoError(t, err)
	_, err = none.Get(id)
	assert.Error(t, err)
}

// vaultKV is a minimal KV v2 engine
type vaultKV struct {
	mutex sync.Mutex
	data  map[string]map[string]interface{}
}

func (v *vaultKV) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch req.Method {
	case http.MethodPut, http.MethodPost:
		var body map[string]interface{}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		v.data[req.URL.Path] = body
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		body, ok := v.data[req.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`)) // nolint: errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": body}) // nolint: errcheck
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestVaultSecretStore(t *testing.T) {
	kv := &vaultKV{data: map[string]map[string]interface{}{}}
	srv := httptest.NewServer(kv)
	defer srv.Close()

	s, err := NewVaultSecretStore(srv.URL, "root-token", "delphi")
	require.NoError(t, err)
	id := IdentityIdentifier{Name: "alice", Org: "BU", Role: RoleClient}

	has, err := s.Has(id)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Put(id, "alicepw"))
	_, ok := kv.data["/v1/secret/data/delphi/bu/client/alice"]
	assert.True(t, ok)

	secret, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "alicepw", secret)

	_, err = NewVaultSecretStore(srv.URL, "", "")
	assert.Error(t, err)
}

func TestUserStores(t *testing.T) {
	fileStore, err := NewCertFileUserStore(t.TempDir())
	require.NoError(t, err)
	badgerStore, err := NewBadgerUserStore(t.TempDir())
	require.NoError(t, err)

	for name, store := range map[string]UserStore{"file": fileStore, "badger": badgerStore} {
		t.Run(name, func(t *testing.T) {
			id := IdentityIdentifier{Name: "alice", Org: testOrg}
			_, err := store.Load(id)
			assert.Equal(t, ErrUserNotFound, err)

			user := &UserData{Name: "alice", Org: testOrg, Role: RoleClient, MSPID: testMSPID, EnrollmentCertificate: []byte("cert")}
			require.NoError(t, store.Store(user))
			loaded, err := store.Load(id)
			require.NoError(t, err)
			assert.Equal(t, user, loaded)

			require.NoError(t, store.Delete(id))
			_, err = store.Load(id)
			assert.Equal(t, ErrUserNotFound, err)
			assert.NoError(t, store.Close())
		})
	}
}

func hexSKI(pub *ecdsa.PublicKey) string {
	return hex.EncodeToString(SKI(pub))
}
