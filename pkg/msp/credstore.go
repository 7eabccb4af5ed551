/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/keyvaluestore"
)

const (
	peerOrganizations = "peerOrganizations"
	certFileMode      = 0644
)

type keyRef struct {
	id  IdentityIdentifier
	ski []byte
}

// CredentialStore reads and writes identity material in the MSP directory
// layout rooted at the crypto config directory:
//
//	<root>/peerOrganizations/<org>.<domain>/<users|peers>/<name>/<msp|tls>/keystore/<ski>_sk
//	<root>/peerOrganizations/<org>.<domain>/<users|peers>/<name>/<msp|tls>/signcerts/<name>-cert.pem
type CredentialStore struct {
	root       string
	domain     string
	orgDomains map[string]string
	keys       *keyvaluestore.FileKeyValueStore
	certs      *keyvaluestore.FileKeyValueStore
}

// NewCredentialStore creates a store over cryptoRoot for orgs of domain
func NewCredentialStore(cryptoRoot, domain string) (*CredentialStore, error) {
	if cryptoRoot == "" {
		return nil, errors.New("crypto root is empty")
	}
	s := &CredentialStore{root: cryptoRoot, domain: domain, orgDomains: make(map[string]string)}

	var err error
	s.keys, err = keyvaluestore.New(&keyvaluestore.FileKeyValueStoreOptions{
		Path: cryptoRoot,
		KeySerializer: func(key interface{}) (string, error) {
			ref, ok := key.(keyRef)
			if !ok {
				return "", errors.New("converting key to keyRef failed")
			}
			if len(ref.ski) == 0 {
				return "", errors.New("invalid key: SKI is empty")
			}
			return filepath.Join(s.KeystoreDir(ref.id), hex.EncodeToString(ref.ski)+"_sk"), nil
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating key store failed")
	}

	s.certs, err = keyvaluestore.New(&keyvaluestore.FileKeyValueStoreOptions{
		Path: cryptoRoot,
		KeySerializer: func(key interface{}) (string, error) {
			id, ok := key.(IdentityIdentifier)
			if !ok {
				return "", errors.New("converting key to IdentityIdentifier failed")
			}
			return s.SigncertPath(id), nil
		},
		FileMode: certFileMode,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating cert store failed")
	}
	return s, nil
}

// SetOrgDomain overrides the <org>.<domain> directory name of org.
// Not safe to call once the store is in use.
func (s *CredentialStore) SetOrgDomain(org, orgDomain string) {
	s.orgDomains[strings.ToLower(org)] = orgDomain
}

// OrgDomain returns the directory name of org, <org>.<domain> unless overridden
func (s *CredentialStore) OrgDomain(org string) string {
	if d, ok := s.orgDomains[strings.ToLower(org)]; ok {
		return d
	}
	return fmt.Sprintf("%s.%s", strings.ToLower(org), s.domain)
}

// FormattedName is name@org.domain for users and name.org.domain for peers
func (s *CredentialStore) FormattedName(id IdentityIdentifier) string {
	if id.IsPeer() {
		return fmt.Sprintf("%s.%s", id.Name, s.OrgDomain(id.Org))
	}
	return fmt.Sprintf("%s@%s", id.Name, s.OrgDomain(id.Org))
}

// Dir returns the msp/ (or tls/) directory of the identity
func (s *CredentialStore) Dir(id IdentityIdentifier) string {
	kind := "users"
	if id.IsPeer() {
		kind = "peers"
	}
	leaf := "msp"
	if id.TLS {
		leaf = "tls"
	}
	return filepath.Join(s.root, peerOrganizations, s.OrgDomain(id.Org), kind, s.FormattedName(id), leaf)
}

// KeystoreDir returns the directory holding the identity's private key
func (s *CredentialStore) KeystoreDir(id IdentityIdentifier) string {
	return filepath.Join(s.Dir(id), "keystore")
}

// SigncertPath returns the identity's certificate file
func (s *CredentialStore) SigncertPath(id IdentityIdentifier) string {
	return filepath.Join(s.Dir(id), "signcerts", s.FormattedName(id)+"-cert.pem")
}

// Exists reports whether both the certificate and a private key are on disk
func (s *CredentialStore) Exists(id IdentityIdentifier) (bool, error) {
	ok, err := s.certs.Exists(id)
	if err != nil || !ok {
		return false, err
	}
	keyFile, err := s.findKeyFile(id)
	if err != nil {
		return false, err
	}
	return keyFile != "", nil
}

// Load reads the identity's credential.
// Returns core.ErrKeyValueNotFound if the certificate or key is missing.
func (s *CredentialStore) Load(id IdentityIdentifier) (*Credential, error) {
	v, err := s.certs.Load(id)
	if err != nil {
		return nil, err
	}
	certPEM := v.([]byte)
	cert, err := ParseCertificate(certPEM)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid certificate for [%s]", id)
	}
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.Errorf("certificate of [%s] does not hold an ECDSA key", id)
	}

	raw, err := s.keys.Load(keyRef{id: id, ski: SKI(pub)})
	if errors.Cause(err) == core.ErrKeyValueNotFound {
		// keystores written by other tools do not always name keys by SKI
		raw, err = s.loadAnyKey(id)
	}
	if err != nil {
		return nil, err
	}
	key, err := ParsePrivateKey(raw.([]byte))
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid private key for [%s]", id)
	}
	return &Credential{Key: key, Cert: certPEM}, nil
}

// Store materialises the credential into the MSP layout
func (s *CredentialStore) Store(id IdentityIdentifier, cred *Credential) error {
	if cred == nil || cred.Key == nil || len(cred.Cert) == 0 {
		return errors.Errorf("incomplete credential for [%s]", id)
	}
	keyPEM, err := MarshalPrivateKey(cred.Key)
	if err != nil {
		return err
	}
	if err := s.keys.Store(keyRef{id: id, ski: SKI(&cred.Key.PublicKey)}, keyPEM); err != nil {
		return errors.WithMessagef(err, "storing private key of [%s] failed", id)
	}
	if err := s.certs.Store(id, cred.Cert); err != nil {
		return errors.WithMessagef(err, "storing certificate of [%s] failed", id)
	}
	return nil
}

func (s *CredentialStore) findKeyFile(id IdentityIdentifier) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.KeystoreDir(id), "*_sk"))
	if err != nil {
		return "", errors.Wrap(err, "listing keystore failed")
	}
	if len(matches) == 0 {
		return "", nil
	}
	return matches[0], nil
}

func (s *CredentialStore) loadAnyKey(id IdentityIdentifier) (interface{}, error) {
	file, err := s.findKeyFile(id)
	if err != nil {
		return nil, err
	}
	if file == "" {
		return nil, core.ErrKeyValueNotFound
	}
	raw, err := ioutil.ReadFile(file) // nolint: gas
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s failed", file)
	}
	return raw, nil
}
