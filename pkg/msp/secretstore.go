/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/keyvaluestore"
)

// SecretFileName is the sidecar file holding an enrollment secret
const SecretFileName = "pwdFile"

const (
	sealedPrefix = "secretbox:v1:"
	saltSize     = 16
	nonceSize    = 24
)

// SecretStore keeps the enrollment secret of each identity.
// Get returns core.ErrKeyValueNotFound when no secret was recorded.
type SecretStore interface {
	Put(id IdentityIdentifier, secret string) error
	Get(id IdentityIdentifier) (string, error)
	Has(id IdentityIdentifier) (bool, error)
}

// FileSecretStore writes the secret into a pwdFile inside the identity's
// msp/ (or tls/) directory. When a passphrase is set the content is sealed
// with secretbox under an argon2id derived key.
type FileSecretStore struct {
	store      *keyvaluestore.FileKeyValueStore
	passphrase []byte
}

// NewFileSecretStore creates a sidecar store laid out next to creds
func NewFileSecretStore(creds *CredentialStore, passphrase string) (*FileSecretStore, error) {
	s := &FileSecretStore{}
	if passphrase != "" {
		s.passphrase = []byte(passphrase)
	} else {
		logger.Warn("no secrets passphrase configured, enrollment secrets are stored in plaintext")
	}

	store, err := keyvaluestore.New(&keyvaluestore.FileKeyValueStoreOptions{
		Path: creds.root,
		KeySerializer: func(key interface{}) (string, error) {
			id, ok := key.(IdentityIdentifier)
			if !ok {
				return "", errors.New("converting key to IdentityIdentifier failed")
			}
			return filepath.Join(creds.Dir(id), SecretFileName), nil
		},
		Marshaller: func(value interface{}) ([]byte, error) {
			secret, ok := value.(string)
			if !ok {
				return nil, errors.Errorf("secret must be a string, got %T", value)
			}
			return s.seal(secret)
		},
		Unmarshaller: func(value []byte) (interface{}, error) {
			return s.open(value)
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating secret store failed")
	}
	s.store = store
	return s, nil
}

// Put records secret for id
func (s *FileSecretStore) Put(id IdentityIdentifier, secret string) error {
	if secret == "" {
		return errors.Errorf("empty secret for [%s]", id)
	}
	return s.store.Store(id, secret)
}

// Get returns the recorded secret of id
func (s *FileSecretStore) Get(id IdentityIdentifier) (string, error) {
	v, err := s.store.Load(id)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Has reports whether a secret is recorded for id
func (s *FileSecretStore) Has(id IdentityIdentifier) (bool, error) {
	return s.store.Exists(id)
}

// Path returns the sidecar file of id
func (s *FileSecretStore) Path(id IdentityIdentifier) (string, error) {
	return s.store.FilePath(id)
}

func (s *FileSecretStore) deriveKey(salt []byte) *[32]byte {
	var key [32]byte
	copy(key[:], argon2.IDKey(s.passphrase, salt, 1, 64*1024, 4, 32))
	return &key
}

func (s *FileSecretStore) seal(secret string) ([]byte, error) {
	if len(s.passphrase) == 0 {
		return []byte(secret), nil
	}
	buf := make([]byte, saltSize+nonceSize)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, errors.Wrap(err, "reading random salt failed")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], buf[saltSize:])

	sealed := secretbox.Seal(buf, []byte(secret), &nonce, s.deriveKey(buf[:saltSize]))
	return []byte(sealedPrefix + base64.StdEncoding.EncodeToString(sealed)), nil
}

func (s *FileSecretStore) open(raw []byte) (string, error) {
	content := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(content, sealedPrefix) {
		return content, nil
	}
	if len(s.passphrase) == 0 {
		return "", errors.New("secret is sealed but no passphrase is configured")
	}
	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(content, sealedPrefix))
	if err != nil {
		return "", errors.Wrap(err, "decoding sealed secret failed")
	}
	if len(sealed) < saltSize+nonceSize+secretbox.Overhead {
		return "", errors.New("sealed secret is truncated")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[saltSize:saltSize+nonceSize])

	secret, ok := secretbox.Open(nil, sealed[saltSize+nonceSize:], &nonce, s.deriveKey(sealed[:saltSize]))
	if !ok {
		return "", errors.New("opening sealed secret failed: wrong passphrase or corrupted file")
	}
	return string(secret), nil
}

var _ SecretStore = (*FileSecretStore)(nil)
