/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"encoding/json"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/keyvaluestore"
)

// ErrUserNotFound indicates the user store has no entry for the identity
var ErrUserNotFound = errors.New("user not found")

// UserData is the persisted state of an enrolled identity
type UserData struct {
	Name                  string `json:"name"`
	Org                   string `json:"org"`
	Role                  Role   `json:"role"`
	MSPID                 string `json:"mspid"`
	EnrollmentCertificate []byte `json:"enrollmentCertificate"`
}

// UserStore persists enrolled identities between runs
type UserStore interface {
	Store(*UserData) error
	Load(IdentityIdentifier) (*UserData, error)
	Delete(IdentityIdentifier) error
	Close() error
}

func userStoreKey(name, org string) string {
	return name + "@" + org
}

// CertFileUserStore stores each user in a separate file named <user>@<org>.json
type CertFileUserStore struct {
	store core.KVStore
}

// NewCertFileUserStore creates a file backed user store under path
func NewCertFileUserStore(path string) (*CertFileUserStore, error) {
	if path == "" {
		return nil, errors.New("path is empty")
	}
	store, err := keyvaluestore.New(&keyvaluestore.FileKeyValueStoreOptions{
		Path: path,
		KeySerializer: func(key interface{}) (string, error) {
			k, ok := key.(string)
			if !ok {
				return "", errors.New("converting key to string failed")
			}
			return filepath.Join(path, k+".json"), nil
		},
	})
	if err != nil {
		return nil, errors.WithMessage(err, "user store creation failed")
	}
	return &CertFileUserStore{store: store}, nil
}

// Load returns the user stored for id
func (s *CertFileUserStore) Load(id IdentityIdentifier) (*UserData, error) {
	v, err := s.store.Load(userStoreKey(id.Name, id.Org))
	if err != nil {
		if errors.Cause(err) == core.ErrKeyValueNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	raw, ok := v.([]byte)
	if !ok {
		return nil, errors.New("user is not of proper type")
	}
	return decodeUserData(raw)
}

// Store stores a user
func (s *CertFileUserStore) Store(user *UserData) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "marshal user failed")
	}
	return s.store.Store(userStoreKey(user.Name, user.Org), raw)
}

// Delete deletes a user
func (s *CertFileUserStore) Delete(id IdentityIdentifier) error {
	return s.store.Delete(userStoreKey(id.Name, id.Org))
}

// Close is a no-op for files
func (s *CertFileUserStore) Close() error {
	return nil
}

// BadgerUserStore keeps users in an embedded badger database
type BadgerUserStore struct {
	db *badger.DB
}

// NewBadgerUserStore opens (or creates) the badger database at path
func NewBadgerUserStore(path string) (*BadgerUserStore, error) {
	if path == "" {
		return nil, errors.New("path is empty")
	}
	opt := badger.DefaultOptions(path)
	opt.Logger = badgerLogger{}
	db, err := badger.Open(opt)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open DB at '%s'", path)
	}
	return &BadgerUserStore{db: db}, nil
}

// Load returns the user stored for id
func (s *BadgerUserStore) Load(id IdentityIdentifier) (*UserData, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userStoreKey(id.Name, id.Org)))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not read user [%s]", id)
	}
	return decodeUserData(raw)
}

// Store stores a user
func (s *BadgerUserStore) Store(user *UserData) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "marshal user failed")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(userStoreKey(user.Name, user.Org)), raw)
	})
	return errors.Wrapf(err, "could not store user [%s@%s]", user.Name, user.Org)
}

// Delete deletes a user
func (s *BadgerUserStore) Delete(id IdentityIdentifier) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(userStoreKey(id.Name, id.Org)))
	})
	return errors.Wrapf(err, "could not delete user [%s]", id)
}

// Close closes the database
func (s *BadgerUserStore) Close() error {
	return errors.Wrap(s.db.Close(), "could not close DB")
}

func decodeUserData(raw []byte) (*UserData, error) {
	user := &UserData{}
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, errors.Wrap(err, "unmarshal user failed")
	}
	return user, nil
}

// badgerLogger routes badger's own logging through the msp logger
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{})   { logger.Errorf(format, args...) }
func (badgerLogger) Warningf(format string, args ...interface{}) { logger.Warnf(format, args...) }
func (badgerLogger) Infof(format string, args ...interface{})    { logger.Debugf(format, args...) }
func (badgerLogger) Debugf(format string, args ...interface{})   { logger.Debugf(format, args...) }
