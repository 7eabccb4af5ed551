/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package keyvaluestore stores each value in its own file under a root
// directory. It backs the MSP credential layout, the enrollment secret
// sidecars and the file user store.
package keyvaluestore

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
)

const (
	newDirMode  = 0700
	newFileMode = 0600
)

// KeySerializer converts a key to a unique file path
type KeySerializer func(key interface{}) (string, error)

// Marshaller marshals a value into a byte array
type Marshaller func(value interface{}) ([]byte, error)

// Unmarshaller unmarshals a value from a byte array
type Unmarshaller func(value []byte) (interface{}, error)

// FileKeyValueStore stores each value into a separate file.
// KeySerializer maps a key to a unique file path, Marshaller and Unmarshaller
// convert values to and from the file content. Writes go through a temporary
// file and a rename so readers never see a partially written value.
type FileKeyValueStore struct {
	path          string
	keySerializer KeySerializer
	marshaller    Marshaller
	unmarshaller  Unmarshaller
	fileMode      os.FileMode
}

// FileKeyValueStoreOptions allow overriding store defaults
type FileKeyValueStoreOptions struct {
	// Store path, mandatory
	Path string
	// Optional. Defaults to joining Path with the key string.
	KeySerializer KeySerializer
	// Optional. Defaults to accepting []byte and string values.
	Marshaller Marshaller
	// Optional. Defaults to returning the raw bytes.
	Unmarshaller Unmarshaller
	// Optional. Defaults to 0600.
	FileMode os.FileMode
}

func defaultMarshaller(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.Errorf("converting value of type %T to byte array failed", value)
	}
}

func defaultUnmarshaller(value []byte) (interface{}, error) {
	return value, nil
}

// New creates a new instance of FileKeyValueStore using provided options
func New(opts *FileKeyValueStoreOptions) (*FileKeyValueStore, error) {
	if opts == nil {
		return nil, errors.New("FileKeyValueStoreOptions is nil")
	}
	if opts.Path == "" {
		return nil, errors.New("FileKeyValueStore path is empty")
	}

	store := &FileKeyValueStore{
		path:          opts.Path,
		keySerializer: opts.KeySerializer,
		marshaller:    opts.Marshaller,
		unmarshaller:  opts.Unmarshaller,
		fileMode:      opts.FileMode,
	}
	if store.keySerializer == nil {
		store.keySerializer = func(key interface{}) (string, error) {
			keyString, ok := key.(string)
			if !ok {
				return "", errors.New("converting key to string failed")
			}
			return filepath.Join(opts.Path, keyString), nil
		}
	}
	if store.marshaller == nil {
		store.marshaller = defaultMarshaller
	}
	if store.unmarshaller == nil {
		store.unmarshaller = defaultUnmarshaller
	}
	if store.fileMode == 0 {
		store.fileMode = newFileMode
	}
	return store, nil
}

// GetPath returns the store path
func (fkvs *FileKeyValueStore) GetPath() string {
	return fkvs.path
}

// FilePath returns the file that holds the value of key
func (fkvs *FileKeyValueStore) FilePath(key interface{}) (string, error) {
	return fkvs.keySerializer(key)
}

// Exists reports whether a value is stored for key
func (fkvs *FileKeyValueStore) Exists(key interface{}) (bool, error) {
	file, err := fkvs.keySerializer(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(file)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "stat %s failed", file)
	}
	return !info.IsDir() && info.Size() > 0, nil
}

// Load returns the value stored in the store for a key.
// If a value for the key was not found, returns (nil, core.ErrKeyValueNotFound)
func (fkvs *FileKeyValueStore) Load(key interface{}) (interface{}, error) {
	file, err := fkvs.keySerializer(key)
	if err != nil {
		return nil, err
	}
	bytes, err := ioutil.ReadFile(file) // nolint: gas
	if os.IsNotExist(err) {
		return nil, core.ErrKeyValueNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s failed", file)
	}
	if len(bytes) == 0 {
		return nil, core.ErrKeyValueNotFound
	}
	return fkvs.unmarshaller(bytes)
}

// Store sets the value for the key.
func (fkvs *FileKeyValueStore) Store(key interface{}, value interface{}) error {
	if key == nil {
		return errors.New("key is nil")
	}
	if value == nil {
		return errors.New("value is nil")
	}
	file, err := fkvs.keySerializer(key)
	if err != nil {
		return err
	}
	valueBytes, err := fkvs.marshaller(value)
	if err != nil {
		return err
	}

	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, newDirMode); err != nil {
		return errors.Wrapf(err, "creating %s failed", dir)
	}
	tmp, err := ioutil.TempFile(dir, "."+filepath.Base(file)+".tmp")
	if err != nil {
		return errors.Wrap(err, "creating temporary file failed")
	}
	defer os.Remove(tmp.Name()) // nolint: errcheck

	if _, err := tmp.Write(valueBytes); err != nil {
		tmp.Close() // nolint: errcheck
		return errors.Wrap(err, "writing temporary file failed")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temporary file failed")
	}
	if err := os.Chmod(tmp.Name(), fkvs.fileMode); err != nil {
		return errors.Wrap(err, "chmod temporary file failed")
	}
	return errors.Wrapf(os.Rename(tmp.Name(), file), "renaming into %s failed", file)
}

// Delete deletes the value for a key.
func (fkvs *FileKeyValueStore) Delete(key interface{}) error {
	if key == nil {
		return errors.New("key is nil")
	}
	file, err := fkvs.keySerializer(key)
	if err != nil {
		return err
	}
	err = os.Remove(file)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s failed", file)
	}
	return nil
}
