/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package keyvaluestore

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
)

func TestDefaultFKVS(t *testing.T) {
	testFKVS(t, nil)
}

func TestFKVSWithCustomKeySerializer(t *testing.T) {
	testFKVS(t, func(storePath string) KeySerializer {
		return func(key interface{}) (string, error) {
			keyString, ok := key.(string)
			if !ok {
				return "", errors.New("converting key to string failed")
			}
			return filepath.Join(storePath, fmt.Sprintf("users/%s/msp/pwdFile", keyString)), nil
		}
	})
}

func testFKVS(t *testing.T, serializer func(string) KeySerializer) {
	storePath, err := ioutil.TempDir("", "testkeyvaluestore")
	if err != nil {
		t.Fatalf("TempDir failed [%s]", err)
	}
	defer os.RemoveAll(storePath)

	opts := &FileKeyValueStoreOptions{Path: storePath}
	if serializer != nil {
		opts.KeySerializer = serializer(storePath)
	}
	store, err := New(opts)
	if err != nil {
		t.Fatalf("New failed [%s]", err)
	}
	var _ core.KVStore = store

	err = store.Store(nil, []byte("1234"))
	if err == nil || err.Error() != "key is nil" {
		t.Fatal("Store(nil, ...) should throw error")
	}
	err = store.Store("key", nil)
	if err == nil || err.Error() != "value is nil" {
		t.Fatal("Store(..., nil) should throw error")
	}
	if err := store.Store("key", 42); err == nil {
		t.Fatal("Store of an int should fail with the default marshaller")
	}

	if err := store.Store("key1", []byte("value1")); err != nil {
		t.Fatalf("Store key1 failed [%s]", err)
	}
	if err := store.Store("key2", "value2"); err != nil {
		t.Fatalf("Store key2 failed [%s]", err)
	}
	checkKeyValue(t, store, "key1", []byte("value1"))
	checkKeyValue(t, store, "key2", []byte("value2"))

	// overwrite goes through rename
	if err := store.Store("key1", []byte("value1b")); err != nil {
		t.Fatalf("Store key1 failed [%s]", err)
	}
	checkKeyValue(t, store, "key1", []byte("value1b"))

	file, err := store.FilePath("key1")
	if err != nil {
		t.Fatalf("FilePath failed [%s]", err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatalf("Stat failed [%s]", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("expected mode 0600, got %v", info.Mode().Perm())
	}
	leftovers, _ := filepath.Glob(filepath.Join(filepath.Dir(file), ".*tmp*"))
	if len(leftovers) != 0 {
		t.Fatalf("temporary files left behind: %v", leftovers)
	}

	if _, err := store.Load("nokey"); err != core.ErrKeyValueNotFound {
		t.Fatal("fetching value for non-existing key should return ErrKeyValueNotFound")
	}
	if ok, err := store.Exists("nokey"); err != nil || ok {
		t.Fatal("Exists should be false for non-existing key")
	}
	if ok, err := store.Exists("key2"); err != nil || !ok {
		t.Fatal("Exists should be true for key2")
	}

	if err := store.Delete("key1"); err != nil {
		t.Fatalf("Delete failed [%s]", err)
	}
	if err := store.Delete("key1"); err != nil {
		t.Fatalf("Delete of a missing key should succeed [%s]", err)
	}
	if _, err := store.Load("key1"); err != core.ErrKeyValueNotFound {
		t.Fatal("key1 should be deleted")
	}
}

func TestFileMode(t *testing.T) {
	storePath, err := ioutil.TempDir("", "testkeyvaluestore")
	if err != nil {
		t.Fatalf("TempDir failed [%s]", err)
	}
	defer os.RemoveAll(storePath)

	store, err := New(&FileKeyValueStoreOptions{Path: storePath, FileMode: 0644})
	if err != nil {
		t.Fatalf("New failed [%s]", err)
	}
	if err := store.Store("signcerts/cert.pem", "PEM"); err != nil {
		t.Fatalf("Store failed [%s]", err)
	}
	info, err := os.Stat(filepath.Join(storePath, "signcerts", "cert.pem"))
	if err != nil {
		t.Fatalf("Stat failed [%s]", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Fatalf("expected mode 0644, got %v", info.Mode().Perm())
	}
}

func TestCreateNewFileKeyValueStore(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("New with nil options should fail")
	}
	if _, err := New(&FileKeyValueStoreOptions{}); err == nil {
		t.Fatal("New with empty path should fail")
	}
}

func checkKeyValue(t *testing.T, store core.KVStore, key string, expected []byte) {
	v, err := store.Load(key)
	if err != nil {
		t.Fatalf("Load %s failed [%s]", key, err)
	}
	if !bytes.Equal(v.([]byte), expected) {
		t.Fatalf("Load %s returned unexpected value: %s", key, v)
	}
}
