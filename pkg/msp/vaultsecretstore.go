/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"path"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
)

const vaultSecretField = "secret"

// VaultSecretStore keeps enrollment secrets in a Vault KV v2 engine mounted
// at secret/, one entry per identity under <prefix>/<org>/<role>/<name>.
type VaultSecretStore struct {
	prefix string
	client *api.Logical
}

// NewVaultSecretStore connects to Vault at address with token
func NewVaultSecretStore(address, token, prefix string) (*VaultSecretStore, error) {
	if token == "" {
		return nil, errors.New("vault token is empty")
	}
	vaultConfig := api.DefaultConfig()
	if address != "" {
		vaultConfig.Address = address
	}
	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, errors.Wrap(err, "can't create Vault client")
	}
	client.SetToken(token)

	if prefix == "" {
		prefix = "delphi"
	}
	return &VaultSecretStore{prefix: strings.Trim(prefix, "/"), client: client.Logical()}, nil
}

func (s *VaultSecretStore) pathname(id IdentityIdentifier) string {
	name := id.Name
	if id.TLS {
		name += "-tls"
	}
	return path.Join("secret/data", s.prefix, strings.ToLower(id.Org), string(id.Role), name)
}

// Put records secret for id
func (s *VaultSecretStore) Put(id IdentityIdentifier, secret string) error {
	if secret == "" {
		return errors.Errorf("empty secret for [%s]", id)
	}
	_, err := s.client.Write(s.pathname(id), map[string]interface{}{
		"data": map[string]interface{}{vaultSecretField: secret},
	})
	return errors.Wrapf(err, "can't write secret of [%s] to Vault", id)
}

// Get returns the recorded secret of id
func (s *VaultSecretStore) Get(id IdentityIdentifier) (string, error) {
	data, err := s.client.Read(s.pathname(id))
	if err != nil {
		return "", errors.Wrapf(err, "can't read secret of [%s] from Vault", id)
	}
	if data == nil || data.Data == nil {
		return "", core.ErrKeyValueNotFound
	}
	fields, ok := data.Data["data"].(map[string]interface{})
	if !ok {
		return "", core.ErrKeyValueNotFound
	}
	secret, ok := fields[vaultSecretField].(string)
	if !ok || secret == "" {
		return "", core.ErrKeyValueNotFound
	}
	return secret, nil
}

// Has reports whether a secret is recorded for id
func (s *VaultSecretStore) Has(id IdentityIdentifier) (bool, error) {
	_, err := s.Get(id)
	if errors.Cause(err) == core.ErrKeyValueNotFound {
		return false, nil
	}
	return err == nil, err
}

var _ SecretStore = (*VaultSecretStore)(nil)
