/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"context"
	"io/ioutil"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/retry"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
	"github.com/yusumcheung1103/delphi-fabric/pkg/msp/caclient"
)

var logger = logging.NewLogger("delphi/msp")

// CAClient is the subset of the Fabric CA API used for provisioning
type CAClient interface {
	Enroll(ctx context.Context, req *caclient.EnrollmentRequest) (*caclient.Enrollment, error)
	Register(ctx context.Context, req *caclient.RegistrationRequest, registrar caclient.Registrar) (string, error)
}

// CAClientProvider returns the client of an organization's CA, or of its TLS CA
type CAClientProvider func(org string, tls bool) (CAClient, error)

// IdentityManager provisions identities: it registers them with their
// organization's CA, records the enrollment secret, enrolls, writes the
// resulting material into the MSP layout and caches the identity.
type IdentityManager struct {
	cfg        *config.NetworkConfig
	creds      *CredentialStore
	secrets    SecretStore
	userStore  UserStore
	caProvider CAClientProvider
	classifier retry.Handler

	mutex sync.Mutex
	cache map[IdentityIdentifier]*Identity
	locks map[IdentityIdentifier]*sync.Mutex

	caMutex   sync.Mutex
	caClients map[caKey]CAClient
}

type caKey struct {
	org string
	tls bool
}

// Option configures an IdentityManager
type Option func(*IdentityManager) error

// WithSecretStore overrides the secret backend selected by configuration
func WithSecretStore(store SecretStore) Option {
	return func(m *IdentityManager) error {
		m.secrets = store
		return nil
	}
}

// WithUserStore persists every ensured identity into store
func WithUserStore(store UserStore) Option {
	return func(m *IdentityManager) error {
		m.userStore = store
		return nil
	}
}

// WithCAClientProvider overrides how CA clients are created
func WithCAClientProvider(provider CAClientProvider) Option {
	return func(m *IdentityManager) error {
		m.caProvider = provider
		return nil
	}
}

// IdentityOption adjusts a single ensure call
type IdentityOption func(*IdentityIdentifier)

// WithTLS materialises the identity's TLS credential, enrolled at the TLS CA
func WithTLS() IdentityOption {
	return func(id *IdentityIdentifier) {
		id.TLS = true
	}
}

// NewIdentityManager creates an identity manager over cfg
func NewIdentityManager(cfg *config.NetworkConfig, opts ...Option) (*IdentityManager, error) {
	if cfg == nil {
		return nil, errors.New("network config is nil")
	}
	creds, err := NewCredentialStore(cfg.CryptoRoot, cfg.Domain)
	if err != nil {
		return nil, err
	}
	for _, org := range cfg.Orgs {
		if org.Domain != "" {
			creds.SetOrgDomain(org.Name, org.Domain)
		}
	}
	m := &IdentityManager{
		cfg:        cfg,
		creds:      creds,
		classifier: retry.WithDefaults(),
		cache:      make(map[IdentityIdentifier]*Identity),
		locks:      make(map[IdentityIdentifier]*sync.Mutex),
		caClients:  make(map[caKey]CAClient),
	}
	m.caProvider = m.defaultCAClient

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.secrets == nil {
		m.secrets, err = NewSecretStore(cfg, creds)
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewSecretStore builds the secret backend named in cfg.Secrets
func NewSecretStore(cfg *config.NetworkConfig, creds *CredentialStore) (SecretStore, error) {
	switch cfg.Secrets.Backend {
	case config.SecretBackendVault:
		v := cfg.Secrets.Vault
		return NewVaultSecretStore(v.Address, v.Token, v.Prefix)
	case config.SecretBackendFile, "":
		return NewFileSecretStore(creds, cfg.Secrets.Passphrase)
	default:
		return nil, status.Errorf(status.ClientStatus, status.MissingConfig, "unknown secrets backend [%s]", cfg.Secrets.Backend)
	}
}

// CredentialStore returns the MSP layout store
func (m *IdentityManager) CredentialStore() *CredentialStore {
	return m.creds
}

// EnsureIdentity returns a usable identity for username in org, provisioning
// it if needed. Calls are idempotent: once material is on disk no network
// call is made, and a registration conflict is recovered from the recorded
// secret.
func (m *IdentityManager) EnsureIdentity(ctx context.Context, username, org string, role Role, opts ...IdentityOption) (*Identity, error) {
	if role == "" {
		role = RoleClient
	}
	id := IdentityIdentifier{Name: username, Org: strings.ToLower(org), Role: role}
	for _, opt := range opts {
		opt(&id)
	}
	return m.ensure(ctx, id, nil)
}

// EnsurePeerIdentity provisions the msp/ material of a peer node
func (m *IdentityManager) EnsurePeerIdentity(ctx context.Context, peerName, org string, opts ...IdentityOption) (*Identity, error) {
	id := IdentityIdentifier{Name: peerName, Org: strings.ToLower(org), Role: RolePeer}
	for _, opt := range opts {
		opt(&id)
	}
	hosts := []string{m.creds.FormattedName(id), peerName}
	return m.ensure(ctx, id, hosts)
}

// EnrollAdmin returns the CA bootstrap admin of org, enrolling it on first use
func (m *IdentityManager) EnrollAdmin(ctx context.Context, org string) (*Identity, error) {
	return m.enrollAdmin(ctx, strings.ToLower(org), false)
}

func (m *IdentityManager) adminID(org string, tls bool) (IdentityIdentifier, string, error) {
	orgConfig, err := m.cfg.Org(org)
	if err != nil {
		return IdentityIdentifier{}, "", err
	}
	admin := orgConfig.CA.Admin
	if tls && orgConfig.CA.TLSCA != nil && orgConfig.CA.TLSCA.Admin.Name != "" {
		admin = orgConfig.CA.TLSCA.Admin
	}
	if admin.Name == "" || admin.Pass == "" {
		return IdentityIdentifier{}, "", status.Errorf(status.ClientStatus, status.MissingConfig, "CA admin of organization [%s] is not configured", org)
	}
	return IdentityIdentifier{Name: admin.Name, Org: org, Role: RoleClient, TLS: tls}, admin.Pass, nil
}

func (m *IdentityManager) enrollAdmin(ctx context.Context, org string, tls bool) (*Identity, error) {
	id, pass, err := m.adminID(org, tls)
	if err != nil {
		return nil, err
	}
	mspID, err := m.cfg.MSPID(org)
	if err != nil {
		return nil, err
	}

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if identity, ok := m.cached(id); ok {
		return identity, nil
	}
	identity, err := m.loadFromDisk(id, mspID)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		identity.Secret = pass
		return identity, nil
	}

	client, err := m.caClient(org, tls)
	if err != nil {
		return nil, err
	}
	logger.Infof("enrolling CA admin [%s]", id)
	return m.enroll(ctx, client, id, mspID, pass, nil)
}

func (m *IdentityManager) ensure(ctx context.Context, id IdentityIdentifier, hosts []string) (*Identity, error) {
	if id.Name == "" {
		return nil, errors.New("identity name is required")
	}
	// configuration problems surface before any network call
	mspID, err := m.cfg.MSPID(id.Org)
	if err != nil {
		return nil, err
	}
	adminID, _, err := m.adminID(id.Org, id.TLS)
	if err != nil {
		return nil, err
	}
	if adminID == id {
		return m.enrollAdmin(ctx, id.Org, id.TLS)
	}

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if identity, ok := m.cached(id); ok {
		return identity, nil
	}

	identity, err := m.loadFromDisk(id, mspID)
	if err != nil {
		return nil, err
	}
	if identity != nil {
		logger.Debugf("identity [%s] found in %s", id, m.creds.Dir(id))
		return identity, nil
	}

	registrar, err := m.enrollAdmin(ctx, id.Org, id.TLS)
	if err != nil {
		return nil, errors.WithMessagef(err, "enrolling registrar of [%s] failed", id.Org)
	}
	client, err := m.caClient(id.Org, id.TLS)
	if err != nil {
		return nil, err
	}

	secret, err := client.Register(ctx, &caclient.RegistrationRequest{
		Name:        id.Name,
		Type:        string(id.Role),
		Affiliation: id.Org,
	}, registrar)
	switch {
	case err == nil:
		// the secret must survive a crash between register and enroll
		if err := m.secrets.Put(id, secret); err != nil {
			return nil, errors.WithMessagef(err, "persisting secret of [%s] failed", id)
		}
	case m.classifier.Classify(err) == retry.Conflict:
		recorded, gerr := m.secrets.Get(id)
		if errors.Cause(gerr) == core.ErrKeyValueNotFound {
			logger.Warnf("[%s] is already registered but no secret was recorded", id)
			return nil, err
		}
		if gerr != nil {
			return nil, errors.WithMessagef(gerr, "reading recorded secret of [%s] failed", id)
		}
		logger.Infof("[%s] is already registered, reusing recorded secret", id)
		secret = recorded
	default:
		return nil, err
	}

	return m.enroll(ctx, client, id, mspID, secret, hosts)
}

func (m *IdentityManager) enroll(ctx context.Context, client CAClient, id IdentityIdentifier, mspID, secret string, hosts []string) (*Identity, error) {
	req := &caclient.EnrollmentRequest{Name: id.Name, Secret: secret, Hosts: hosts}
	if id.TLS {
		req.Profile = "tls"
	}
	enrollment, err := client.Enroll(ctx, req)
	if err != nil {
		return nil, errors.WithMessagef(err, "enrolling [%s] failed", id)
	}

	cred := &Credential{Key: enrollment.Key, Cert: enrollment.Cert}
	if err := m.creds.Store(id, cred); err != nil {
		return nil, err
	}
	identity := NewIdentity(id, mspID, cred)
	identity.Secret = secret
	logger.Infof("identity [%s] materialised in %s", id, m.creds.Dir(id))

	return identity, m.remember(identity)
}

func (m *IdentityManager) loadFromDisk(id IdentityIdentifier, mspID string) (*Identity, error) {
	ok, err := m.creds.Exists(id)
	if err != nil || !ok {
		return nil, err
	}
	cred, err := m.creds.Load(id)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading material of [%s] failed", id)
	}
	identity := NewIdentity(id, mspID, cred)
	if secret, err := m.secrets.Get(id); err == nil {
		identity.Secret = secret
	}
	return identity, m.remember(identity)
}

func (m *IdentityManager) remember(identity *Identity) error {
	m.mutex.Lock()
	m.cache[identity.IdentityIdentifier] = identity
	m.mutex.Unlock()

	if m.userStore == nil {
		return nil
	}
	err := m.userStore.Store(&UserData{
		Name:                  identity.Name,
		Org:                   identity.Org,
		Role:                  identity.Role,
		MSPID:                 identity.MSPID,
		EnrollmentCertificate: identity.EnrollmentCertificate(),
	})
	return errors.WithMessagef(err, "storing user [%s] failed", identity.IdentityIdentifier)
}

func (m *IdentityManager) cached(id IdentityIdentifier) (*Identity, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	identity, ok := m.cache[id]
	return identity, ok
}

func (m *IdentityManager) lockFor(id IdentityIdentifier) *sync.Mutex {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *IdentityManager) caClient(org string, tls bool) (CAClient, error) {
	m.caMutex.Lock()
	defer m.caMutex.Unlock()

	key := caKey{org: org, tls: tls}
	if c, ok := m.caClients[key]; ok {
		return c, nil
	}
	c, err := m.caProvider(org, tls)
	if err != nil {
		return nil, err
	}
	m.caClients[key] = c
	return c, nil
}

func (m *IdentityManager) defaultCAClient(org string, tls bool) (CAClient, error) {
	url, err := m.cfg.CAURL(org, tls)
	if err != nil {
		return nil, err
	}
	orgConfig, err := m.cfg.Org(org)
	if err != nil {
		return nil, err
	}
	caConfig := &orgConfig.CA
	if tls && orgConfig.CA.TLSCA != nil {
		caConfig = orgConfig.CA.TLSCA
	}

	opts := &caclient.Options{}
	if caConfig.TLSCACert != "" {
		opts.TLSCACert, err = ioutil.ReadFile(caConfig.TLSCACert)
		if err != nil {
			return nil, errors.Wrapf(err, "reading CA TLS root of [%s] failed", org)
		}
	}
	return caclient.New(url, opts)
}
