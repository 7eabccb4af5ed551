/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/core"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config/lookup"
)

// Orderer types
const (
	OrdererTypeSolo  = "solo"
	OrdererTypeKafka = "kafka"
)

// Conventional container ports
const (
	EndorsementPort = 7051
	EventPort       = 7053
)

// Secret backends
const (
	SecretBackendFile  = "file"
	SecretBackendVault = "vault"
)

// NetworkConfig is the whole network description. It is loaded once and
// shared read-only; organization and channel names are stored lower-cased.
type NetworkConfig struct {
	TLS             bool
	Domain          string
	Hostname        string
	CryptoRoot      string
	StateDBCacheDir string
	Orgs            map[string]*OrgConfig
	Channels        map[string]*ChannelConfig
	Orderer         OrdererConfig
	Retry           RetryConfig
	Secrets         SecretsConfig
	Logging         LoggingConfig
	Metrics         MetricsConfig
}

// OrgConfig describes one peer organization
type OrgConfig struct {
	Name string
	// Domain names the org's directory under peerOrganizations, case kept as configured
	Domain string
	MSP    MSPConfig
	CA    CAConfig
	Peers []PeerConfig
}

// MSPConfig MSP identifiers of an organization
type MSPConfig struct {
	ID   string
	Name string
}

// CAConfig describes the organization's Fabric CA and its bootstrap admin
type CAConfig struct {
	URL       string
	PortHost  int
	TLSCACert string
	TLSCA     *CAConfig
	Admin     CAAdmin
}

// CAAdmin bootstrap registrar credentials
type CAAdmin struct {
	Name string
	Pass string
}

// PeerConfig describes a peer container
type PeerConfig struct {
	ContainerName string `mapstructure:"container_name"`
	PortMap       []PortMapping
}

// PortMapping maps a container port to a host port
type PortMapping struct {
	Host      int
	Container int
}

// ChannelConfig describes one channel
type ChannelConfig struct {
	Name          string
	EventWaitTime time.Duration
	Orgs          map[string]ChannelOrgConfig
}

// ChannelOrgConfig lists the peers an organization contributes to a channel
type ChannelOrgConfig struct {
	PeerIndexes []int
}

// OrdererConfig describes the ordering service
type OrdererConfig struct {
	Type  string
	Solo  SoloOrdererConfig
	Kafka KafkaOrdererConfig
}

// SoloOrdererConfig the single orderer of a solo network
type SoloOrdererConfig struct {
	ContainerName string `mapstructure:"container_name"`
	PortHost      int
}

// KafkaOrdererConfig orderer organizations of a kafka network
type KafkaOrdererConfig struct {
	Orgs map[string]OrdererOrgConfig
}

// OrdererOrgConfig orderers of one orderer organization
type OrdererOrgConfig struct {
	Domain   string
	Orderers map[string]OrdererNodeConfig
}

// OrdererNodeConfig one orderer container
type OrdererNodeConfig struct {
	PortHost int
}

// RetryConfig bounds the propagation retry loop
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// SecretsConfig selects where enrollment secrets are kept
type SecretsConfig struct {
	Backend    string
	Passphrase string
	Vault      VaultConfig
}

// VaultConfig HashiCorp Vault settings
type VaultConfig struct {
	Address string
	Token   string
	Prefix  string
}

// LoggingConfig logging settings
type LoggingConfig struct {
	Level  string
	Format string
}

// MetricsConfig metrics settings
type MetricsConfig struct {
	Provider      string
	ListenAddress string
}

// Load reads all backends of provider into a NetworkConfig
func Load(provider core.ConfigProvider) (*NetworkConfig, error) {
	backends, err := provider()
	if err != nil {
		return nil, errors.WithMessage(err, "unable to load config backends")
	}
	return FromBackends(backends...)
}

// FromBackends builds a NetworkConfig from already loaded backends
func FromBackends(backends ...core.ConfigBackend) (*NetworkConfig, error) {
	l := lookup.New(backends...)

	cfg := &NetworkConfig{
		TLS:             l.GetBool("tls"),
		Domain:          l.GetString("domain"),
		Hostname:        l.GetString("hostname"),
		CryptoRoot:      l.GetString("cryptoRoot"),
		StateDBCacheDir: l.GetString("stateDBCacheDir"),
	}
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}

	if err := l.UnmarshalKey("orgs", &cfg.Orgs); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'orgs' config item")
	}
	if err := l.UnmarshalKey("channels", &cfg.Channels); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'channels' config item")
	}
	if err := l.UnmarshalKey("orderer", &cfg.Orderer); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'orderer' config item")
	}
	if err := l.UnmarshalKey("retry", &cfg.Retry); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'retry' config item")
	}
	if err := l.UnmarshalKey("secrets", &cfg.Secrets); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'secrets' config item")
	}
	if err := l.UnmarshalKey("logging", &cfg.Logging); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'logging' config item")
	}
	if err := l.UnmarshalKey("metrics", &cfg.Metrics); err != nil {
		return nil, errors.Wrap(err, "failed to parse 'metrics' config item")
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *NetworkConfig) normalize() error {
	if c.Domain == "" {
		return status.Errorf(status.ClientStatus, status.MissingConfig, "domain is required")
	}
	if c.CryptoRoot == "" {
		return status.Errorf(status.ClientStatus, status.MissingConfig, "cryptoRoot is required")
	}

	orgs := make(map[string]*OrgConfig, len(c.Orgs))
	for name, org := range c.Orgs {
		if org == nil {
			org = &OrgConfig{}
		}
		org.Name = strings.ToLower(name)
		if org.Domain == "" {
			org.Domain = fmt.Sprintf("%s.%s", org.Name, c.Domain)
		}
		orgs[org.Name] = org
	}
	c.Orgs = orgs

	channels := make(map[string]*ChannelConfig, len(c.Channels))
	for name, ch := range c.Channels {
		if ch == nil {
			ch = &ChannelConfig{}
		}
		ch.Name = strings.ToLower(name)
		members := make(map[string]ChannelOrgConfig, len(ch.Orgs))
		for orgName, member := range ch.Orgs {
			members[strings.ToLower(orgName)] = member
		}
		ch.Orgs = members
		channels[ch.Name] = ch
	}
	c.Channels = channels

	c.Orderer.Type = strings.ToLower(c.Orderer.Type)
	if c.Orderer.Type == "" {
		c.Orderer.Type = OrdererTypeSolo
	}
	for name, org := range c.Orderer.Kafka.Orgs {
		if org.Domain == "" {
			org.Domain = name
			c.Orderer.Kafka.Orgs[name] = org
		}
	}

	if c.Secrets.Backend == "" {
		c.Secrets.Backend = SecretBackendFile
	}
	return nil
}

// Org returns the config of the named organization
func (c *NetworkConfig) Org(name string) (*OrgConfig, error) {
	org, ok := c.Orgs[strings.ToLower(name)]
	if !ok {
		return nil, status.Errorf(status.ClientStatus, status.UnknownOrganization, "organization [%s] is not configured", name)
	}
	return org, nil
}

// Channel returns the config of the named channel
func (c *NetworkConfig) Channel(name string) (*ChannelConfig, error) {
	ch, ok := c.Channels[strings.ToLower(name)]
	if !ok {
		return nil, status.Errorf(status.ClientStatus, status.UnknownChannel, "channel [%s] is not configured", name)
	}
	return ch, nil
}

// OrgDomain returns the configured domain of org, <org>.<domain> by default
func (c *NetworkConfig) OrgDomain(org string) string {
	if o, ok := c.Orgs[strings.ToLower(org)]; ok && o.Domain != "" {
		return o.Domain
	}
	return fmt.Sprintf("%s.%s", strings.ToLower(org), c.Domain)
}

// MSPID returns the MSP ID of the organization
func (c *NetworkConfig) MSPID(org string) (string, error) {
	o, err := c.Org(org)
	if err != nil {
		return "", err
	}
	if o.MSP.ID == "" {
		return "", status.Errorf(status.ClientStatus, status.MissingConfig, "MSP id of organization [%s] is not configured", org)
	}
	return o.MSP.ID, nil
}

// CAURL returns the URL of the organization's CA, or of its TLS CA when tls is set
func (c *NetworkConfig) CAURL(org string, tls bool) (string, error) {
	o, err := c.Org(org)
	if err != nil {
		return "", err
	}
	ca := &o.CA
	if tls {
		if o.CA.TLSCA == nil {
			return "", status.Errorf(status.ClientStatus, status.MissingConfig, "TLS CA of organization [%s] is not configured", org)
		}
		ca = o.CA.TLSCA
	}
	if ca.URL != "" {
		return ca.URL, nil
	}
	if ca.PortHost == 0 {
		return "", status.Errorf(status.ClientStatus, status.MissingConfig, "CA of organization [%s] has no url or portHost", org)
	}
	scheme := "http"
	if c.TLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Hostname, ca.PortHost), nil
}

// SortedOrgNames returns the names of the given channel's member organizations in order
func (ch *ChannelConfig) SortedOrgNames() []string {
	names := make([]string, 0, len(ch.Orgs))
	for name := range ch.Orgs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HostPort returns the host port mapped to the given container port
func (p PeerConfig) HostPort(containerPort int) (int, bool) {
	for _, m := range p.PortMap {
		if m.Container == containerPort {
			return m.Host, true
		}
	}
	return 0, false
}
