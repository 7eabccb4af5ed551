/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package topology assembles the orderers and endorsing peers of a channel
// from the network configuration.
package topology

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/comm"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/orderer"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/peer"
)

var logger = logging.NewLogger("delphi/topology")

// Channel is the assembled topology of one channel
type Channel struct {
	Name          string
	Orderers      []*orderer.Orderer
	Peers         []*peer.Peer
	EventWaitTime time.Duration
	Orgs          map[string]config.ChannelOrgConfig
}

// FabOrderers returns the orderers as fab.Orderer
func (c *Channel) FabOrderers() []fab.Orderer {
	orderers := make([]fab.Orderer, len(c.Orderers))
	for i, o := range c.Orderers {
		orderers[i] = o
	}
	return orderers
}

// Targets returns the peers as proposal processors
func (c *Channel) Targets() []fab.ProposalProcessor {
	return Targets(c.Peers)
}

// OrgPeers returns the channel's peers that belong to org
func (c *Channel) OrgPeers(org string) []*peer.Peer {
	var peers []*peer.Peer
	for _, p := range c.Peers {
		if p.OrgName() == strings.ToLower(org) {
			peers = append(peers, p)
		}
	}
	return peers
}

// Targets converts peers to proposal processors
func Targets(peers []*peer.Peer) []fab.ProposalProcessor {
	targets := make([]fab.ProposalProcessor, len(peers))
	for i, p := range peers {
		targets[i] = p
	}
	return targets
}

// Assembler builds channel topologies for one client session and caches them
// by lower-cased channel name.
type Assembler struct {
	cfg       *config.NetworkConfig
	connector comm.Connector
	lock      sync.Mutex
	channels  map[string]*Channel
}

// Option configures an Assembler
type Option func(*Assembler)

// WithConnector makes every assembled peer and orderer dial through connector
func WithConnector(connector comm.Connector) Option {
	return func(a *Assembler) {
		a.connector = connector
	}
}

// NewAssembler returns an assembler over cfg
func NewAssembler(cfg *config.NetworkConfig, opts ...Option) *Assembler {
	a := &Assembler{
		cfg:       cfg,
		connector: comm.NewCachingConnector(),
		channels:  make(map[string]*Channel),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BuildChannel returns the topology of channelName. A cached topology is
// returned unless renew is set, in which case it is evicted and rebuilt.
// A peer without a host port for the endorsement port fails the build before
// any network call.
func (a *Assembler) BuildChannel(channelName string, renew bool) (*Channel, error) {
	key := strings.ToLower(channelName)

	a.lock.Lock()
	defer a.lock.Unlock()

	if renew {
		delete(a.channels, key)
	} else if ch, ok := a.channels[key]; ok {
		return ch, nil
	}

	chCfg, err := a.cfg.Channel(key)
	if err != nil {
		return nil, err
	}

	orderers, err := a.orderers()
	if err != nil {
		return nil, err
	}

	ch := &Channel{
		Name:          key,
		Orderers:      orderers,
		EventWaitTime: chCfg.EventWaitTime,
		Orgs:          chCfg.Orgs,
	}
	for _, orgName := range chCfg.SortedOrgNames() {
		for _, index := range chCfg.Orgs[orgName].PeerIndexes {
			p, err := a.preparePeer(orgName, index)
			if err != nil {
				return nil, err
			}
			ch.Peers = append(ch.Peers, p)
		}
	}

	logger.Debugf("channel [%s] assembled with %d orderer(s) and %d peer(s)", key, len(ch.Orderers), len(ch.Peers))
	a.channels[key] = ch
	return ch, nil
}

// NewPeers builds ad-hoc targets for the given peers of org. Indexes without a
// configured peer are skipped.
func (a *Assembler) NewPeers(orgName string, peerIndexes []int) ([]*peer.Peer, error) {
	org, err := a.cfg.Org(orgName)
	if err != nil {
		return nil, err
	}
	var targets []*peer.Peer
	for _, index := range peerIndexes {
		if index < 0 || index >= len(org.Peers) {
			logger.Debugf("organization [%s] has no peer at index %d", org.Name, index)
			continue
		}
		p, err := a.preparePeer(org.Name, index)
		if err != nil {
			return nil, err
		}
		targets = append(targets, p)
	}
	return targets, nil
}

// PeerHost returns peer<index>.<org>.<domain>
func (a *Assembler) PeerHost(orgName string, index int) string {
	return fmt.Sprintf("peer%d.%s", index, a.cfg.OrgDomain(orgName))
}

func (a *Assembler) preparePeer(orgName string, index int) (*peer.Peer, error) {
	org, err := a.cfg.Org(orgName)
	if err != nil {
		return nil, err
	}
	host := a.PeerHost(org.Name, index)
	if index < 0 || index >= len(org.Peers) {
		return nil, status.Errorf(status.ClientStatus, status.MissingConfig, "peer host==%s is not configured", host)
	}
	peerCfg := org.Peers[index]

	peerPort, ok := peerCfg.HostPort(config.EndorsementPort)
	if !ok {
		logger.Warnf("Could not find port mapped to %d for peer host==%s", config.EndorsementPort, host)
		return nil, status.Errorf(status.ClientStatus, status.MissingPortMapping, "Could not find port mapped to %d for peer host==%s", config.EndorsementPort, host)
	}

	ep, err := a.endpoint(peerPort, host, filepath.Join(a.cfg.CryptoRoot, "peerOrganizations", a.cfg.OrgDomain(org.Name), "peers", host, "tls", "ca.crt"))
	if err != nil {
		return nil, err
	}
	opts := []peer.Option{
		peer.WithEndpoint(ep),
		peer.WithMSPID(org.MSP.ID),
		peer.WithOrg(org.Name, index),
		peer.WithConnector(a.connector),
	}
	if eventPort, ok := peerCfg.HostPort(config.EventPort); ok {
		opts = append(opts, peer.WithEventURL(fmt.Sprintf("%s://%s:%d", a.scheme(), a.cfg.Hostname, eventPort)))
	}
	return peer.New(opts...)
}

func (a *Assembler) orderers() ([]*orderer.Orderer, error) {
	ordererCfg := a.cfg.Orderer
	if ordererCfg.Type != config.OrdererTypeKafka {
		host := fmt.Sprintf("%s.%s", ordererCfg.Solo.ContainerName, a.cfg.Domain)
		o, err := a.newOrderer(host, a.cfg.Domain, ordererCfg.Solo.PortHost)
		if err != nil {
			return nil, err
		}
		return []*orderer.Orderer{o}, nil
	}

	orgNames := make([]string, 0, len(ordererCfg.Kafka.Orgs))
	for name := range ordererCfg.Kafka.Orgs {
		orgNames = append(orgNames, name)
	}
	sort.Strings(orgNames)

	var orderers []*orderer.Orderer
	for _, orgName := range orgNames {
		orgCfg := ordererCfg.Kafka.Orgs[orgName]
		names := make([]string, 0, len(orgCfg.Orderers))
		for name := range orgCfg.Orderers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			host := fmt.Sprintf("%s.%s", name, orgCfg.Domain)
			o, err := a.newOrderer(host, orgCfg.Domain, orgCfg.Orderers[name].PortHost)
			if err != nil {
				return nil, err
			}
			orderers = append(orderers, o)
		}
	}
	if len(orderers) == 0 {
		return nil, status.Errorf(status.ClientStatus, status.MissingConfig, "no kafka orderers are configured")
	}
	return orderers, nil
}

func (a *Assembler) newOrderer(host, domain string, port int) (*orderer.Orderer, error) {
	if port == 0 {
		return nil, status.Errorf(status.ClientStatus, status.MissingPortMapping, "orderer host==%s has no portHost", host)
	}
	ep, err := a.endpoint(port, host, filepath.Join(a.cfg.CryptoRoot, "ordererOrganizations", domain, "orderers", host, "tls", "ca.crt"))
	if err != nil {
		return nil, err
	}
	return orderer.New(orderer.WithEndpoint(ep), orderer.WithConnector(a.connector))
}

// endpoint fails with MissingConfig when TLS is on and the host's TLS root is not readable
func (a *Assembler) endpoint(port int, host, caCert string) (comm.Endpoint, error) {
	ep := comm.Endpoint{URL: fmt.Sprintf("%s://%s:%d", a.scheme(), a.cfg.Hostname, port)}
	if a.cfg.TLS {
		if info, err := os.Stat(caCert); err != nil || info.IsDir() {
			return comm.Endpoint{}, status.Errorf(status.ClientStatus, status.MissingConfig, "TLS root of host==%s is missing at %s", host, caCert)
		}
		ep.TLSCACert = caCert
		ep.ServerHostOverride = host
	}
	return ep, nil
}

func (a *Assembler) scheme() string {
	if a.cfg.TLS {
		return "grpcs"
	}
	return "grpc"
}
