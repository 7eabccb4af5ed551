/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"net"
	"strconv"

	"github.com/pkg/errors"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/topology"
	"github.com/yusumcheung1103/delphi-fabric/pkg/metrics"
	"github.com/yusumcheung1103/delphi-fabric/pkg/msp"
)

// session holds the per-process clients built from one config
type session struct {
	cfg       *config.NetworkConfig
	identity  *msp.IdentityManager
	userStore msp.UserStore
	assembler *topology.Assembler
	metrics   *metrics.ClientMetrics
	gatherer  prom.Gatherer
}

func newSession(cfg *config.NetworkConfig) (*session, error) {
	provider, gatherer, err := metrics.NewProvider(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	var opts []msp.Option
	var userStore msp.UserStore
	if cfg.StateDBCacheDir != "" {
		userStore, err = msp.NewBadgerUserStore(cfg.StateDBCacheDir)
		if err != nil {
			return nil, errors.WithMessage(err, "opening user state store failed")
		}
		opts = append(opts, msp.WithUserStore(userStore))
	}

	idm, err := msp.NewIdentityManager(cfg, opts...)
	if err != nil {
		if userStore != nil {
			userStore.Close() // nolint: errcheck
		}
		return nil, err
	}

	return &session{
		cfg:       cfg,
		identity:  idm,
		userStore: userStore,
		assembler: topology.NewAssembler(cfg),
		metrics:   metrics.NewClientMetrics(provider),
		gatherer:  gatherer,
	}, nil
}

// adminClient returns a channel client signing as the CA admin of org
func (s *session) adminClient(ctx context.Context, channelName, org string) (*channel.Client, *topology.Channel, error) {
	signer, err := s.identity.EnrollAdmin(ctx, org)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "enrolling admin of %s failed", org)
	}
	return s.channelClient(channelName, signer)
}

// userClient provisions user in org when needed and returns a channel client signing as it
func (s *session) userClient(ctx context.Context, channelName, user, org string, role msp.Role, opts ...msp.IdentityOption) (*channel.Client, *topology.Channel, error) {
	signer, err := s.identity.EnsureIdentity(ctx, user, org, role, opts...)
	if err != nil {
		return nil, nil, errors.WithMessagef(err, "provisioning %s of %s failed", user, org)
	}
	return s.channelClient(channelName, signer)
}

func (s *session) channelClient(channelName string, signer fab.SigningIdentity) (*channel.Client, *topology.Channel, error) {
	ch, err := s.assembler.BuildChannel(channelName, false)
	if err != nil {
		return nil, nil, err
	}
	client, err := channel.NewFromChannel(ch, signer,
		channel.WithMetrics(s.metrics), channel.WithDefaultRetry(channel.RetryOpts(s.cfg.Retry)))
	if err != nil {
		return nil, nil, err
	}
	return client, ch, nil
}

// operations returns the operations endpoint, nil when no listen address is configured
func (s *session) operations(listenAddress string) *metrics.System {
	if listenAddress == "" {
		return nil
	}
	return metrics.NewSystem(listenAddress, s.gatherer)
}

func (s *session) Close() error {
	if s.userStore != nil {
		return s.userStore.Close()
	}
	return nil
}

// workerListenAddress offsets the port of addr so every worker gets its own endpoint
func workerListenAddress(addr string, index int) (string, error) {
	if addr == "" {
		return "", nil
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", errors.Wrapf(err, "invalid listen address [%s]", addr)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", errors.Wrapf(err, "invalid port in [%s]", addr)
	}
	if p == 0 {
		return addr, nil
	}
	return net.JoinHostPort(host, strconv.Itoa(p+index+1)), nil
}
