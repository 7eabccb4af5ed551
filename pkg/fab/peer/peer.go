/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package peer

import (
	reqContext "context"
	"time"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/comm"
)

var logger = logging.NewLogger("delphi/peer")

// Peer represents a node in the target blockchain network to which
// proposals are sent for endorsement.
type Peer struct {
	endpoint    comm.Endpoint
	processor   fab.ProposalProcessor
	connector   comm.Connector
	dialTimeout time.Duration
	mspID       string
	orgName     string
	index       int
	eventURL    string
}

// Option describes a functional parameter for the New constructor
type Option func(*Peer) error

// New Returns a new Peer instance
func New(opts ...Option) (*Peer, error) {
	peer := &Peer{
		connector:   &comm.OneShotConnector{},
		dialTimeout: comm.DefaultDialTimeout,
	}

	for _, opt := range opts {
		if err := opt(peer); err != nil {
			return nil, err
		}
	}

	if peer.processor == nil {
		if peer.endpoint.URL == "" {
			return nil, errors.New("peer URL is required")
		}
		processor, err := newPeerEndorser(&peer.endpoint, peer.connector, peer.dialTimeout)
		if err != nil {
			return nil, err
		}
		peer.processor = processor
	}

	return peer, nil
}

// WithURL is a functional option for the peer.New constructor that configures the peer's URL
func WithURL(url string) Option {
	return func(p *Peer) error {
		p.endpoint.URL = url
		return nil
	}
}

// WithEndpoint configures the URL, TLS root and gRPC options of the peer
func WithEndpoint(ep comm.Endpoint) Option {
	return func(p *Peer) error {
		p.endpoint = ep
		return nil
	}
}

// WithMSPID is a functional option for the peer.New constructor that configures the peer's msp ID
func WithMSPID(mspID string) Option {
	return func(p *Peer) error {
		p.mspID = mspID
		return nil
	}
}

// WithOrg records the organization and index the peer was assembled from
func WithOrg(orgName string, index int) Option {
	return func(p *Peer) error {
		p.orgName = orgName
		p.index = index
		return nil
	}
}

// WithEventURL sets the peer's event service address
func WithEventURL(url string) Option {
	return func(p *Peer) error {
		p.eventURL = url
		return nil
	}
}

// WithConnector shares a connection cache between peers
func WithConnector(connector comm.Connector) Option {
	return func(p *Peer) error {
		if connector == nil {
			return errors.New("connector is nil")
		}
		p.connector = connector
		return nil
	}
}

// WithDialTimeout bounds connection establishment
func WithDialTimeout(timeout time.Duration) Option {
	return func(p *Peer) error {
		p.dialTimeout = timeout
		return nil
	}
}

// WithPeerProcessor is a functional option for the peer.New constructor that configures the peer's proposal processor
func WithPeerProcessor(processor fab.ProposalProcessor) Option {
	return func(p *Peer) error {
		p.processor = processor
		return nil
	}
}

// MSPID gets the Peer mspID.
func (p *Peer) MSPID() string {
	return p.mspID
}

// URL gets the Peer URL. Required property for the instance objects.
// It returns the address of the Peer.
func (p *Peer) URL() string {
	return p.endpoint.URL
}

// TLSCACert is the path of the TLS root used to verify the peer, empty without TLS
func (p *Peer) TLSCACert() string {
	return p.endpoint.TLSCACert
}

// OrgName is the owning organization
func (p *Peer) OrgName() string {
	return p.orgName
}

// PeerIndex is the position of the peer in its organization's peer list
func (p *Peer) PeerIndex() int {
	return p.index
}

// EventURL is the address of the peer's event port, empty when not mapped
func (p *Peer) EventURL() string {
	return p.eventURL
}

// ProcessTransactionProposal sends the created proposal to peer for endorsement.
func (p *Peer) ProcessTransactionProposal(ctx reqContext.Context, proposal fab.ProcessProposalRequest) (*fab.TransactionProposalResponse, error) {
	return p.processor.ProcessTransactionProposal(ctx, proposal)
}

func (p *Peer) String() string {
	return p.endpoint.URL
}

// PeersToTxnProcessors converts a slice of Peers to a slice of TxnProposalProcessors
func PeersToTxnProcessors(peers []fab.Peer) []fab.ProposalProcessor {
	tpp := make([]fab.ProposalProcessor, len(peers))
	for i := range peers {
		tpp[i] = peers[i]
	}
	return tpp
}
