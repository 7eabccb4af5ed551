/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package orderer sends signed transaction envelopes to an ordering service node.
package orderer

import (
	reqContext "context"
	"io"
	"time"

	"github.com/hyperledger/fabric-protos-go/common"
	ab "github.com/hyperledger/fabric-protos-go/orderer"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/multi"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/comm"
)

var logger = logging.NewLogger("delphi/orderer")

// Orderer allows a client to broadcast a transaction.
type Orderer struct {
	endpoint       comm.Endpoint
	grpcDialOption []grpc.DialOption
	connector      comm.Connector
	dialTimeout    time.Duration
}

// Option describes a functional parameter for the New constructor
type Option func(*Orderer) error

// New Returns a Orderer Client instance
func New(opts ...Option) (*Orderer, error) {
	orderer := &Orderer{
		connector:   &comm.OneShotConnector{},
		dialTimeout: comm.DefaultDialTimeout,
	}

	for _, opt := range opts {
		if err := opt(orderer); err != nil {
			return nil, err
		}
	}

	if orderer.endpoint.URL == "" {
		return nil, errors.New("orderer URL is required")
	}

	grpcOpts, err := comm.DialOptions(&orderer.endpoint)
	if err != nil {
		return nil, errors.WithMessagef(err, "orderer [%s]", orderer.endpoint.URL)
	}
	orderer.grpcDialOption = grpcOpts
	return orderer, nil
}

// WithURL is a functional option for the orderer.New constructor that configures the orderer's URL.
func WithURL(url string) Option {
	return func(o *Orderer) error {
		o.endpoint.URL = url
		return nil
	}
}

// WithEndpoint configures the URL, TLS root and gRPC options of the orderer
func WithEndpoint(ep comm.Endpoint) Option {
	return func(o *Orderer) error {
		o.endpoint = ep
		return nil
	}
}

// WithConnector shares a connection cache between orderers
func WithConnector(connector comm.Connector) Option {
	return func(o *Orderer) error {
		if connector == nil {
			return errors.New("connector is nil")
		}
		o.connector = connector
		return nil
	}
}

// WithDialTimeout bounds connection establishment
func WithDialTimeout(timeout time.Duration) Option {
	return func(o *Orderer) error {
		o.dialTimeout = timeout
		return nil
	}
}

// URL Get the Orderer url. Required property for the instance objects.
func (o *Orderer) URL() string {
	return o.endpoint.URL
}

// TLSCACert is the path of the TLS root used to verify the orderer, empty without TLS
func (o *Orderer) TLSCACert() string {
	return o.endpoint.TLSCACert
}

func (o *Orderer) String() string {
	return o.endpoint.URL
}

func (o *Orderer) conn(ctx reqContext.Context) (*grpc.ClientConn, error) {
	ctx, cancel := reqContext.WithTimeout(ctx, o.dialTimeout)
	defer cancel()

	return o.connector.DialContext(ctx, comm.ToAddress(o.endpoint.URL), o.grpcDialOption...)
}

// SendBroadcast Send the created transaction to Orderer.
func (o *Orderer) SendBroadcast(ctx reqContext.Context, envelope *fab.SignedEnvelope) (*common.Status, error) {
	conn, err := o.conn(ctx)
	if err != nil {
		return nil, status.New(status.OrdererClientStatus, status.ConnectionFailed.ToInt32(), err.Error(), []interface{}{o.endpoint.URL})
	}
	defer o.connector.ReleaseConn(conn)

	broadcastClient, err := ab.NewAtomicBroadcastClient(conn).Broadcast(ctx)
	if err != nil {
		rpcStatus, ok := grpcstatus.FromError(err)
		if ok {
			err = status.NewFromGRPCStatus(rpcStatus)
		}
		return nil, errors.Wrap(err, "NewAtomicBroadcastClient failed")
	}

	responses := make(chan common.Status)
	errs := make(chan error, 1)

	go broadcastStream(broadcastClient, responses, errs)

	err = broadcastClient.Send(&common.Envelope{
		Payload:   envelope.Payload,
		Signature: envelope.Signature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to send envelope to orderer")
	}
	if err = broadcastClient.CloseSend(); err != nil {
		logger.Debugf("unable to close broadcast client [%s]", err)
	}

	return wrapStreamStatusRPC(responses, errs)
}

// wrapStreamStatusRPC returns the last response and err and blocks until the chan is closed.
func wrapStreamStatusRPC(responses chan common.Status, errs chan error) (*common.Status, error) {
	var s common.Status
	var err multi.Errors

read:
	for {
		select {
		case r, ok := <-responses:
			if !ok {
				break read
			}
			s = r
		case e := <-errs:
			err = append(err, e)
		}
	}

	// drain remaining errors.
	for i := 0; i < len(errs); i++ {
		err = append(err, <-errs)
	}

	return &s, err.ToError()
}

func broadcastStream(broadcastClient ab.AtomicBroadcast_BroadcastClient, responses chan common.Status, errs chan error) {
	defer close(responses)
	for {
		broadcastResponse, err := broadcastClient.Recv()
		if err == io.EOF {
			return
		}

		if err != nil {
			rpcStatus, ok := grpcstatus.FromError(err)
			if ok {
				err = status.NewFromGRPCStatus(rpcStatus)
			}
			errs <- errors.Wrap(err, "broadcast recv failed")
			return
		}

		if broadcastResponse.Status != common.Status_SUCCESS {
			errs <- status.New(status.OrdererServerStatus, int32(broadcastResponse.Status), broadcastResponse.Info, nil)
			return
		}
		responses <- broadcastResponse.Status
	}
}
