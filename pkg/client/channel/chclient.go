/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package channel submits chaincode invocations to the peers and orderers of
// one channel.
package channel

import (
	reqContext "context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel/invoke"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/retry"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/topology"
	"github.com/yusumcheung1103/delphi-fabric/pkg/metrics"
)

var logger = logging.NewLogger("delphi/channel")

// Client enables access to a channel on a Fabric network.
//
// A channel client instance submits transactions as one signing identity
// against the peers and orderers of one channel. An application that works
// on several channels creates one client per channel.
type Client struct {
	channelID string
	signer    fab.SigningIdentity
	targets   []fab.ProposalProcessor
	orderers  []fab.Orderer
	retryOpts retry.Opts
	metrics   *metrics.ClientMetrics
	handler   invoke.Handler
}

// ClientOption describes a functional parameter for the New constructor
type ClientOption func(*Client) error

// WithMetrics records submissions on m
func WithMetrics(m *metrics.ClientMetrics) ClientOption {
	return func(client *Client) error {
		if m == nil {
			return errors.New("metrics is nil")
		}
		client.metrics = m
		return nil
	}
}

// WithDefaultRetry sets the retry options used when a request does not set its own
func WithDefaultRetry(opts retry.Opts) ClientOption {
	return func(client *Client) error {
		client.retryOpts = opts
		return nil
	}
}

// New returns a Client instance for the given channel members
func New(channelID string, signer fab.SigningIdentity, targets []fab.ProposalProcessor, orderers []fab.Orderer, opts ...ClientOption) (*Client, error) {
	if signer == nil {
		return nil, errors.New("signing identity is required")
	}
	if len(orderers) == 0 {
		logger.Warnf("channel %s has no orderers, only propose-only submissions will succeed", channelID)
	}

	client := &Client{
		channelID: channelID,
		signer:    signer,
		targets:   targets,
		orderers:  orderers,
		retryOpts: retry.DefaultOpts,
		metrics:   metrics.NewDisabledClientMetrics(),
		handler:   invoke.NewSubmitHandler(),
	}
	for _, param := range opts {
		if err := param(client); err != nil {
			return nil, errors.WithMessage(err, "option failed")
		}
	}
	return client, nil
}

// NewFromChannel returns a Client for an assembled channel
func NewFromChannel(channel *topology.Channel, signer fab.SigningIdentity, opts ...ClientOption) (*Client, error) {
	if channel == nil {
		return nil, errors.New("channel is required")
	}
	return New(channel.Name, signer, channel.Targets(), channel.FabOrderers(), opts...)
}

// ChannelID returns the channel the client submits to
func (cc *Client) ChannelID() string {
	return cc.channelID
}

// Submit endorses request on every target and, depending on mode, sends the
// resulting transaction for ordering. Failures caused by an identity not yet
// propagated to the endorsers are retried after a fixed delay.
func (cc *Client) Submit(ctx reqContext.Context, request Request, mode invoke.Mode, options ...RequestOption) (Response, error) {
	if request.ChaincodeID == "" {
		return Response{}, errors.New("ChaincodeID is required")
	}

	txnOpts, err := cc.prepareOptsFromOptions(options...)
	if err != nil {
		return Response{}, err
	}

	if txnOpts.Timeout > 0 {
		var cancel reqContext.CancelFunc
		ctx, cancel = reqContext.WithTimeout(ctx, txnOpts.Timeout)
		defer cancel()
	}

	labels := []string{"channel", cc.channelID, "chaincode", request.ChaincodeID, "mode", mode.String()}
	cc.metrics.SubmissionsReceived.With(labels...).Add(1)
	start := time.Now()
	defer func() {
		cc.metrics.SubmitDuration.With(labels...).Observe(time.Since(start).Seconds())
	}()

	retryOpts := cc.retryOpts
	if txnOpts.Retry != nil {
		retryOpts = *txnOpts.Retry
	}
	invoker := retry.NewInvoker(retry.New(retryOpts), retry.WithBeforeRetry(func(attempt int, err error) {
		logger.Infof("attempt #%d of %s:%s on channel %s after [%s]", attempt, request.ChaincodeID, request.Fcn, cc.channelID, err)
		cc.metrics.Retries.With("channel", cc.channelID).Add(1)
	}))

	var last *invoke.Response
	_, err = invoker.Invoke(func() (interface{}, error) {
		requestContext := cc.prepareRequestContext(ctx, request, mode, txnOpts)
		cc.handler.Handle(requestContext, cc.clientContext())
		last = &requestContext.Response
		return last, requestContext.Error
	})

	var resp Response
	if last != nil {
		resp = Response(*last)
	}
	cc.record(&resp)

	if err != nil {
		cc.metrics.SubmissionsFailed.With(append(labels, "fail", failLabel(err))...).Add(1)
		return resp, err
	}
	return resp, nil
}

// record counts endorsement verdicts and commits
func (cc *Client) record(resp *Response) {
	if agg := resp.Aggregation; agg != nil {
		valid := len(agg.Responses) - agg.InvalidCount
		cc.metrics.Endorsements.With("channel", cc.channelID, "result", "valid").Add(float64(valid))
		cc.metrics.Endorsements.With("channel", cc.channelID, "result", "invalid").Add(float64(agg.InvalidCount))
		cc.metrics.Endorsements.With("channel", cc.channelID, "result", "swallowed").Add(float64(agg.SwallowedCount))
	}
	if resp.Orderer != "" {
		cc.metrics.Commits.With("channel", cc.channelID, "orderer", resp.Orderer).Add(1)
	}
}

func failLabel(err error) string {
	s, ok := status.FromError(err)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s_%d", s.Group, s.Code)
}

func (cc *Client) prepareRequestContext(ctx reqContext.Context, request Request, mode invoke.Mode, o requestOptions) *invoke.RequestContext {
	return &invoke.RequestContext{
		Request: invoke.Request(request),
		Opts: invoke.Opts{
			Targets:   o.Targets,
			Validator: o.Validator,
		},
		Mode:     mode,
		Response: invoke.Response{},
		Ctx:      ctx,
	}
}

func (cc *Client) clientContext() *invoke.ClientContext {
	return &invoke.ClientContext{
		Signer:    cc.signer,
		ChannelID: cc.channelID,
		Targets:   cc.targets,
		Orderers:  cc.orderers,
	}
}

//prepareOptsFromOptions Reads apitxn.Opts from Option array
func (cc *Client) prepareOptsFromOptions(options ...RequestOption) (requestOptions, error) {
	txnOpts := requestOptions{}
	for _, option := range options {
		err := option(&txnOpts)
		if err != nil {
			return txnOpts, errors.WithMessage(err, "Failed to read opts")
		}
	}
	return txnOpts, nil
}
