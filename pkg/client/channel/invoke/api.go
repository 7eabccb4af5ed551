/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package invoke provides the handlers for performing chaincode invocations.
package invoke

import (
	reqContext "context"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

// Mode selects how far a submission goes
type Mode int

const (
	// ValidatedCommit aggregates the endorsements and commits only the valid
	// ones, aborting when none is valid
	ValidatedCommit Mode = iota
	// ProposeOnly stops after endorsement
	ProposeOnly
	// FireAndForget commits every endorsement without validation
	FireAndForget
)

func (m Mode) String() string {
	switch m {
	case ProposeOnly:
		return "propose-only"
	case FireAndForget:
		return "fire-and-forget"
	default:
		return "validated-commit"
	}
}

// Opts allows the user to specify more advanced options
type Opts struct {
	// Targets overrides the channel peers
	Targets []fab.ProposalProcessor
	// Validator judges each endorsement, DefaultValidator when nil
	Validator Validator
}

// Request contains the parameters to execute transaction
type Request struct {
	ChaincodeID  string
	Fcn          string
	Args         [][]byte
	TransientMap map[string][]byte
}

// Response contains response parameters for query and execute transaction
type Response struct {
	Payload         []byte
	TransactionID   fab.TransactionID
	ChaincodeStatus int32
	Proposal        *fab.TransactionProposal
	Header          fab.TransactionHeader
	Responses       []*fab.TransactionProposalResponse
	// EndorsementErrors holds the failures of targets that returned no response
	EndorsementErrors error
	// Aggregation is set in ValidatedCommit mode
	Aggregation *AggregationResult
	// Orderer is the orderer that accepted the transaction, empty when nothing was committed
	Orderer string
}

// Handler for chaining transaction executions
type Handler interface {
	Handle(context *RequestContext, clientContext *ClientContext)
}

// ClientContext contains context parameters for handler execution
type ClientContext struct {
	Signer    fab.SigningIdentity
	ChannelID string
	Targets   []fab.ProposalProcessor
	Orderers  []fab.Orderer
}

// RequestContext contains request, opts, response parameters for handler execution
type RequestContext struct {
	Request  Request
	Opts     Opts
	Mode     Mode
	Response Response
	Error    error
	Ctx      reqContext.Context
}
