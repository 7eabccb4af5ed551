/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package invoke

import (
	"github.com/golang/protobuf/proto"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/multi"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/txn"
)

var logger = logging.NewLogger("delphi/invoke")

//ProposalProcessorHandler for selecting proposal processors
type ProposalProcessorHandler struct {
	next Handler
}

//Handle selects proposal processors, falling back to the channel peers
func (h *ProposalProcessorHandler) Handle(requestContext *RequestContext, clientContext *ClientContext) {
	if len(requestContext.Opts.Targets) == 0 {
		requestContext.Opts.Targets = clientContext.Targets
	}
	if len(requestContext.Opts.Targets) == 0 {
		requestContext.Error = status.New(status.ClientStatus, status.NoPeersFound.ToInt32(), "targets were not provided", nil)
		return
	}

	//Delegate to next step if any
	if h.next != nil {
		h.next.Handle(requestContext, clientContext)
	}
}

//EndorsementHandler for handling endorse transactions
type EndorsementHandler struct {
	next Handler
}

//Handle for endorsing transactions
func (e *EndorsementHandler) Handle(requestContext *RequestContext, clientContext *ClientContext) {
	if len(requestContext.Opts.Targets) == 0 {
		requestContext.Error = status.New(status.ClientStatus, status.NoPeersFound.ToInt32(), "targets were not provided", nil)
		return
	}

	txh, err := txn.NewHeader(clientContext.Signer, clientContext.ChannelID)
	if err != nil {
		requestContext.Error = errors.WithMessage(err, "creation of transaction header failed")
		return
	}

	proposal, err := txn.CreateChaincodeInvokeProposal(txh, fab.ChaincodeInvokeRequest{
		ChaincodeID:  requestContext.Request.ChaincodeID,
		Fcn:          requestContext.Request.Fcn,
		Args:         requestContext.Request.Args,
		TransientMap: requestContext.Request.TransientMap,
	})
	if err != nil {
		requestContext.Error = errors.WithMessage(err, "creation of transaction proposal failed")
		return
	}

	requestContext.Response.Header = txh
	requestContext.Response.Proposal = proposal
	requestContext.Response.TransactionID = proposal.TxnID

	responses, err := txn.SendProposal(requestContext.Ctx, clientContext.Signer, proposal, requestContext.Opts.Targets)
	if err != nil {
		if len(responses) == 0 || status.Is(err, status.EndorserServerStatus, status.CreatorIdentityNotPropagated) {
			requestContext.Error = err
			return
		}
		logger.Warnf("endorsement of %s failed on %d target(s): %s", proposal.TxnID, len(errorsOf(err)), err)
		requestContext.Response.EndorsementErrors = err
	}

	requestContext.Response.Responses = responses
	responsePayload, err := getResultFromProposalResponse(responses[0].ProposalResponse)
	if err != nil {
		requestContext.Error = err
		return
	}
	requestContext.Response.Payload = responsePayload
	requestContext.Response.ChaincodeStatus = responses[0].ChaincodeStatus

	if requestContext.Mode == ProposeOnly {
		return
	}

	//Delegate to next step if any
	if e.next != nil {
		e.next.Handle(requestContext, clientContext)
	}
}

func errorsOf(err error) multi.Errors {
	if errs, ok := err.(multi.Errors); ok {
		return errs
	}
	return multi.Errors{err}
}

func getResultFromProposalResponse(proposalResponse *pb.ProposalResponse) ([]byte, error) {
	responsePayload := &pb.ProposalResponsePayload{}
	if err := proto.Unmarshal(proposalResponse.GetPayload(), responsePayload); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize proposal response payload")
	}

	chaincodeAction := &pb.ChaincodeAction{}
	if err := proto.Unmarshal(responsePayload.GetExtension(), chaincodeAction); err != nil {
		return nil, errors.Wrap(err, "failed to deserialize chaincode action")
	}

	return chaincodeAction.GetResponse().GetPayload(), nil
}

//AggregationHandler judges the endorsements before a validated commit
type AggregationHandler struct {
	next Handler
}

//Handle aggregates the proposal responses. Only ValidatedCommit is gated on the result.
func (a *AggregationHandler) Handle(requestContext *RequestContext, clientContext *ClientContext) {
	if requestContext.Mode == ValidatedCommit {
		resp := &requestContext.Response
		result := Aggregate(resp.Responses, resp.Proposal, resp.Header, requestContext.Opts.Validator)
		resp.Aggregation = result

		if result.AllInvalid() {
			requestContext.Error = status.New(status.EndorserClientStatus, status.AllEndorsementsInvalid.ToInt32(),
				"all endorsements are invalid", []interface{}{result.InvalidCount})
			return
		}
		if result.InvalidCount > 0 {
			logger.Warnf("%d of %d endorsements of %s are invalid", result.InvalidCount, len(result.Responses), resp.TransactionID)
		}
	}

	//Delegate to next step if any
	if a.next != nil {
		a.next.Handle(requestContext, clientContext)
	}
}

//CommitTxHandler for committing transactions
type CommitTxHandler struct {
	next Handler
}

//Handle handles commit tx
func (c *CommitTxHandler) Handle(requestContext *RequestContext, clientContext *ClientContext) {
	resp := &requestContext.Response

	responses := resp.Responses
	if requestContext.Mode == ValidatedCommit && resp.Aggregation != nil {
		responses = resp.Aggregation.ValidResponses()
	}

	tx, err := txn.NewUnverified(fab.TransactionRequest{Proposal: resp.Proposal, ProposalResponses: responses})
	if err != nil {
		requestContext.Error = errors.WithMessage(err, "CreateTransaction failed")
		return
	}

	txResp, err := txn.Send(requestContext.Ctx, clientContext.Signer, tx, clientContext.Orderers)
	if err != nil {
		requestContext.Error = errors.WithMessage(err, "SendTransaction failed")
		return
	}
	resp.Orderer = txResp.Orderer
	logger.Debugf("transaction %s accepted by %s", resp.TransactionID, txResp.Orderer)

	//Delegate to next step if any
	if c.next != nil {
		c.next.Handle(requestContext, clientContext)
	}
}

//NewSubmitHandler returns the full chain of ProposalProcessorHandler,
//EndorsementHandler, AggregationHandler and CommitTxHandler. The request
//Mode decides where the chain stops.
func NewSubmitHandler(next ...Handler) Handler {
	return NewProposalProcessorHandler(
		NewEndorsementHandler(
			NewAggregationHandler(
				NewCommitHandler(next...),
			),
		),
	)
}

//NewProposalProcessorHandler returns a handler that selects proposal processors
func NewProposalProcessorHandler(next ...Handler) *ProposalProcessorHandler {
	return &ProposalProcessorHandler{next: getNext(next)}
}

//NewEndorsementHandler returns a handler that endorses a transaction proposal
func NewEndorsementHandler(next ...Handler) *EndorsementHandler {
	return &EndorsementHandler{next: getNext(next)}
}

//NewAggregationHandler returns a handler that aggregates endorsements
func NewAggregationHandler(next ...Handler) *AggregationHandler {
	return &AggregationHandler{next: getNext(next)}
}

//NewCommitHandler returns a handler that commits transaction propsal responses
func NewCommitHandler(next ...Handler) *CommitTxHandler {
	return &CommitTxHandler{next: getNext(next)}
}

func getNext(next []Handler) Handler {
	if len(next) > 0 {
		return next[0]
	}
	return nil
}
