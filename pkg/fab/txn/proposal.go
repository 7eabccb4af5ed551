/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package txn

import (
	reqContext "context"

	"github.com/golang/protobuf/proto"
	"github.com/hyperledger/fabric-protos-go/common"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/multi"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

// CreateChaincodeInvokeProposal creates a proposal for transaction.
func CreateChaincodeInvokeProposal(txh fab.TransactionHeader, request fab.ChaincodeInvokeRequest) (*fab.TransactionProposal, error) {
	if request.ChaincodeID == "" {
		return nil, errors.New("ChaincodeID is required")
	}

	// Add function name to arguments, an empty name still takes the first slot
	argsArray := make([][]byte, len(request.Args)+1)
	argsArray[0] = []byte(request.Fcn)
	copy(argsArray[1:], request.Args)

	lang := request.Lang
	if lang == pb.ChaincodeSpec_UNDEFINED {
		lang = pb.ChaincodeSpec_GOLANG
	}

	ccis := &pb.ChaincodeInvocationSpec{ChaincodeSpec: &pb.ChaincodeSpec{
		Type: lang, ChaincodeId: &pb.ChaincodeID{Name: request.ChaincodeID},
		Input: &pb.ChaincodeInput{Args: argsArray, IsInit: request.IsInit}}}
	ccisBytes, err := proto.Marshal(ccis)
	if err != nil {
		return nil, errors.Wrap(err, "marshal of invocation spec failed")
	}

	payloadBytes, err := proto.Marshal(&pb.ChaincodeProposalPayload{Input: ccisBytes, TransientMap: request.TransientMap})
	if err != nil {
		return nil, errors.Wrap(err, "marshal of chaincode proposal payload failed")
	}

	channelHeader, err := CreateChannelHeader(common.HeaderType_ENDORSER_TRANSACTION, ChannelHeaderOpts{
		TxnHeader:   txh,
		ChaincodeID: request.ChaincodeID,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create channel header")
	}

	header, err := createHeader(txh, channelHeader)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create header")
	}
	headerBytes, err := proto.Marshal(header)
	if err != nil {
		return nil, errors.Wrap(err, "marshal of header failed")
	}

	tp := fab.TransactionProposal{
		TxnID:    txh.TransactionID(),
		Proposal: &pb.Proposal{Header: headerBytes, Payload: payloadBytes},
	}
	return &tp, nil
}

// SignProposal creates a SignedProposal signed by signer.
func SignProposal(signer fab.SigningIdentity, proposal *pb.Proposal) (*pb.SignedProposal, error) {
	proposalBytes, err := proto.Marshal(proposal)
	if err != nil {
		return nil, errors.Wrap(err, "mashal proposal failed")
	}

	signature, err := signer.Sign(proposalBytes)
	if err != nil {
		return nil, errors.WithMessage(err, "sign failed")
	}

	return &pb.SignedProposal{ProposalBytes: proposalBytes, Signature: signature}, nil
}

// SendProposal signs proposal and sends it to every target concurrently.
// Responses are returned in target order together with the errors of the
// targets that failed, so a partial failure still yields the successful
// responses.
func SendProposal(reqCtx reqContext.Context, signer fab.SigningIdentity, proposal *fab.TransactionProposal, targets []fab.ProposalProcessor) ([]*fab.TransactionProposalResponse, error) {
	if proposal == nil {
		return nil, errors.New("proposal is required")
	}

	if len(targets) < 1 {
		return nil, errors.New("targets is required")
	}

	for _, p := range targets {
		if p == nil {
			return nil, errors.New("target is nil")
		}
	}

	targets = getTargetsWithoutDuplicates(targets)

	signedProposal, err := SignProposal(signer, proposal.Proposal)
	if err != nil {
		return nil, errors.WithMessage(err, "sign proposal failed")
	}

	request := fab.ProcessProposalRequest{SignedProposal: signedProposal}

	results := make([]*fab.TransactionProposalResponse, len(targets))
	var errs multi.Collector
	wg := conc.NewWaitGroup()

	for i, p := range targets {
		i, processor := i, p
		wg.Go(func() {
			resp, err := processor.ProcessTransactionProposal(reqCtx, request)
			if err != nil {
				logger.Debugf("Received error response from txn proposal processing: %s", err)
				errs.Add(targetName(processor), err)
				return
			}
			results[i] = resp
		})
	}
	wg.Wait()

	responses := make([]*fab.TransactionProposalResponse, 0, len(results))
	for _, resp := range results {
		if resp != nil {
			responses = append(responses, resp)
		}
	}
	return responses, errs.Err()
}

func targetName(p fab.ProposalProcessor) string {
	if peer, ok := p.(fab.Peer); ok {
		return peer.URL()
	}
	return ""
}

// getTargetsWithoutDuplicates returns a list of targets without duplicates
func getTargetsWithoutDuplicates(targets []fab.ProposalProcessor) []fab.ProposalProcessor {
	peerUrlsToTargets := map[string]fab.ProposalProcessor{}
	var uniqueTargets []fab.ProposalProcessor

	for i := range targets {
		peer, ok := targets[i].(fab.Peer)
		if !ok {
			// ProposalProcessor is not a fab.Peer... cannot remove duplicates
			return targets
		}
		if _, present := peerUrlsToTargets[peer.URL()]; !present {
			uniqueTargets = append(uniqueTargets, targets[i])
			peerUrlsToTargets[peer.URL()] = targets[i]
		}
	}

	if len(uniqueTargets) != len(targets) {
		logger.Warn("Duplicate target peers in configuration")
	}

	return uniqueTargets
}
