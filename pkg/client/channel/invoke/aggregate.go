/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package invoke

import (
	pb "github.com/hyperledger/fabric-protos-go/peer"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

// Verdict is a validator's judgement of one endorsement. A swallowed
// response failed in a way the application expects and does not count as invalid.
type Verdict struct {
	IsValid     bool
	IsSwallowed bool
}

// Validator judges a single proposal response
type Validator func(resp *pb.ProposalResponse) Verdict

// DefaultValidator accepts exactly the responses with status 200
func DefaultValidator(resp *pb.ProposalResponse) Verdict {
	return Verdict{IsValid: resp.GetResponse().GetStatus() == 200}
}

// AggregationResult reports how the endorsements of one proposal were judged.
// It carries the proposal, header and responses forward for the commit step.
type AggregationResult struct {
	InvalidCount   int
	SwallowedCount int
	Responses      []*fab.TransactionProposalResponse
	Verdicts       []Verdict
	Proposal       *fab.TransactionProposal
	Header         fab.TransactionHeader
}

// Aggregate runs validator over every response. InvalidCount counts responses
// judged invalid; SwallowedCount counts valid responses flagged as swallowed.
// It makes no policy decision.
func Aggregate(responses []*fab.TransactionProposalResponse, proposal *fab.TransactionProposal, header fab.TransactionHeader, validator Validator) *AggregationResult {
	if validator == nil {
		validator = DefaultValidator
	}

	result := &AggregationResult{
		Responses: responses,
		Verdicts:  make([]Verdict, len(responses)),
		Proposal:  proposal,
		Header:    header,
	}
	for i, r := range responses {
		verdict := validator(r.ProposalResponse)
		result.Verdicts[i] = verdict
		if !verdict.IsValid {
			result.InvalidCount++
			logger.Warnf("invalid endorsement from [%s]: status %d %s", r.Endorser,
				r.ProposalResponse.GetResponse().GetStatus(), r.ProposalResponse.GetResponse().GetMessage())
			continue
		}
		if verdict.IsSwallowed {
			result.SwallowedCount++
			logger.Infof("swallowed endorsement from [%s]: %s", r.Endorser, r.ProposalResponse.GetResponse().GetMessage())
		}
	}
	return result
}

// AllInvalid reports whether no response was judged valid
func (r *AggregationResult) AllInvalid() bool {
	return r.InvalidCount == len(r.Responses)
}

// ValidResponses returns the responses judged valid, in their original order
func (r *AggregationResult) ValidResponses() []*fab.TransactionProposalResponse {
	valid := make([]*fab.TransactionProposalResponse, 0, len(r.Responses)-r.InvalidCount)
	for i, resp := range r.Responses {
		if r.Verdicts[i].IsValid {
			valid = append(valid, resp)
		}
	}
	return valid
}
