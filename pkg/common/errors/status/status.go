/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package status defines metadata for errors returned by the provisioning and
// submission components. The group identifies the component that detected the
// failure and the code identifies the failure within that group. Failure kinds
// are assigned where the failure is detected (CA client, peer client, topology
// assembler) so that callers never need to inspect error text.
package status

import (
	"fmt"

	"github.com/pkg/errors"

	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/multi"
	grpcstatus "google.golang.org/grpc/status"
)

// Status provides additional information about an unsuccessful operation.
type Status struct {
	// Group status group
	Group Group
	// Code status code
	Code int32
	// Message status message
	Message string
	// Details any additional status details
	Details []interface{}
}

// Group of status to help users infer status codes from various components
type Group int32

const (
	// UnknownStatus unknown status group
	UnknownStatus Group = iota

	// GRPCTransportStatus is the status associated with requests made over
	// gRPC connections
	GRPCTransportStatus
	// HTTPTransportStatus is the status associated with requests made over HTTP
	// connections
	HTTPTransportStatus

	// EndorserServerStatus status returned by the endorser server
	EndorserServerStatus
	// OrdererServerStatus status returned by the ordering service
	OrdererServerStatus
	// FabricCAServerStatus status returned by the Fabric CA server
	FabricCAServerStatus

	// EndorserClientStatus status inferred by the endorsement pipeline
	EndorserClientStatus
	// OrdererClientStatus status inferred by the orderer client
	OrdererClientStatus
	// ClientStatus is a generic client status, mostly configuration errors
	ClientStatus

	// TestStatus is used by tests to create retry codes.
	TestStatus

	// CAClientStatus status inferred by the CA client from a server response.
	// Its codes never collide with the numbers the CA server reports under
	// FabricCAServerStatus.
	CAClientStatus
)

// GroupName maps the groups in this packages to human-readable strings
var GroupName = map[int32]string{
	0:  "Unknown",
	1:  "gRPC Transport Status",
	2:  "HTTP Transport Status",
	3:  "Endorser Server Status",
	4:  "Orderer Server Status",
	5:  "Fabric CA Server Status",
	6:  "Endorser Client Status",
	7:  "Orderer Client Status",
	8:  "Client Status",
	9:  "Test status",
	10: "CA Client Status",
}

func (g Group) String() string {
	if s, ok := GroupName[int32(g)]; ok {
		return s
	}
	return UnknownStatus.String()
}

// FromError returns a Status representing err if available,
// otherwise it returns nil, false.
func FromError(err error) (s *Status, ok bool) {
	if err == nil {
		return &Status{Code: int32(OK)}, true
	}
	if s, ok := err.(*Status); ok {
		return s, true
	}
	unwrappedErr := errors.Cause(err)
	if s, ok := unwrappedErr.(*Status); ok {
		return s, true
	}
	if m, ok := unwrappedErr.(multi.Errors); ok {
		var details []interface{}
		for _, e := range m {
			details = append(details, e)
		}
		return New(ClientStatus, MultipleErrors.ToInt32(), m.Error(), details), true
	}

	return nil, false
}

// Is reports whether err carries a status of the given group and code.
// Multi errors match when any of their members match.
func Is(err error, group Group, code Code) bool {
	if err == nil {
		return false
	}
	if m, ok := errors.Cause(err).(multi.Errors); ok {
		for _, e := range m {
			if Is(e, group, code) {
				return true
			}
		}
		return false
	}
	s, ok := FromError(err)
	return ok && s.Group == group && s.Code == code.ToInt32()
}

func (s *Status) Error() string {
	return fmt.Sprintf("%s Code: (%d) %s. Description: %s", s.Group.String(), s.Code, s.codeString(), s.Message)
}

func (s *Status) codeString() string {
	switch s.Group {
	case GRPCTransportStatus:
		return ToGRPCStatusCode(s.Code).String()
	case EndorserServerStatus, OrdererServerStatus:
		if name, ok := CodeName[s.Code]; ok && s.Code >= CreatorIdentityNotPropagated.ToInt32() {
			return name
		}
		return ToFabricCommonStatusCode(s.Code).String()
	case FabricCAServerStatus:
		// the CA numbers its errors in its own space
		return "CA_SERVER_ERROR"
	case EndorserClientStatus, OrdererClientStatus, ClientStatus, CAClientStatus, TestStatus:
		return ToSDKStatusCode(s.Code).String()
	default:
		return Unknown.String()
	}
}

// New returns a Status with the given parameters
func New(group Group, code int32, msg string, details []interface{}) *Status {
	return &Status{Group: group, Code: code, Message: msg, Details: details}
}

// Errorf returns a Status in the given group and code with a formatted message
func Errorf(group Group, code Code, format string, args ...interface{}) *Status {
	return New(group, code.ToInt32(), fmt.Sprintf(format, args...), nil)
}

// NewFromProposalResponse creates a status created from the given ProposalResponse
func NewFromProposalResponse(res *pb.ProposalResponse, endorser string) *Status {
	if res == nil || res.Response == nil {
		return nil
	}
	details := []interface{}{endorser, res.Response.Payload}

	return New(EndorserServerStatus, res.Response.Status, res.Response.Message, details)
}

// NewFromGRPCStatus new Status from gRPC status response
func NewFromGRPCStatus(s *grpcstatus.Status) *Status {
	if s == nil {
		return nil
	}
	details := make([]interface{}, len(s.Proto().Details))
	for i, detail := range s.Proto().Details {
		details[i] = detail
	}

	return &Status{Group: GRPCTransportStatus, Code: s.Proto().Code,
		Message: s.Message(), Details: details}
}
