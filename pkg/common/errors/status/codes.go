/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package status

import (
	"strconv"

	"github.com/hyperledger/fabric-protos-go/common"
	grpcCodes "google.golang.org/grpc/codes"
)

// Code represents a status code
type Code uint32

const (
	// OK is returned on success.
	OK Code = 0

	// Unknown represents status codes that are uncategorized or unknown
	Unknown Code = 1

	// ConnectionFailed is returned when a network connection attempt fails
	ConnectionFailed Code = 2

	// Timeout operation timed out
	Timeout Code = 5

	// NoPeersFound no target peers were configured
	NoPeersFound Code = 6

	// MultipleErrors multiple errors occurred
	MultipleErrors Code = 7

	// GenericTransient is used by tests to indicate that a retry is possible
	GenericTransient Code = 12

	// MissingConfig a required configuration section is absent
	MissingConfig Code = 30

	// UnknownOrganization the organization is not declared in the network config
	UnknownOrganization Code = 31

	// UnknownChannel the channel is not declared in the network config
	UnknownChannel Code = 32

	// MissingPortMapping a peer has no host port mapped to the endorsement port
	MissingPortMapping Code = 33

	// AllEndorsementsInvalid every endorsement response failed validation
	AllEndorsementsInvalid Code = 34

	// RetriesExhausted a transient failure persisted past the retry ceiling
	RetriesExhausted Code = 35

	// IdentityAlreadyRegistered registering an enrollment ID that the CA
	// already knows about, reported under CAClientStatus
	IdentityAlreadyRegistered Code = 40

	// CreatorIdentityNotPropagated the endorser could not deserialize the
	// creator, which happens while a newly enrolled identity has not reached
	// every peer yet. Values above the common.Status range are free.
	CreatorIdentityNotPropagated Code = 1001
)

// CodeName maps the codes in this packages to human-readable strings
var CodeName = map[int32]string{
	0:    "OK",
	1:    "UNKNOWN",
	2:    "CONNECTION_FAILED",
	5:    "TIMEOUT",
	6:    "NO_PEERS_FOUND",
	7:    "MULTIPLE_ERRORS",
	12:   "GENERIC_TRANSIENT",
	30:   "MISSING_CONFIG",
	31:   "UNKNOWN_ORGANIZATION",
	32:   "UNKNOWN_CHANNEL",
	33:   "MISSING_PORT_MAPPING",
	34:   "ALL_ENDORSEMENTS_INVALID",
	35:   "RETRIES_EXHAUSTED",
	40:   "IDENTITY_ALREADY_REGISTERED",
	1001: "CREATOR_IDENTITY_NOT_PROPAGATED",
}

// ToInt32 cast to int32
func (c Code) ToInt32() int32 {
	return int32(c)
}

// String representation of the code
func (c Code) String() string {
	if s, ok := CodeName[c.ToInt32()]; ok {
		return s
	}
	return strconv.Itoa(int(c))
}

// ToSDKStatusCode cast to a client status code
func ToSDKStatusCode(c int32) Code {
	return Code(c)
}

// ToGRPCStatusCode cast to gRPC status code
func ToGRPCStatusCode(c int32) grpcCodes.Code {
	return grpcCodes.Code(c)
}

// ToFabricCommonStatusCode cast to common.Status
func ToFabricCommonStatusCode(c int32) common.Status {
	return common.Status(c)
}
