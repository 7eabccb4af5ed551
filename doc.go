/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package delphi provisions identities and drives transactions against a
// permissioned ledger network.
//
// Packages for end developer usage
//
// pkg/msp: Ensures identities exist at the organizations' CAs and on disk in
// the MSP directory layout, recording enrollment secrets in a sidecar store.
//
// pkg/fab/topology: Assembles the orderers and endorsing peers of a channel
// from the network configuration.
//
// pkg/client/channel: Submits chaincode invocations in propose-only,
// fire-and-forget or validated-commit mode, retrying while a new creator
// identity propagates.
//
// pkg/harness: Runs a task table with one OS process per task, and the
// sequential stress loop.
//
// cmd/delphi: Command line front end of the packages above.
package delphi
