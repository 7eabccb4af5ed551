/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel"
	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel/invoke"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/topology"
	"github.com/yusumcheung1103/delphi-fabric/pkg/msp"
)

const defaultChannel = "delphiChannel"

type invokeFlags struct {
	channel     string
	org         string
	user        string
	role        string
	tls         bool
	chaincode   string
	fcn         string
	args        []string
	mode        string
	peers       string
	validExpr   string
	swallowExpr string
	timeout     time.Duration
}

func newInvokeCmd(g *globalFlags) *cobra.Command {
	f := &invokeFlags{}

	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Submit one chaincode invocation signed by an organization's admin or by a provisioned user.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := parseMode(f.mode)
			if err != nil {
				return err
			}
			indexes, err := parseIndexes(f.peers)
			if err != nil {
				return err
			}
			validator, err := f.validator()
			if err != nil {
				return err
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close() // nolint: errcheck

			client, err := f.client(cmd.Context(), s)
			if err != nil {
				return err
			}

			var opts []channel.RequestOption
			if len(indexes) > 0 {
				peers, err := s.assembler.NewPeers(f.org, indexes)
				if err != nil {
					return err
				}
				opts = append(opts, channel.WithTargets(topology.Targets(peers)...))
			}
			if validator != nil {
				opts = append(opts, channel.WithValidator(validator))
			}
			if f.timeout > 0 {
				opts = append(opts, channel.WithTimeout(f.timeout))
			}

			resp, err := client.Submit(cmd.Context(), channel.Request{
				ChaincodeID: f.chaincode,
				Fcn:         f.fcn,
				Args:        toBytes(f.args),
			}, mode, opts...)
			printResponse(cmd.OutOrStdout(), resp)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.channel, "channel", defaultChannel, "channel name")
	flags.StringVar(&f.org, "org", "", "organization whose admin or user signs")
	flags.StringVar(&f.user, "user", "", "sign as this user, registered and enrolled first when missing")
	flags.StringVar(&f.role, "role", string(msp.RoleClient), "role of --user: client, user or peer")
	flags.BoolVar(&f.tls, "tls", false, "also enroll --user at the TLS CA")
	flags.StringVar(&f.chaincode, "chaincode", "", "chaincode name")
	flags.StringVar(&f.fcn, "fcn", "", "chaincode function")
	flags.StringSliceVar(&f.args, "args", nil, "chaincode arguments")
	flags.StringVar(&f.mode, "mode", invoke.ValidatedCommit.String(), "validated-commit, propose-only or fire-and-forget")
	flags.StringVar(&f.peers, "peers", "", "comma separated peer indexes of --org, every channel peer when empty")
	flags.StringVar(&f.validExpr, "valid-expr", "", "expression over status, message and payload judging an endorsement valid")
	flags.StringVar(&f.swallowExpr, "swallow-expr", "", "expression flagging a valid endorsement as swallowed")
	flags.DurationVar(&f.timeout, "timeout", 0, "bound on the whole submission, retries included")
	cmd.MarkFlagRequired("org")       // nolint: errcheck
	cmd.MarkFlagRequired("chaincode") // nolint: errcheck
	return cmd
}

// client signs as --user when set, as the org admin otherwise
func (f *invokeFlags) client(ctx context.Context, s *session) (*channel.Client, error) {
	if f.user == "" {
		client, _, err := s.adminClient(ctx, f.channel, f.org)
		return client, err
	}
	role, err := parseRole(f.role)
	if err != nil {
		return nil, err
	}
	var opts []msp.IdentityOption
	if f.tls {
		opts = append(opts, msp.WithTLS())
	}
	client, _, err := s.userClient(ctx, f.channel, f.user, f.org, role, opts...)
	return client, err
}

func (f *invokeFlags) validator() (invoke.Validator, error) {
	if f.validExpr == "" && f.swallowExpr == "" {
		return nil, nil
	}
	valid := f.validExpr
	if valid == "" {
		valid = "status == 200"
	}
	return invoke.ExpressionValidator(valid, f.swallowExpr)
}

func parseMode(s string) (invoke.Mode, error) {
	for _, m := range []invoke.Mode{invoke.ValidatedCommit, invoke.ProposeOnly, invoke.FireAndForget} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, errors.Errorf("unknown mode [%s]", s)
}

func parseIndexes(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var indexes []int
	for _, part := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || i < 0 {
			return nil, errors.Errorf("invalid peer index [%s]", part)
		}
		indexes = append(indexes, i)
	}
	return indexes, nil
}

func toBytes(args []string) [][]byte {
	b := make([][]byte, len(args))
	for i, a := range args {
		b[i] = []byte(a)
	}
	return b
}

func printResponse(w io.Writer, resp channel.Response) {
	if resp.TransactionID == "" {
		return
	}
	fmt.Fprintf(w, "txID: %s\n", resp.TransactionID)
	fmt.Fprintf(w, "chaincodeStatus: %d\n", resp.ChaincodeStatus)
	fmt.Fprintf(w, "payload: %s\n", resp.Payload)
	fmt.Fprintf(w, "endorsements: %d\n", len(resp.Responses))
	if resp.Aggregation != nil {
		fmt.Fprintf(w, "invalid: %d\n", resp.Aggregation.InvalidCount)
		fmt.Fprintf(w, "swallowed: %d\n", resp.Aggregation.SwallowedCount)
	}
	if resp.Orderer != "" {
		fmt.Fprintf(w, "orderer: %s\n", resp.Orderer)
	}
}
