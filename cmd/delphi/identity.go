/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yusumcheung1103/delphi-fabric/pkg/msp"
)

func newIdentityCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Provision identities at the organizations' CAs.",
	}
	cmd.AddCommand(newEnsureIdentityCmd(g), newEnrollAdminCmd(g))
	return cmd
}

func newEnsureIdentityCmd(g *globalFlags) *cobra.Command {
	var org, role string
	var tls bool

	cmd := &cobra.Command{
		Use:   "ensure <name>",
		Short: "Register and enroll an identity unless its material is already on disk.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
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

			var opts []msp.IdentityOption
			if tls {
				opts = append(opts, msp.WithTLS())
			}

			var identity *msp.Identity
			if r == msp.RolePeer {
				identity, err = s.identity.EnsurePeerIdentity(cmd.Context(), args[0], org, opts...)
			} else {
				identity, err = s.identity.EnsureIdentity(cmd.Context(), args[0], org, r, opts...)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", identity.IdentityIdentifier, identity.MSPID,
				s.identity.CredentialStore().Dir(identity.IdentityIdentifier))
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization name")
	cmd.Flags().StringVar(&role, "role", string(msp.RoleClient), "client, user or peer")
	cmd.Flags().BoolVar(&tls, "tls", false, "enroll at the TLS CA into tls/")
	cmd.MarkFlagRequired("org") // nolint: errcheck
	return cmd
}

func newEnrollAdminCmd(g *globalFlags) *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Enroll the CA admin of an organization.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close() // nolint: errcheck

			identity, err := s.identity.EnrollAdmin(cmd.Context(), org)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", identity.IdentityIdentifier, identity.MSPID)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "", "organization name")
	cmd.MarkFlagRequired("org") // nolint: errcheck
	return cmd
}

func parseRole(role string) (msp.Role, error) {
	switch r := msp.Role(role); r {
	case msp.RoleClient, msp.RoleUser, msp.RolePeer:
		return r, nil
	default:
		return "", errors.Errorf("unknown role [%s]", role)
	}
}
