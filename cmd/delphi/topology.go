/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/topology"
)

type ordererView struct {
	URL       string `yaml:"url"`
	TLSCACert string `yaml:"tlsCACert,omitempty"`
}

type peerView struct {
	URL       string `yaml:"url"`
	Org       string `yaml:"org"`
	MSPID     string `yaml:"mspID"`
	Index     int    `yaml:"index"`
	EventURL  string `yaml:"eventURL,omitempty"`
	TLSCACert string `yaml:"tlsCACert,omitempty"`
}

type channelView struct {
	Name          string        `yaml:"name"`
	EventWaitTime string        `yaml:"eventWaitTime"`
	Orderers      []ordererView `yaml:"orderers"`
	Peers         []peerView    `yaml:"peers"`
}

func newTopologyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "topology [channel]",
		Short: "Print the orderers and peers assembled for a channel.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := defaultChannel
			if len(args) == 1 {
				name = args[0]
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			ch, err := topology.NewAssembler(cfg).BuildChannel(name, false)
			if err != nil {
				return err
			}
			return dumpChannel(cmd.OutOrStdout(), ch)
		},
	}
}

func dumpChannel(w io.Writer, ch *topology.Channel) error {
	view := channelView{Name: ch.Name, EventWaitTime: ch.EventWaitTime.String()}
	for _, o := range ch.Orderers {
		view.Orderers = append(view.Orderers, ordererView{URL: o.URL(), TLSCACert: o.TLSCACert()})
	}
	for _, p := range ch.Peers {
		view.Peers = append(view.Peers, peerView{
			URL:       p.URL(),
			Org:       p.OrgName(),
			MSPID:     p.MSPID(),
			Index:     p.PeerIndex(),
			EventURL:  p.EventURL(),
			TLSCACert: p.TLSCACert(),
		})
	}
	out, err := yaml.Marshal(view)
	if err != nil {
		return errors.Wrap(err, "marshal of channel topology failed")
	}
	_, err = w.Write(out)
	return err
}
