/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tedsuo/ifrit"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel"
	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel/invoke"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
	"github.com/yusumcheung1103/delphi-fabric/pkg/core/config"
	"github.com/yusumcheung1103/delphi-fabric/pkg/fab/topology"
	"github.com/yusumcheung1103/delphi-fabric/pkg/harness"
	"github.com/yusumcheung1103/delphi-fabric/pkg/metrics"
)

// stressFlags are parsed by the parent and forwarded verbatim to every worker
type stressFlags struct {
	channel   string
	chaincode string
	fcn       string
	args      []string
	times     int
	mode      string
	tasks     string
	progress  time.Duration
}

func (f *stressFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.channel, "channel", defaultChannel, "channel name")
	flags.StringVar(&f.chaincode, "chaincode", "stress", "chaincode name")
	flags.StringVar(&f.fcn, "fcn", "", "chaincode function, may be empty")
	flags.StringSliceVar(&f.args, "args", nil, "chaincode arguments")
	flags.IntVar(&f.times, "times", 100, "sequential submissions per worker")
	flags.StringVar(&f.mode, "mode", invoke.FireAndForget.String(), "validated-commit, propose-only or fire-and-forget")
	flags.StringVar(&f.tasks, "tasks", "BU:0,PM:0,ENG:0", "comma separated ORG:PEER_INDEX, one worker process each")
	flags.DurationVar(&f.progress, "progress", 10*time.Second, "progress log interval")
}

func (f *stressFlags) forward() []string {
	args := []string{
		"--channel", f.channel,
		"--chaincode", f.chaincode,
		"--fcn=" + f.fcn,
		"--times", strconv.Itoa(f.times),
		"--mode", f.mode,
		"--tasks", f.tasks,
		"--progress", f.progress.String(),
	}
	if len(f.args) > 0 {
		args = append(args, "--args", strings.Join(f.args, ","))
	}
	return args
}

// taskSpec is one ORG:PEER_INDEX entry of --tasks
type taskSpec struct {
	org   string
	index int
}

func parseTasks(s string) ([]taskSpec, error) {
	var specs []taskSpec
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 2 || parts[0] == "" {
			return nil, errors.Errorf("invalid task [%s], expected ORG:PEER_INDEX", entry)
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil || index < 0 {
			return nil, errors.Errorf("invalid peer index in task [%s]", entry)
		}
		specs = append(specs, taskSpec{org: parts[0], index: index})
	}
	if len(specs) == 0 {
		return nil, errors.New("no tasks")
	}
	return specs, nil
}

// taskTable builds the same table in the parent and in every worker, the
// parent only reads the names
func (f *stressFlags) taskTable(connect harness.Connect) ([]harness.Task, error) {
	mode, err := parseMode(f.mode)
	if err != nil {
		return nil, err
	}
	specs, err := parseTasks(f.tasks)
	if err != nil {
		return nil, err
	}
	tasks := make([]harness.Task, len(specs))
	for i, entry := range specs {
		tasks[i] = harness.StressTask(harness.StressConfig{
			Org:       entry.org,
			PeerIndex: entry.index,
			Times:     f.times,
			Mode:      mode,
			Request: channel.Request{
				ChaincodeID: f.chaincode,
				Fcn:         f.fcn,
				Args:        toBytes(f.args),
			},
			ProgressInterval: f.progress,
		}, connect)
	}
	return tasks, nil
}

func newStressCmd(g *globalFlags) *cobra.Command {
	f := &stressFlags{}

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run sequential submission loops, one worker process per task.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := f.taskTable(nil)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}

			executable, err := os.Executable()
			if err != nil {
				return errors.Wrap(err, "locating own executable failed")
			}
			workerArgs := append(append([]string{"worker"}, g.args()...), f.forward()...)
			command := func(index int) *exec.Cmd {
				return exec.Command(executable, workerArgs...)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Metrics.ListenAddress != "" {
				assembler := topology.NewAssembler(cfg)
				system := metrics.NewSystem(cfg.Metrics.ListenAddress, nil)
				err := system.RegisterChecker("topology", metrics.CheckerFunc(func(context.Context) error {
					_, err := assembler.BuildChannel(f.channel, false)
					return err
				}))
				if err != nil {
					return err
				}
				process := ifrit.Background(system)
				defer process.Signal(syscall.SIGTERM)
				select {
				case <-process.Ready():
					logger.Infof("operations endpoint listening on %s", system.Addr())
				case err := <-process.Wait():
					return errors.WithMessage(err, "operations endpoint failed")
				}
			}

			exits, err := harness.New(tasks, command).Run(ctx)
			if err != nil {
				return err
			}
			failed := 0
			for _, e := range exits {
				logger.Infof("task %d [%s] pid %d exit {code: %d, signal: %s}", e.Index, e.Name, e.PID, e.Code, e.Signal)
				if e.Code != 0 || e.Signal != "" {
					failed++
				}
			}
			if failed > 0 {
				return errors.Errorf("%d of %d workers failed", failed, len(exits))
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newWorkerCmd(g *globalFlags) *cobra.Command {
	f := &stressFlags{}
	var index int

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run one task of a stress table, started by stress.",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if index < 0 {
				i, ok, err := harness.WorkerIndex()
				if err != nil {
					return err
				}
				if !ok {
					return errors.Errorf("worker index missing, set --index or %s", harness.IndexEnv)
				}
				index = i
			}

			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			workerState(cfg, index)
			s, err := newSession(cfg)
			if err != nil {
				return err
			}
			defer s.Close() // nolint: errcheck

			tasks, err := f.taskTable(func(ctx context.Context, org string, peerIndex int) (harness.Submitter, []fab.ProposalProcessor, error) {
				client, _, err := s.adminClient(ctx, f.channel, org)
				if err != nil {
					return nil, nil, err
				}
				peers, err := s.assembler.NewPeers(org, []int{peerIndex})
				if err != nil {
					return nil, nil, err
				}
				return client, topology.Targets(peers), nil
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr, err := workerListenAddress(cfg.Metrics.ListenAddress, index)
			if err != nil {
				return err
			}
			if system := s.operations(addr); system != nil {
				process := ifrit.Background(system)
				defer process.Signal(syscall.SIGTERM)
				<-process.Ready()
			}

			if code := harness.RunWorker(ctx, tasks, index); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&index, "index", -1, fmt.Sprintf("task index, read from %s when negative", harness.IndexEnv))
	return cmd
}

// workerState gives every worker its own state directory, the badger store
// holds a directory lock
func workerState(cfg *config.NetworkConfig, index int) {
	if cfg.StateDBCacheDir != "" {
		cfg.StateDBCacheDir = filepath.Join(cfg.StateDBCacheDir, fmt.Sprintf("worker-%d", index))
	}
}

// exitError carries a worker exit code up to main
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("worker exit code %d", e.code)
}
