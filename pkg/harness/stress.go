/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel"
	"github.com/yusumcheung1103/delphi-fabric/pkg/client/channel/invoke"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/providers/fab"
)

const defaultProgressInterval = 10 * time.Second

// Submitter submits one transaction, *channel.Client implements it
type Submitter interface {
	Submit(ctx context.Context, request channel.Request, mode invoke.Mode, options ...channel.RequestOption) (channel.Response, error)
}

// Connect prepares the worker's client and the peers it targets. It runs
// inside the worker process.
type Connect func(ctx context.Context, org string, peerIndex int) (Submitter, []fab.ProposalProcessor, error)

// StressConfig describes a sequential submission loop against one peer
type StressConfig struct {
	Org              string
	PeerIndex        int
	Times            int
	Mode             invoke.Mode
	Request          channel.Request
	ProgressInterval time.Duration
}

// Stats counts the submissions of one stress run
type Stats struct {
	RunID     string
	Succeeded int64
	Elapsed   time.Duration
}

// StressTask returns a task that submits cfg.Request cfg.Times times, each
// submission starting only after the previous one completed. The loop stops
// at the first failure.
func StressTask(cfg StressConfig, connect Connect) Task {
	return Task{
		Name: fmt.Sprintf("%s/peer%d", cfg.Org, cfg.PeerIndex),
		Run: func(ctx context.Context, w WorkerInfo) error {
			client, targets, err := connect(ctx, cfg.Org, cfg.PeerIndex)
			if err != nil {
				return errors.WithMessagef(err, "connecting %s peer%d failed", cfg.Org, cfg.PeerIndex)
			}
			_, err = Stress(ctx, client, targets, cfg)
			return err
		},
	}
}

// Stress runs the sequential loop of cfg with client
func Stress(ctx context.Context, client Submitter, targets []fab.ProposalProcessor, cfg StressConfig) (Stats, error) {
	stats := Stats{RunID: uuid.New().String()}
	log := logger.With("run", stats.RunID, "org", cfg.Org, "peer", cfg.PeerIndex)

	if cfg.Times <= 0 {
		return stats, errors.Errorf("times must be positive, got %d", cfg.Times)
	}
	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}

	var succeeded atomic.Int64
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Infof("%s progress %d/%d", cfg.Mode, succeeded.Load(), cfg.Times)
			case <-done:
				return
			}
		}
	}()

	log.Infof("%s start %s peer%d times %d", cfg.Mode, cfg.Org, cfg.PeerIndex, cfg.Times)
	start := time.Now()
	var opts []channel.RequestOption
	if len(targets) > 0 {
		opts = append(opts, channel.WithTargets(targets...))
	}

	for i := 0; i < cfg.Times; i++ {
		if err := ctx.Err(); err != nil {
			stats.Succeeded, stats.Elapsed = succeeded.Load(), time.Since(start)
			return stats, errors.Wrapf(err, "stopped after %d submissions", stats.Succeeded)
		}
		if _, err := client.Submit(ctx, cfg.Request, cfg.Mode, opts...); err != nil {
			stats.Succeeded, stats.Elapsed = succeeded.Load(), time.Since(start)
			return stats, errors.WithMessagef(err, "submission %d of %d failed", i+1, cfg.Times)
		}
		succeeded.Inc()
	}

	stats.Succeeded, stats.Elapsed = succeeded.Load(), time.Since(start)
	log.Infof("%s end %s peer%d %d ms", cfg.Mode, cfg.Org, cfg.PeerIndex, stats.Elapsed.Milliseconds())
	return stats, nil
}
