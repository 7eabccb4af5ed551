/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	kitmetrics "github.com/go-kit/kit/metrics"
)

var (
	submissionsReceived = CounterOpts{
		Subsystem:  "channel",
		Name:       "submissions_received",
		Help:       "The number of transaction submissions received.",
		LabelNames: []string{"channel", "chaincode", "mode"},
	}
	submissionsFailed = CounterOpts{
		Subsystem:  "channel",
		Name:       "submissions_failed",
		Help:       "The number of transaction submissions that failed.",
		LabelNames: []string{"channel", "chaincode", "mode", "fail"},
	}
	submitDuration = HistogramOpts{
		Subsystem:  "channel",
		Name:       "submit_duration",
		Help:       "The time to complete a transaction submission, retries included.",
		LabelNames: []string{"channel", "chaincode", "mode"},
	}
	endorsements = CounterOpts{
		Subsystem:  "channel",
		Name:       "endorsements",
		Help:       "The number of endorsement responses by validation result.",
		LabelNames: []string{"channel", "result"},
	}
	commits = CounterOpts{
		Subsystem:  "channel",
		Name:       "commits",
		Help:       "The number of transactions accepted by an orderer.",
		LabelNames: []string{"channel", "orderer"},
	}
	retries = CounterOpts{
		Subsystem:  "channel",
		Name:       "retries",
		Help:       "The number of submissions retried after a propagation delay.",
		LabelNames: []string{"channel"},
	}
)

// ClientMetrics contains the metrics used in the channel client
type ClientMetrics struct {
	SubmissionsReceived kitmetrics.Counter
	SubmissionsFailed   kitmetrics.Counter
	SubmitDuration      kitmetrics.Histogram
	Endorsements        kitmetrics.Counter
	Commits             kitmetrics.Counter
	Retries             kitmetrics.Counter
}

// NewClientMetrics builds a new instance of ClientMetrics
func NewClientMetrics(p Provider) *ClientMetrics {
	return &ClientMetrics{
		SubmissionsReceived: p.NewCounter(submissionsReceived),
		SubmissionsFailed:   p.NewCounter(submissionsFailed),
		SubmitDuration:      p.NewHistogram(submitDuration),
		Endorsements:        p.NewCounter(endorsements),
		Commits:             p.NewCounter(commits),
		Retries:             p.NewCounter(retries),
	}
}

// NewDisabledClientMetrics returns ClientMetrics that record nothing
func NewDisabledClientMetrics() *ClientMetrics {
	return NewClientMetrics(&Disabled{})
}
