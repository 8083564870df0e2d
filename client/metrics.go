// Copyright 2020 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import "github.com/prometheus/client_golang/prometheus"

var (
	cmdDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dgraph_client",
			Subsystem: "cmd",
			Name:      "handle_cmds_duration_seconds",
			Help:      "Bucketed histogram of processing time (s) of handled success cmds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		}, []string{"type"})

	cmdFailedDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dgraph_client",
			Subsystem: "cmd",
			Name:      "handle_failed_cmds_duration_seconds",
			Help:      "Bucketed histogram of processing time (s) of failed handled cmds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		}, []string{"type"})

	txnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dgraph_client",
			Subsystem: "txn",
			Name:      "finished_total",
			Help:      "Counter of finished transactions by outcome.",
		}, []string{"outcome"})
)

var (
	// WithLabelValues is a heavy operation, define variable to avoid call it every time.
	cmdDurationLogin         = cmdDuration.WithLabelValues("login")
	cmdDurationQuery         = cmdDuration.WithLabelValues("query")
	cmdDurationMutate        = cmdDuration.WithLabelValues("mutate")
	cmdDurationDoRequest     = cmdDuration.WithLabelValues("do_request")
	cmdDurationAlter         = cmdDuration.WithLabelValues("alter")
	cmdDurationCommitOrAbort = cmdDuration.WithLabelValues("commit_or_abort")
	cmdDurationCheckVersion  = cmdDuration.WithLabelValues("check_version")

	cmdFailedDurationLogin         = cmdFailedDuration.WithLabelValues("login")
	cmdFailedDurationQuery         = cmdFailedDuration.WithLabelValues("query")
	cmdFailedDurationMutate        = cmdFailedDuration.WithLabelValues("mutate")
	cmdFailedDurationDoRequest     = cmdFailedDuration.WithLabelValues("do_request")
	cmdFailedDurationAlter         = cmdFailedDuration.WithLabelValues("alter")
	cmdFailedDurationCommitOrAbort = cmdFailedDuration.WithLabelValues("commit_or_abort")
	cmdFailedDurationCheckVersion  = cmdFailedDuration.WithLabelValues("check_version")

	txnCommitted        = txnCounter.WithLabelValues("committed")
	txnCommittedNow     = txnCounter.WithLabelValues("committed_now")
	txnDiscarded        = txnCounter.WithLabelValues("discarded")
	txnSkippedNoMutates = txnCounter.WithLabelValues("skipped")
)

func init() {
	prometheus.MustRegister(cmdDuration)
	prometheus.MustRegister(cmdFailedDuration)
	prometheus.MustRegister(txnCounter)
}
