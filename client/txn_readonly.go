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

import (
	"context"

	"github.com/dgraph-io/dgo/v2/protos/api"
)

// ReadOnlyTxn sends every query with read_only set.
type ReadOnlyTxn struct {
	handle
}

// Query runs q at the transaction's start ts.
func (txn *ReadOnlyTxn) Query(ctx context.Context, q string) (*api.Response, error) {
	return txn.QueryWithVars(ctx, q, nil)
}

// QueryWithVars runs q with the given variables.
func (txn *ReadOnlyTxn) QueryWithVars(ctx context.Context, q string, vars map[string]string) (*api.Response, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, shapeReadOnly, q, vars)
}

// BestEffort turns the transaction into a best-effort one. The receiver is
// unusable afterwards.
func (txn *ReadOnlyTxn) BestEffort() *BestEffortTxn {
	s, _ := txn.take()
	return &BestEffortTxn{handle{state: s}}
}

// Discard releases the transaction. Read-only transactions hold nothing on
// the server, so no RPC is sent.
func (txn *ReadOnlyTxn) Discard() error {
	_, err := txn.take()
	return err
}

// BestEffortTxn is a read-only transaction whose queries may be served from
// a timestamp cached by the server.
type BestEffortTxn struct {
	handle
}

// Query runs q in best-effort mode.
func (txn *BestEffortTxn) Query(ctx context.Context, q string) (*api.Response, error) {
	return txn.QueryWithVars(ctx, q, nil)
}

// QueryWithVars runs q with the given variables in best-effort mode.
func (txn *BestEffortTxn) QueryWithVars(ctx context.Context, q string, vars map[string]string) (*api.Response, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, shapeBestEffort, q, vars)
}

// Discard releases the transaction without an RPC.
func (txn *BestEffortTxn) Discard() error {
	_, err := txn.take()
	return err
}
