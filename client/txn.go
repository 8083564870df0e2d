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
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// txnState is shared by all handles of one transaction. Exactly one handle
// owns it at a time.
type txnState struct {
	stub    *Stub
	context *api.TxnContext
	// mutated arms Commit and Discard. It is never reset.
	mutated bool
	// err is set when the context got corrupted.
	err error
}

func newTxnState(stub *Stub) *txnState {
	return &txnState{stub: stub, context: &api.TxnContext{}}
}

// check returns a non-nil error if the state must only be discarded.
func (s *txnState) check() error {
	if s.err != nil {
		return errors.WithMessagef(ErrTxnAborted, "%v", s.err)
	}
	return nil
}

// merge folds src into the transaction context. A mismatch poisons the state.
func (s *txnState) merge(src *api.TxnContext) error {
	if err := mergeContext(s.context, src); err != nil {
		log.Warn("[dgraph] txn context mismatch, transaction must be discarded",
			zap.Uint64("start-ts", s.context.StartTs),
			zap.Uint64("response-start-ts", src.StartTs))
		s.err = err
		return err
	}
	return nil
}

// shape fills the capability specific fields of an outgoing query.
type shape func(req *api.Request)

func shapeBase(req *api.Request) {}

func shapeReadOnly(req *api.Request) {
	shapeBase(req)
	req.ReadOnly = true
}

func shapeBestEffort(req *api.Request) {
	shapeReadOnly(req)
	req.BestEffort = true
}

func (s *txnState) query(ctx context.Context, sh shape, q string, vars map[string]string) (*api.Response, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	req := &api.Request{
		StartTs: s.context.StartTs,
		Query:   q,
		Vars:    vars,
	}
	sh(req)
	resp, err := s.stub.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.GetTxn() == nil {
		return nil, errors.WithStack(ErrEmptyTxn)
	}
	if err = s.merge(resp.Txn); err != nil {
		return nil, err
	}
	return resp, nil
}

// handle is embedded in every transaction type. An empty handle has been
// consumed by a transition, a commit or a discard.
type handle struct {
	state *txnState
}

// live returns the state without consuming the handle.
func (h *handle) live() (*txnState, error) {
	if h.state == nil {
		return nil, errors.WithStack(ErrFinished)
	}
	return h.state, nil
}

// take moves the state out of the handle.
func (h *handle) take() (*txnState, error) {
	s, err := h.live()
	if err != nil {
		return nil, err
	}
	h.state = nil
	return s, nil
}

// Context returns a copy of the transaction context, or nil if the handle
// was consumed.
func (h *handle) Context() *api.TxnContext {
	if h.state == nil {
		return nil
	}
	return cloneContext(h.state.context)
}

// Txn is a freshly created transaction. It cannot query or mutate; it has to
// be specialized with ReadOnly or Mutated first.
type Txn struct {
	handle
}

func newTxn(stub *Stub) *Txn {
	return &Txn{handle{state: newTxnState(stub)}}
}

// ReadOnly turns the transaction into a read-only one. The receiver is
// unusable afterwards.
func (txn *Txn) ReadOnly() *ReadOnlyTxn {
	s, _ := txn.take()
	return &ReadOnlyTxn{handle{state: s}}
}

// Mutated turns the transaction into one that may mutate. The receiver is
// unusable afterwards.
func (txn *Txn) Mutated() *MutatedTxn {
	s, _ := txn.take()
	return &MutatedTxn{handle{state: s}}
}
