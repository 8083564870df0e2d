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
	"github.com/gogo/protobuf/proto"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MutatedTxn can query and mutate. It has to be finished with Commit or
// Discard; both send nothing to the server unless a mutation was sent.
type MutatedTxn struct {
	handle
}

// Query runs q inside the transaction. Queries do not arm the commit.
func (txn *MutatedTxn) Query(ctx context.Context, q string) (*api.Response, error) {
	return txn.QueryWithVars(ctx, q, nil)
}

// QueryWithVars runs q with the given variables inside the transaction.
func (txn *MutatedTxn) QueryWithVars(ctx context.Context, q string, vars map[string]string) (*api.Response, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	return s.query(ctx, shapeBase, q, vars)
}

// Mutate sends mu. mu cannot be submitted again.
func (txn *MutatedTxn) Mutate(ctx context.Context, mu *Mutation) (*api.Response, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	if err = s.check(); err != nil {
		return nil, err
	}
	m, err := mu.take()
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, m, false)
}

// MutateAndCommitNow sends mu and commits it in the same call. The
// transaction is finished afterwards, whatever the outcome.
func (txn *MutatedTxn) MutateAndCommitNow(ctx context.Context, mu *Mutation) (*api.Response, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	if err = s.check(); err != nil {
		return nil, err
	}
	m, err := mu.take()
	if err != nil {
		return nil, err
	}
	txn.state = nil
	resp, err := s.mutate(ctx, m, true)
	if err != nil {
		return nil, err
	}
	s.context.CommitTs = resp.Txn.CommitTs
	txnCommittedNow.Inc()
	return resp, nil
}

func (s *txnState) mutate(ctx context.Context, mu *api.Mutation, commitNow bool) (*api.Response, error) {
	s.mutated = true
	mu.CommitNow = commitNow
	resp, err := s.stub.Mutate(ctx, &api.Request{
		StartTs:   s.context.StartTs,
		Mutations: []*api.Mutation{mu},
		CommitNow: commitNow,
	})
	if err != nil {
		return nil, err
	}
	return s.observe(resp)
}

func (s *txnState) observe(resp *api.Response) (*api.Response, error) {
	if resp.GetTxn() == nil {
		return nil, errors.WithStack(ErrMissingTxnContext)
	}
	if err := s.merge(resp.Txn); err != nil {
		return nil, err
	}
	return resp, nil
}

// Upsert runs q and the mutations of mu as one operation. Variables bound
// by q can be used in the mutations and their conditions.
func (txn *MutatedTxn) Upsert(ctx context.Context, q string, mu *UpsertMutation) (*api.Response, error) {
	return txn.UpsertWithVars(ctx, q, nil, mu)
}

// UpsertWithVars is Upsert with query variables.
func (txn *MutatedTxn) UpsertWithVars(ctx context.Context, q string, vars map[string]string, mu *UpsertMutation) (*api.Response, error) {
	return txn.upsert(ctx, q, vars, mu, false)
}

// UpsertAndCommitNow is Upsert committed in the same call. The transaction
// is finished afterwards.
func (txn *MutatedTxn) UpsertAndCommitNow(ctx context.Context, q string, mu *UpsertMutation) (*api.Response, error) {
	return txn.UpsertWithVarsAndCommitNow(ctx, q, nil, mu)
}

// UpsertWithVarsAndCommitNow is UpsertWithVars committed in the same call.
func (txn *MutatedTxn) UpsertWithVarsAndCommitNow(ctx context.Context, q string, vars map[string]string, mu *UpsertMutation) (*api.Response, error) {
	return txn.upsert(ctx, q, vars, mu, true)
}

func (txn *MutatedTxn) upsert(ctx context.Context, q string, vars map[string]string, mu *UpsertMutation, commitNow bool) (*api.Response, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	if err = s.check(); err != nil {
		return nil, err
	}
	mus, err := mu.take()
	if err != nil {
		return nil, err
	}
	if commitNow {
		txn.state = nil
	}

	s.mutated = true
	for _, m := range mus {
		m.CommitNow = false
	}
	resp, err := s.stub.Do(ctx, &api.Request{
		StartTs:   s.context.StartTs,
		Query:     q,
		Vars:      vars,
		Mutations: mus,
		CommitNow: commitNow,
	})
	if err != nil {
		if resp.GetTxn() != nil {
			// Keep the writes of the calls that succeeded abortable.
			if mergeErr := s.merge(resp.Txn); mergeErr != nil {
				return nil, mergeErr
			}
		}
		return nil, err
	}
	if resp, err = s.observe(resp); err != nil {
		return nil, err
	}
	if commitNow {
		s.context.CommitTs = resp.Txn.CommitTs
		txnCommittedNow.Inc()
	}
	return resp, nil
}

// Commit finishes the transaction and returns its final context. Nothing is
// sent if no mutation was sent before. A poisoned transaction is refused and
// stays open for Discard.
func (txn *MutatedTxn) Commit(ctx context.Context) (*api.TxnContext, error) {
	s, err := txn.live()
	if err != nil {
		return nil, err
	}
	if err = s.check(); err != nil {
		return nil, err
	}
	txn.state = nil
	if !s.mutated {
		txnSkippedNoMutates.Inc()
		return cloneContext(s.context), nil
	}
	s.context.Aborted = false
	resp, err := s.stub.CommitOrAbort(ctx, s.context)
	if err != nil {
		return nil, err
	}
	s.context.CommitTs = resp.GetCommitTs()
	txnCommitted.Inc()
	log.Debug("[dgraph] txn committed",
		zap.Uint64("start-ts", s.context.StartTs),
		zap.Uint64("commit-ts", s.context.CommitTs))
	return cloneContext(s.context), nil
}

// Discard aborts the transaction. Nothing is sent if no mutation was sent
// before. Discard is allowed after any error.
func (txn *MutatedTxn) Discard(ctx context.Context) error {
	s, err := txn.take()
	if err != nil {
		return err
	}
	s.context.Aborted = true
	if !s.mutated {
		txnSkippedNoMutates.Inc()
		return nil
	}
	if _, err = s.stub.CommitOrAbort(ctx, s.context); err != nil {
		return err
	}
	txnDiscarded.Inc()
	return nil
}

func cloneContext(c *api.TxnContext) *api.TxnContext {
	return proto.Clone(c).(*api.TxnContext)
}
