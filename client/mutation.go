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
	"encoding/json"

	"github.com/dgraph-io/dgo/v2/protos/api"
	"github.com/pkg/errors"
)

// Mutation accumulates set and delete payloads. It is consumed by the first
// call that submits it.
type Mutation struct {
	mu       *api.Mutation
	consumed bool
}

// NewMutation returns an empty mutation.
func NewMutation() *Mutation {
	return &Mutation{mu: &api.Mutation{}}
}

// SetJSON encodes v as the set payload.
func (m *Mutation) SetJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	m.proto().SetJson = b
	return nil
}

// DeleteJSON encodes v as the delete payload.
func (m *Mutation) DeleteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.WithStack(err)
	}
	m.proto().DeleteJson = b
	return nil
}

// SetNquads sets the RDF triples to add.
func (m *Mutation) SetNquads(nquads string) *Mutation {
	m.proto().SetNquads = []byte(nquads)
	return m
}

// DeleteNquads sets the RDF triples to delete.
func (m *Mutation) DeleteNquads(nquads string) *Mutation {
	m.proto().DelNquads = []byte(nquads)
	return m
}

// SetNQuads sets structured triples to add.
func (m *Mutation) SetNQuads(nquads []*api.NQuad) *Mutation {
	m.proto().Set = nquads
	return m
}

// DeleteNQuads sets structured triples to delete.
func (m *Mutation) DeleteNQuads(nquads []*api.NQuad) *Mutation {
	m.proto().Del = nquads
	return m
}

// SetCond sets the condition evaluated by the server before the mutation is
// applied, e.g. "@if(eq(len(u), 0))".
func (m *Mutation) SetCond(cond string) *Mutation {
	m.proto().Cond = cond
	return m
}

// proto returns the underlying message. Builders called after submission
// write into a detached message and have no effect.
func (m *Mutation) proto() *api.Mutation {
	if m.mu == nil {
		return &api.Mutation{}
	}
	return m.mu
}

func (m *Mutation) take() (*api.Mutation, error) {
	if m == nil {
		return nil, errors.WithStack(ErrNoMutations)
	}
	if m.consumed {
		return nil, errors.WithStack(ErrMutationConsumed)
	}
	mu := m.mu
	m.mu, m.consumed = nil, true
	return mu, nil
}

// UpsertMutation carries the mutations of one upsert. Each of them may be
// guarded by its own condition.
type UpsertMutation struct {
	mutations []*Mutation
}

// NewUpsertMutation builds an upsert from one or more mutations.
func NewUpsertMutation(mu *Mutation, more ...*Mutation) *UpsertMutation {
	return &UpsertMutation{mutations: append([]*Mutation{mu}, more...)}
}

// UpsertMutationOf builds an upsert from a slice of mutations.
func UpsertMutationOf(mus []*Mutation) (*UpsertMutation, error) {
	if len(mus) == 0 {
		return nil, errors.WithStack(ErrNoMutations)
	}
	return &UpsertMutation{mutations: append([]*Mutation(nil), mus...)}, nil
}

// Len returns the number of mutations.
func (u *UpsertMutation) Len() int {
	if u == nil {
		return 0
	}
	return len(u.mutations)
}

// take consumes all mutations, or none of them if any cannot be submitted.
func (u *UpsertMutation) take() ([]*api.Mutation, error) {
	if u.Len() == 0 {
		return nil, errors.WithStack(ErrNoMutations)
	}
	seen := make(map[*Mutation]struct{}, len(u.mutations))
	for _, m := range u.mutations {
		if m == nil {
			return nil, errors.WithStack(ErrNoMutations)
		}
		if _, dup := seen[m]; dup || m.consumed {
			return nil, errors.WithStack(ErrMutationConsumed)
		}
		seen[m] = struct{}{}
	}
	mus := make([]*api.Mutation, 0, len(u.mutations))
	for _, m := range u.mutations {
		mu, err := m.take()
		if err != nil {
			return nil, err
		}
		mus = append(mus, mu)
	}
	return mus, nil
}
