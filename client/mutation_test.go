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
	"github.com/dgraph-io/dgo/v2/protos/api"
	. "github.com/pingcap/check"
	"github.com/pkg/errors"
)

var _ = Suite(&testMutationSuite{})

type testMutationSuite struct{}

func (s *testMutationSuite) TestBuilders(c *C) {
	mu := NewMutation()
	c.Assert(mu.SetJSON(map[string]interface{}{"uid": "_:a", "name": "alice"}), IsNil)
	c.Assert(mu.DeleteJSON(map[string]string{"uid": "0x1"}), IsNil)
	nq := []*api.NQuad{{Subject: "_:a", Predicate: "name", ObjectValue: &api.Value{Val: &api.Value_StrVal{StrVal: "alice"}}}}
	mu.SetNquads(`_:a <age> "3" .`).
		DeleteNquads(`<0x1> * * .`).
		SetNQuads(nq).
		DeleteNQuads(nq).
		SetCond("@if(eq(len(u), 0))")

	m, err := mu.take()
	c.Assert(err, IsNil)
	c.Assert(string(m.SetJson), Equals, `{"name":"alice","uid":"_:a"}`)
	c.Assert(string(m.DeleteJson), Equals, `{"uid":"0x1"}`)
	c.Assert(string(m.SetNquads), Equals, `_:a <age> "3" .`)
	c.Assert(string(m.DelNquads), Equals, `<0x1> * * .`)
	c.Assert(m.Set, HasLen, 1)
	c.Assert(m.Del, HasLen, 1)
	c.Assert(m.Cond, Equals, "@if(eq(len(u), 0))")
}

func (s *testMutationSuite) TestJSONError(c *C) {
	mu := NewMutation()
	c.Assert(mu.SetJSON(make(chan int)), NotNil)
	c.Assert(mu.DeleteJSON(func() {}), NotNil)
	m, err := mu.take()
	c.Assert(err, IsNil)
	c.Assert(m.SetJson, IsNil)
}

func (s *testMutationSuite) TestTakeOnce(c *C) {
	mu := newTestMutation("a")
	_, err := mu.take()
	c.Assert(err, IsNil)
	_, err = mu.take()
	c.Assert(errors.Is(err, ErrMutationConsumed), Equals, true)
	// Builders after submission do not panic.
	mu.SetCond("@if(true)")

	var nilMu *Mutation
	_, err = nilMu.take()
	c.Assert(errors.Is(err, ErrNoMutations), Equals, true)
}

func (s *testMutationSuite) TestUpsertTakeAllOrNothing(c *C) {
	used := newTestMutation("used")
	_, err := used.take()
	c.Assert(err, IsNil)

	fresh := newTestMutation("fresh")
	up := NewUpsertMutation(fresh, used)
	c.Assert(up.Len(), Equals, 2)
	_, err = up.take()
	c.Assert(errors.Is(err, ErrMutationConsumed), Equals, true)
	// fresh is still usable.
	_, err = fresh.take()
	c.Assert(err, IsNil)

	up, err = UpsertMutationOf([]*Mutation{newTestMutation("a"), newTestMutation("b"), newTestMutation("c")})
	c.Assert(err, IsNil)
	mus, err := up.take()
	c.Assert(err, IsNil)
	c.Assert(mus, HasLen, 3)
	_, err = up.take()
	c.Assert(errors.Is(err, ErrMutationConsumed), Equals, true)

	// A mutation listed twice is refused before anything is consumed.
	twice := newTestMutation("twice")
	_, err = NewUpsertMutation(twice, newTestMutation("other"), twice).take()
	c.Assert(errors.Is(err, ErrMutationConsumed), Equals, true)
	mu, err := twice.take()
	c.Assert(err, IsNil)
	c.Assert(mu, NotNil)

	c.Assert(NewUpsertMutation(nil).Len(), Equals, 1)
	_, err = NewUpsertMutation(nil).take()
	c.Assert(errors.Is(err, ErrNoMutations), Equals, true)
}
