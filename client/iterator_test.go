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
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dgraph-io/dgo/v2/protos/api"
	. "github.com/pingcap/check"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ = Suite(&testIteratorSuite{})

type testIteratorSuite struct{}

type person struct {
	Name string `json:"name"`
}

// pagedDgraph serves total items in pages.
func pagedDgraph(total int) *fakeDgraph {
	f := newFakeDgraph(5)
	f.respond = func(req *api.Request, n int) (*api.Response, error) {
		first, _ := strconv.Atoi(req.Vars[IteratorFirstVar])
		offset, _ := strconv.Atoi(req.Vars[IteratorOffsetVar])
		var items []person
		for i := offset; i < offset+first && i < total; i++ {
			items = append(items, person{Name: fmt.Sprintf("p%d", i)})
		}
		data, _ := json.Marshal(map[string]interface{}{"items": items})
		resp := f.echo(req, n)
		resp.Json = data
		return resp, nil
	}
	return f
}

func (s *testIteratorSuite) TestPages(c *C) {
	for _, total := range []int{0, 1, 3, 4, 7} {
		f := pagedDgraph(total)
		txn := newTestTxn(f, ProtocolV1_1).ReadOnly()
		it := NewIterator(txn, "query", map[string]string{"$name": "x"}, 3)

		var names []string
		for it.Next(context.Background()) {
			var p person
			c.Assert(it.Decode(&p), IsNil)
			names = append(names, p.Name)
		}
		c.Assert(it.Err(), IsNil)
		c.Assert(names, HasLen, total)
		if total > 0 {
			c.Assert(names[total-1], Equals, fmt.Sprintf("p%d", total-1))
		}
		// A short page ends the iteration, a full one needs another query.
		c.Assert(len(f.requests), Equals, total/3+1, Commentf("total %d", total))
		c.Assert(f.requests[0].Vars["$name"], Equals, "x")
		c.Assert(it.Next(context.Background()), Equals, false)
	}
}

func (s *testIteratorSuite) TestError(c *C) {
	f := newFakeDgraph(5)
	f.fail = status.Error(codes.Unavailable, "down")
	it := NewIterator(newTestTxn(f, ProtocolV1_1).ReadOnly(), "query", nil, 10)
	c.Assert(it.Next(context.Background()), Equals, false)
	c.Assert(it.Err(), NotNil)
	c.Assert(it.Item(), IsNil)
	c.Assert(it.Decode(&person{}), NotNil)
}
