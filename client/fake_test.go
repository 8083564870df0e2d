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
	"fmt"

	"github.com/dgraph-io/dgo/v2/protos/api"
	"github.com/gogo/protobuf/proto"
	"google.golang.org/grpc"
)

// fakeDgraph is an api.DgraphClient recording every call. By default it
// echoes the start ts of the request, or hands out startTs for a new
// transaction, and reports one key per call.
type fakeDgraph struct {
	startTs uint64

	requests []*api.Request
	commits  []*api.TxnContext
	alters   []*api.Operation
	logins   []*api.LoginRequest

	// respond overrides the response of the Query RPC.
	respond func(req *api.Request, n int) (*api.Response, error)
	// fail makes every RPC fail with this error.
	fail error
	jwt  *api.Jwt
}

func newFakeDgraph(startTs uint64) *fakeDgraph {
	return &fakeDgraph{startTs: startTs}
}

func (f *fakeDgraph) queries() int {
	n := 0
	for _, req := range f.requests {
		if len(req.Mutations) == 0 {
			n++
		}
	}
	return n
}

func (f *fakeDgraph) mutates() int {
	return len(f.requests) - f.queries()
}

func (f *fakeDgraph) Login(ctx context.Context, in *api.LoginRequest, opts ...grpc.CallOption) (*api.Response, error) {
	f.logins = append(f.logins, in)
	if f.fail != nil {
		return nil, f.fail
	}
	data, err := proto.Marshal(f.jwt)
	if err != nil {
		return nil, err
	}
	return &api.Response{Json: data}, nil
}

func (f *fakeDgraph) Query(ctx context.Context, in *api.Request, opts ...grpc.CallOption) (*api.Response, error) {
	n := len(f.requests)
	f.requests = append(f.requests, proto.Clone(in).(*api.Request))
	if f.fail != nil {
		return nil, f.fail
	}
	if f.respond != nil {
		return f.respond(in, n)
	}
	return f.echo(in, n), nil
}

func (f *fakeDgraph) echo(in *api.Request, n int) *api.Response {
	ts := in.StartTs
	if ts == 0 {
		ts = f.startTs
	}
	resp := &api.Response{
		Json: []byte(`{"q":[]}`),
		Txn: &api.TxnContext{
			StartTs: ts,
			Keys:    []string{fmt.Sprintf("key-%d", n)},
			Preds:   []string{"name"},
		},
	}
	if len(in.Mutations) > 0 {
		resp.Uids = map[string]string{fmt.Sprintf("blank-%d", n): fmt.Sprintf("0x%x", n+1)}
	}
	if in.CommitNow {
		resp.Txn.CommitTs = ts + 1
	}
	return resp
}

func (f *fakeDgraph) Alter(ctx context.Context, in *api.Operation, opts ...grpc.CallOption) (*api.Payload, error) {
	f.alters = append(f.alters, in)
	if f.fail != nil {
		return nil, f.fail
	}
	return &api.Payload{}, nil
}

func (f *fakeDgraph) CommitOrAbort(ctx context.Context, in *api.TxnContext, opts ...grpc.CallOption) (*api.TxnContext, error) {
	f.commits = append(f.commits, proto.Clone(in).(*api.TxnContext))
	if f.fail != nil {
		return nil, f.fail
	}
	out := proto.Clone(in).(*api.TxnContext)
	if !in.Aborted {
		out.CommitTs = in.StartTs + 1
	}
	return out, nil
}

func (f *fakeDgraph) CheckVersion(ctx context.Context, in *api.Check, opts ...grpc.CallOption) (*api.Version, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &api.Version{Tag: "v20.03.0"}, nil
}

// newTestMutation returns a mutation setting one triple.
func newTestMutation(subject string) *Mutation {
	return NewMutation().SetNquads(fmt.Sprintf(`_:%s <name> "%s" .`, subject, subject))
}
