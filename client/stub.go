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
	"time"

	"github.com/dgraph-io/dgo/v2/protos/api"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ProtocolVersion selects how requests carrying mutations are shaped.
type ProtocolVersion int

const (
	// ProtocolV1_1 sends query and mutations in one combined request.
	ProtocolV1_1 ProtocolVersion = iota
	// ProtocolV1_0 sends the query and every mutation as separate calls.
	ProtocolV1_0
)

func (v ProtocolVersion) String() string {
	switch v {
	case ProtocolV1_0:
		return "v1.0"
	case ProtocolV1_1:
		return "v1.1"
	}
	return "unknown"
}

// ParseProtocolVersion parses "v1.0" or "v1.1". An empty string means v1.1.
func ParseProtocolVersion(s string) (ProtocolVersion, error) {
	switch s {
	case "", "v1.1":
		return ProtocolV1_1, nil
	case "v1.0":
		return ProtocolV1_0, nil
	}
	return 0, errors.Errorf("[dgraph] unknown protocol version %q", s)
}

// Stub executes Dgraph API calls on one gRPC channel and turns transport
// failures into RPCError. It never retries.
type Stub struct {
	dc      api.DgraphClient
	version ProtocolVersion
	timeout time.Duration
}

// NewStub creates a stub on top of a generated Dgraph client.
func NewStub(dc api.DgraphClient, version ProtocolVersion) *Stub {
	return &Stub{dc: dc, version: version}
}

// Version returns the protocol version the stub shapes requests for.
func (s *Stub) Version() ProtocolVersion {
	return s.version
}

type rpcOp struct {
	name   string
	kind   error
	ok     prometheus.Observer
	failed prometheus.Observer
}

var (
	opLogin         = rpcOp{"Login", ErrCannotLogin, cmdDurationLogin, cmdFailedDurationLogin}
	opQuery         = rpcOp{"Query", ErrCannotQuery, cmdDurationQuery, cmdFailedDurationQuery}
	opMutate        = rpcOp{"Mutate", ErrCannotMutate, cmdDurationMutate, cmdFailedDurationMutate}
	opDoRequest     = rpcOp{"DoRequest", ErrCannotDoRequest, cmdDurationDoRequest, cmdFailedDurationDoRequest}
	opAlter         = rpcOp{"Alter", ErrCannotAlter, cmdDurationAlter, cmdFailedDurationAlter}
	opCommitOrAbort = rpcOp{"CommitOrAbort", ErrCannotCommitOrAbort, cmdDurationCommitOrAbort, cmdFailedDurationCommitOrAbort}
	opCheckVersion  = rpcOp{"CheckVersion", ErrCannotCheckVersion, cmdDurationCheckVersion, cmdFailedDurationCheckVersion}
)

func (s *Stub) call(ctx context.Context, op rpcOp, f func(ctx context.Context) error) error {
	if span := opentracing.SpanFromContext(ctx); span != nil {
		span = opentracing.StartSpan("dgraphclient."+op.name, opentracing.ChildOf(span.Context()))
		defer span.Finish()
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := f(ctx); err != nil {
		op.failed.Observe(time.Since(start).Seconds())
		return newRPCError(op.kind, err)
	}
	op.ok.Observe(time.Since(start).Seconds())
	return nil
}

// Login sends a login request.
func (s *Stub) Login(ctx context.Context, req *api.LoginRequest) (*api.Response, error) {
	var resp *api.Response
	err := s.call(ctx, opLogin, func(ctx context.Context) (err error) {
		resp, err = s.dc.Login(ctx, req)
		return
	})
	return resp, err
}

// Query sends a request without mutations.
func (s *Stub) Query(ctx context.Context, req *api.Request) (*api.Response, error) {
	var resp *api.Response
	err := s.call(ctx, opQuery, func(ctx context.Context) (err error) {
		resp, err = s.dc.Query(ctx, req)
		return
	})
	return resp, err
}

// Mutate sends a request carrying a single mutation, the legacy call shape.
func (s *Stub) Mutate(ctx context.Context, req *api.Request) (*api.Response, error) {
	var resp *api.Response
	err := s.call(ctx, opMutate, func(ctx context.Context) (err error) {
		resp, err = s.dc.Query(ctx, req)
		return
	})
	return resp, err
}

// DoRequest sends a combined query and mutations request.
func (s *Stub) DoRequest(ctx context.Context, req *api.Request) (*api.Response, error) {
	var resp *api.Response
	err := s.call(ctx, opDoRequest, func(ctx context.Context) (err error) {
		resp, err = s.dc.Query(ctx, req)
		return
	})
	return resp, err
}

// Alter sends a schema operation.
func (s *Stub) Alter(ctx context.Context, op *api.Operation) (*api.Payload, error) {
	var resp *api.Payload
	err := s.call(ctx, opAlter, func(ctx context.Context) (err error) {
		resp, err = s.dc.Alter(ctx, op)
		return
	})
	return resp, err
}

// CommitOrAbort finishes a transaction on the server.
func (s *Stub) CommitOrAbort(ctx context.Context, txn *api.TxnContext) (*api.TxnContext, error) {
	var resp *api.TxnContext
	err := s.call(ctx, opCommitOrAbort, func(ctx context.Context) (err error) {
		resp, err = s.dc.CommitOrAbort(ctx, txn)
		return
	})
	return resp, err
}

// CheckVersion asks the server for its version tag.
func (s *Stub) CheckVersion(ctx context.Context) (*api.Version, error) {
	var resp *api.Version
	err := s.call(ctx, opCheckVersion, func(ctx context.Context) (err error) {
		resp, err = s.dc.CheckVersion(ctx, &api.Check{})
		return
	})
	return resp, err
}

// Do sends req in the shape the protocol version supports. Requests without
// mutations are plain queries. With ProtocolV1_1 mutations travel in one
// combined request. With ProtocolV1_0 the query goes first and every mutation
// is sent alone; the partial responses are folded into one. When a later call
// of the split path fails, the response folded so far is returned with the
// error so that the caller can still abort the writes already made.
func (s *Stub) Do(ctx context.Context, req *api.Request) (*api.Response, error) {
	if len(req.Mutations) == 0 {
		return s.Query(ctx, req)
	}
	if s.version == ProtocolV1_1 {
		return s.DoRequest(ctx, req)
	}
	return s.doSplit(ctx, req)
}

func (s *Stub) doSplit(ctx context.Context, req *api.Request) (*api.Response, error) {
	combined := &api.Response{
		Txn:  &api.TxnContext{},
		Uids: make(map[string]string),
	}
	startTs := req.StartTs
	observe := func(resp *api.Response) error {
		if resp.GetTxn() == nil {
			return errors.WithStack(ErrMissingTxnContext)
		}
		if err := mergeContext(combined.Txn, resp.Txn); err != nil {
			return err
		}
		if startTs == 0 {
			startTs = combined.Txn.StartTs
		}
		return nil
	}
	// partial keeps what the server already reported before err.
	partial := func(err error) (*api.Response, error) {
		if combined.Txn.StartTs == 0 {
			return nil, err
		}
		return combined, err
	}

	if req.Query != "" {
		resp, err := s.Query(ctx, &api.Request{
			StartTs: startTs,
			Query:   req.Query,
			Vars:    req.Vars,
		})
		if err != nil {
			return nil, err
		}
		if err = observe(resp); err != nil {
			return nil, err
		}
		combined.Json = resp.Json
		combined.Latency = resp.Latency
		combined.Metrics = resp.Metrics
	}

	last := len(req.Mutations) - 1
	for i, mu := range req.Mutations {
		resp, err := s.Mutate(ctx, &api.Request{
			StartTs:   startTs,
			Mutations: []*api.Mutation{mu},
			CommitNow: req.CommitNow && i == last,
		})
		if err != nil {
			return partial(err)
		}
		if err = observe(resp); err != nil {
			return partial(err)
		}
		for k, v := range resp.Uids {
			combined.Uids[k] = v
		}
		if i == last {
			combined.Txn.CommitTs = resp.Txn.CommitTs
		}
	}
	return combined, nil
}
