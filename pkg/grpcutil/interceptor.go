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

package grpcutil

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

const (
	// AccessJWTKey is the metadata key carrying the ACL access token.
	AccessJWTKey = "accessjwt"
	// APIKeyKey is the metadata key carrying the API key of hosted servers.
	APIKeyKey = "authorization"
)

// TokenCell holds the access and refresh tokens of a login. It is written by
// the login calls and read by every outgoing request.
type TokenCell struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

// Set replaces both tokens.
func (t *TokenCell) Set(access, refresh string) {
	t.mu.Lock()
	t.access, t.refresh = access, refresh
	t.mu.Unlock()
}

// Get returns both tokens.
func (t *TokenCell) Get() (access, refresh string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.access, t.refresh
}

// AccessToken returns the access token, or "" before the first login.
func (t *TokenCell) AccessToken() string {
	access, _ := t.Get()
	return access
}

// AccessJWTInterceptor attaches the access token of cell to every call.
func AccessJWTInterceptor(cell *TokenCell) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if token := cell.AccessToken(); token != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, AccessJWTKey, token)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// APIKeyInterceptor attaches key to every call.
func APIKeyInterceptor(key string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, APIKeyKey, key)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// RateLimitInterceptor delays calls so that at most limiter's rate is sent.
func RateLimitInterceptor(limiter *rate.Limiter) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if err := limiter.Wait(ctx); err != nil {
			return errors.WithStack(err)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
