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
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidEndpoint is returned when an endpoint cannot be parsed as a network address.
	ErrInvalidEndpoint = errors.New("[dgraph] invalid endpoint")
	// ErrNoEndpointsDefined is returned when a client is created without endpoints.
	ErrNoEndpointsDefined = errors.New("[dgraph] no endpoints defined")

	// ErrCannotLogin is the kind of RPCError returned by a failed Login call.
	ErrCannotLogin = errors.New("[dgraph] cannot login")
	// ErrCannotQuery is the kind of RPCError returned by a failed query.
	ErrCannotQuery = errors.New("[dgraph] cannot query")
	// ErrCannotMutate is the kind of RPCError returned by a failed legacy mutation.
	ErrCannotMutate = errors.New("[dgraph] cannot mutate")
	// ErrCannotDoRequest is the kind of RPCError returned by a failed combined request.
	ErrCannotDoRequest = errors.New("[dgraph] cannot do request")
	// ErrCannotAlter is the kind of RPCError returned by a failed Alter call.
	ErrCannotAlter = errors.New("[dgraph] cannot alter")
	// ErrCannotCommitOrAbort is the kind of RPCError returned by a failed commit or abort.
	ErrCannotCommitOrAbort = errors.New("[dgraph] cannot commit or abort")
	// ErrCannotCheckVersion is the kind of RPCError returned by a failed CheckVersion call.
	ErrCannotCheckVersion = errors.New("[dgraph] cannot check version")

	// ErrStartTsMismatch is returned when a response belongs to another transaction.
	ErrStartTsMismatch = errors.New("[dgraph] txn start ts mismatch")
	// ErrEmptyTxn is returned when a query response carries no txn context.
	ErrEmptyTxn = errors.New("[dgraph] txn is empty")
	// ErrMissingTxnContext is returned when a mutation response carries no txn context.
	ErrMissingTxnContext = errors.New("[dgraph] missing txn context")
	// ErrFinished is returned when a consumed transaction handle is used again.
	ErrFinished = errors.New("[dgraph] transaction already committed or discarded")
	// ErrTxnAborted is returned by a transaction whose context got corrupted.
	// Only Discard is allowed afterwards.
	ErrTxnAborted = errors.New("[dgraph] transaction must be discarded")
	// ErrMutationConsumed is returned when a mutation is submitted twice.
	ErrMutationConsumed = errors.New("[dgraph] mutation already submitted")
	// ErrNoMutations is returned when an upsert is built without mutations.
	ErrNoMutations = errors.New("[dgraph] upsert needs at least one mutation")
	// ErrNotLoggedIn is returned by RefreshLogin before any successful login.
	ErrNotLoggedIn = errors.New("[dgraph] not logged in")
)

// RPCError is returned when a call on the gRPC channel fails. Its kind tells
// which RPC failed and its cause keeps the transport status.
type RPCError struct {
	kind  error
	cause error
}

func newRPCError(kind, cause error) *RPCError {
	return &RPCError{kind: kind, cause: cause}
}

func (e *RPCError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

// Is reports whether target is the kind of this error.
func (e *RPCError) Is(target error) bool {
	return target == e.kind
}

// Unwrap returns the underlying transport error.
func (e *RPCError) Unwrap() error {
	return e.cause
}

// Cause implements the causer interface of github.com/pkg/errors.
func (e *RPCError) Cause() error {
	return e.cause
}

// Kind returns one of the ErrCannot* sentinels.
func (e *RPCError) Kind() error {
	return e.kind
}

// Status returns the gRPC status of the failed call.
func (e *RPCError) Status() *status.Status {
	s, _ := status.FromError(e.cause)
	return s
}

// Code is a shortcut for Status().Code().
func (e *RPCError) Code() codes.Code {
	return e.Status().Code()
}
