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

package tinydgo

/*
TinyDgo is a Go client for the [Dgraph](https://github.com/dgraph-io/dgraph) graph database. It talks to Dgraph alpha
nodes over gRPC using the generated `api` package of dgo.

A transaction starts as a plain `Txn` and has to be specialized before use:

* `ReadOnly()` gives a `ReadOnlyTxn`, whose queries are marked read-only; `BestEffort()` relaxes it further.
* `Mutated()` gives a `MutatedTxn`, which can query, mutate and upsert, and is finished by `Commit` or `Discard`.
  Neither sends anything to the server when no mutation was sent.

Every transition consumes the handle it is called on; using it again returns `ErrFinished`.

The `tinydgo` module is organized into the following packages:

* `client`: the client, the transaction types, mutations and the transport stub.
* `config`: TOML configuration of a client.
* `pkg/balancer`: endpoint selection policies.
* `pkg/grpcutil`: gRPC dialing, TLS and the auth interceptors.
* `pkg/tempurl`: free local addresses for tests.
*/
