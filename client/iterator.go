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
	"strconv"

	"github.com/dgraph-io/dgo/v2/protos/api"
	"github.com/pkg/errors"
)

const (
	// IteratorFirstVar and IteratorOffsetVar are the query variables set by
	// an Iterator for every page.
	IteratorFirstVar  = "$first"
	IteratorOffsetVar = "$offset"
)

// Querier runs a query with variables. ReadOnlyTxn, BestEffortTxn and
// MutatedTxn implement it.
type Querier interface {
	QueryWithVars(ctx context.Context, q string, vars map[string]string) (*api.Response, error)
}

// Iterator reads the results of a paged query. The query must declare the
// $first and $offset variables and name its result block "items", e.g.
//
//	query q($first: int, $offset: int) {
//		items(func: has(name), first: $first, offset: $offset) { name }
//	}
type Iterator struct {
	q     Querier
	query string
	vars  map[string]string
	first int

	offset int
	page   []json.RawMessage
	pos    int
	done   bool
	err    error
}

// NewIterator creates an iterator fetching first items per query.
func NewIterator(q Querier, query string, vars map[string]string, first int) *Iterator {
	if first <= 0 {
		first = 100
	}
	return &Iterator{q: q, query: query, vars: vars, first: first, pos: -1}
}

// Next moves to the next item, fetching a page when needed. It returns false
// when the items are exhausted or an error occurred.
func (it *Iterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	if it.pos+1 < len(it.page) {
		it.pos++
		return true
	}
	if it.done {
		return false
	}
	if it.err = it.fetch(ctx); it.err != nil {
		return false
	}
	if len(it.page) == 0 {
		return false
	}
	it.pos = 0
	return true
}

func (it *Iterator) fetch(ctx context.Context) error {
	vars := make(map[string]string, len(it.vars)+2)
	for k, v := range it.vars {
		vars[k] = v
	}
	vars[IteratorFirstVar] = strconv.Itoa(it.first)
	vars[IteratorOffsetVar] = strconv.Itoa(it.offset)

	resp, err := it.q.QueryWithVars(ctx, it.query, vars)
	if err != nil {
		return err
	}
	var page struct {
		Items []json.RawMessage `json:"items"`
	}
	if err = DecodeJSON(resp, &page); err != nil {
		return err
	}
	it.page, it.pos = page.Items, -1
	it.offset += len(page.Items)
	if len(page.Items) < it.first {
		it.done = true
	}
	return nil
}

// Item returns the raw JSON of the current item.
func (it *Iterator) Item() json.RawMessage {
	if it.pos < 0 || it.pos >= len(it.page) {
		return nil
	}
	return it.page[it.pos]
}

// Decode decodes the current item into v.
func (it *Iterator) Decode(v interface{}) error {
	item := it.Item()
	if item == nil {
		return errors.New("[dgraph] iterator has no current item")
	}
	return errors.WithStack(json.Unmarshal(item, v))
}

// Err returns the error that stopped the iteration.
func (it *Iterator) Err() error {
	return it.err
}
