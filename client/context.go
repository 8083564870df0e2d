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
	"sort"

	"github.com/dgraph-io/dgo/v2/protos/api"
	"github.com/pkg/errors"
)

// mergeContext folds a txn context returned by the server into dst.
// The start ts is adopted once; a different one later means the responses
// belong to different transactions. CommitTs and Aborted are left alone.
func mergeContext(dst, src *api.TxnContext) error {
	if dst.StartTs == 0 {
		dst.StartTs = src.StartTs
	} else if dst.StartTs != src.StartTs {
		return errors.WithStack(ErrStartTsMismatch)
	}
	dst.Keys = mergeSet(dst.Keys, src.Keys)
	dst.Preds = mergeSet(dst.Preds, src.Preds)
	return nil
}

// mergeSet appends src to dst and returns the sorted, deduplicated result.
func mergeSet(dst, src []string) []string {
	if len(src) == 0 && sort.StringsAreSorted(dst) {
		return dst
	}
	merged := append(dst, src...)
	sort.Strings(merged)
	out := merged[:0]
	for _, s := range merged {
		if len(out) > 0 && out[len(out)-1] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
