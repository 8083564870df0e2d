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

// DecodeJSON decodes the JSON payload of resp into v.
func DecodeJSON(resp *api.Response, v interface{}) error {
	if err := json.Unmarshal(resp.GetJson(), v); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
