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
	"net"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// parseEndpoints validates addrs and returns them as urls. Every address
// needs a host and a port.
func parseEndpoints(addrs []string) ([]string, error) {
	if len(addrs) == 0 {
		return nil, errors.WithStack(ErrNoEndpointsDefined)
	}
	urls := addrsToUrls(addrs)
	for i, u := range urls {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, errors.WithMessagef(ErrInvalidEndpoint, "%q: %v", addrs[i], err)
		}
		if parsed.Host == "" {
			return nil, errors.WithMessagef(ErrInvalidEndpoint, "%q: missing host", addrs[i])
		}
		if _, port, err := net.SplitHostPort(parsed.Host); err != nil || port == "" {
			return nil, errors.WithMessagef(ErrInvalidEndpoint, "%q: missing port", addrs[i])
		}
	}
	return urls, nil
}

func addrsToUrls(addrs []string) []string {
	// Add default schema "http://" to addrs.
	urls := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		addr = strings.TrimSpace(addr)
		if strings.Contains(addr, "://") {
			urls = append(urls, addr)
		} else {
			urls = append(urls, "http://"+addr)
		}
	}
	return urls
}
