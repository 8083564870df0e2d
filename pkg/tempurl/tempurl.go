// Copyright 2018 PingCAP, Inc.
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

// Package tempurl hands out free local addresses to tests that need a real
// TCP server.
package tempurl

import (
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

var (
	testAddrMutex sync.Mutex
	testAddrMap   = make(map[string]struct{})
)

// Alloc allocates a local URL such as "http://127.0.0.1:41235". The same
// URL is never returned twice in one process.
func Alloc() string {
	for i := 0; i < 10; i++ {
		if u := tryAllocTestURL(); u != "" {
			return u
		}
		time.Sleep(100 * time.Millisecond)
	}
	log.Fatal("[dgraph] failed to alloc test URL")
	return ""
}

// Listen allocates a URL and listens on it.
func Listen() (net.Listener, string, error) {
	u := Alloc()
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, "", err
	}
	l, err := net.Listen("tcp", parsed.Host)
	if err != nil {
		return nil, "", err
	}
	return l, u, nil
}

func tryAllocTestURL() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal("[dgraph] listen failed", zap.Error(err))
	}
	addr := fmt.Sprintf("http://%s", l.Addr())
	err = l.Close()
	if err != nil {
		log.Fatal("[dgraph] close failed", zap.Error(err))
	}

	testAddrMutex.Lock()
	defer testAddrMutex.Unlock()
	if _, ok := testAddrMap[addr]; ok {
		return ""
	}
	testAddrMap[addr] = struct{}{}
	return addr
}
