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

// Package balancer picks one endpoint out of a pool for every new
// transaction. Policies are safe for concurrent use.
package balancer

import (
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

const (
	// RandomPolicy is the name of the random policy.
	RandomPolicy = "random"
	// RoundRobinPolicy is the name of the round-robin policy.
	RoundRobinPolicy = "round-robin"
)

// Policy selects an index in [0, n). n is always positive.
type Policy interface {
	Pick(n int) int
}

// New returns the policy registered under name. An empty name selects
// RandomPolicy.
func New(name string) (Policy, error) {
	switch name {
	case "", RandomPolicy:
		return NewRandom(time.Now().UnixNano()), nil
	case RoundRobinPolicy:
		return NewRoundRobin(), nil
	}
	return nil, errors.Errorf("[dgraph] unknown balancer policy %q", name)
}

type random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom returns a policy picking uniformly with its own generator.
func NewRandom(seed int64) Policy {
	return &random{rnd: rand.New(rand.NewSource(seed))}
}

func (r *random) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rnd.Intn(n)
}

type roundRobin struct {
	next atomic.Uint64
}

// NewRoundRobin returns a policy cycling through the pool in order.
func NewRoundRobin() Policy {
	return &roundRobin{}
}

func (r *roundRobin) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return int((r.next.Inc() - 1) % uint64(n))
}
