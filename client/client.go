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
	"sync"
	"time"

	"github.com/dgraph-io/dgo/v2/protos/api"
	"github.com/gogo/protobuf/proto"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pingcap-incubator/tinydgo/config"
	"github.com/pingcap-incubator/tinydgo/pkg/balancer"
	"github.com/pingcap-incubator/tinydgo/pkg/grpcutil"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

// Client is a Dgraph client. It is safe for concurrent use; the
// transactions it creates are not.
// It should not be used after calling Close().
type Client struct {
	urls []string

	policy    balancer.Policy
	version   ProtocolVersion
	timeout   time.Duration
	security  grpcutil.SecurityOption
	apiKey    string
	rateLimit float64
	metrics   bool
	dialOpts  []grpc.DialOption

	tokens grpcutil.TokenCell

	connMu struct {
		sync.RWMutex
		clientConns map[string]*grpc.ClientConn
		// interceptors are built on the first dial.
		dialOpts []grpc.DialOption
	}
}

// Option configures a Client.
type Option func(*Client)

// WithBalancer sets the policy picking an endpoint for every call.
func WithBalancer(p balancer.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithProtocolVersion sets the request shaping of the server version.
func WithProtocolVersion(v ProtocolVersion) Option {
	return func(c *Client) { c.version = v }
}

// WithRequestTimeout bounds every RPC by d.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithSecurity enables TLS.
func WithSecurity(security grpcutil.SecurityOption) Option {
	return func(c *Client) { c.security = security }
}

// WithAPIKey sends key with every call, as hosted servers require.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithRateLimit limits the client to perSecond requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.rateLimit = perSecond }
}

// WithMetrics records per-RPC metrics of the gRPC channel.
func WithMetrics() Option {
	return func(c *Client) { c.metrics = true }
}

// WithDialOptions appends options to every dial.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) { c.dialOpts = append(c.dialOpts, opts...) }
}

// NewClient creates a client for the given endpoints. The endpoints are
// validated here, the connections are created by the first calls.
func NewClient(endpoints []string, opts ...Option) (*Client, error) {
	urls, err := parseEndpoints(endpoints)
	if err != nil {
		return nil, err
	}
	c := &Client{urls: urls}
	for _, opt := range opts {
		opt(c)
	}
	if c.policy == nil {
		if c.policy, err = balancer.New(balancer.RandomPolicy); err != nil {
			return nil, err
		}
	}
	if _, err = c.security.ToTLSConfig(); err != nil {
		return nil, err
	}
	c.connMu.clientConns = make(map[string]*grpc.ClientConn)
	log.Info("[dgraph] create dgraph client with endpoints",
		zap.Strings("endpoints", urls),
		zap.Stringer("protocol-version", c.version))
	return c, nil
}

// NewClientFromConfig creates a client from cfg and logs in when ACL
// credentials are configured.
func NewClientFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	version, err := ParseProtocolVersion(cfg.ProtocolVersion)
	if err != nil {
		return nil, err
	}
	policy, err := balancer.New(cfg.Balancer)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithBalancer(policy),
		WithProtocolVersion(version),
		WithRequestTimeout(cfg.RequestTimeout.Duration),
		WithSecurity(grpcutil.SecurityOption{
			CAPath:   cfg.Security.CAPath,
			CertPath: cfg.Security.CertPath,
			KeyPath:  cfg.Security.KeyPath,
		}),
	}
	if cfg.APIKey != "" {
		opts = append(opts, WithAPIKey(cfg.APIKey))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, WithRateLimit(cfg.RateLimit))
	}
	if cfg.EnableMetrics {
		opts = append(opts, WithMetrics())
	}
	c, err := NewClient(cfg.Endpoints, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.ACL.User != "" {
		if err = c.Login(ctx, cfg.ACL.User, cfg.ACL.Password); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Client) buildDialOpts() []grpc.DialOption {
	interceptors := []grpc.UnaryClientInterceptor{grpcutil.AccessJWTInterceptor(&c.tokens)}
	if c.apiKey != "" {
		interceptors = append(interceptors, grpcutil.APIKeyInterceptor(c.apiKey))
	}
	if c.rateLimit > 0 {
		burst := int(c.rateLimit)
		if burst < 1 {
			burst = 1
		}
		interceptors = append(interceptors, grpcutil.RateLimitInterceptor(rate.NewLimiter(rate.Limit(c.rateLimit), burst)))
	}
	if c.metrics {
		interceptors = append(interceptors, grpc_prometheus.UnaryClientInterceptor)
	}
	opts := []grpc.DialOption{grpc.WithChainUnaryInterceptor(interceptors...)}
	return append(opts, c.dialOpts...)
}

func (c *Client) getOrCreateGRPCConn(addr string) (*grpc.ClientConn, error) {
	c.connMu.RLock()
	conn, ok := c.connMu.clientConns[addr]
	c.connMu.RUnlock()
	if ok {
		return conn, nil
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if old, ok := c.connMu.clientConns[addr]; ok {
		return old, nil
	}
	if c.connMu.dialOpts == nil {
		c.connMu.dialOpts = c.buildDialOpts()
	}
	cc, err := grpcutil.GetClientConn(addr, c.security, c.connMu.dialOpts...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	c.connMu.clientConns[addr] = cc
	return cc, nil
}

// anyStub returns a stub on the endpoint picked by the balancer.
func (c *Client) anyStub() (*Stub, error) {
	idx := c.policy.Pick(len(c.urls))
	if idx < 0 || idx >= len(c.urls) {
		return nil, errors.Errorf("[dgraph] balancer picked endpoint %d out of %d", idx, len(c.urls))
	}
	cc, err := c.getOrCreateGRPCConn(c.urls[idx])
	if err != nil {
		return nil, err
	}
	stub := NewStub(api.NewDgraphClient(cc), c.version)
	stub.timeout = c.timeout
	return stub, nil
}

// NewTxn creates a transaction on one endpoint. It has to be specialized
// with ReadOnly or Mutated before use.
func (c *Client) NewTxn() (*Txn, error) {
	stub, err := c.anyStub()
	if err != nil {
		return nil, err
	}
	return newTxn(stub), nil
}

// NewReadOnlyTxn is a shortcut for NewTxn().ReadOnly().
func (c *Client) NewReadOnlyTxn() (*ReadOnlyTxn, error) {
	txn, err := c.NewTxn()
	if err != nil {
		return nil, err
	}
	return txn.ReadOnly(), nil
}

// NewBestEffortTxn is a shortcut for NewTxn().ReadOnly().BestEffort().
func (c *Client) NewBestEffortTxn() (*BestEffortTxn, error) {
	txn, err := c.NewReadOnlyTxn()
	if err != nil {
		return nil, err
	}
	return txn.BestEffort(), nil
}

// NewMutatedTxn is a shortcut for NewTxn().Mutated().
func (c *Client) NewMutatedTxn() (*MutatedTxn, error) {
	txn, err := c.NewTxn()
	if err != nil {
		return nil, err
	}
	return txn.Mutated(), nil
}

// Alter runs a schema operation outside of any transaction.
func (c *Client) Alter(ctx context.Context, op *api.Operation) (*api.Payload, error) {
	stub, err := c.anyStub()
	if err != nil {
		return nil, err
	}
	return stub.Alter(ctx, op)
}

// SetSchema adds or updates predicates of the schema.
func (c *Client) SetSchema(ctx context.Context, schema string) error {
	_, err := c.Alter(ctx, &api.Operation{Schema: schema})
	return err
}

// DropAll removes all data and the schema.
func (c *Client) DropAll(ctx context.Context) error {
	log.Warn("[dgraph] drop all data")
	_, err := c.Alter(ctx, &api.Operation{DropAll: true})
	return err
}

// DropAttr removes a predicate with all its data.
func (c *Client) DropAttr(ctx context.Context, attr string) error {
	_, err := c.Alter(ctx, &api.Operation{DropAttr: attr})
	return err
}

// CheckVersion returns the version of one server.
func (c *Client) CheckVersion(ctx context.Context) (*api.Version, error) {
	stub, err := c.anyStub()
	if err != nil {
		return nil, err
	}
	return stub.CheckVersion(ctx)
}

// Login logs in as user. The access token is sent with every later call.
func (c *Client) Login(ctx context.Context, user, password string) error {
	if err := c.login(ctx, &api.LoginRequest{Userid: user, Password: password}); err != nil {
		return err
	}
	log.Info("[dgraph] logged in", zap.String("user", user))
	return nil
}

// RefreshLogin swaps the tokens using the refresh token of the last login.
func (c *Client) RefreshLogin(ctx context.Context) error {
	_, refresh := c.tokens.Get()
	if refresh == "" {
		return errors.WithStack(ErrNotLoggedIn)
	}
	if err := c.login(ctx, &api.LoginRequest{RefreshToken: refresh}); err != nil {
		return err
	}
	log.Info("[dgraph] login refreshed")
	return nil
}

func (c *Client) login(ctx context.Context, req *api.LoginRequest) error {
	stub, err := c.anyStub()
	if err != nil {
		return err
	}
	resp, err := stub.Login(ctx, req)
	if err != nil {
		return err
	}
	jwt := &api.Jwt{}
	if err = proto.Unmarshal(resp.GetJson(), jwt); err != nil {
		return errors.WithStack(err)
	}
	c.tokens.Set(jwt.AccessJwt, jwt.RefreshJwt)
	return nil
}

// Close closes all connections.
func (c *Client) Close() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	for addr, cc := range c.connMu.clientConns {
		if err := cc.Close(); err != nil {
			log.Error("[dgraph] failed close grpc clientConn", zap.String("addr", addr), zap.Error(err))
		}
	}
	c.connMu.clientConns = make(map[string]*grpc.ClientConn)
}
