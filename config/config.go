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

package config

import (
	"encoding/json"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the configuration of a Dgraph client.
type Config struct {
	// Endpoints are the addresses of the Dgraph alpha nodes, e.g. "127.0.0.1:9080".
	Endpoints []string `toml:"endpoints" json:"endpoints"`
	// ProtocolVersion is "v1.1" (combined requests) or "v1.0" (legacy).
	ProtocolVersion string `toml:"protocol-version" json:"protocol-version"`
	// Balancer is "random" or "round-robin".
	Balancer string `toml:"balancer" json:"balancer"`
	// RequestTimeout bounds every RPC. 0 means no timeout.
	RequestTimeout Duration `toml:"request-timeout" json:"request-timeout"`
	// APIKey is sent with every call to hosted servers.
	APIKey string `toml:"api-key" json:"api-key"`
	// RateLimit is the max number of requests per second. 0 means unlimited.
	RateLimit float64 `toml:"rate-limit" json:"rate-limit"`
	// EnableMetrics turns on per-RPC prometheus metrics of the gRPC channel.
	EnableMetrics bool `toml:"enable-metrics" json:"enable-metrics"`

	ACL      ACLConfig      `toml:"acl" json:"acl"`
	Security SecurityConfig `toml:"security" json:"security"`

	// Log related config.
	Log log.Config `toml:"log" json:"log"`

	// For all warnings during parsing.
	WarningMsgs []string `toml:"-" json:"-"`

	logger   *zap.Logger
	logProps *log.ZapProperties
}

// ACLConfig holds the login credentials. Login is skipped when User is empty.
type ACLConfig struct {
	User     string `toml:"user" json:"user"`
	Password string `toml:"password" json:"-"`
}

// SecurityConfig is the configuration for supporting tls.
type SecurityConfig struct {
	// CAPath is the path of file that contains list of trusted SSL CAs.
	CAPath string `toml:"cacert-path" json:"cacert-path"`
	// CertPath is the path of file that contains X509 certificate in PEM format.
	CertPath string `toml:"cert-path" json:"cert-path"`
	// KeyPath is the path of file that contains X509 key in PEM format.
	KeyPath string `toml:"key-path" json:"key-path"`
}

const (
	defaultEndpoint        = "127.0.0.1:9080"
	defaultProtocolVersion = "v1.1"
	defaultBalancer        = "random"
	defaultRequestTimeout  = 10 * time.Second
	defaultLogLevel        = "info"
)

// NewConfig creates a new config with defaults applied.
func NewConfig() *Config {
	cfg := &Config{}
	if err := cfg.Adjust(nil); err != nil {
		// Defaults always validate.
		panic(err)
	}
	return cfg
}

// FromFile loads config from a toml file.
func FromFile(path string) (*Config, error) {
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err = cfg.Adjust(&meta); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Adjust fills the missing items with defaults and validates the result.
func (c *Config) Adjust(meta *toml.MetaData) error {
	if meta != nil {
		if undecoded := meta.Undecoded(); len(undecoded) != 0 {
			errInfo := "Config contains undefined item: "
			for _, key := range undecoded {
				errInfo += key.String() + ", "
			}
			c.WarningMsgs = append(c.WarningMsgs, errInfo[:len(errInfo)-2])
		}
	}

	if len(c.Endpoints) == 0 {
		c.Endpoints = []string{defaultEndpoint}
	}
	adjustString(&c.ProtocolVersion, defaultProtocolVersion)
	adjustString(&c.Balancer, defaultBalancer)
	if meta == nil || !meta.IsDefined("request-timeout") {
		adjustDuration(&c.RequestTimeout, defaultRequestTimeout)
	}
	adjustString(&c.Log.Level, defaultLogLevel)

	return c.Validate()
}

// Validate is used to validate if some configurations are right.
func (c *Config) Validate() error {
	switch c.ProtocolVersion {
	case "v1.0", "v1.1":
	default:
		return errors.Errorf("invalid protocol-version %q", c.ProtocolVersion)
	}
	switch c.Balancer {
	case "random", "round-robin":
	default:
		return errors.Errorf("invalid balancer %q", c.Balancer)
	}
	if c.RequestTimeout.Duration < 0 {
		return errors.New("request-timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate-limit must not be negative")
	}
	if c.ACL.User == "" && c.ACL.Password != "" {
		return errors.New("acl password is set without user")
	}
	if c.Security.CAPath == "" && (c.Security.CertPath != "" || c.Security.KeyPath != "") {
		return errors.New("cert-path and key-path need cacert-path")
	}
	return nil
}

func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "<nil>"
	}
	return string(data)
}

// SetupLogger setup the logger.
func (c *Config) SetupLogger() error {
	lg, p, err := log.InitLogger(&c.Log, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return err
	}
	c.logger = lg
	c.logProps = p
	log.ReplaceGlobals(lg, p)
	for _, msg := range c.WarningMsgs {
		log.Warn(msg)
	}
	return nil
}

// GetZapLogger gets the created zap logger.
func (c *Config) GetZapLogger() *zap.Logger {
	return c.logger
}

func adjustString(v *string, defValue string) {
	if len(*v) == 0 {
		*v = defValue
	}
}

func adjustDuration(v *Duration, defValue time.Duration) {
	if v.Duration == 0 {
		v.Duration = defValue
	}
}
