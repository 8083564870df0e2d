// Copyright 2019 PingCAP, Inc.
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

package grpcutil

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"net/url"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// SecurityOption records options about tls
type SecurityOption struct {
	CAPath   string
	CertPath string
	KeyPath  string
}

// Enabled reports whether a CA is configured.
func (s SecurityOption) Enabled() bool {
	return len(s.CAPath) != 0
}

// ToTLSConfig builds the client tls config. It returns nil when no CA is
// configured.
func (s SecurityOption) ToTLSConfig() (*tls.Config, error) {
	if !s.Enabled() {
		return nil, nil
	}
	var certificates []tls.Certificate
	if len(s.CertPath) != 0 && len(s.KeyPath) != 0 {
		// Load the client certificates from disk
		certificate, err := tls.LoadX509KeyPair(s.CertPath, s.KeyPath)
		if err != nil {
			return nil, errors.Errorf("could not load client key pair: %s", err)
		}
		certificates = append(certificates, certificate)
	}

	// Create a certificate pool from the certificate authority
	certPool := x509.NewCertPool()
	ca, err := ioutil.ReadFile(s.CAPath)
	if err != nil {
		return nil, errors.Errorf("could not read ca certificate: %s", err)
	}

	// Append the certificates from the CA
	if !certPool.AppendCertsFromPEM(ca) {
		return nil, errors.New("failed to append ca certs")
	}

	return &tls.Config{
		Certificates: certificates,
		RootCAs:      certPool,
	}, nil
}

// GetClientConn returns a gRPC client connection. addr is an url such as
// "http://127.0.0.1:9080". The dial does not block, the connection is
// established by the first call.
func GetClientConn(addr string, security SecurityOption, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opt := grpc.WithInsecure()
	tlsCfg, err := security.ToTLSConfig()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		opt = grpc.WithTransportCredentials(credentials.NewTLS(tlsCfg))
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cc, err := grpc.Dial(u.Host, append([]grpc.DialOption{opt}, opts...)...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return cc, nil
}
