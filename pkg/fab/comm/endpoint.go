/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package comm holds the gRPC dialing plumbing shared by the peer and
// orderer clients.
package comm

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
)

var logger = logging.NewLogger("delphi/comm")

const (
	// GRPC max message size (same as Fabric)
	maxCallRecvMsgSize = 100 * 1024 * 1024
	maxCallSendMsgSize = 100 * 1024 * 1024

	// DefaultDialTimeout bounds connection establishment
	DefaultDialTimeout = 10 * time.Second
)

var securedScheme = regexp.MustCompile(`(?i)^[a-z]+s://`)

// Endpoint is a gRPC target as produced by the topology assembler
type Endpoint struct {
	// URL is grpc://host:port or grpcs://host:port
	URL string
	// TLSCACert is the path of the ca.crt used to verify the server
	TLSCACert string
	// ServerHostOverride is the name expected in the server certificate
	ServerHostOverride string
	// KeepAlive parameters, disabled when Time is zero
	KeepAlive keepalive.ClientParameters
	// FailFast disables waiting for the connection to become ready
	FailFast bool
}

// IsTLSEnabled reports whether url uses https or grpcs
func IsTLSEnabled(url string) bool {
	tlsURL := strings.ToLower(url)
	return strings.HasPrefix(tlsURL, "https://") || strings.HasPrefix(tlsURL, "grpcs://")
}

// ToAddress trims the grpc(s):// prefix that Go dialing does not accept
func ToAddress(url string) string {
	if strings.HasPrefix(url, "grpc://") {
		return strings.TrimPrefix(url, "grpc://")
	}
	if strings.HasPrefix(url, "grpcs://") {
		return strings.TrimPrefix(url, "grpcs://")
	}
	return url
}

// AttemptSecured reports whether a TLS connection must be used.
// grpcs:// is secured, grpc:// is not, and a bare address is secured unless
// allowInsecure is set.
func AttemptSecured(url string, allowInsecure bool) bool {
	if securedScheme.MatchString(url) {
		return true
	}
	if strings.Contains(url, "://") {
		return false
	}
	return !allowInsecure
}

// TLSConfig builds the client TLS config trusting the PEM roots in caCertPath
func TLSConfig(caCertPath, serverName string) (*tls.Config, error) {
	pool := x509.NewCertPool()
	if caCertPath != "" {
		raw, err := ioutil.ReadFile(caCertPath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load pem bytes from path %s", caCertPath)
		}
		if !pool.AppendCertsFromPEM(raw) {
			return nil, errors.Errorf("no certificates found in %s", caCertPath)
		}
	}
	return &tls.Config{RootCAs: pool, ServerName: serverName, MinVersion: tls.VersionTLS12}, nil
}

// DialOptions returns the gRPC options for connecting to ep
func DialOptions(ep *Endpoint) ([]grpc.DialOption, error) {
	var grpcOpts []grpc.DialOption
	if ep.KeepAlive.Time > 0 {
		grpcOpts = append(grpcOpts, grpc.WithKeepaliveParams(ep.KeepAlive))
	}
	grpcOpts = append(grpcOpts, grpc.WithDefaultCallOptions(grpc.WaitForReady(!ep.FailFast)))

	if AttemptSecured(ep.URL, false) {
		tlsConfig, err := TLSConfig(ep.TLSCACert, ep.ServerHostOverride)
		if err != nil {
			return nil, err
		}
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		grpcOpts = append(grpcOpts, grpc.WithInsecure())
	}

	grpcOpts = append(grpcOpts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxCallRecvMsgSize),
		grpc.MaxCallSendMsgSize(maxCallSendMsgSize)))
	return grpcOpts, nil
}
