/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package comm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func TestURLHelpers(t *testing.T) {
	assert.True(t, IsTLSEnabled("grpcs://localhost:7051"))
	assert.True(t, IsTLSEnabled("HTTPS://ca:7054"))
	assert.False(t, IsTLSEnabled("grpc://localhost:7051"))

	assert.Equal(t, "localhost:7051", ToAddress("grpcs://localhost:7051"))
	assert.Equal(t, "localhost:7051", ToAddress("grpc://localhost:7051"))
	assert.Equal(t, "localhost:7051", ToAddress("localhost:7051"))

	assert.True(t, AttemptSecured("grpcs://localhost:7051", true))
	assert.False(t, AttemptSecured("grpc://localhost:7051", false))
	assert.True(t, AttemptSecured("localhost:7051", false))
	assert.False(t, AttemptSecured("localhost:7051", true))
}

func TestTLSConfig(t *testing.T) {
	_, err := TLSConfig("/does/not/exist/ca.crt", "peer0.bu.delphi.com")
	assert.Error(t, err)

	cfg, err := TLSConfig("", "peer0.bu.delphi.com")
	require.NoError(t, err)
	assert.Equal(t, "peer0.bu.delphi.com", cfg.ServerName)

	_, err = DialOptions(&Endpoint{URL: "grpcs://localhost:7051", TLSCACert: "/does/not/exist/ca.crt"})
	assert.Error(t, err)

	opts, err := DialOptions(&Endpoint{URL: "grpc://localhost:7051"})
	require.NoError(t, err)
	assert.NotEmpty(t, opts)
}

func TestCachingConnector(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	go srv.Serve(lis) // nolint: errcheck
	defer srv.Stop()

	connector := NewCachingConnector(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.Dial()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := connector.DialContext(ctx, "bufnet", grpc.WithInsecure())
	require.NoError(t, err)
	second, err := connector.DialContext(ctx, "bufnet", grpc.WithInsecure())
	require.NoError(t, err)
	assert.True(t, first == second, "connection must be reused")

	connector.ReleaseConn(first)
	connector.Close()
	_, err = connector.DialContext(ctx, "bufnet", grpc.WithInsecure())
	assert.Error(t, err)
}
