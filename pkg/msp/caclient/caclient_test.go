/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package caclient

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	cfsslapi "github.com/cloudflare/cfssl/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/retry"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/msp/caclient/mocks"
)

type registrar struct {
	enrollment *Enrollment
}

func (r *registrar) EnrollmentCertificate() []byte  { return r.enrollment.Cert }
func (r *registrar) PrivateKey() *ecdsa.PrivateKey { return r.enrollment.Key }

func enrollAdmin(t *testing.T, c *Client) *registrar {
	enrollment, err := c.Enroll(context.Background(), &EnrollmentRequest{Name: "admin", Secret: "adminpw"})
	require.NoError(t, err)
	return &registrar{enrollment: enrollment}
}

func TestEnroll(t *testing.T) {
	srv := mocks.NewMockCAServer("admin", "adminpw")
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	enrollment, err := c.Enroll(context.Background(), &EnrollmentRequest{Name: "admin", Secret: "adminpw", Hosts: []string{"peer0.bu.delphi.com"}})
	require.NoError(t, err)
	require.NotNil(t, enrollment.Key)

	block, _ := pem.Decode(enrollment.Cert)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Equal(t, "admin", cert.Subject.CommonName)
	assert.Equal(t, []string{"peer0.bu.delphi.com"}, cert.DNSNames)

	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.Equal(t, 0, pub.X.Cmp(enrollment.Key.X), "certificate must carry the generated key")
	assert.NotEmpty(t, enrollment.CAChain)
}

func TestEnrollBadSecret(t *testing.T) {
	srv := mocks.NewMockCAServer("admin", "adminpw")
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Enroll(context.Background(), &EnrollmentRequest{Name: "admin", Secret: "wrong"})
	require.Error(t, err)
	s, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, status.FabricCAServerStatus, s.Group)
	assert.EqualValues(t, 20, s.Code)

	_, err = c.Enroll(context.Background(), &EnrollmentRequest{Name: "admin"})
	assert.Error(t, err, "secret is required")
}

func TestRegister(t *testing.T) {
	srv := mocks.NewMockCAServer("admin", "adminpw")
	defer srv.Close()

	c, err := New(srv.URL, nil)
	require.NoError(t, err)
	admin := enrollAdmin(t, c)

	secret, err := c.Register(context.Background(), &RegistrationRequest{Name: "alice", Type: "client", Affiliation: "bu"}, admin)
	require.NoError(t, err)
	assert.Equal(t, "pw-alice", secret)

	_, err = c.Register(context.Background(), &RegistrationRequest{Name: "alice", Type: "client", Affiliation: "bu"}, admin)
	require.Error(t, err)
	assert.True(t, status.Is(err, status.CAClientStatus, status.IdentityAlreadyRegistered))
	assert.Equal(t, retry.Conflict, retry.WithDefaults().Classify(err))
}

func TestRegisterRequiresRegistrar(t *testing.T) {
	c, err := New("localhost:7054", nil)
	require.NoError(t, err)
	_, err = c.Register(context.Background(), &RegistrationRequest{Name: "bob"}, nil)
	assert.Error(t, err)
}

func TestTransportFailure(t *testing.T) {
	srv := mocks.NewMockCAServer("admin", "adminpw")
	url := srv.URL
	srv.Close()

	c, err := New(url, nil)
	require.NoError(t, err)
	_, err = c.Enroll(context.Background(), &EnrollmentRequest{Name: "admin", Secret: "adminpw"})
	require.Error(t, err)
	assert.True(t, status.Is(err, status.HTTPTransportStatus, status.ConnectionFailed))
	assert.Equal(t, retry.Fatal, retry.WithDefaults().Classify(err))
}

func TestCreateToken(t *testing.T) {
	srv := mocks.NewMockCAServer("admin", "adminpw")
	defer srv.Close()
	c, err := New(srv.URL, nil)
	require.NoError(t, err)
	admin := enrollAdmin(t, c)

	token, err := CreateToken(admin.EnrollmentCertificate(), admin.PrivateKey(), "POST", "/api/v1/register", []byte("{}"))
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9+/=]+\.[A-Za-z0-9+/=]+$`, token)
}

func TestNormalizeURL(t *testing.T) {
	u, err := NormalizeURL("localhost:7054")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7054", u.String())

	u, err = NormalizeURL("https://ca.bu.delphi.com:7054/")
	require.NoError(t, err)
	assert.Equal(t, "https://ca.bu.delphi.com:7054", u.String())

	_, err = NormalizeURL("")
	assert.Error(t, err)
}

func TestIsAlreadyRegisteredMessage(t *testing.T) {
	assert.True(t, IsAlreadyRegisteredMessage("Identity 'x' is already registered"))
	assert.False(t, IsAlreadyRegisteredMessage("Authentication failure"))
}

func TestServerErrorCodes(t *testing.T) {
	// a server code that happens to equal the conflict code is not a conflict
	err := serverError([]cfsslapi.ResponseMessage{{Code: 40, Message: "Failed to get affiliation"}})
	assert.True(t, status.Is(err, status.FabricCAServerStatus, 40))
	assert.False(t, status.Is(err, status.CAClientStatus, status.IdentityAlreadyRegistered))
	assert.Equal(t, retry.Fatal, retry.WithDefaults().Classify(err))

	err = serverError([]cfsslapi.ResponseMessage{{Code: 0, Message: "Identity 'alice' is already registered"}})
	assert.True(t, status.Is(err, status.CAClientStatus, status.IdentityAlreadyRegistered))
	assert.Equal(t, retry.Conflict, retry.WithDefaults().Classify(err))
}
