/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package mocks

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io/ioutil"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	cfsslapi "github.com/cloudflare/cfssl/api"
	"go.uber.org/atomic"
)

// AlreadyRegisteredCode is the server code used for registration conflicts
const AlreadyRegisteredCode = 74

// MockCAServer is an in-process Fabric CA speaking the enroll and register
// endpoints. Certificates are really signed so clients can parse them.
type MockCAServer struct {
	*httptest.Server

	RegisterCalls atomic.Int32
	EnrollCalls   atomic.Int32

	mutex      sync.Mutex
	identities map[string]string
	caKey      *ecdsa.PrivateKey
	caCert     *x509.Certificate
	caPEM      []byte
}

// NewMockCAServer starts a server knowing the bootstrap admin
func NewMockCAServer(adminName, adminPass string) *MockCAServer {
	s := &MockCAServer{identities: map[string]string{adminName: adminPass}}
	s.initCA()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/enroll", s.enroll)
	mux.HandleFunc("/api/v1/register", s.register)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddIdentity pre-registers name, as if another process registered it
func (s *MockCAServer) AddIdentity(name, secret string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.identities[name] = secret
}

// Secret returns the registered secret of name
func (s *MockCAServer) Secret(name string) (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	secret, ok := s.identities[name]
	return secret, ok
}

// CACertPEM returns the signing CA certificate
func (s *MockCAServer) CACertPEM() []byte {
	return s.caPEM
}

func (s *MockCAServer) initCA() {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		panic(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mock-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		panic(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		panic(err)
	}
	s.caKey, s.caCert = key, cert
	s.caPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func (s *MockCAServer) enroll(w http.ResponseWriter, req *http.Request) {
	s.EnrollCalls.Inc()

	name, pass, ok := req.BasicAuth()
	if !ok {
		sendError(w, http.StatusUnauthorized, 20, "Authorization failure")
		return
	}
	if secret, found := s.Secret(name); !found || secret != pass {
		sendError(w, http.StatusUnauthorized, 20, "Authentication failure")
		return
	}

	var body struct {
		Request string   `json:"certificate_request"`
		Hosts   []string `json:"hosts"`
	}
	raw, _ := ioutil.ReadAll(req.Body)
	if err := json.Unmarshal(raw, &body); err != nil {
		sendError(w, http.StatusBadRequest, 4, err.Error())
		return
	}
	block, _ := pem.Decode([]byte(body.Request))
	if block == nil {
		sendError(w, http.StatusBadRequest, 4, "invalid CSR")
		return
	}
	csr, err := x509.ParseCertificateRequest(block.Bytes)
	if err != nil {
		sendError(w, http.StatusBadRequest, 4, err.Error())
		return
	}

	serial, _ := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 64))
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: name},
		DNSNames:     csr.DNSNames,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, s.caCert, csr.PublicKey, s.caKey)
	if err != nil {
		sendError(w, http.StatusInternalServerError, 0, err.Error())
		return
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	cfsslapi.SendResponse(w, map[string]interface{}{ // nolint: errcheck
		"Cert": base64.StdEncoding.EncodeToString(certPEM),
		"ServerInfo": map[string]interface{}{
			"CAName":  "mock-ca",
			"CAChain": base64.StdEncoding.EncodeToString(s.caPEM),
		},
	})
}

func (s *MockCAServer) register(w http.ResponseWriter, req *http.Request) {
	s.RegisterCalls.Inc()

	token := req.Header.Get("authorization")
	if len(strings.Split(token, ".")) != 2 {
		sendError(w, http.StatusUnauthorized, 20, "Authorization failure")
		return
	}
	var body struct {
		ID     string `json:"id"`
		Secret string `json:"secret"`
	}
	raw, _ := ioutil.ReadAll(req.Body)
	if err := json.Unmarshal(raw, &body); err != nil || body.ID == "" {
		sendError(w, http.StatusBadRequest, 4, "invalid registration request")
		return
	}

	s.mutex.Lock()
	if _, exists := s.identities[body.ID]; exists {
		s.mutex.Unlock()
		sendError(w, http.StatusForbidden, AlreadyRegisteredCode, "Identity '"+body.ID+"' is already registered")
		return
	}
	secret := body.Secret
	if secret == "" {
		secret = "pw-" + body.ID
	}
	s.identities[body.ID] = secret
	s.mutex.Unlock()

	cfsslapi.SendResponse(w, map[string]string{"secret": secret}) // nolint: errcheck
}

func sendError(w http.ResponseWriter, httpCode, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	json.NewEncoder(w).Encode(cfsslapi.NewErrorResponse(msg, code)) // nolint: errcheck
}
