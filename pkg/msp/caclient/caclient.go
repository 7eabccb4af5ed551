/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package caclient talks to a Fabric CA server over its REST API.
package caclient

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/asn1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	cfsslapi "github.com/cloudflare/cfssl/api"
	"github.com/cloudflare/cfssl/csr"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/yusumcheung1103/delphi-fabric/pkg/common/errors/status"
	"github.com/yusumcheung1103/delphi-fabric/pkg/common/logging"
)

var logger = logging.NewLogger("delphi/caclient")

const (
	apiPrefix      = "/api/v1/"
	defaultTimeout = 30 * time.Second
)

// Registrar is the identity whose certificate authorizes a registration
type Registrar interface {
	EnrollmentCertificate() []byte
	PrivateKey() *ecdsa.PrivateKey
}

// EnrollmentRequest asks the CA to sign a freshly generated key
type EnrollmentRequest struct {
	Name    string
	Secret  string
	Profile string
	Label   string
	CAName  string
	// Hosts are added as SANs, used for peer TLS certificates
	Hosts []string
}

// Enrollment is the result of a successful enroll
type Enrollment struct {
	Key  *ecdsa.PrivateKey
	Cert []byte
	// CAChain is the PEM chain returned by the server, if any
	CAChain []byte
}

// Attribute is a registration attribute
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	ECert bool   `json:"ecert,omitempty"`
}

// RegistrationRequest defines the attributes of a new identity
type RegistrationRequest struct {
	Name           string      `json:"id"`
	Type           string      `json:"type,omitempty"`
	Secret         string      `json:"secret,omitempty"`
	MaxEnrollments int         `json:"max_enrollments,omitempty"`
	Affiliation    string      `json:"affiliation"`
	Attributes     []Attribute `json:"attrs,omitempty"`
	CAName         string      `json:"caname,omitempty"`
}

type enrollmentRequestNet struct {
	Hosts   []string `json:"hosts,omitempty"`
	Request string   `json:"certificate_request"`
	Profile string   `json:"profile,omitempty"`
	Label   string   `json:"label,omitempty"`
	CAName  string   `json:"caname,omitempty"`
}

type enrollmentResponseNet struct {
	Cert       string
	ServerInfo struct {
		CAName  string
		CAChain string
	}
}

type registrationResponseNet struct {
	Secret string
}

// Options configure a Client
type Options struct {
	// TLSCACert is a PEM root used to verify an https CA
	TLSCACert []byte
	// ServerName overrides the TLS server name
	ServerName string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a Fabric CA REST client bound to one server URL
type Client struct {
	url        *url.URL
	httpClient *http.Client
}

// New creates a client for the CA at caURL
func New(caURL string, opts *Options) (*Client, error) {
	u, err := NormalizeURL(caURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid CA url [%s]", caURL)
	}
	if opts == nil {
		opts = &Options{}
	}
	c := &Client{url: u, httpClient: opts.HTTPClient}
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if u.Scheme == "https" && len(opts.TLSCACert) > 0 {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(opts.TLSCACert) {
				return nil, errors.New("no certificates found in CA TLS root")
			}
			transport.TLSClientConfig = &tls.Config{RootCAs: pool, ServerName: opts.ServerName, MinVersion: tls.VersionTLS12}
		}
		c.httpClient = &http.Client{Transport: transport, Timeout: timeout}
	}
	return c, nil
}

// URL returns the normalized server URL
func (c *Client) URL() string {
	return c.url.String()
}

// Enroll generates an ECDSA P-256 key, sends a CSR for it and returns the
// signed certificate together with the key.
func (c *Client) Enroll(ctx context.Context, req *EnrollmentRequest) (*Enrollment, error) {
	if req == nil || req.Name == "" {
		return nil, errors.New("enrollment name is required")
	}
	if req.Secret == "" {
		return nil, errors.New("enrollment secret is required")
	}
	logger.Debugf("enrolling [%s] at %s", req.Name, c.url)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "key generation failed")
	}
	csrPEM, err := csr.Generate(key, &csr.CertificateRequest{
		CN:    req.Name,
		Hosts: req.Hosts,
		// the key is supplied by us, cfssl only needs the algorithm for the signature
		KeyRequest: &csr.BasicKeyRequest{A: "ecdsa", S: 256},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failure generating CSR")
	}

	body, err := json.Marshal(&enrollmentRequestNet{
		Hosts:   req.Hosts,
		Request: string(csrPEM),
		Profile: req.Profile,
		Label:   req.Label,
		CAName:  req.CAName,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal enrollment request failed")
	}

	post, err := c.newPost(ctx, "enroll", body)
	if err != nil {
		return nil, err
	}
	post.SetBasicAuth(req.Name, req.Secret)

	var result enrollmentResponseNet
	if err := c.sendReq(post, &result); err != nil {
		return nil, err
	}
	cert, err := base64.StdEncoding.DecodeString(result.Cert)
	if err != nil {
		return nil, errors.Wrap(err, "invalid response format from server")
	}
	chain, err := base64.StdEncoding.DecodeString(result.ServerInfo.CAChain)
	if err != nil {
		logger.Debugf("ignoring undecodable CA chain: %s", err)
		chain = nil
	}
	return &Enrollment{Key: key, Cert: cert, CAChain: chain}, nil
}

// Register creates a new identity on the CA and returns its enrollment secret.
// An already registered name fails with status
// CAClientStatus/IdentityAlreadyRegistered.
func (c *Client) Register(ctx context.Context, req *RegistrationRequest, registrar Registrar) (string, error) {
	if req == nil || req.Name == "" {
		return "", errors.New("registration name is required")
	}
	if registrar == nil || registrar.PrivateKey() == nil {
		return "", errors.New("registrar is required")
	}
	logger.Debugf("registering [%s] type [%s] affiliation [%s] at %s", req.Name, req.Type, req.Affiliation, c.url)

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.Wrap(err, "marshal registration request failed")
	}
	post, err := c.newPost(ctx, "register", body)
	if err != nil {
		return "", err
	}
	token, err := CreateToken(registrar.EnrollmentCertificate(), registrar.PrivateKey(), post.Method, post.URL.Path, body)
	if err != nil {
		return "", errors.WithMessage(err, "failed to add token authorization header")
	}
	post.Header.Set("authorization", token)

	var result registrationResponseNet
	if err := c.sendReq(post, &result); err != nil {
		return "", err
	}
	return result.Secret, nil
}

// CreateToken builds the ECDSA authorization token
// b64(cert).b64(sig(METHOD.b64(uri).b64(body).b64(cert))).
func CreateToken(cert []byte, key *ecdsa.PrivateKey, method, uri string, body []byte) (string, error) {
	b64cert := base64.StdEncoding.EncodeToString(cert)
	payload := method + "." +
		base64.StdEncoding.EncodeToString([]byte(uri)) + "." +
		base64.StdEncoding.EncodeToString(body) + "." +
		b64cert

	digest := sha256.Sum256([]byte(payload))
	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return "", errors.Wrap(err, "token signature failed")
	}
	halfOrder := new(big.Int).Rsh(key.Params().N, 1)
	if s.Cmp(halfOrder) == 1 {
		s.Sub(key.Params().N, s)
	}
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return "", errors.Wrap(err, "marshal token signature failed")
	}
	return b64cert + "." + base64.StdEncoding.EncodeToString(sig), nil
}

func (c *Client) newPost(ctx context.Context, endpoint string, body []byte) (*http.Request, error) {
	curl := strings.TrimSuffix(c.url.String(), "/") + apiPrefix + endpoint
	req, err := http.NewRequest(http.MethodPost, curl, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "failed posting to %s", curl)
	}
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(ctx), nil
}

func (c *Client) sendReq(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return status.New(status.HTTPTransportStatus, int32(status.ConnectionFailed),
			fmt.Sprintf("%s %s failed: %s", req.Method, req.URL, err), nil)
	}
	defer resp.Body.Close() // nolint: errcheck

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read response of %s %s", req.Method, req.URL)
	}

	var body *cfsslapi.Response
	if len(respBody) > 0 {
		body = new(cfsslapi.Response)
		if err := json.Unmarshal(respBody, body); err != nil {
			if resp.StatusCode >= 400 {
				return status.New(status.HTTPTransportStatus, int32(resp.StatusCode),
					fmt.Sprintf("%s %s failed: %s", req.Method, req.URL, respBody), nil)
			}
			return errors.Wrapf(err, "failed to parse response: %s", respBody)
		}
		if len(body.Errors) > 0 {
			return serverError(body.Errors)
		}
	}
	if resp.StatusCode >= 400 {
		return status.New(status.HTTPTransportStatus, int32(resp.StatusCode),
			fmt.Sprintf("failed with server status code %d for %s %s", resp.StatusCode, req.Method, req.URL), nil)
	}
	if body == nil {
		return errors.Errorf("empty response body for %s %s", req.Method, req.URL)
	}
	if !body.Success {
		return errors.Errorf("server returned failure for %s %s", req.Method, req.URL)
	}
	if result != nil {
		return errors.Wrap(mapstructure.Decode(body.Result, result), "decoding server result failed")
	}
	return nil
}

// serverError converts the cfssl error list into a status error. The first
// error decides the code; an "already registered" message is a conflict.
func serverError(errs []cfsslapi.ResponseMessage) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, fmt.Sprintf("Error Code: %d - %s", e.Code, e.Message))
	}
	msg := "Response from server: " + strings.Join(msgs, "; ")

	for _, e := range errs {
		if IsAlreadyRegisteredMessage(e.Message) {
			return status.New(status.CAClientStatus, status.IdentityAlreadyRegistered.ToInt32(), msg, nil)
		}
	}
	return status.New(status.FabricCAServerStatus, int32(errs[0].Code), msg, nil)
}

// IsAlreadyRegisteredMessage reports whether a CA error message signals a
// registration conflict
func IsAlreadyRegisteredMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "already registered")
}

// NormalizeURL defaults the scheme to http and validates the port
func NormalizeURL(addr string) (*url.URL, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("url is empty")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "https" {
		u.Scheme = "http"
	}
	if u.Host == "" {
		return nil, errors.Errorf("url [%s] has no host", addr)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}
