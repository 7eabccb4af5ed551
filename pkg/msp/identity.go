/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package msp

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/golang/protobuf/proto"
	pb_msp "github.com/hyperledger/fabric-protos-go/msp"
	"github.com/pkg/errors"
)

// Role is the node type an identity is registered with at the CA
type Role string

// Roles
const (
	RoleClient Role = "client"
	RoleUser   Role = "user"
	RolePeer   Role = "peer"
)

// IdentityIdentifier names one identity of an organization
type IdentityIdentifier struct {
	Name string
	Org  string
	Role Role
	// TLS selects the tls/ material instead of msp/
	TLS bool
}

func (id IdentityIdentifier) String() string {
	s := fmt.Sprintf("%s@%s", id.Name, id.Org)
	if id.TLS {
		s += "(tls)"
	}
	return s
}

// IsPeer reports whether the identity lives under peers/ rather than users/
func (id IdentityIdentifier) IsPeer() bool {
	return id.Role == RolePeer
}

// Credential is the key pair material of an identity
type Credential struct {
	Key  *ecdsa.PrivateKey
	Cert []byte
}

// Identity is an enrolled identity able to sign on behalf of its MSP
type Identity struct {
	IdentityIdentifier
	MSPID  string
	Secret string

	privateKey *ecdsa.PrivateKey
	cert       []byte
}

// NewIdentity builds an identity from its credential
func NewIdentity(id IdentityIdentifier, mspID string, cred *Credential) *Identity {
	return &Identity{
		IdentityIdentifier: id,
		MSPID:              mspID,
		privateKey:         cred.Key,
		cert:               cred.Cert,
	}
}

// EnrollmentCertificate returns the PEM encoded certificate
func (i *Identity) EnrollmentCertificate() []byte {
	return i.cert
}

// PrivateKey returns the signing key
func (i *Identity) PrivateKey() *ecdsa.PrivateKey {
	return i.privateKey
}

// Serialize returns the marshalled msp.SerializedIdentity used as creator
func (i *Identity) Serialize() ([]byte, error) {
	serializedIdentity := &pb_msp.SerializedIdentity{
		Mspid:   i.MSPID,
		IdBytes: i.cert,
	}
	identity, err := proto.Marshal(serializedIdentity)
	if err != nil {
		return nil, errors.Wrap(err, "marshal serializedIdentity failed")
	}
	return identity, nil
}

// Sign signs the SHA-256 digest of msg
func (i *Identity) Sign(msg []byte) ([]byte, error) {
	if i.privateKey == nil {
		return nil, errors.Errorf("identity [%s] has no private key", i.IdentityIdentifier)
	}
	digest := sha256.Sum256(msg)
	return SignDigest(i.privateKey, digest[:])
}

type ecdsaSignature struct {
	R, S *big.Int
}

// SignDigest produces a low-S DER encoded ECDSA signature
func SignDigest(key *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, key, digest)
	if err != nil {
		return nil, errors.Wrap(err, "ecdsa sign failed")
	}
	halfOrder := new(big.Int).Rsh(key.Params().N, 1)
	if s.Cmp(halfOrder) == 1 {
		s.Sub(key.Params().N, s)
	}
	return asn1.Marshal(ecdsaSignature{R: r, S: s})
}

// SKI is the subject key identifier used to name keystore files
func SKI(pub *ecdsa.PublicKey) []byte {
	raw := pointBytes(pub)
	hash := sha256.Sum256(raw)
	return hash[:]
}

func pointBytes(pub *ecdsa.PublicKey) []byte {
	size := (pub.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 1+2*size)
	out[0] = 4
	pub.X.FillBytes(out[1 : 1+size])
	pub.Y.FillBytes(out[1+size:])
	return out
}

// MarshalPrivateKey PEM encodes key as PKCS#8
func MarshalPrivateKey(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "marshal private key failed")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// ParsePrivateKey decodes a PEM PKCS#8 or SEC1 ECDSA key
func ParsePrivateKey(raw []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		ecKey, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, errors.Errorf("unsupported private key type %T", key)
		}
		return ecKey, nil
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key failed")
	}
	return key, nil
}

// ParseCertificate decodes a PEM certificate
func ParseCertificate(raw []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("certificate is not PEM encoded")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	return cert, errors.Wrap(err, "parse certificate failed")
}
