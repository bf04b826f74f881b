// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package certs generates and loads TLS material for the API listener.
//
// Production deployments normally terminate TLS with their own certificates;
// the generated CA and server pair exist for development and small installs
// where the session cookie must still travel with the Secure attribute.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/oops"
)

// File names written by Save.
const (
	CACertFile     = "ca.crt"
	CAKeyFile      = "ca.key"
	ServerCertFile = "server.crt"
	ServerKeyFile  = "server.key"
)

const (
	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 365 * 24 * time.Hour
	organization   = "warden"
)

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// GenerateCA creates a self-signed root CA named "warden CA <name>".
func GenerateCA(name string) (*CA, error) {
	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   "warden CA " + name,
		},
		NotBefore:             now,
		NotAfter:              now.Add(caValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	cert, err := sign(template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("CERTS_GENERATE_FAILED").With("certificate", "ca").Wrap(err)
	}
	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a server certificate signed by ca for hosts.
// Hosts that parse as IP addresses become IP SANs, the rest DNS SANs.
// The first host is used as the common name.
func GenerateServerCert(ca *CA, hosts ...string) (*ServerCert, error) {
	if ca == nil {
		return nil, oops.Code("CERTS_GENERATE_FAILED").Errorf("a CA is required")
	}
	if len(hosts) == 0 {
		return nil, oops.Code("CERTS_GENERATE_FAILED").Errorf("at least one host is required")
	}

	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   hosts[0],
		},
		NotBefore:   now,
		NotAfter:    now.Add(serverValidity),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	cert, err := sign(template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("CERTS_GENERATE_FAILED").With("certificate", "server").Wrap(err)
	}
	return &ServerCert{Certificate: cert, PrivateKey: key}, nil
}

// Save writes the CA and, when non-nil, the server pair into dir. Keys are
// written with 0600 permissions.
func Save(dir string, ca *CA, server *ServerCert) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return oops.Code("CERTS_SAVE_FAILED").With("dir", dir).Wrap(err)
	}
	if err := writePEM(filepath.Join(dir, CACertFile), "CERTIFICATE", ca.Certificate.Raw); err != nil {
		return err
	}
	if err := writeKey(filepath.Join(dir, CAKeyFile), ca.PrivateKey); err != nil {
		return err
	}
	if server == nil {
		return nil
	}
	if err := writePEM(filepath.Join(dir, ServerCertFile), "CERTIFICATE", server.Certificate.Raw); err != nil {
		return err
	}
	return writeKey(filepath.Join(dir, ServerKeyFile), server.PrivateKey)
}

// LoadCA reads a CA previously written by Save.
func LoadCA(dir string) (*CA, error) {
	certPath := filepath.Join(dir, CACertFile)
	keyPath := filepath.Join(dir, CAKeyFile)

	certDER, err := readPEM(certPath, "CERTIFICATE")
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, oops.Code("CERTS_LOAD_FAILED").With("path", certPath).Wrap(err)
	}

	keyDER, err := readPEM(keyPath, "EC PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	key, err := x509.ParseECPrivateKey(keyDER)
	if err != nil {
		return nil, oops.Code("CERTS_LOAD_FAILED").With("path", keyPath).Wrap(err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// LoadServerTLS builds a server tls.Config from a PEM certificate and key.
func LoadServerTLS(certFile, keyFile string) (*tls.Config, error) {
	pair, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.Code("CERTS_LOAD_FAILED").
			With("cert_file", certFile).
			With("key_file", keyFile).
			Wrap(err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{pair},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func newKeyAndSerial() (*ecdsa.PrivateKey, *big.Int, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code("CERTS_GENERATE_FAILED").With("operation", "generate_key").Wrap(err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code("CERTS_GENERATE_FAILED").With("operation", "generate_serial").Wrap(err)
	}
	return key, serial, nil
}

func sign(template, parent *x509.Certificate, pub *ecdsa.PublicKey, priv *ecdsa.PrivateKey) (*x509.Certificate, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, priv)
	if err != nil {
		return nil, err
	}
	return x509.ParseCertificate(der)
}

func writeKey(path string, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("CERTS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return writePEM(path, "EC PRIVATE KEY", der)
}

func writePEM(path, blockType string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return oops.Code("CERTS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func readPEM(path, blockType string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.Code("CERTS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != blockType {
		return nil, oops.Code("CERTS_LOAD_FAILED").With("path", path).Errorf("no %s PEM block in %s", blockType, path)
	}
	return block.Bytes, nil
}
