// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package tls provides TLS certificate generation and loading for authd.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
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

// File names inside a certs directory.
const (
	CAFile     = "root-ca.crt"
	CAKeyFile  = "root-ca.key"
	ServerName = "server"
)

// DefaultHosts are the SANs placed on a server certificate when none are given.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// CA holds a certificate authority certificate and private key.
type CA struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
}

// ServerCert holds a server certificate and private key.
type ServerCert struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Name        string
}

func newKeyAndSerial() (*ecdsa.PrivateKey, *big.Int, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, oops.Code("TLS_KEYGEN_FAILED").Wrap(err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, oops.Code("TLS_KEYGEN_FAILED").With("component", "serial").Wrap(err)
	}
	return key, serial, nil
}

// GenerateCA creates a self-signed root CA valid for ten years.
func GenerateCA() (*CA, error) {
	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"authd"},
			CommonName:   "authd CA",
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(10, 0, 0),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	certBytes, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, oops.Code("TLS_CERT_CREATE_FAILED").With("kind", "ca").Wrap(err)
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, oops.Code("TLS_CERT_CREATE_FAILED").With("kind", "ca").Wrap(err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// GenerateServerCert creates a one-year server certificate signed by ca.
// Each host is added as an IP SAN when it parses as an address and as a DNS
// SAN otherwise. An empty hosts list means DefaultHosts.
func GenerateServerCert(ca *CA, name string, hosts []string) (*ServerCert, error) {
	if ca == nil {
		return nil, oops.Code("TLS_CA_REQUIRED").Errorf("a CA is required to sign server certificates")
	}
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	key, serial, err := newKeyAndSerial()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"authd"},
			CommonName:   "authd-" + name,
		},
		NotBefore:   now,
		NotAfter:    now.AddDate(1, 0, 0),
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

	certBytes, err := x509.CreateCertificate(rand.Reader, template, ca.Certificate, &key.PublicKey, ca.PrivateKey)
	if err != nil {
		return nil, oops.Code("TLS_CERT_CREATE_FAILED").With("kind", "server").With("name", name).Wrap(err)
	}
	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, oops.Code("TLS_CERT_CREATE_FAILED").With("kind", "server").With("name", name).Wrap(err)
	}

	return &ServerCert{Certificate: cert, PrivateKey: key, Name: name}, nil
}

// SaveCertificates writes the CA and optionally a server certificate to certsDir.
// The CA is saved as root-ca.crt and root-ca.key, the server certificate as
// {name}.crt and {name}.key. Files are created 0600, the directory 0700.
func SaveCertificates(certsDir string, ca *CA, serverCert *ServerCert) error {
	if err := os.MkdirAll(certsDir, 0o700); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", certsDir).Wrap(err)
	}

	if err := saveCert(filepath.Join(certsDir, CAFile), ca.Certificate); err != nil {
		return err
	}
	if err := saveKey(filepath.Join(certsDir, CAKeyFile), ca.PrivateKey); err != nil {
		return err
	}

	if serverCert != nil {
		if err := saveCert(filepath.Join(certsDir, serverCert.Name+".crt"), serverCert.Certificate); err != nil {
			return err
		}
		if err := saveKey(filepath.Join(certsDir, serverCert.Name+".key"), serverCert.PrivateKey); err != nil {
			return err
		}
	}

	return nil
}

// LoadCA loads an existing CA from certsDir.
func LoadCA(certsDir string) (*CA, error) {
	cert, err := readCert(filepath.Join(certsDir, CAFile))
	if err != nil {
		return nil, err
	}

	keyPath := filepath.Clean(filepath.Join(certsDir, CAKeyFile))
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", keyPath).Wrap(err)
	}
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", keyPath).Errorf("no PEM block found")
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", keyPath).Wrap(err)
	}

	return &CA{Certificate: cert, PrivateKey: key}, nil
}

// LoadServerTLS builds a server TLS config from a PEM certificate and key.
func LoadServerTLS(certFile, keyFile string) (*cryptotls.Config, error) {
	pair, err := cryptotls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("cert", certFile).With("key", keyFile).Wrap(err)
	}
	return &cryptotls.Config{
		Certificates: []cryptotls.Certificate{pair},
		MinVersion:   cryptotls.VersionTLS13,
	}, nil
}

// LoadClientTLS builds a client TLS config trusting only the CA in caFile.
// serverName overrides the name verified against the server certificate
// when non-empty.
func LoadClientTLS(caFile, serverName string) (*cryptotls.Config, error) {
	ca, err := readCert(caFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(ca)
	return &cryptotls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: cryptotls.VersionTLS13,
	}, nil
}

func readCert(path string) (*x509.Certificate, error) {
	path = filepath.Clean(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Errorf("no PEM block found")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, oops.Code("TLS_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return cert, nil
}

func saveCert(path string, cert *x509.Certificate) error {
	return writePEM(path, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
}

func saveKey(path string, key *ecdsa.PrivateKey) error {
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return writePEM(path, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})
}

func writePEM(path string, block *pem.Block) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	if err := f.Close(); err != nil {
		return oops.Code("TLS_SAVE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
