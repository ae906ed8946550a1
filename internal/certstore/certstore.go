// Package certstore resolves the TLS materials an API references into
// ready tls.Config values: custom CA bundles, verification toggles, and
// mTLS client certificate pairs, with size and extension guardrails.
package certstore

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxCABytes caps custom CA bundle files.
	maxCABytes = 512 << 10
	// maxClientBytes caps client certificate and key files.
	maxClientBytes = 256 << 10
)

var caExtensions = map[string]bool{
	".pem":       true,
	".crt":       true,
	".cer":       true,
	".ca-bundle": true,
	".p7b":       true,
}

// Material describes what one API asked for. SSLVerify is "true", "false",
// or a CA bundle path; SSLCert is an explicit CA bundle path.
type Material struct {
	SSLVerify         string
	SSLCert           string
	ClientCertEnabled bool
	ClientCert        string
	ClientKey         string
}

// Store resolves certificate paths against its configured directories.
// Relative paths resolve under the matching directory; absolute paths are
// used as-is but still validated.
type Store struct {
	caDir   string
	certDir string
	keyDir  string
}

// New creates a Store rooted at baseDir: CA bundles under certs/, client
// materials under client_certs/cert and client_certs/key.
func New(baseDir string) *Store {
	return &Store{
		caDir:   filepath.Join(baseDir, "certs"),
		certDir: filepath.Join(baseDir, "client_certs", "cert"),
		keyDir:  filepath.Join(baseDir, "client_certs", "key"),
	}
}

// Resolve builds the tls.Config for one API's materials. A nil result
// means the standard defaults suffice. Failures are config errors meant
// for the run's error message.
func (s *Store) Resolve(m Material) (*tls.Config, error) {
	var conf *tls.Config
	ensure := func() *tls.Config {
		if conf == nil {
			conf = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return conf
	}

	verify := strings.TrimSpace(m.SSLVerify)
	switch strings.ToLower(verify) {
	case "", "true":
	case "false":
		ensure().InsecureSkipVerify = true
	default:
		pool, err := s.loadCAPool(verify)
		if err != nil {
			return nil, err
		}
		ensure().RootCAs = pool
	}

	if m.SSLCert != "" && (conf == nil || conf.RootCAs == nil) {
		pool, err := s.loadCAPool(m.SSLCert)
		if err != nil {
			return nil, err
		}
		ensure().RootCAs = pool
	}

	if m.ClientCertEnabled {
		if m.ClientCert == "" || m.ClientKey == "" {
			return nil, fmt.Errorf("client certificate enabled but cert or key path is empty")
		}
		pair, err := s.loadKeyPair(m.ClientCert, m.ClientKey)
		if err != nil {
			return nil, err
		}
		ensure().Certificates = []tls.Certificate{pair}
	}

	return conf, nil
}

func (s *Store) loadCAPool(path string) (*x509.CertPool, error) {
	resolved := resolvePath(s.caDir, path)
	ext := strings.ToLower(filepath.Ext(resolved))
	if !caExtensions[ext] {
		return nil, fmt.Errorf("unsupported ca bundle extension %q", ext)
	}
	data, err := readCapped(resolved, maxCABytes)
	if err != nil {
		return nil, fmt.Errorf("load ca bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", resolved)
	}
	return pool, nil
}

func (s *Store) loadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	certBytes, err := readCapped(resolvePath(s.certDir, certPath), maxClientBytes)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load client cert: %w", err)
	}
	keyBytes, err := readCapped(resolvePath(s.keyDir, keyPath), maxClientBytes)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load client key: %w", err)
	}
	pair, err := tls.X509KeyPair(certBytes, keyBytes)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse client key pair: %w", err)
	}
	return pair, nil
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func readCapped(path string, maxBytes int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, max %d", path, info.Size(), maxBytes)
	}
	return os.ReadFile(path)
}
