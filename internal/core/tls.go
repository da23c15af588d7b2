package core

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/amoylab/boom/internal/common/cnst"
	"github.com/amoylab/boom/internal/common/config"
)

// LoadTLSConfig builds the listener TLS configuration. The chain file, when
// set, is appended to the leaf certificate. The passphrase decrypts a legacy
// encrypted PEM key.
func LoadTLSConfig(cfg *config.SSLConfig) (*tls.Config, error) {
	if cfg.CertPath == "" || cfg.KeyPath == "" {
		return nil, cnst.ErrMissingTLSPaths
	}

	certPEM, err := os.ReadFile(cfg.CertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	if cfg.CertChainPath != "" {
		chainPEM, err := os.ReadFile(cfg.CertChainPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate chain: %w", err)
		}
		certPEM = append(append(bytes.TrimRight(certPEM, "\n"), '\n'), chainPEM...)
	}

	keyPEM, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	keyPEM, err = decryptKey(keyPEM, cfg.Passphrase)
	if err != nil {
		return nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("invalid certificate or key: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

//nolint:staticcheck // legacy RFC 1423 keys are the only encrypted PEM format tls can not load
func decryptKey(keyPEM []byte, passphrase string) ([]byte, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil || !x509.IsEncryptedPEMBlock(block) {
		return keyPEM, nil
	}
	if passphrase == "" {
		return nil, fmt.Errorf("private key is encrypted but no passphrase is configured")
	}
	der, err := x509.DecryptPEMBlock(block, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: block.Type, Bytes: der}), nil
}
