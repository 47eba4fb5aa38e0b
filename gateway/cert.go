package gateway

import (
	"crypto/tls"

	"github.com/sahib/config"
)

// getTLSConfig loads the configured certificate pair.
// It returns nil when the gateway should speak plain http.
func getTLSConfig(cfg *config.Config) (*tls.Config, error) {
	certPath := cfg.String("cert.certfile")
	keyPath := cfg.String("cert.keyfile")
	if certPath == "" || keyPath == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
