// Package tls terminates HTTPS for the calculator server, either with
// certificate files on disk or with certificates from Let's Encrypt.
package tls

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"

	"golang.org/x/crypto/acme/autocert"
)

// Config holds the [TLS] settings
type Config struct {
	Enabled            bool
	LetsEncrypt        bool
	Domain             string
	Email              string
	CacheDir           string
	CertFile           string
	KeyFile            string
	HTTPSPort          string
	ForceHTTPSRedirect bool
}

// LoadConfig reads the [TLS] section
func LoadConfig() Config {
	return Config{
		Enabled:            configuration.GetBool("TLS", "enable_tls", false),
		LetsEncrypt:        configuration.GetBool("TLS", "enable_letsencrypt", false),
		Domain:             configuration.GetString("TLS", "domain", ""),
		Email:              configuration.GetString("TLS", "letsencrypt_email", ""),
		CacheDir:           configuration.GetString("TLS", "cert_cache_dir", "./certs"),
		CertFile:           configuration.GetString("TLS", "cert_file", "./certs/server.crt"),
		KeyFile:            configuration.GetString("TLS", "key_file", "./certs/server.key"),
		HTTPSPort:          configuration.GetString("TLS", "https_port", "8443"),
		ForceHTTPSRedirect: configuration.GetBool("TLS", "force_https_redirect", false),
	}
}

// Manager owns the certificate source for the HTTPS listener
type Manager struct {
	config      Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// NewManager validates cfg and prepares certificates when TLS is enabled
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{config: cfg}
	if !cfg.Enabled {
		return m, nil
	}
	if cfg.LetsEncrypt {
		if err := m.initLetsEncrypt(); err != nil {
			return nil, fmt.Errorf("TLS: %w", err)
		}
		return m, nil
	}
	if err := m.initManual(); err != nil {
		return nil, fmt.Errorf("TLS: %w", err)
	}
	return m, nil
}

func (m *Manager) initLetsEncrypt() error {
	if strings.TrimSpace(m.config.Domain) == "" {
		return fmt.Errorf("domain is required when Let's Encrypt is enabled")
	}
	if strings.TrimSpace(m.config.Email) == "" {
		return fmt.Errorf("letsencrypt_email is required when Let's Encrypt is enabled")
	}
	if err := os.MkdirAll(m.config.CacheDir, 0700); err != nil {
		return fmt.Errorf("creating certificate cache: %w", err)
	}

	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(m.config.CacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      m.config.Email,
		HostPolicy: autocert.HostWhitelist(m.config.Domain, "www."+m.config.Domain),
	}
	m.tlsConfig = &tls.Config{
		GetCertificate: m.getCertificate,
		NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion:     tls.VersionTLS12,
	}
	logger.Info(logger.AreaGeneral, "Let's Encrypt enabled for %s", m.config.Domain)
	return nil
}

// getCertificate falls back to the configured domain for clients without SNI
func (m *Manager) getCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if hello.ServerName == "" {
		hello.ServerName = m.config.Domain
	}
	if !m.allowedHost(hello.ServerName) {
		logger.Warn(logger.AreaGeneral, "TLS request for unknown host %q", hello.ServerName)
		return nil, fmt.Errorf("unauthorized domain: %s", hello.ServerName)
	}
	return m.autocertMgr.GetCertificate(hello)
}

func (m *Manager) allowedHost(host string) bool {
	return host == m.config.Domain || host == "www."+m.config.Domain
}

func (m *Manager) initManual() error {
	for _, f := range []string{m.config.CertFile, m.config.KeyFile} {
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("certificate file: %w", err)
		}
	}
	logger.Info(logger.AreaGeneral, "TLS using certificate %s", m.config.CertFile)
	return nil
}

// Enabled reports whether the server should listen with TLS
func (m *Manager) Enabled() bool {
	return m.config.Enabled
}

// TLSConfig is nil unless certificates come from Let's Encrypt
func (m *Manager) TLSConfig() *tls.Config {
	return m.tlsConfig
}

// CertFiles returns the certificate and key paths for manual mode
func (m *Manager) CertFiles() (string, string) {
	if m.tlsConfig != nil {
		return "", ""
	}
	return m.config.CertFile, m.config.KeyFile
}

// HTTPSPort returns the port of the TLS listener
func (m *Manager) HTTPSPort() string {
	return m.config.HTTPSPort
}

// PlainHandler returns what the plain HTTP listener serves. With TLS on it
// answers ACME challenges and optionally redirects everything else to HTTPS.
func (m *Manager) PlainHandler(app http.Handler) http.Handler {
	if !m.config.Enabled {
		return app
	}
	fallback := app
	if m.config.ForceHTTPSRedirect {
		fallback = m.redirectHandler()
	}
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(fallback)
	}
	return fallback
}

func (m *Manager) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		target := "https://" + host
		if m.config.HTTPSPort != "443" {
			target += ":" + m.config.HTTPSPort
		}
		target += r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}
