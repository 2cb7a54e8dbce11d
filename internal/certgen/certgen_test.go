package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pki struct {
	ca                 *Authority
	caCert, caKey      string
	serverCert, srvKey string
	clientCert, cliKey string
}

func writePKI(t *testing.T) pki {
	t.Helper()
	dir := t.TempDir()

	ca, err := NewAuthority("Test CA")
	require.NoError(t, err)
	p := pki{
		ca:         ca,
		caCert:     filepath.Join(dir, "ca.crt"),
		caKey:      filepath.Join(dir, "ca.key"),
		serverCert: filepath.Join(dir, "server.crt"),
		srvKey:     filepath.Join(dir, "server.key"),
		clientCert: filepath.Join(dir, "client.crt"),
		cliKey:     filepath.Join(dir, "client.key"),
	}

	certPEM, keyPEM, err := ca.PEM()
	require.NoError(t, err)
	require.NoError(t, WritePair(p.caCert, p.caKey, certPEM, keyPEM))

	certPEM, keyPEM, err = ca.Issue("localhost", x509.ExtKeyUsageServerAuth, "localhost", "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, WritePair(p.serverCert, p.srvKey, certPEM, keyPEM))

	certPEM, keyPEM, err = ca.Issue("operator", x509.ExtKeyUsageClientAuth)
	require.NoError(t, err)
	require.NoError(t, WritePair(p.clientCert, p.cliKey, certPEM, keyPEM))
	return p
}

func parseCert(t *testing.T, path string) *x509.Certificate {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	block, _ := pem.Decode(data)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert
}

func TestIssue_ServerCertificateVerifies(t *testing.T) {
	p := writePKI(t)
	cert := parseCert(t, p.serverCert)

	assert.Equal(t, "localhost", cert.Subject.CommonName)
	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())

	roots := x509.NewCertPool()
	roots.AddCert(p.ca.Cert)
	_, err := cert.Verify(x509.VerifyOptions{
		Roots:     roots,
		DNSName:   "localhost",
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	assert.NoError(t, err)
}

func TestWritePair_KeyIsPrivate(t *testing.T) {
	p := writePKI(t)

	info, err := os.Stat(p.srvKey)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadAuthority(t *testing.T) {
	p := writePKI(t)

	loaded, err := LoadAuthority(p.caCert, p.caKey)
	require.NoError(t, err)
	assert.True(t, loaded.Cert.Equal(p.ca.Cert))

	certPEM, _, err := loaded.Issue("again", x509.ExtKeyUsageClientAuth)
	require.NoError(t, err)
	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	issued, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.NoError(t, issued.CheckSignatureFrom(p.ca.Cert))
}

func TestLoadAuthority_Errors(t *testing.T) {
	p := writePKI(t)
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not pem"), 0o600))
	dsa := filepath.Join(dir, "dsa.key")
	require.NoError(t, os.WriteFile(dsa, pem.EncodeToMemory(&pem.Block{Type: "DSA PRIVATE KEY", Bytes: []byte{1}}), 0o600))

	tests := []struct {
		name      string
		cert, key string
		want      string
	}{
		{"missing cert", filepath.Join(dir, "nope.crt"), p.caKey, "read ca cert"},
		{"missing key", p.caCert, filepath.Join(dir, "nope.key"), "read ca key"},
		{"bad cert", garbage, p.caKey, "invalid CA cert PEM"},
		{"bad key", p.caCert, garbage, "invalid CA key PEM"},
		{"unsupported key", p.caCert, dsa, "unsupported key type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAuthority(tt.cert, tt.key)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestServerConfig(t *testing.T) {
	p := writePKI(t)

	cfg, err := ServerConfig(p.serverCert, p.srvKey, "")
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, tls.NoClientCert, cfg.ClientAuth)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)

	cfg, err = ServerConfig(p.serverCert, p.srvKey, p.caCert)
	require.NoError(t, err)
	assert.Equal(t, tls.VerifyClientCertIfGiven, cfg.ClientAuth)
	assert.NotNil(t, cfg.ClientCAs)
}

func TestServerConfig_Errors(t *testing.T) {
	p := writePKI(t)
	garbage := filepath.Join(t.TempDir(), "garbage.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not pem"), 0o600))

	_, err := ServerConfig(p.serverCert, filepath.Join(t.TempDir(), "missing.key"), "")
	assert.ErrorContains(t, err, "load server cert/key")

	_, err = ServerConfig(p.serverCert, p.srvKey, filepath.Join(t.TempDir(), "missing.crt"))
	assert.ErrorContains(t, err, "read client ca")

	_, err = ServerConfig(p.serverCert, p.srvKey, garbage)
	assert.ErrorContains(t, err, "no certificates in client ca")
}

func TestServerConfig_Handshake(t *testing.T) {
	p := writePKI(t)
	cfg, err := ServerConfig(p.serverCert, p.srvKey, p.caCert)
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS != nil && len(r.TLS.VerifiedChains) > 0 {
			_, _ = io.WriteString(w, r.TLS.PeerCertificates[0].Subject.CommonName)
			return
		}
		_, _ = io.WriteString(w, "anonymous")
	}))
	srv.TLS = cfg
	srv.StartTLS()
	defer srv.Close()

	roots := x509.NewCertPool()
	roots.AddCert(p.ca.Cert)
	clientPair, err := tls.LoadX509KeyPair(p.clientCert, p.cliKey)
	require.NoError(t, err)

	get := func(certs []tls.Certificate) string {
		client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{
			RootCAs:      roots,
			Certificates: certs,
		}}}
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Equal(t, "operator", get([]tls.Certificate{clientPair}))
	assert.Equal(t, "anonymous", get(nil))
}
