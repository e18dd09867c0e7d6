package certs

import (
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.NotEmpty(t, cert.Certificate)
	c, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return c
}

func TestGetOrCreateCertificate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	m := NewFileManager(dir)

	exists, err := m.CertificateExists()
	require.NoError(t, err)
	assert.False(t, exists)

	cert, err := m.GetOrCreateCertificate()
	require.NoError(t, err)

	c := parse(t, cert)
	assert.NoError(t, c.VerifyHostname("localhost"))
	assert.NoError(t, c.VerifyHostname("127.0.0.1"))
	assert.Equal(t, []string{"spendguard"}, c.Subject.Organization)
	_, isEC := c.PublicKey.(*ecdsa.PublicKey)
	assert.True(t, isEC)

	info, err := os.Stat(filepath.Join(dir, "bridge.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	again, err := m.GetOrCreateCertificate()
	require.NoError(t, err)
	assert.Equal(t, c.SerialNumber, parse(t, again).SerialNumber, "valid certificate is reused")
}

func TestGetOrCreateCertificate_Renewal(t *testing.T) {
	tests := []struct {
		prepare func(t *testing.T, m *FileManager)
		name    string
	}{
		{
			name: "near expiry",
			prepare: func(_ *testing.T, m *FileManager) {
				m.now = func() time.Time { return time.Now().Add(Validity - 24*time.Hour) }
			},
		},
		{
			name: "corrupt files",
			prepare: func(t *testing.T, m *FileManager) {
				require.NoError(t, os.WriteFile(m.certFile, []byte("garbage"), 0600))
			},
		},
		{
			name: "key removed",
			prepare: func(t *testing.T, m *FileManager) {
				require.NoError(t, os.Remove(m.keyFile))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewFileManager(t.TempDir())
			first, err := m.GetOrCreateCertificate()
			require.NoError(t, err)
			serial := parse(t, first).SerialNumber

			tt.prepare(t, m)

			renewed, err := m.GetOrCreateCertificate()
			require.NoError(t, err)
			assert.NotEqual(t, serial, parse(t, renewed).SerialNumber)
		})
	}
}

func TestTLSConfig(t *testing.T) {
	m := NewFileManager(t.TempDir())
	cfg, err := m.TLSConfig()
	require.NoError(t, err)
	assert.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.FileExists(t, m.CertFile())
}

func TestVerifyCertificate_Empty(t *testing.T) {
	m := NewFileManager(t.TempDir())
	assert.ErrorIs(t, m.verifyCertificate(tls.Certificate{}), errNoCertificate)
}
