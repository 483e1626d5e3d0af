package cluster

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEtcdTLSClientConfigNilWhenDisabled(t *testing.T) {
	var tlsCfg *EtcdTLS
	cfg, err := tlsCfg.clientConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)

	tlsCfg = &EtcdTLS{Enabled: false}
	cfg, err = tlsCfg.clientConfig()
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestEtcdTLSClientConfigRequiresAllThreeFiles(t *testing.T) {
	tlsCfg := &EtcdTLS{Enabled: true, CertFile: "cert.pem"}
	_, err := tlsCfg.clientConfig()
	assert.Error(t, err)
}

func TestEtcdTLSClientConfigFailsOnMissingFiles(t *testing.T) {
	dir := t.TempDir()
	tlsCfg := &EtcdTLS{
		Enabled:  true,
		CertFile: filepath.Join(dir, "missing-cert.pem"),
		KeyFile:  filepath.Join(dir, "missing-key.pem"),
		CAFile:   filepath.Join(dir, "missing-ca.pem"),
	}
	_, err := tlsCfg.clientConfig()
	assert.Error(t, err)
}

func TestEtcdBackstopKeyFormatsUnderNamespace(t *testing.T) {
	b := &EtcdBackstop{namespace: "artemis"}
	assert.Equal(t, "/artemis/cluster/node-1", b.key("node-1"))
}

func TestNewEtcdBackstopRejectsNoEndpoints(t *testing.T) {
	_, err := NewEtcdBackstop(nil, "artemis", 30, nil, nil)
	assert.Error(t, err)
}
