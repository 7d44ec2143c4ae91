package main

import (
	"testing"

	"github.com/cuemby/fleetd/pkg/security"
	"github.com/cuemby/fleetd/pkg/storage"
	"github.com/stretchr/testify/require"
)

// isolateHomeDir points os.UserHomeDir (what security.GetCertDir reads) at a
// scratch directory so ensureCertificate's filesystem writes never touch a
// real operator's ~/.fleetd/certs.
func isolateHomeDir(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnsureCertificateInitializesCAAndIssuesCert(t *testing.T) {
	isolateHomeDir(t)
	store := newTestStore(t)

	_, err := ensureCertificate(store, "node-1", "127.0.0.1:9000")
	require.NoError(t, err)

	certDir, err := security.GetCertDir("manager", "node-1")
	require.NoError(t, err)
	require.True(t, security.CertExists(certDir))

	ca := security.NewCertAuthority(store)
	require.NoError(t, ca.LoadFromStore())
	require.True(t, ca.IsInitialized())
}

func TestEnsureCertificateIsIdempotent(t *testing.T) {
	isolateHomeDir(t)
	store := newTestStore(t)

	_, err := ensureCertificate(store, "node-1", "127.0.0.1:9000")
	require.NoError(t, err)
	_, err = ensureCertificate(store, "node-1", "127.0.0.1:9000")
	require.NoError(t, err)

	certDir, err := security.GetCertDir("manager", "node-1")
	require.NoError(t, err)
	require.True(t, security.CertExists(certDir))
}

func TestEnsureCertificateRejectsMalformedBindAddr(t *testing.T) {
	isolateHomeDir(t)
	store := newTestStore(t)

	_, err := ensureCertificate(store, "node-1", "not-a-host-port")
	require.Error(t, err)
}

func TestEnsureCertificateReusesCAAcrossReplicas(t *testing.T) {
	isolateHomeDir(t)
	store := newTestStore(t)

	_, err := ensureCertificate(store, "node-1", "127.0.0.1:9000")
	require.NoError(t, err)
	_, err = ensureCertificate(store, "node-2", "127.0.0.1:9001")
	require.NoError(t, err)

	dir1, _ := security.GetCertDir("manager", "node-1")
	dir2, _ := security.GetCertDir("manager", "node-2")
	require.True(t, security.CertExists(dir1))
	require.True(t, security.CertExists(dir2))
}

func TestClusterCommandsRequireNodeID(t *testing.T) {
	require.Error(t, clusterInitCmd.ValidateRequiredFlags())
	require.Error(t, clusterJoinCmd.ValidateRequiredFlags())

	require.NoError(t, clusterInitCmd.Flags().Set("node-id", "node-1"))
	require.NoError(t, clusterInitCmd.ValidateRequiredFlags())
}

func TestClusterCommandDefaultFlags(t *testing.T) {
	bindAddr, err := clusterInitCmd.Flags().GetString("bind-addr")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", bindAddr)

	dataDir, err := clusterInitCmd.Flags().GetString("data-dir")
	require.NoError(t, err)
	require.Equal(t, "/var/lib/fleetd", dataDir)
}

func TestRootCommandRegistersClusterSubcommand(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["cluster"])
}
