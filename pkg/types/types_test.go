package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasProvider(t *testing.T) {
	caps := HostCapabilities{Providers: []Provider{ProviderContainer}}
	require.True(t, caps.HasProvider(ProviderContainer))
	require.False(t, caps.HasProvider(ProviderVM))
}

func TestJobStatusActiveAndTerminal(t *testing.T) {
	cases := []struct {
		status JobStatus
		active bool
	}{
		{JobQueued, true},
		{JobRunning, true},
		{JobCompleted, false},
		{JobCompletedWithWarnings, false},
		{JobFailed, false},
		{JobCancelled, false},
	}
	for _, c := range cases {
		require.Equal(t, c.active, c.status.Active(), c.status)
		require.Equal(t, !c.active, c.status.Terminal(), c.status)
	}
}

func TestImageSyncJobStatusActive(t *testing.T) {
	require.True(t, ImageSyncJobPending.Active())
	require.True(t, ImageSyncJobTransferring.Active())
	require.True(t, ImageSyncJobLoading.Active())
	require.False(t, ImageSyncJobCompleted.Active())
	require.False(t, ImageSyncJobFailed.Active())
}

func TestAgentUpdateStatusActive(t *testing.T) {
	require.True(t, AgentUpdatePending.Active())
	require.True(t, AgentUpdateDownloading.Active())
	require.True(t, AgentUpdateInstalling.Active())
	require.True(t, AgentUpdateRestarting.Active())
	require.False(t, AgentUpdateCompleted.Active())
	require.False(t, AgentUpdateFailed.Active())
}
