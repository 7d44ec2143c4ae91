package main

import (
	"bytes"
	"io"
	"os"
	"testing"

	fleetv1 "github.com/cuemby/fleetd/api/proto"
	"github.com/stretchr/testify/require"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func TestPrintLabFormatsFields(t *testing.T) {
	out := captureStdout(t, func() {
		printLab(&fleetv1.Lab{Id: "lab-1", Owner: "alice", Provider: "clab", State: "running"})
	})
	require.Contains(t, out, "lab-1")
	require.Contains(t, out, "owner=alice")
	require.Contains(t, out, "provider=clab")
	require.Contains(t, out, "state=running")
}

func TestPrintJobFormatsFields(t *testing.T) {
	out := captureStdout(t, func() {
		printJob(&fleetv1.Job{Id: "job-1", Action: "deploy", Status: "queued", RetryCount: 2})
	})
	require.Contains(t, out, "job-1")
	require.Contains(t, out, "action=deploy")
	require.Contains(t, out, "status=queued")
	require.Contains(t, out, "retries=2")
}

func TestLabCommandArgValidation(t *testing.T) {
	require.NoError(t, labGetCmd.Args(labGetCmd, []string{"lab-1"}))
	require.Error(t, labGetCmd.Args(labGetCmd, []string{}))
	require.Error(t, labGetCmd.Args(labGetCmd, []string{"lab-1", "extra"}))
}

func TestNodeCommandRequiresLabAndNodeID(t *testing.T) {
	require.NoError(t, nodeStartCmd.Args(nodeStartCmd, []string{"lab-1", "r1"}))
	require.Error(t, nodeStartCmd.Args(nodeStartCmd, []string{"lab-1"}))
}

func TestRootCommandRegistersAllSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"lab", "node", "job", "host", "events"} {
		require.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestLabCreateFlagDefaults(t *testing.T) {
	provider, err := labCreateCmd.Flags().GetString("provider")
	require.NoError(t, err)
	require.Equal(t, "clab", provider)
}
