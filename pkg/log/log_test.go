package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitJSONOutputWritesStampedLines(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("manager started")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "manager started", entry["message"])
	require.Contains(t, entry, "time")
}

func TestInitConsoleOutputIsHumanReadable(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: false, Output: &buf})

	Logger.Info().Msg("cluster bootstrapped")

	require.Contains(t, buf.String(), "cluster bootstrapped")
}

func TestInitDefaultsToInfoLevelOnUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("not-a-real-level"), JSONOutput: true, Output: &buf})

	Logger.Debug().Msg("should be suppressed")
	require.Empty(t, buf.String())

	Logger.Info().Msg("should appear")
	require.Contains(t, buf.String(), "should appear")
}

func TestDebugLevelEnablesDebugMessages(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	Logger.Debug().Msg("verbose detail")
	require.Contains(t, buf.String(), "verbose detail")
}

func TestWithComponentAddsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithComponent("jobrunner").Info().Msg("polling")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "jobrunner", entry["component"])
}

func TestWithHostLabJobIDAddFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithHostID("host-1").Info().Msg("m1")
	WithLabID("lab-1").Info().Msg("m2")
	WithJobID("job-1").Info().Msg("m3")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var e1, e2, e3 map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &e1))
	require.NoError(t, json.Unmarshal(lines[1], &e2))
	require.NoError(t, json.Unmarshal(lines[2], &e3))
	require.Equal(t, "host-1", e1["host_id"])
	require.Equal(t, "lab-1", e2["lab_id"])
	require.Equal(t, "job-1", e3["job_id"])
}

func TestPackageLevelHelpersWriteThroughGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	Info("info msg")
	Debug("debug msg")
	Warn("warn msg")
	Error("error msg")

	out := buf.String()
	require.Contains(t, out, "info msg")
	require.Contains(t, out, "debug msg")
	require.Contains(t, out, "warn msg")
	require.Contains(t, out, "error msg")
}
