package fleetv1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestJSONCodecRoundTrip(t *testing.T) {
	var c jsonCodec
	in := &Lab{Id: "lab-1", Owner: "alice", Provider: "clab", State: "running"}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	var out Lab
	require.NoError(t, c.Unmarshal(data, &out))
	require.Equal(t, *in, out)
}

func TestJSONCodecUnmarshalRejectsGarbage(t *testing.T) {
	var c jsonCodec
	var out Lab
	err := c.Unmarshal([]byte("not json"), &out)
	require.Error(t, err)
}

func TestJSONCodecRegisteredUnderProtoName(t *testing.T) {
	require.Equal(t, "proto", (jsonCodec{}).Name())
	require.NotNil(t, encoding.GetCodec("proto"))
}
