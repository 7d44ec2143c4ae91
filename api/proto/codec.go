package fleetv1

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodec marshals gRPC messages as JSON instead of wire-format protobuf.
// It registers itself under the name "proto" — the name grpc-go's transport
// uses for the default content-subtype — so NewServer/Dial need no extra
// configuration to pick it up; see fleetd.pb.go's package comment for why
// this repository doesn't use the reflection-based protobuf codec directly.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "proto" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("fleetv1: marshal %T: %w", v, err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("fleetv1: unmarshal into %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
