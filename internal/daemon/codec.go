package daemon

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is the content-subtype advertised on the wire
// ("application/grpc+json"). The real SCION daemon speaks protobuf; this
// client instead expects a peer that exposes the same AS/Paths RPCs over
// a JSON-framed grpc.Codec, so the client stays a genuine
// grpc.ClientConn without requiring generated .pb.go stubs.
const jsonCodecName = "json"

// jsonCodec implements encoding.Codec (previously encoding.Codec in
// grpc's codec registry) using encoding/json instead of protobuf.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("daemon: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("daemon: unmarshal %T: %w", v, err)
	}
	return nil
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
