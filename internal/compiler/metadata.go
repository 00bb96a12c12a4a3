package compiler

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ErrNoMetadata is returned when bytecode carries no CBOR metadata tail.
var ErrNoMetadata = errors.New("bytecode has no metadata")

var metadataDecMode cbor.DecMode

func init() {
	var err error
	metadataDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("compiler: CBOR decoder initialization failed: " + err.Error())
	}
}

// Metadata is the CBOR map solc appends to runtime bytecode.
type Metadata struct {
	// SolcVersion is "0.8.19" for releases or the full string for nightlies.
	SolcVersion  string
	IPFS         string
	Swarm        string
	Experimental bool
}

// DecodeMetadata reads the metadata tail of hex-encoded runtime bytecode.
// The last two bytes hold the big-endian length of the CBOR map before them.
// Only the tail is hex-decoded, so unlinked library placeholders earlier in
// the code do not matter.
func DecodeMetadata(code string) (*Metadata, error) {
	code = strings.TrimPrefix(code, "0x")
	if len(code) < 4 || len(code)%2 != 0 {
		return nil, ErrNoMetadata
	}

	lenBytes, err := hex.DecodeString(code[len(code)-4:])
	if err != nil {
		return nil, fmt.Errorf("decoding metadata length: %w", err)
	}
	n := int(lenBytes[0])<<8 | int(lenBytes[1])
	start := len(code) - 4 - 2*n
	if n == 0 || start < 0 {
		return nil, ErrNoMetadata
	}

	raw, err := hex.DecodeString(code[start : len(code)-4])
	if err != nil {
		return nil, fmt.Errorf("decoding metadata bytes: %w", err)
	}

	var fields map[string]any
	if err := metadataDecMode.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}

	md := &Metadata{}
	switch v := fields["solc"].(type) {
	case []byte:
		if len(v) == 3 {
			md.SolcVersion = fmt.Sprintf("%d.%d.%d", v[0], v[1], v[2])
		}
	case string:
		md.SolcVersion = v
	}
	if v, ok := fields["ipfs"].([]byte); ok {
		md.IPFS = hex.EncodeToString(v)
	}
	for _, key := range []string{"bzzr1", "bzzr0"} {
		if v, ok := fields[key].([]byte); ok {
			md.Swarm = hex.EncodeToString(v)
			break
		}
	}
	if v, ok := fields["experimental"].(bool); ok {
		md.Experimental = v
	}
	return md, nil
}
