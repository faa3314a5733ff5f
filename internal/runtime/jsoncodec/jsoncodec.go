package jsoncodec

import (
	"github.com/bytedance/sonic"
)

var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// DecodeValue unmarshals data into a generic value. Objects come back as
// map[string]any; primitives keep their JSON kind so callers can reject them.
func DecodeValue(data []byte) (any, error) {
	var v any
	if err := defaultConfig.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Stringify renders v for log output, falling back to a marker when v
// cannot be encoded.
func Stringify(v any) string {
	data, err := defaultConfig.Marshal(v)
	if err != nil {
		return "<unencodable>"
	}
	return string(data)
}
