package mqadapter

import gojson "github.com/goccy/go-json"

// Codec is the adapter's injectable payload serializer (spec §1): it turns a
// body value into wire bytes and back. It never touches headers — those are
// transported as QSVC/TSVC string-typed message attributes (spec §3).
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonCodec struct{}

// NewJSONCodec returns the default Codec, backed by goccy/go-json rather than
// encoding/json for drop-in speed.
func NewJSONCodec() Codec {
	return jsonCodec{}
}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}
