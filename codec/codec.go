// Package codec centralizes the encoding of the JSON documents the index
// persists next to its binary blobs (id-ordering tables, commit manifests,
// source records).
//
// Manifests record the codec name, so a store written with one codec can be
// read back after the default changes.
package codec

// Codec encodes and decodes JSON documents. Implementations are safe for
// concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Name is the stable identifier recorded in manifests.
	Name() string
}

// Default is the codec used for newly written documents.
var Default Codec = GoJSON{}

var builtin = map[string]Codec{
	JSON{}.Name():   JSON{},
	GoJSON{}.Name(): GoJSON{},
}

// ByName returns the built-in codec recorded under name.
func ByName(name string) (Codec, bool) {
	c, ok := builtin[name]
	return c, ok
}
