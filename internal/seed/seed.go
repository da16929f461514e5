// Package seed embeds the sample Dublin dataset used when no feed is configured.
package seed

import _ "embed"

//go:embed dublin.geojson
var dublin []byte

// Dublin returns a copy of the embedded FeatureCollection.
func Dublin() []byte {
	out := make([]byte, len(dublin))
	copy(out, dublin)
	return out
}
