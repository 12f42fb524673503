// Package geo encodes geometry scalars as GeoJSON, the form the store
// accepts for geo predicates.
package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Encode returns the document value of a geometry.
func Encode(g orb.Geometry) (*geojson.Geometry, error) {
	if g == nil {
		return nil, fmt.Errorf("geo: nil geometry")
	}
	switch g.(type) {
	case orb.Point, orb.MultiPoint, orb.Polygon, orb.MultiPolygon, orb.LineString, orb.MultiLineString:
		return geojson.NewGeometry(g), nil
	default:
		return nil, fmt.Errorf("geo: unsupported geometry %s", g.GeoJSONType())
	}
}

// Decode reads a geometry from a document value. It accepts decoded JSON
// objects, raw GeoJSON and values produced by Encode.
func Decode(v any) (orb.Geometry, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("geo: nil value")
	case *geojson.Geometry:
		return x.Geometry(), nil
	case geojson.Geometry:
		return x.Geometry(), nil
	case orb.Geometry:
		return x, nil
	case json.RawMessage:
		return unmarshal(x)
	case []byte:
		return unmarshal(x)
	case string:
		return unmarshal([]byte(x))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("geo: %w", err)
		}
		return unmarshal(b)
	}
}

func unmarshal(b []byte) (orb.Geometry, error) {
	g, err := geojson.UnmarshalGeometry(b)
	if err != nil {
		return nil, fmt.Errorf("geo: %w", err)
	}
	return g.Geometry(), nil
}

// Coordinates returns the GeoJSON coordinates array of a geometry, the
// literal form used by geo filter functions.
func Coordinates(g orb.Geometry) (string, error) {
	enc, err := Encode(g)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(enc)
	if err != nil {
		return "", fmt.Errorf("geo: %w", err)
	}
	var v struct {
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return "", fmt.Errorf("geo: %w", err)
	}
	return string(v.Coordinates), nil
}
