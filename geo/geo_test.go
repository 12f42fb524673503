package geo_test

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/velograph/geo"
)

func TestEncode(t *testing.T) {
	t.Parallel()
	g, err := geo.Encode(orb.Point{-122.4, 37.7})
	require.NoError(t, err)
	b, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-122.4,37.7]}`, string(b))

	_, err = geo.Encode(nil)
	assert.Error(t, err)
	_, err = geo.Encode(orb.Collection{orb.Point{1, 2}})
	assert.ErrorContains(t, err, "unsupported geometry GeometryCollection")
}

func TestDecode(t *testing.T) {
	t.Parallel()
	want := orb.Point{1, 2}
	inputs := []any{
		map[string]any{"type": "Point", "coordinates": []any{1.0, 2.0}},
		`{"type":"Point","coordinates":[1,2]}`,
		json.RawMessage(`{"type":"Point","coordinates":[1,2]}`),
		want,
	}
	for _, in := range inputs {
		g, err := geo.Decode(in)
		require.NoError(t, err)
		assert.Equal(t, want, g)
	}
	enc, err := geo.Encode(want)
	require.NoError(t, err)
	g, err := geo.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, want, g)

	_, err = geo.Decode(nil)
	assert.Error(t, err)
	_, err = geo.Decode("not json")
	assert.Error(t, err)
}

func TestCoordinates(t *testing.T) {
	t.Parallel()
	s, err := geo.Coordinates(orb.Point{1.5, 2})
	require.NoError(t, err)
	assert.Equal(t, "[1.5,2]", s)

	poly := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	s, err = geo.Coordinates(poly)
	require.NoError(t, err)
	assert.Equal(t, "[[[0,0],[1,0],[1,1],[0,0]]]", s)
}
