package reference

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/idfmpal/internal/transit"
)

func decode[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestJoinResolvesExchangeArea(t *testing.T) {
	var d Datasets
	d.Lines = decode[[]lineRecord](t, `[{"fields":{"transportmode":"metro","name_line":"1","id_line":"M1"}}]`)
	d.StopAndLines = decode[[]stopLineRecord](t, `[{"fields":{"id":"x:M1:y","stop_id":"IDFM:42","stop_name":"Châtelet",
		"nom_commune":"Paris","code_insee":75101,"stop_lat":"48.858","stop_lon":2.347}}]`)
	d.StopRelations = decode[[]relationRecord](t, `[{"fields":{"arrid":"42","zdaid":"7"}},{"fields":{"zdaid":7,"zdcid":"EX1"}}]`)
	d.ExchangeAreas = decode[[]exchangeArea](t, `[{"zdcid":"EX1","zdcname":"Châtelet–Les Halles"}]`)

	snap := Join(d)

	assert.Equal(t, map[transit.Mode]map[string]string{transit.Metro: {"1": "M1"}}, snap.Lines)
	require.Len(t, snap.Stops["M1"], 1)
	stop := snap.Stops["M1"][0]
	assert.Equal(t, "Châtelet", stop.Name)
	assert.Equal(t, "STIF:StopPoint:Q:7:", stop.StopID)
	assert.Equal(t, "STIF:StopArea:SP:EX1:", stop.ExchangeAreaID)
	assert.Equal(t, "Châtelet–Les Halles", stop.ExchangeAreaName)
	assert.Equal(t, "Paris", stop.City)
	assert.Equal(t, "75101", stop.ZipCode)
	assert.InDelta(t, 48.858, stop.Latitude, 1e-9)
	assert.InDelta(t, 2.347, stop.Longitude, 1e-9)
}

func TestJoinDeduplicatesPerLine(t *testing.T) {
	var d Datasets
	d.Lines = decode[[]lineRecord](t, `[
		{"fields":{"transportmode":"rail","name_line":"A","id_line":"C01742"}},
		{"fields":{"transportmode":"rail","name_line":"B","id_line":"C01743"}}]`)
	d.StopAndLines = decode[[]stopLineRecord](t, `[
		{"fields":{"id":"IDFM:C01742","stop_id":"IDFM:monomodalStopPlace:58774","stop_name":"Nation"}},
		{"fields":{"id":"IDFM:C01742","stop_id":"IDFM:473921","stop_name":"Nation quai 2"}},
		{"fields":{"id":"IDFM:C01742","stop_id":"IDFM:monomodalStopPlace:58774","stop_name":"Nation bis"}},
		{"fields":{"id":"IDFM:C01743","stop_id":"IDFM:monomodalStopPlace:58774","stop_name":"Nation"}}]`)
	d.StopRelations = decode[[]relationRecord](t, `[{"fields":{"arrid":"473921","zdaid":"58774"}}]`)

	snap := Join(d)

	require.Len(t, snap.Stops["C01742"], 1, "rows resolving to the same key collapse to the first one")
	assert.Equal(t, "Nation", snap.Stops["C01742"][0].Name)
	assert.Equal(t, "STIF:StopPoint:Q:58774:", snap.Stops["C01742"][0].StopID)
	assert.Empty(t, snap.Stops["C01742"][0].ExchangeAreaID)

	require.Len(t, snap.Stops["C01743"], 1, "the same place may appear under another line")

	for lineID, stops := range snap.Stops {
		keys := make(map[string]struct{})
		for _, s := range stops {
			_, dup := keys[s.StopID]
			assert.False(t, dup, "duplicate stop %s on line %s", s.StopID, lineID)
			keys[s.StopID] = struct{}{}
		}
	}
}

func TestJoinDropsLinesWithoutStops(t *testing.T) {
	var d Datasets
	d.Lines = decode[[]lineRecord](t, `[
		{"fields":{"transportmode":"tram","name_line":"T1","id_line":"C01389"}},
		{"fields":{"transportmode":"tram","name_line":"T2","id_line":"C01390"}},
		{"fields":{"transportmode":"metro","name_line":"14","id_line":"C01384"}}]`)
	d.StopAndLines = decode[[]stopLineRecord](t, `[
		{"fields":{"id":"IDFM:C01389","stop_id":"IDFM:1","stop_name":"Noisy"}},
		{"fields":{"id":"IDFM:C99999","stop_id":"IDFM:2","stop_name":"Nowhere"}},
		{"fields":{"id":"broken","stop_id":"IDFM:3","stop_name":"Broken"}}]`)

	snap := Join(d)

	assert.Equal(t, map[transit.Mode]map[string]string{transit.Tram: {"T1": "C01389"}}, snap.Lines)
	assert.NotContains(t, snap.Stops, "C99999", "rows for lines outside the reference are ignored")
	assert.NotContains(t, snap.Stops, "C01390")
	for _, names := range snap.Lines {
		for _, id := range names {
			assert.NotEmpty(t, snap.Stops[id])
		}
	}
}

func TestJoinUnresolvedStopPointKeepsItsID(t *testing.T) {
	var d Datasets
	d.Lines = decode[[]lineRecord](t, `[{"fields":{"transportmode":"bus","name_line":"20","id_line":"C01050"}}]`)
	d.StopAndLines = decode[[]stopLineRecord](t, `[{"fields":{"id":"IDFM:C01050","stop_id":"IDFM:12345","stop_name":"Opéra"}}]`)
	d.StopRelations = decode[[]relationRecord](t, `[{"fields":{}},{"fields":{"zdcid":"99"}}]`)

	snap := Join(d)
	require.Len(t, snap.Stops["C01050"], 1)
	assert.Equal(t, "STIF:StopPoint:Q:12345:", snap.Stops["C01050"][0].StopID)
}

func TestDecodeLine(t *testing.T) {
	operator := "RATP"
	tests := []struct {
		name     string
		mode     string
		operator *string
		want     string
	}{
		{"bus with operator", "bus", &operator, "20 / RATP"},
		{"bus without operator", "bus", nil, "20"},
		{"metro ignores operator", "metro", &operator, "20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := DecodeLine(lineFields(tt.mode, "20", tt.operator))
			assert.Equal(t, tt.want, line.Name)
			assert.Equal(t, transit.Mode(tt.mode), line.Mode)
		})
	}
}
