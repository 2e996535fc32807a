// Package reference builds the line and stop listings from the IDFM
// open data exports and caches them for the process lifetime.
//
// No single export links a line to its stops and interchanges, so four
// of them are stitched together:
//
//	lines           -> line id
//	stop_and_lines  -> line id to a stop area (ZdAId, trains) or a stop point (ArRId, other modes)
//	stop_relations  -> ArRId to ZdAId, and ZdAId to exchange area (ZdCId)
//	exchange_areas  -> ZdCId to its display name
package reference

import (
	"strings"

	"github.com/danpilch/idfmpal/internal/api/dataset"
	"github.com/danpilch/idfmpal/internal/transit"
)

const monomodalMarker = "monomodalStopPlace:"

// Snapshot is one consistent build of the listings. It must not be
// modified once published.
type Snapshot struct {
	// Lines maps a transport mode to line names and their ids.
	Lines map[transit.Mode]map[string]string
	// Stops maps a line id to its stops, in dataset order.
	Stops map[string][]transit.Stop
}

// Datasets are the four raw exports a Snapshot is joined from.
type Datasets struct {
	Lines         []dataset.Record[dataset.LineFields]
	StopAndLines  []dataset.Record[dataset.StopLineFields]
	StopRelations []dataset.Record[dataset.RelationFields]
	ExchangeAreas []dataset.ExchangeArea
}

// Join reconciles the four exports. Rows referencing unknown lines are
// skipped, a stop is kept once per line and lines left without any stop
// are dropped.
func Join(d Datasets) *Snapshot {
	linesByMode := make(map[transit.Mode]map[string]string)
	lineIDs := make(map[string]struct{}, len(d.Lines))
	for _, rec := range d.Lines {
		line := DecodeLine(rec.Fields)
		if line.ID == "" {
			continue
		}
		if linesByMode[line.Mode] == nil {
			linesByMode[line.Mode] = make(map[string]string)
		}
		linesByMode[line.Mode][line.Name] = line.ID
		lineIDs[line.ID] = struct{}{}
	}

	arToZdA := make(map[string]string)
	zdAToZdC := make(map[string]string)
	for _, rec := range d.StopRelations {
		f := rec.Fields
		if f.ArRID != nil && f.ZdAID != nil {
			arToZdA[f.ArRID.String()] = f.ZdAID.String()
		}
		if f.ZdAID != nil && f.ZdCID != nil {
			zdAToZdC[f.ZdAID.String()] = f.ZdCID.String()
		}
	}

	exchangeNames := make(map[string]string, len(d.ExchangeAreas))
	for _, area := range d.ExchangeAreas {
		exchangeNames[area.ID.String()] = area.Name
	}

	stops := make(map[string][]transit.Stop)
	seen := make(map[string]map[string]struct{})
	for _, rec := range d.StopAndLines {
		f := rec.Fields
		lineID, ok := lineIDFromComposite(f.ID)
		if !ok {
			continue
		}
		if _, known := lineIDs[lineID]; !known {
			continue
		}

		key := canonicalStopKey(f.StopID.String(), arToZdA)
		if seen[lineID] == nil {
			seen[lineID] = make(map[string]struct{})
		}
		if _, dup := seen[lineID][key]; dup {
			continue
		}
		seen[lineID][key] = struct{}{}

		zdcID, hasExchange := zdAToZdC[key]
		stops[lineID] = append(stops[lineID], DecodeStop(f, key, zdcID, hasExchange, exchangeNames[zdcID]))
	}

	for mode, names := range linesByMode {
		for name, id := range names {
			if len(stops[id]) == 0 {
				delete(names, name)
			}
		}
		if len(names) == 0 {
			delete(linesByMode, mode)
		}
	}

	return &Snapshot{Lines: linesByMode, Stops: stops}
}

// DecodeLine converts a lines reference row. Bus line names are suffixed
// with their operator since several operators reuse the same names.
func DecodeLine(f dataset.LineFields) transit.Line {
	name := f.Name
	if transit.Mode(f.TransportMode) == transit.Bus && f.Operator != nil {
		name += " / " + *f.Operator
	}
	return transit.Line{
		Name: name,
		ID:   f.ID,
		Mode: transit.Mode(f.TransportMode),
	}
}

// DecodeStop builds the stop of a stop-and-lines row once its canonical
// key and optional exchange area are resolved.
func DecodeStop(f dataset.StopLineFields, key, zdcID string, hasExchange bool, exchangeName string) transit.Stop {
	stop := transit.Stop{
		Name:      f.StopName,
		StopID:    transit.StopPointID(key),
		City:      f.City,
		ZipCode:   f.ZipCode.String(),
		Latitude:  float64(f.Lat),
		Longitude: float64(f.Lon),
	}
	if hasExchange {
		stop.ExchangeAreaID = transit.ExchangeAreaID(zdcID)
		stop.ExchangeAreaName = exchangeName
	}
	return stop
}

// lineIDFromComposite returns the second segment of "IDFM:<lineId>".
func lineIDFromComposite(id string) (string, bool) {
	parts := strings.Split(id, ":")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// canonicalStopKey resolves a stop reference to the stop area it belongs to.
// Monomodal stop places embed the area id; other references are stop points
// looked up through the relations, falling back to the stop point id.
func canonicalStopKey(ref string, arToZdA map[string]string) string {
	if i := strings.Index(ref, monomodalMarker); i >= 0 {
		return ref[i+len(monomodalMarker):]
	}
	arID := ref
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		arID = ref[i+1:]
	}
	if zdaID, ok := arToZdA[arID]; ok {
		return zdaID
	}
	return arID
}
