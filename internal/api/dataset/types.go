package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is one row of an opendatasoft v1 export.
type Record[T any] struct {
	RecordID string `json:"recordid"`
	Fields   T      `json:"fields"`
}

// LineFields is a row of the lines reference ("referentiel des lignes").
type LineFields struct {
	TransportMode string  `json:"transportmode"`
	Name          string  `json:"name_line"`
	Operator      *string `json:"operatorname,omitempty"`
	ID            string  `json:"id_line"`
}

// StopLineFields associates a line with one of its stops ("arrets-lignes").
// ID is a composite of the form "IDFM:<lineId>" and StopID either an
// "IDFM:monomodalStopPlace:<zdaId>" or an "IDFM:<arrId>" reference.
type StopLineFields struct {
	ID       string     `json:"id"`
	StopID   Text       `json:"stop_id"`
	StopName string     `json:"stop_name"`
	City     string     `json:"nom_commune"`
	ZipCode  Text       `json:"code_insee"`
	Lat      Coordinate `json:"stop_lat"`
	Lon      Coordinate `json:"stop_lon"`
}

// RelationFields maps stop points to stop areas and stop areas to exchange
// areas. Any of the keys may be missing from a row.
type RelationFields struct {
	ArRID *Text `json:"arrid,omitempty"`
	ZdAID *Text `json:"zdaid,omitempty"`
	ZdCID *Text `json:"zdcid,omitempty"`
}

// ExchangeArea is a row of the exchange areas export ("zones de correspondance").
// This export is flat, not wrapped in a Record.
type ExchangeArea struct {
	ID   Text   `json:"zdcid"`
	Name string `json:"zdcname"`
}

// Text is a string that the exports sometimes encode as a JSON number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("text field: %w", err)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Coordinate is a float that the exports sometimes encode as a JSON string.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*c = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", s, err)
		}
		*c = Coordinate(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	*c = Coordinate(f)
	return nil
}
