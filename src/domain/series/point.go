package series

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind tags a Point as carrying a value or deliberately carrying none.
type Kind uint8

const (
	KindNoData Kind = iota
	KindValue
)

// Point is one chart cell. NoData marks a gap in a player's line and is
// never the same thing as a score of zero; on the wire it is JSON null.
type Point struct {
	Kind  Kind
	Value float64
}

// NoData is the empty point.
func NoData() Point { return Point{Kind: KindNoData} }

// Value wraps a cumulative score.
func Value(v float64) Point { return Point{Kind: KindValue, Value: v} }

// IsNoData reports whether the point is a gap.
func (p Point) IsNoData() bool { return p.Kind != KindValue }

func (p Point) MarshalJSON() ([]byte, error) {
	if p.IsNoData() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, p.Value, 'g', -1, 64), nil
}

func (p *Point) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = NoData()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = Value(v)
	return nil
}
