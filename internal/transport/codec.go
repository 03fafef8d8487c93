package transport

import (
	"encoding/json"
	"fmt"

	"github.com/dreamware/overlay/internal/query"
)

// EncodeRows turns a row batch into the opaque bytes GetChunkResponse.Data
// carries. JSON is chosen because it round-trips query.Row (a
// map[string]float64) losslessly and needs no schema registry between
// nodes - the same reason a broadcast request type elsewhere wraps an
// arbitrary json.RawMessage payload rather than a typed one.
func EncodeRows(rows []query.Row) ([]byte, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("transport: encode rows: %w", err)
	}
	return b, nil
}

// DecodeRows is the inverse of EncodeRows.
func DecodeRows(data []byte) ([]query.Row, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var rows []query.Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("transport: decode rows: %w", err)
	}
	return rows, nil
}
