// Package tabledata renders query results in the three output shapes a
// caller may request: row-oriented objects, column/row arrays, or keyed by
// primary key (spec.md §6, "Table-data shapes").
package tabledata

import (
	"encoding/json"
	"fmt"

	"github.com/loomctl/loom/internal/value"
)

// Format selects one of the three wire representations for a result set.
type Format string

const (
	FormatData     Format = "data"
	FormatFlatData Format = "flat_data"
	FormatKeyed    Format = "keyed"
)

// Row is a single result row, column name to decoded value.
type Row map[string]value.Value

// Render encodes rows in the requested format. columns fixes column order
// for FlatData; keyColumns names the primary-key columns used by Keyed.
func Render(format Format, columns []string, keyColumns []string, rows []Row) (json.RawMessage, error) {
	switch format {
	case FormatData, "":
		return renderData(columns, rows)
	case FormatFlatData:
		return renderFlatData(columns, rows)
	case FormatKeyed:
		return renderKeyed(columns, keyColumns, rows)
	default:
		return nil, fmt.Errorf("unknown table-data format %q", format)
	}
}

func renderData(columns []string, rows []Row) (json.RawMessage, error) {
	out := make([]map[string]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		obj, err := encodeRow(columns, row)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return json.Marshal(out)
}

type flatData struct {
	Columns []string            `json:"columns"`
	Data    [][]json.RawMessage `json:"data"`
}

func renderFlatData(columns []string, rows []Row) (json.RawMessage, error) {
	out := flatData{Columns: columns, Data: make([][]json.RawMessage, 0, len(rows))}
	for _, row := range rows {
		vals := make([]json.RawMessage, len(columns))
		for i, col := range columns {
			enc, err := value.Encode(row[col])
			if err != nil {
				return nil, fmt.Errorf("encode column %q: %w", col, err)
			}
			vals[i] = enc
		}
		out.Data = append(out.Data, vals)
	}
	return json.Marshal(out)
}

type keyedFlat struct {
	Columns struct {
		Keys   []string `json:"keys"`
		Values []string `json:"values"`
	} `json:"columns"`
	Data []keyedFlatRow `json:"data"`
}

type keyedFlatRow struct {
	Keys   []json.RawMessage `json:"keys"`
	Values []json.RawMessage `json:"values"`
}

func renderKeyed(columns, keyColumns []string, rows []Row) (json.RawMessage, error) {
	if len(keyColumns) == 0 {
		return nil, fmt.Errorf("keyed table-data requires at least one key column")
	}
	valueColumns := nonKeyColumns(columns, keyColumns)

	if len(keyColumns) == 1 {
		keyed := make(map[string]map[string]json.RawMessage, len(rows))
		for _, row := range rows {
			keyVal, err := value.Encode(row[keyColumns[0]])
			if err != nil {
				return nil, fmt.Errorf("encode key column %q: %w", keyColumns[0], err)
			}
			obj, err := encodeRow(valueColumns, row)
			if err != nil {
				return nil, err
			}
			keyed[string(keyVal)] = obj
		}
		return json.Marshal(keyed)
	}

	out := keyedFlat{}
	out.Columns.Keys = keyColumns
	out.Columns.Values = valueColumns
	for _, row := range rows {
		keys := make([]json.RawMessage, len(keyColumns))
		for i, col := range keyColumns {
			enc, err := value.Encode(row[col])
			if err != nil {
				return nil, fmt.Errorf("encode key column %q: %w", col, err)
			}
			keys[i] = enc
		}
		vals := make([]json.RawMessage, len(valueColumns))
		for i, col := range valueColumns {
			enc, err := value.Encode(row[col])
			if err != nil {
				return nil, fmt.Errorf("encode value column %q: %w", col, err)
			}
			vals[i] = enc
		}
		out.Data = append(out.Data, keyedFlatRow{Keys: keys, Values: vals})
	}
	return json.Marshal(out)
}

func nonKeyColumns(columns, keyColumns []string) []string {
	isKey := make(map[string]struct{}, len(keyColumns))
	for _, k := range keyColumns {
		isKey[k] = struct{}{}
	}
	var out []string
	for _, c := range columns {
		if _, ok := isKey[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func encodeRow(columns []string, row Row) (map[string]json.RawMessage, error) {
	obj := make(map[string]json.RawMessage, len(columns))
	for _, col := range columns {
		enc, err := value.Encode(row[col])
		if err != nil {
			return nil, fmt.Errorf("encode column %q: %w", col, err)
		}
		obj[col] = enc
	}
	return obj, nil
}
