package hiscore

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Payload is the positional body of a lite hiscore response: one row per ordinal position,
// three columns for skills (rank, level, xp) and two for activities (rank, score).
type Payload struct {
	Rows [][]int64
	Raw  []byte
}

// Len returns the number of positional rows.
func (p Payload) Len() int { return len(p.Rows) }

// OverallXP returns the xp column of the aggregate row, or -1 when absent.
func (p Payload) OverallXP() int64 {
	if len(p.Rows) == 0 || len(p.Rows[0]) < 3 {
		return -1
	}
	return p.Rows[0][2]
}

// ParsePayload decodes a lite CSV body. Blank lines are skipped; any non-integer field or an
// empty body is an error.
func ParsePayload(body []byte) (Payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Payload{}, errors.New("empty payload")
	}
	if trimmed[0] == '<' {
		return Payload{}, errors.New("payload is html")
	}

	reader := csv.NewReader(bytes.NewReader(trimmed))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	var rows [][]int64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Payload{}, fmt.Errorf("read payload row %d: %w", len(rows), err)
		}
		row := make([]int64, len(record))
		for i, field := range record {
			v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
			if err != nil {
				return Payload{}, fmt.Errorf("parse payload row %d column %d: %w", len(rows), i, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Payload{}, errors.New("payload has no rows")
	}
	return Payload{Rows: rows, Raw: append([]byte(nil), body...)}, nil
}
