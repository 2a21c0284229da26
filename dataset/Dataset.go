// Package dataset implements loading, writing, and generating tables of
// traffic observations at a signalised intersection.
//
// Each row of a table records the queue length on each of the four
// approaching lanes, whether a pedestrian has requested a crossing, and
// the average waiting time of vehicles at the intersection.
package dataset

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Column names of a traffic table
const (
	ColTimestamp         = "timestamp"
	ColLaneN             = "lane_N"
	ColLaneS             = "lane_S"
	ColLaneE             = "lane_E"
	ColLaneW             = "lane_W"
	ColPedestrianRequest = "pedestrian_request"
	ColAvgWaitTime       = "avg_wait_time"
)

// required lists the numeric columns every table must have, in the
// order they are stored in a Record
var required = []string{
	ColLaneN,
	ColLaneS,
	ColLaneE,
	ColLaneW,
	ColPedestrianRequest,
	ColAvgWaitTime,
}

// Header returns the header row used when writing tables
func Header() []string {
	return append([]string{ColTimestamp}, required...)
}

// Record is a single row of a traffic table
type Record struct {
	Timestamp         string
	LaneN             float64
	LaneS             float64
	LaneE             float64
	LaneW             float64
	PedestrianRequest float64
	AvgWaitTime       float64
}

// StateFeatures is the number of features in the state of a Record
const StateFeatures = 5

// State returns the observable state of the Record:
// [lane_N, lane_S, lane_E, lane_W, pedestrian_request]
func (r Record) State() []float64 {
	return []float64{r.LaneN, r.LaneS, r.LaneE, r.LaneW, r.PedestrianRequest}
}

// MeanQueue returns the mean queue length over the four lanes
func (r Record) MeanQueue() float64 {
	return (r.LaneN + r.LaneS + r.LaneE + r.LaneW) / 4
}

// row returns the Record as a row ordered as Header()
func (r Record) row() []interface{} {
	return []interface{}{
		r.Timestamp,
		r.LaneN,
		r.LaneS,
		r.LaneE,
		r.LaneW,
		r.PedestrianRequest,
		r.AvgWaitTime,
	}
}

// set sets the numeric field of the Record stored in column col
func (r *Record) set(col string, v float64) {
	switch col {
	case ColLaneN:
		r.LaneN = v
	case ColLaneS:
		r.LaneS = v
	case ColLaneE:
		r.LaneE = v
	case ColLaneW:
		r.LaneW = v
	case ColPedestrianRequest:
		r.PedestrianRequest = v
	case ColAvgWaitTime:
		r.AvgWaitTime = v
	}
}

// Dataset is an ordered table of traffic Records
type Dataset []Record

// Len returns the number of Records in the Dataset
func (d Dataset) Len() int {
	return len(d)
}

// Load loads a Dataset from a file, choosing the format by extension.
// The sheet argument is only used for spreadsheets, and an empty sheet
// name selects the first sheet.
func Load(path, sheet string) (Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, sheet)
	case ".csv":
		return LoadCSV(path)
	}
	return nil, fmt.Errorf("load: unsupported file type %q", filepath.Ext(path))
}

// parseRows converts a header row and the rows below it into a Dataset.
// Columns are matched by name, so column order does not matter and
// unknown columns are ignored.
func parseRows(header []string, rows [][]string) (Dataset, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("parseRows: missing column %q", col)
		}
	}
	timestampCol, hasTimestamp := index[ColTimestamp]

	data := make(Dataset, 0, len(rows))
	for r, row := range rows {
		if blank(row) {
			continue
		}

		var rec Record
		for _, col := range required {
			i := index[col]
			if i >= len(row) || strings.TrimSpace(row[i]) == "" {
				return nil, fmt.Errorf("parseRows: row %d: missing value for "+
					"column %q", r+2, col)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("parseRows: row %d: column %q: %w",
					r+2, col, err)
			}
			rec.set(col, v)
		}
		if hasTimestamp && timestampCol < len(row) {
			rec.Timestamp = row[timestampCol]
		}
		data = append(data, rec)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("parseRows: no data rows")
	}
	return data, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
