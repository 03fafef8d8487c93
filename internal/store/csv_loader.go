package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dreamware/overlay/internal/query"
	"github.com/dreamware/overlay/internal/topology"
)

// CSVLoader reads one CSV file per day in [Start, End] from Dir, named
// "YYYYMMDD.csv", and concatenates their rows in date order. The first row
// of each file is a header naming the numeric fields; non-numeric cells
// are skipped rather than erroring, since a query only ever filters on
// fields that happen to be numeric.
type CSVLoader struct {
	Dir string
}

// Load implements Loader. filesLoaded counts only the days that actually
// had a file on disk; a missing day is skipped, not counted, matching how
// the dataset accessor this was ported from only increments its own
// files-loaded counter on a successful read.
func (l CSVLoader) Load(bounds topology.DateBounds) (rows []query.Row, filesLoaded int, err error) {
	for day := bounds.Start; day <= bounds.End; day = nextDay(day) {
		path := filepath.Join(l.Dir, fmt.Sprintf("%d.csv", day))
		dayRows, err := readCSVFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, 0, err
		}
		rows = append(rows, dayRows...)
		filesLoaded++
	}
	return rows, filesLoaded, nil
}

func readCSVFile(path string) ([]query.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("store: read header %s: %w", path, err)
	}

	var rows []query.Row
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		row := make(query.Row, len(header))
		for i, col := range header {
			if i >= len(record) {
				continue
			}
			if v, err := strconv.ParseFloat(record[i], 64); err == nil {
				row[col] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// nextDay increments a YYYYMMDD integer by one calendar day, handling
// month/year rollover without pulling in a date-parsing dependency for what
// is otherwise a single arithmetic step.
func nextDay(yyyymmdd int) int {
	year := yyyymmdd / 10000
	month := (yyyymmdd / 100) % 100
	day := yyyymmdd % 100

	day++
	if day > daysInMonth(year, month) {
		day = 1
		month++
		if month > 12 {
			month = 1
			year++
		}
	}
	return year*10000 + month*100 + day
}

func daysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if isLeap(year) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
