package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Parser reads a daily table from a source.
type Parser interface {
	Parse(r io.Reader) (*Sheet, error)
}

// CSVParser parses CSV exports of the daily table. The header row may use
// canonical column keys or any known alias (e.g. the Korean sheet headers):
//
//	날짜,최고기온,평균기온,최저기온,최대수요,최저수요,요일,평일
//	2024-01-01,5.1,1.2,-2.3,81234,60321,Monday,weekday
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var values [][]string
	lineNum := 0
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}
		if lineNum == 1 && len(record) > 0 {
			record[0] = trimBOM(record[0])
		}
		values = append(values, record)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("reading CSV header: %w", io.EOF)
	}
	return Decode(values)
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}

// ReadCSV parses the CSV file at path.
func ReadCSV(path string) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sheet, err := (&CSVParser{}).Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return sheet, nil
}

// WriteCSV writes raw table values, header first.
func WriteCSV(w io.Writer, values [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(values); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	return nil
}
