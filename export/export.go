// Package export writes bar histories to files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/yitech/chartfeed/model/bar"
)

// Saver writes one bar history to path.
type Saver interface {
	Save(bars []bar.Bar, path string) error
	Extension() string
}

// NewSaver returns the saver for format (csv, json, parquet), or nil.
func NewSaver(format string) Saver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// Formats lists the accepted format names.
func Formats() []string { return []string{"csv", "json", "parquet"} }

// CSVSaver writes a header row "time,open,high,low,close,volume".
type CSVSaver struct{}

func (CSVSaver) Extension() string { return "csv" }

func (CSVSaver) Save(bars []bar.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "open", "high", "low", "close", "volume"}); err != nil {
		return fmt.Errorf("export: write csv: %w", err)
	}
	for _, b := range bars {
		if err := w.Write([]string{
			strconv.FormatInt(b.Time, 10),
			floatStr(b.Open),
			floatStr(b.High),
			floatStr(b.Low),
			floatStr(b.Close),
			floatStr(b.Volume),
		}); err != nil {
			return fmt.Errorf("export: write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush csv: %w", err)
	}
	return nil
}

type JSONSaver struct{}

func (JSONSaver) Extension() string { return "json" }

func (JSONSaver) Save(bars []bar.Bar, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if bars == nil {
		bars = []bar.Bar{}
	}
	if err := enc.Encode(bars); err != nil {
		return fmt.Errorf("export: write json: %w", err)
	}
	return nil
}

type ParquetSaver struct{}

func (ParquetSaver) Extension() string { return "parquet" }

func (ParquetSaver) Save(bars []bar.Bar, path string) error {
	if err := parquet.WriteFile(path, bars); err != nil {
		return fmt.Errorf("export: write parquet: %w", err)
	}
	return nil
}

func floatStr(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
