// Package export writes experiment reports as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/pdptw/core/experiment"
)

// Header is the first CSV row written by WriteCSV.
var Header = []string{
	"scenario_id", "repetition", "seed", "finished", "objective", "travel_time",
	"tardiness", "overtime", "delivered", "replans", "duration_ms", "error",
}

// WriteJSON writes the report to w in JSON format.
func WriteJSON(w io.Writer, rep experiment.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// WriteCSV writes one row per instance result.
func WriteCSV(w io.Writer, results []experiment.InstanceResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range results {
		rec := []string{
			r.ScenarioID,
			strconv.Itoa(r.Repetition),
			strconv.FormatUint(r.Seed, 10),
			strconv.FormatBool(r.Result.Finished),
			strconv.FormatFloat(r.Objective, 'f', -1, 64),
			strconv.FormatFloat(r.Result.TravelTime, 'f', -1, 64),
			strconv.FormatInt(r.Tardiness(), 10),
			strconv.FormatInt(r.Result.Overtime, 10),
			strconv.Itoa(r.Result.Service.Delivered),
			strconv.Itoa(r.Result.Planning.Replans),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path, as CSV when the extension is .csv
// and as JSON otherwise.
func WriteFile(path string, rep experiment.Report) (err error) {
	var write func(io.Writer) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		write = func(w io.Writer) error { return WriteCSV(w, rep.Results) }
	case ".json", "":
		write = func(w io.Writer) error { return WriteJSON(w, rep) }
	default:
		return fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
