// Package diag stores the diagnostic stream of solver recorders in
// rotating JSONL files.
package diag

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/pdptw/core/solver"
)

// Config sets the file and its rotation policy, in megabytes and days.
type Config struct {
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

func (c *Config) SetDefaults() {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 7
	}
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("diag path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return errors.New("diag rotation settings must not be negative")
	}
	return nil
}

// RotatingWriter is an io.WriteCloser rotating its file by size. Writes
// are serialised, so recorders of concurrent simulations can share it.
type RotatingWriter struct {
	logger *lumberjack.Logger
	path   string
}

// NewRotatingWriter creates the directory of cfg.Path if needed.
func NewRotatingWriter(cfg Config) (*RotatingWriter, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return &RotatingWriter{logger: lj, path: cfg.Path}, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) { return w.logger.Write(p) }

// Close closes the current file.
func (w *RotatingWriter) Close() error { return w.logger.Close() }

// Query filters echoed records. Zero fields match everything; the time
// bounds are inclusive and in simulation time.
type Query struct {
	Kind   string
	Source string
	From   int64
	To     int64
}

func (q Query) match(r solver.EchoRecord) bool {
	switch {
	case q.Kind != "" && r.Kind != q.Kind:
		return false
	case q.Source != "" && r.Source != q.Source:
		return false
	case q.From != 0 && r.Time < q.From:
		return false
	case q.To != 0 && r.Time > q.To:
		return false
	}
	return true
}

// Query reads the current file and its uncompressed backups, oldest
// first. Lines that are not records are skipped.
func (w *RotatingWriter) Query(q Query) ([]solver.EchoRecord, error) {
	ext := filepath.Ext(w.path)
	base := strings.TrimSuffix(w.path, ext)
	backups, err := filepath.Glob(base + "-*" + ext)
	if err != nil {
		return nil, err
	}
	slices.Sort(backups)
	var res []solver.EchoRecord
	for _, f := range append(backups, w.path) {
		recs, err := readRecords(f, q)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		res = append(res, recs...)
	}
	return res, nil
}

func readRecords(path string, q Query) ([]solver.EchoRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	var res []solver.EchoRecord
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		var r solver.EchoRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil || r.Kind == "" {
			continue
		}
		if q.match(r) {
			res = append(res, r)
		}
	}
	return res, scanner.Err()
}
