package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/processor"
)

// readInput reads raw records from path, or from stdin when path is "-"
func readInput(path string) ([]events.Record, error) {
	if path == "" {
		return nil, fmt.Errorf("-input is required")
	}
	if path == "-" {
		return job.ReadRecords(os.Stdin)
	}
	return job.ReadRecordsFile(path)
}

// loadProcessingConfig reads a YAML processing config. An empty path means
// the processor defaults.
func loadProcessingConfig(path string) (*processor.Config, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open processing config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var cfg processor.Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse processing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid processing config %s: %w", path, err)
	}
	return &cfg, nil
}

// writeOutput writes to path, or to stdout when path is empty or "-". Files
// are replaced atomically so a watcher never sees a partial report.
func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".eventlens-*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// writeJSON writes v as indented JSON
func writeJSON(path string, v any) error {
	return writeOutput(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
