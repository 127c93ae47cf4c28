package job

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/eventlens/pkg/aggregation"
	"github.com/platinummonkey/eventlens/pkg/events"
	"github.com/platinummonkey/eventlens/pkg/funnel"
	"github.com/platinummonkey/eventlens/pkg/processor"
)

// ErrEmptyDefinition is returned when a job document has no content
var ErrEmptyDefinition = errors.New("empty job definition")

// Definition bundles everything needed to turn one raw batch into a report
type Definition struct {
	Name string `yaml:"name" json:"name,omitempty"`
	// Processing configures validation and transformation. Nil means the
	// processor defaults.
	Processing *processor.Config  `yaml:"processing" json:"processing,omitempty"`
	Metrics    []aggregation.Spec `yaml:"metrics" json:"metrics,omitempty"`
	Funnels    []funnel.Spec      `yaml:"funnels" json:"funnels,omitempty"`
}

// Parse decodes and validates a YAML job definition. Unknown keys are
// rejected so that typos in spec fields do not silently change results.
func Parse(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDefinition
		}
		return nil, fmt.Errorf("failed to parse job definition: %w", err)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadFile reads and parses a job definition from path
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open job definition: %w", err)
	}
	defer f.Close()

	def, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Validate checks the processing rules and every spec before any work starts.
// Metric and funnel names must be unique within their section.
func (d *Definition) Validate() error {
	if d.Processing != nil {
		if err := d.Processing.Validate(); err != nil {
			return fmt.Errorf("invalid processing config: %w", err)
		}
	}

	if err := aggregation.ValidateSpecs(d.Metrics); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Metrics))
	for i, m := range d.Metrics {
		if _, dup := seen[m.Name]; dup {
			return events.NewSpecError(m.Name, i, "duplicate metric name")
		}
		seen[m.Name] = struct{}{}
	}

	clear(seen)
	for i, f := range d.Funnels {
		if err := f.Validate(i); err != nil {
			return err
		}
		if f.Name == "" {
			continue
		}
		if _, dup := seen[f.Name]; dup {
			return events.NewSpecError(f.Name, i, "duplicate funnel name")
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
