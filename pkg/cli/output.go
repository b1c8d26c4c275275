package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

type OutputOptions struct {
	Format OutputFormat
	Quiet  bool
	Writer io.Writer
}

func NewOutputOptions() *OutputOptions {
	return &OutputOptions{
		Format: OutputTable,
		Quiet:  false,
		Writer: os.Stdout,
	}
}

// Print renders data in the selected format. table renders the
// human-readable view and is only called for the table format;
// structured formats marshal data directly.
func (o *OutputOptions) Print(data any, table func(w io.Writer)) error {
	if o.Quiet {
		return nil
	}

	switch o.Format {
	case OutputJSON:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintln(o.Writer, string(b))
		return nil
	case OutputYAML:
		b, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		fmt.Fprint(o.Writer, string(b))
		return nil
	default:
		table(o.Writer)
		return nil
	}
}
