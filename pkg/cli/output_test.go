package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	opts := &OutputOptions{Format: OutputJSON, Writer: &buf}

	err := opts.Print(sample{Name: "story-42", Count: 12}, nil)
	require.NoError(t, err)

	var got sample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "story-42", got.Name)
	assert.Equal(t, 12, got.Count)
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	opts := &OutputOptions{Format: OutputYAML, Writer: &buf}

	err := opts.Print(sample{Name: "story-42", Count: 12}, nil)
	require.NoError(t, err)

	var got sample
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "story-42", got.Name)
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	opts := &OutputOptions{Format: OutputTable, Writer: &buf}

	err := opts.Print(sample{}, func(w io.Writer) {
		fmt.Fprintln(w, "NAME COUNT")
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "NAME COUNT")
}

func TestPrintQuiet(t *testing.T) {
	var buf bytes.Buffer
	opts := &OutputOptions{Format: OutputJSON, Quiet: true, Writer: &buf}

	err := opts.Print(sample{Name: "x"}, nil)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
