package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePSOutput(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantState string
		wantID    string
		wantErr   bool
	}{
		{"running", "3fa1bc2de\trunning\n", "running", "3fa1bc2de", false},
		{"exited", "3fa1bc2de\texited\n", "exited", "3fa1bc2de", false},
		{"no container", "\n", ContainerStateMissing, "", false},
		{"empty", "", ContainerStateMissing, "", false},
		{"multiple matches take first", "aaa\trunning\nbbb\texited\n", "running", "aaa", false},
		{"garbage", "not-tab-separated\n", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, id, err := parsePSOutput(tt.out)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
