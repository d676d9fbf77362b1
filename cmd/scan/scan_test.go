package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/massaudit/massaudit/internal/projects"
)

func TestValidateScanArgs(t *testing.T) {
	tests := []struct {
		name          string
		options       RunOptionsScan
		args          []string
		argsLenAtDash int
		wantExtra     []string
		wantErr       string
	}{
		{
			name:          "defaults are valid",
			options:       RunOptionsScan{Scanner: "codeql", Threads: 1},
			argsLenAtDash: -1,
		},
		{
			name:          "missing scanner rejected",
			options:       RunOptionsScan{Threads: 1},
			argsLenAtDash: -1,
			wantErr:       "'scanner' flag",
		},
		{
			name:          "zero threads rejected",
			options:       RunOptionsScan{Scanner: "codeql", Threads: 0},
			argsLenAtDash: -1,
			wantErr:       "positive integer",
		},
		{
			name:          "arguments after dash are captured",
			options:       RunOptionsScan{Scanner: "codeql", Threads: 1},
			args:          []string{"juice-shop", "--threads", "4"},
			argsLenAtDash: 1,
			wantExtra:     []string{"--threads", "4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateScanArgs(&tt.options, tt.args, tt.argsLenAtDash)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExtra, tt.options.AdditionalArgs)
		})
	}
}

func TestSelectedProjects(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, selectedProjects([]string{"a", "b"}, -1))
	assert.Equal(t, []string{"a"}, selectedProjects([]string{"a", "--verbose"}, 1))
	assert.Empty(t, selectedProjects([]string{"--verbose"}, 0))
}

func TestFilterProjects(t *testing.T) {
	targets := []projects.Project{{Name: "alpha"}, {Name: "beta"}}

	assert.Len(t, filterProjects(targets, nil), 2)

	filtered := filterProjects(targets, []string{"alpha"})
	require.Len(t, filtered, 1)
	assert.Equal(t, "alpha", filtered[0].Name)
}
