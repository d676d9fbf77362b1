package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFetchArgs(t *testing.T) {
	tests := []struct {
		name    string
		options RunOptionsFetch
		args    []string
		wantErr string
	}{
		{
			name: "anonymous url is valid",
			args: []string{"https://github.com/juice-shop/juice-shop"},
		},
		{
			name:    "missing url rejected",
			wantErr: "exactly one repository URL",
		},
		{
			name:    "multiple urls rejected",
			args:    []string{"https://a.example/x", "https://b.example/y"},
			wantErr: "exactly one repository URL",
		},
		{
			name:    "invalid url rejected",
			args:    []string{"not a url"},
			wantErr: "not valid",
		},
		{
			name:    "unknown auth type rejected",
			options: RunOptionsFetch{AuthType: "kerberos"},
			args:    []string{"https://github.com/juice-shop/juice-shop"},
			wantErr: "unknown auth-type",
		},
		{
			name:    "ssh-key auth requires a key path",
			options: RunOptionsFetch{AuthType: AuthTypeSSHKey},
			args:    []string{"https://github.com/juice-shop/juice-shop"},
			wantErr: "must specify ssh-key",
		},
		{
			name:    "ssh-agent auth without key is valid",
			options: RunOptionsFetch{AuthType: AuthTypeSSHAgent},
			args:    []string{"ssh://git@github.com/juice-shop/juice-shop.git"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFetchArgs(&tt.options, tt.args)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
