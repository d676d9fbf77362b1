package git

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/massaudit/massaudit/pkg/shared/config"
)

func TestGetAuthenticator(t *testing.T) {
	cases := []struct {
		authType string
		want     Authenticator
		wantErr  bool
	}{
		{"ssh-key", &SSHKeyAuthenticator{}, false},
		{"ssh-agent", &SSHAgentAuthenticator{}, false},
		{"http", &HTTPAuthenticator{}, false},
		{"", &AnonymousAuthenticator{}, false},
		{"kerberos", nil, true},
	}
	for _, tc := range cases {
		authenticator, err := getAuthenticator(tc.authType)
		if tc.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.IsType(t, tc.want, authenticator)
	}
}

func TestHTTPAuthenticatorValidation(t *testing.T) {
	auth := &HTTPAuthenticator{}

	assert.Error(t, auth.ValidateRequest(&FetchRequest{Token: "t"}))
	assert.Error(t, auth.ValidateRequest(&FetchRequest{Username: "u"}))
	assert.NoError(t, auth.ValidateRequest(&FetchRequest{Username: "u", Token: "t"}))
}

func TestSSHKeyAuthenticatorValidation(t *testing.T) {
	auth := &SSHKeyAuthenticator{}

	assert.Error(t, auth.ValidateRequest(&FetchRequest{}))
	assert.NoError(t, auth.ValidateRequest(&FetchRequest{SSHKey: "~/.ssh/id_ed25519"}))
}

func TestNewAnonymousClient(t *testing.T) {
	cfg := &config.Config{}
	client, err := New(hclog.NewNullLogger(), cfg, &FetchRequest{
		CloneURL:     "https://github.com/example/repo.git",
		TargetFolder: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Nil(t, client.auth)
}

func TestNewRejectsInvalidRequest(t *testing.T) {
	cfg := &config.Config{}
	_, err := New(hclog.NewNullLogger(), cfg, &FetchRequest{AuthType: "http"})
	assert.Error(t, err)
}
