package pkce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestNew(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	assert.True(t, a.Enabled())
	assert.Equal(t, MethodS256, a.Method)
	assert.NotEqual(t, a.Verifier, b.Verifier)
	assert.False(t, Params{}.Enabled())
}

func TestAuthCodeOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  Params
		wantNil bool
	}{
		{"S256", Params{Verifier: "test-verifier", Method: "S256"}, false},
		{"s256 lowercase", Params{Verifier: "test-verifier", Method: "s256"}, false},
		{"plain", Params{Verifier: "test-verifier", Method: "plain"}, true},
		{"empty verifier", Params{Method: "S256"}, true},
		{"empty method", Params{Verifier: "test-verifier"}, true},
		{"empty params", Params{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := AuthCodeOptions(tt.params)
			if tt.wantNil {
				assert.Nil(t, opts)
				return
			}
			require.Len(t, opts, 1)
			assert.Equal(t, oauth2.S256ChallengeOption(tt.params.Verifier), opts[0])
		})
	}
}

func TestVerifierOption(t *testing.T) {
	t.Parallel()

	opt, ok := VerifierOption(Params{Verifier: "test-verifier", Method: "S256"})
	assert.True(t, ok)
	assert.Equal(t, oauth2.VerifierOption("test-verifier"), opt)

	opt, ok = VerifierOption(Params{Method: "S256"})
	assert.False(t, ok)
	assert.Nil(t, opt)
}
