package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateToken(t *testing.T) {
	v := NewValidator([]byte("test-secret"), "battlescope")

	token, err := v.IssueAdminToken("operator-1", []string{"ruleset-admin"}, time.Minute)
	require.NoError(t, err)

	user, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", user.Subject)
	assert.True(t, user.HasRole("ruleset-admin"))
	assert.False(t, user.HasRole("superadmin"))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	v := NewValidator([]byte("test-secret"), "battlescope")

	token, err := v.IssueAdminToken("operator-1", nil, -time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsEmpty(t *testing.T) {
	v := NewValidator([]byte("test-secret"), "battlescope")

	_, err := v.ValidateToken("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestExtractBearer(t *testing.T) {
	assert.Equal(t, "abc123", ExtractBearer("Bearer abc123"))
	assert.Equal(t, "", ExtractBearer("abc123"))
	assert.Equal(t, "", ExtractBearer(""))
}
