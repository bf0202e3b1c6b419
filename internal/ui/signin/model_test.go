package signin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("dana@example.com"))
	assert.NoError(t, ValidateEmail("  dana@example.com "))
	for _, bad := range []string{"", "dana", "@example.com", "dana@", "da na@example.com"} {
		assert.Error(t, ValidateEmail(bad), bad)
	}
}

func TestValidatePIN(t *testing.T) {
	assert.NoError(t, ValidatePIN(""), "PIN is optional")
	assert.NoError(t, ValidatePIN("4821"))
	assert.Error(t, ValidatePIN("12"))
	assert.Error(t, ValidatePIN("12ab"))
}

func TestSubmitEmitsCredentials(t *testing.T) {
	m := New(80, 24)

	m, cmd := m.Submit(" dana@example.com ", "secret", "4821")

	require.NotNil(t, cmd)
	assert.Equal(t, SubmitMsg{Email: "dana@example.com", Password: "secret", PIN: "4821"}, cmd())
	assert.True(t, m.Busy())
	assert.Contains(t, m.View(), "Signing in")
}

func TestSubmitRejectsInvalidInput(t *testing.T) {
	m := New(80, 24)

	m, _ = m.Submit("dana@example.com", "", "")

	assert.False(t, m.Busy())
	require.Error(t, m.Err())
	assert.Contains(t, m.View(), "password is required")
}

func TestSetErrorReopensForm(t *testing.T) {
	m := New(80, 24)
	m, _ = m.Submit("dana@example.com", "wrong", "")
	require.True(t, m.Busy())

	m.SetError(errors.New("invalid credentials"))

	assert.False(t, m.Busy())
	assert.Contains(t, m.View(), "invalid credentials")
}
