package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		password string
		repeat   string
		wantErr  error
	}{
		{name: "valid", password: "hunter2", repeat: "hunter2"},
		{name: "exactly min length", password: "abcde", repeat: "abcde"},
		{name: "mismatch", password: "hunter2", repeat: "hunter3", wantErr: ErrMismatch},
		{name: "mismatch wins over length", password: "abc", repeat: "abd", wantErr: ErrMismatch},
		{name: "too short", password: "abcd", repeat: "abcd", wantErr: ErrTooShort},
		{name: "empty", password: "", repeat: "", wantErr: ErrTooShort},
		{name: "multibyte counted as runes", password: "пароль", repeat: "пароль"},
		{name: "four multibyte runes", password: "пару", repeat: "пару", wantErr: ErrTooShort},
		{name: "exactly max bytes", password: strings.Repeat("a", MaxBytes), repeat: strings.Repeat("a", MaxBytes)},
		{name: "too long", password: strings.Repeat("a", MaxBytes+1), repeat: strings.Repeat("a", MaxBytes+1), wantErr: ErrTooLong},
		{name: "multibyte over byte limit", password: strings.Repeat("я", 37), repeat: strings.Repeat("я", 37), wantErr: ErrTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.password, tt.repeat)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_Messages(t *testing.T) {
	assert.Equal(t, "Passwords do not match", ErrMismatch.Error())
	assert.Equal(t, "Password must be at least 5 characters", ErrTooShort.Error())
	assert.Equal(t, "Password must be at most 72 bytes", ErrTooLong.Error())
}

func TestValidate_LongestAcceptedPasswordHashes(t *testing.T) {
	pw := strings.Repeat("a", MaxBytes)
	require.NoError(t, Validate(pw, pw))
	hash, err := GetHash(pw)
	require.NoError(t, err)
	assert.NoError(t, CompareHash(hash, pw))
}

func TestGetHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "regular password", password: "password123"},
		{name: "password with special chars", password: "p@ssw0rd!@#$%^&*()"},
		{name: "short password", password: "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, gotHash)
			assert.NotEqual(t, tt.password, gotHash)
			assert.NoError(t, CompareHash(gotHash, tt.password))
		})
	}
}

func TestCompareHash(t *testing.T) {
	correctHash, err := GetHash("correct_password")
	require.NoError(t, err)

	tests := []struct {
		name        string
		password    string
		shouldMatch bool
	}{
		{name: "matching password", password: "correct_password", shouldMatch: true},
		{name: "wrong password", password: "wrong_password"},
		{name: "empty password", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareHash(correctHash, tt.password)
			if tt.shouldMatch {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
