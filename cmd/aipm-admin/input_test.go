package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	readPassword = func(int) ([]byte, error) {
		next := answers[0]
		answers = answers[1:]
		return []byte(next), nil
	}
}

func TestPromptPassword(t *testing.T) {
	stubPasswords(t, "hunter2", "hunter2")
	var out bytes.Buffer

	pw, err := promptPassword(&out)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	assert.Contains(t, out.String(), "Repeat password")
}

func TestPromptPassword_Mismatch(t *testing.T) {
	stubPasswords(t, "hunter2", "hunter3")

	_, err := promptPassword(&bytes.Buffer{})
	assert.EqualError(t, err, "passwords do not match")
}

func TestShortToken(t *testing.T) {
	assert.Equal(t, "abc", shortToken("abc"))
	assert.Equal(t, "abcdefghijkl…", shortToken("abcdefghijklmnop"))
}
