// Package testutil provides guests, fakes and assertions shared by the tests.
package testutil

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/reglet-dev/guestcall/domain/errors"
)

// RequireCallKind asserts that err is a CallError of the given kind and
// returns it.
func RequireCallKind(t testing.TB, err error, kind domainerrors.Kind, msgAndArgs ...any) *domainerrors.CallError {
	t.Helper()
	require.Error(t, err, msgAndArgs...)

	var ce *domainerrors.CallError
	require.True(t, errors.As(err, &ce), "expected a CallError, got %T: %v", err, err)
	require.Equal(t, kind, ce.Kind, "unexpected kind for error: %v", err)
	return ce
}

// AssertJSONEqual compares two JSON strings for equality, ignoring formatting
func AssertJSONEqual(t testing.TB, expected, actual string, msgAndArgs ...any) {
	t.Helper()

	var expectedJSON, actualJSON any
	require.NoError(t, json.Unmarshal([]byte(expected), &expectedJSON), "expected JSON is invalid")
	require.NoError(t, json.Unmarshal([]byte(actual), &actualJSON), "actual JSON is invalid")

	assert.Equal(t, expectedJSON, actualJSON, msgAndArgs...)
}
