package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientEmailRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 42, 1000000, 9223372036854775807} {
		email := ClientEmail(id)
		got, ok := ParseClientEmail(email)
		require.True(t, ok, "email %s must parse", email)
		assert.Equal(t, id, got)
	}
}

func TestParseClientEmailRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"u@panel",        // empty id
		"u0@panel",       // leading zero
		"u042@panel",     // leading zero
		"u-5@panel",      // sign
		"u+5@panel",      // sign
		"u12x@panel",     // non-digit
		"12@panel",       // missing prefix
		"u12",            // missing suffix
		"u12@panel.evil", // suffix not exact
		"xu12@panel",     // prefix not at start
		"u 12@panel",     // whitespace
	}
	for _, email := range cases {
		_, ok := ParseClientEmail(email)
		assert.False(t, ok, "email %q must be rejected", email)
	}
}
