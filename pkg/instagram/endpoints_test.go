package instagram

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileQuery(t *testing.T) {
	assert.Equal(t, "username=brand.kr", ProfileQuery("brand.kr").Encode())
}

func TestTaggedMediaQuery(t *testing.T) {
	tests := []struct {
		name      string
		first     int
		after     string
		wantFirst float64
		wantAfter bool
	}{
		{name: "first page", first: 12, wantFirst: 12},
		{name: "with cursor", first: 12, after: "QVFD", wantFirst: 12, wantAfter: true},
		{name: "zero uses default", first: 0, wantFirst: DefaultPageSize},
		{name: "capped at max", first: 500, wantFirst: MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := TaggedMediaQuery("hash", "42", tt.first, tt.after)
			assert.Equal(t, "hash", q.Get("query_hash"))

			var vars map[string]interface{}
			require.NoError(t, json.Unmarshal([]byte(q.Get("variables")), &vars))
			assert.Equal(t, "42", vars["id"])
			assert.Equal(t, tt.wantFirst, vars["first"])
			_, hasAfter := vars["after"]
			assert.Equal(t, tt.wantAfter, hasAfter)
		})
	}
}

func TestPostPaths(t *testing.T) {
	assert.Equal(t, "/alice/p/ABC123/", PostPath("alice", "ABC123"))
	assert.Equal(t, "https://www.instagram.com/p/ABC123/", PostURL(BaseURL+"/", "ABC123"))
	assert.Equal(t, "", PostURL(BaseURL, ""))

	n := Node{Shortcode: "XYZ", Owner: Owner{ID: "99"}}
	assert.Equal(t, "/99/p/XYZ/", n.Href())
	n.Owner.Username = "bob"
	assert.Equal(t, "/bob/p/XYZ/", n.Href())
}

func TestIsValidUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		expected bool
	}{
		{name: "valid simple username", username: "testuser", expected: true},
		{name: "valid with underscore", username: "test_user", expected: true},
		{name: "valid with dot", username: "test.user", expected: true},
		{name: "valid with numbers", username: "user123", expected: true},
		{name: "empty username", username: "", expected: false},
		{name: "too long", username: "thisusernameiswaytoolongandexceedsthirtychars", expected: false},
		{name: "invalid with space", username: "test user", expected: false},
		{name: "invalid with hyphen", username: "test-user", expected: false},
		{name: "invalid with special char", username: "test@user", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidUsername(tt.username))
		})
	}
}

func TestSanitizeUsername(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "brand", expected: "brand"},
		{input: "@brand", expected: "brand"},
		{input: "brand/", expected: "brand"},
		{input: " @brand/ ", expected: "brand"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeUsername(tt.input))
		})
	}
}
