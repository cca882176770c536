package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// ProfileEndpoint resolves a username to a user id
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// GraphQLEndpoint serves paginated feed queries
	GraphQLEndpoint = "/graphql/query/"

	// TaggedQueryHash identifies the query for posts tagging a user
	TaggedQueryHash = "be13233562af2d229b008d2976b998b5"

	// LoginPath is where expired sessions are redirected
	LoginPath = "/accounts/login"

	// PostMarker is the path segment preceding a post shortcode
	PostMarker = "p"

	// DefaultPageSize is the number of feed items requested per page
	DefaultPageSize = 12

	// MaxPageSize is the largest page the feed serves
	MaxPageSize = 50

	// DefaultPixelsPerPage converts scroll distance into feed pages
	DefaultPixelsPerPage = 2000
)

// ProfileQuery returns the query for resolving username
func ProfileQuery(username string) url.Values {
	params := url.Values{}
	params.Set("username", username)
	return params
}

// TaggedMediaQuery returns the GraphQL query for one page of posts tagging userID
func TaggedMediaQuery(queryHash, userID string, first int, after string) url.Values {
	if first <= 0 {
		first = DefaultPageSize
	} else if first > MaxPageSize {
		first = MaxPageSize
	}

	variables := map[string]interface{}{
		"id":    userID,
		"first": first,
	}
	if after != "" {
		variables["after"] = after
	}
	encoded, _ := json.Marshal(variables)

	params := url.Values{}
	params.Set("query_hash", queryHash)
	params.Set("variables", string(encoded))
	return params
}

// PostPath returns the feed href of a post: /{owner}/p/{shortcode}/
func PostPath(owner, shortcode string) string {
	return fmt.Sprintf("/%s/%s/%s/", owner, PostMarker, shortcode)
}

// PostURL returns the canonical permalink of a post
func PostURL(base, shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s/", strings.TrimSuffix(base, "/"), PostMarker, shortcode)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return strings.TrimRight(username, "/ ")
}
