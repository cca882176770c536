package instagram

// ProfileResponse is the web_profile_info payload
type ProfileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Status          string `json:"status"`
	Data            struct {
		User *ProfileUser `json:"user"`
	} `json:"data"`
}

// ProfileUser identifies an account
type ProfileUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// TaggedResponse is one page of the tagged-media GraphQL query
type TaggedResponse struct {
	Status string `json:"status"`
	Data   struct {
		User *struct {
			EdgeUserToPhotosOfYou MediaConnection `json:"edge_user_to_photos_of_you"`
		} `json:"user"`
	} `json:"data"`
}

// MediaConnection is a page of media edges
type MediaConnection struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Edge wraps a single media node
type Edge struct {
	Node Node `json:"node"`
}

// Node is a single feed item
type Node struct {
	ID                   string `json:"id"`
	Shortcode            string `json:"shortcode"`
	DisplayURL           string `json:"display_url"`
	IsVideo              bool   `json:"is_video"`
	TakenAtTimestamp     int64  `json:"taken_at_timestamp"`
	AccessibilityCaption string `json:"accessibility_caption"`
	Owner                Owner  `json:"owner"`
}

// Owner is the author of a node
type Owner struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Href returns the feed href of the node. Nodes without an owner username
// fall back to the owner id.
func (n Node) Href() string {
	owner := n.Owner.Username
	if owner == "" {
		owner = n.Owner.ID
	}
	return PostPath(owner, n.Shortcode)
}
