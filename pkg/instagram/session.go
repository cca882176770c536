package instagram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tagsync/pkg/auth"
	"tagsync/pkg/config"
	errs "tagsync/pkg/errors"
	"tagsync/pkg/feed"
	"tagsync/pkg/logger"
	"tagsync/pkg/models"
	"tagsync/pkg/ratelimit"
)

// SessionOptions tunes how the tagged feed is paged
type SessionOptions struct {
	QueryHash     string
	PageSize      int
	PixelsPerPage int
}

// WebSession walks the feed of posts tagging one account. It implements
// feed.Session and feed.Dismisser and is not safe for concurrent use.
type WebSession struct {
	client *Client
	opts   SessionOptions
	logger logger.Logger

	userID  string
	nodes   []Node
	byHref  map[string]int
	cursor  string
	hasNext bool
}

var (
	_ feed.Session   = (*WebSession)(nil)
	_ feed.Dismisser = (*WebSession)(nil)
)

// NewWebSession creates a session over an authenticated client
func NewWebSession(client *Client, opts SessionOptions) *WebSession {
	if opts.QueryHash == "" {
		opts.QueryHash = TaggedQueryHash
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PixelsPerPage <= 0 {
		opts.PixelsPerPage = DefaultPixelsPerPage
	}
	return &WebSession{
		client: client,
		opts:   opts,
		logger: client.logger,
		byHref: make(map[string]int),
	}
}

// NewWebSessionFromConfig builds a paced client from configuration and
// installs state on it.
func NewWebSessionFromConfig(cfg *config.Config, state *auth.SessionState, log logger.Logger) (*WebSession, error) {
	if err := state.Validate(); err != nil {
		return nil, errs.New(errs.ErrorTypeSessionExpired, "no usable session", err)
	}

	userAgent := state.UserAgent
	if userAgent == "" {
		userAgent = cfg.Instagram.UserAgent
	}
	client, err := NewClient(ClientOptions{
		BaseURL:   cfg.Instagram.BaseURL,
		UserAgent: userAgent,
		Timeout:   cfg.Instagram.Timeout,
		Limiter:   ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize),
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	client.SetSession(state)

	return NewWebSession(client, SessionOptions{
		QueryHash:     cfg.Instagram.TaggedQueryHash,
		PageSize:      cfg.Instagram.PageSize,
		PixelsPerPage: cfg.Instagram.PixelsPerPage,
	}), nil
}

// Open resolves brandID to a user id and loads the first page of its tagged feed
func (s *WebSession) Open(ctx context.Context, brandID string) error {
	username := SanitizeUsername(brandID)
	if !IsValidUsername(username) {
		return errs.New(errs.ErrorTypeConfig, fmt.Sprintf("invalid brand account %q", brandID), nil)
	}
	if !s.client.HasSession() {
		return errs.ErrSessionExpired
	}

	var profile ProfileResponse
	if err := s.client.getJSON(ctx, ProfileEndpoint, ProfileQuery(username), &profile); err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == 404 {
			return errs.New(errs.ErrorTypeConfig, fmt.Sprintf("brand account %q not found", username), err)
		}
		return err
	}
	if profile.Data.User == nil || profile.Data.User.ID == "" {
		return errs.New(errs.ErrorTypeConfig, fmt.Sprintf("brand account %q not found", username), nil)
	}

	s.userID = profile.Data.User.ID
	s.nodes = nil
	s.byHref = make(map[string]int)
	s.cursor = ""
	s.hasNext = false

	s.logger.InfoWithFields("Opened tagged feed", map[string]interface{}{
		"brand":   username,
		"user_id": s.userID,
	})
	return s.loadPage(ctx)
}

func (s *WebSession) loadPage(ctx context.Context) error {
	var page TaggedResponse
	query := TaggedMediaQuery(s.opts.QueryHash, s.userID, s.opts.PageSize, s.cursor)
	if err := s.client.getJSON(ctx, GraphQLEndpoint, query, &page); err != nil {
		return err
	}
	if page.Data.User == nil {
		return errs.New(errs.ErrorTypeNetwork, "tagged feed response has no user", nil)
	}

	conn := page.Data.User.EdgeUserToPhotosOfYou
	added := 0
	for _, edge := range conn.Edges {
		if edge.Node.Shortcode == "" {
			continue
		}
		href := edge.Node.Href()
		if _, dup := s.byHref[href]; dup {
			continue
		}
		s.byHref[href] = len(s.nodes)
		s.nodes = append(s.nodes, edge.Node)
		added++
	}
	s.cursor = conn.PageInfo.EndCursor
	s.hasNext = conn.PageInfo.HasNextPage && s.cursor != ""

	s.logger.DebugWithFields("Loaded feed page", map[string]interface{}{
		"added":    added,
		"loaded":   len(s.nodes),
		"has_next": s.hasNext,
	})
	return nil
}

func (s *WebSession) SnapshotCandidates(ctx context.Context) ([]models.CandidateRef, error) {
	if s.userID == "" {
		return nil, errors.New("session is not open")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := s.client.BaseURL()
	refs := make([]models.CandidateRef, 0, len(s.nodes))
	for _, n := range s.nodes {
		href := n.Href()
		refs = append(refs, models.CandidateRef{Identifier: href, SourceURL: base + href})
	}
	return refs, nil
}

// Scroll loads step/PixelsPerPage further pages, at least one, while the feed has more
func (s *WebSession) Scroll(ctx context.Context, step int) error {
	pages := step / s.opts.PixelsPerPage
	if pages < 1 {
		pages = 1
	}
	for i := 0; i < pages && s.hasNext; i++ {
		if err := s.loadPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *WebSession) WaitSettle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *WebSession) OpenDetail(ctx context.Context, ref models.CandidateRef) (*feed.DetailView, error) {
	idx, ok := s.byHref[ref.Identifier]
	if !ok {
		return nil, errs.New(errs.ErrorTypeDetailLoad, ref.Identifier+" is not in the loaded feed", nil)
	}
	node := s.nodes[idx]

	doc, err := s.client.getDocument(ctx, "/"+PostMarker+"/"+node.Shortcode+"/")
	if err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errs.New(errs.ErrorTypeDetailLoad, "load "+ref.Identifier, err)
	}

	return parseDetail(doc, node, s.client.BaseURL())
}

// CloseDetail is a no-op: detail pages are fetched, not navigated to.
func (s *WebSession) CloseDetail(ctx context.Context) error {
	return nil
}

func (s *WebSession) Authenticated(ctx context.Context) (bool, error) {
	return s.client.HasSession(), nil
}

// DismissIfPresent always reports false: the web API shows no interstitials.
func (s *WebSession) DismissIfPresent(ctx context.Context, capability feed.Capability) (bool, error) {
	return false, nil
}

// parseDetail reads the post article, falling back to the feed node for a
// missing timestamp or media.
func parseDetail(doc *goquery.Document, node Node, base string) (*feed.DetailView, error) {
	article := doc.Find("article").First()
	if article.Length() == 0 {
		return nil, errs.New(errs.ErrorTypeDetailLoad, "post page has no article", nil)
	}

	view := &feed.DetailView{
		Timestamp: article.Find("time[datetime]").First().AttrOr("datetime", ""),
	}
	if view.Timestamp == "" && node.TakenAtTimestamp > 0 {
		view.Timestamp = time.Unix(node.TakenAtTimestamp, 0).UTC().Format(time.RFC3339)
	}

	article.Find("img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		alt := img.AttrOr("alt", "")
		if src == "" || strings.HasSuffix(alt, "profile picture") {
			return
		}
		view.Media = append(view.Media, feed.MediaElement{Src: src, Alt: alt})
	})
	if len(view.Media) == 0 && node.DisplayURL != "" {
		view.Media = append(view.Media, feed.MediaElement{Src: node.DisplayURL, Alt: node.AccessibilityCaption})
	}

	view.Permalink = doc.Find(`link[rel="canonical"]`).AttrOr("href", "")
	if view.Permalink == "" {
		view.Permalink = PostURL(base, node.Shortcode)
	}
	return view, nil
}
