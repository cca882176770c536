// Package extract turns an opened post detail into a PostRecord.
//
// The set of descriptive fields to fill is configuration; identity fields
// (author, post id, brand, publish date) are always extracted.
package extract

import (
	"fmt"
	"regexp"
	"strings"

	errs "tagsync/pkg/errors"
	"tagsync/pkg/feed"
	"tagsync/pkg/models"
)

// Field is an optional descriptive field of a PostRecord
type Field string

const (
	FieldMediaURL Field = "media_url"
	FieldMentions Field = "mentions"
	FieldPostURL  Field = "post_url"
)

// AllFields is the default field set
var AllFields = []Field{FieldMediaURL, FieldMentions, FieldPostURL}

// DefaultPostMarker separates the author from the post id in a path
const DefaultPostMarker = "p"

var mentionPattern = regexp.MustCompile(`@[\w.]+`)

// Pipeline extracts records for a fixed field set
type Pipeline struct {
	fields     map[Field]bool
	postMarker string
	baseURL    string
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithFields replaces the extracted field set
func WithFields(fields ...Field) Option {
	return func(p *Pipeline) {
		p.fields = make(map[Field]bool, len(fields))
		for _, f := range fields {
			p.fields[f] = true
		}
	}
}

// WithPostMarker sets the path segment preceding the post id
func WithPostMarker(marker string) Option {
	return func(p *Pipeline) {
		if marker != "" {
			p.postMarker = marker
		}
	}
}

// WithBaseURL sets the origin used to build permalinks when the view has none
func WithBaseURL(base string) Option {
	return func(p *Pipeline) {
		p.baseURL = strings.TrimRight(base, "/")
	}
}

// NewPipeline creates a pipeline extracting AllFields by default
func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{postMarker: DefaultPostMarker}
	WithFields(AllFields...)(p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFields converts configured names to Fields
func ParseFields(names []string) ([]Field, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		f := Field(strings.TrimSpace(strings.ToLower(n)))
		switch f {
		case FieldMediaURL, FieldMentions, FieldPostURL:
			fields = append(fields, f)
		default:
			return nil, fmt.Errorf("unknown field %q", n)
		}
	}
	return fields, nil
}

// Enabled reports whether f is extracted
func (p *Pipeline) Enabled(f Field) bool {
	return p.fields[f]
}

// Extract builds the record for ref. publishDay is the already classified
// calendar day of the post.
func (p *Pipeline) Extract(ref models.CandidateRef, view *feed.DetailView, params models.RunParams, publishDay string) (models.PostRecord, error) {
	author, postID, err := SplitPath(ref.Identifier, p.postMarker)
	if err != nil {
		return models.PostRecord{}, errs.New(errs.ErrorTypeExtraction, "cannot identify post", err)
	}

	rec := models.PostRecord{
		PostID:      postID,
		AuthorID:    author,
		BrandID:     params.BrandID,
		BrandName:   params.BrandName,
		PublishDate: publishDay,
	}
	if view == nil {
		return rec, nil
	}

	if p.Enabled(FieldMediaURL) && len(view.Media) > 0 {
		rec.MediaURL = view.Media[0].Src
	}
	if p.Enabled(FieldMentions) {
		rec.Mentions = ExtractMentions(view.AltTexts())
		rec.MentionCount = len(rec.Mentions)
	}
	if p.Enabled(FieldPostURL) {
		rec.PostURL = view.Permalink
		if rec.PostURL == "" && p.baseURL != "" {
			rec.PostURL = p.baseURL + "/" + p.postMarker + "/" + postID + "/"
		}
	}
	return rec, nil
}

// ExtractMentions collects @handles from every text in order, keeping the
// first occurrence of each.
func ExtractMentions(texts []string) []string {
	seen := make(map[string]struct{})
	var mentions []string
	for _, text := range texts {
		for _, m := range mentionPattern.FindAllString(text, -1) {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			mentions = append(mentions, m)
		}
	}
	return mentions
}

// SplitPath returns the segments immediately before and after marker in a
// path such as /author/p/postid/.
func SplitPath(path, marker string) (author, postID string, err error) {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	for i, s := range segs {
		if s != marker {
			continue
		}
		if i == 0 || i+1 >= len(segs) {
			break
		}
		return segs[i-1], segs[i+1], nil
	}
	return "", "", fmt.Errorf("path %q has no /<author>/%s/<id> section", path, marker)
}
