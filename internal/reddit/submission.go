package reddit

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"

	"github.com/blackmichael/subreddit-relay/internal/domain"
)

// ErrNotSubmission is returned when a thing is not a link submission.
var ErrNotSubmission = errors.New("thing is not a submission")

const submissionKind = "t3"

// thing is reddit's generic {"kind", "data"} envelope.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listing is the data of a "Listing" thing.
type listing struct {
	After    string  `json:"after"`
	Children []thing `json:"children"`
}

// submission is the subset of a t3 thing's data the relay reads.
type submission struct {
	ID                  string                   `json:"id"`
	Name                string                   `json:"name"`
	Subreddit           string                   `json:"subreddit"`
	Title               string                   `json:"title"`
	Permalink           string                   `json:"permalink"`
	LinkFlairText       *string                  `json:"link_flair_text"`
	RemovedByCategory   *string                  `json:"removed_by_category"`
	Stickied            bool                     `json:"stickied"`
	URL                 string                   `json:"url"`
	URLOverriddenByDest string                   `json:"url_overridden_by_dest"`
	PostHint            string                   `json:"post_hint"`
	IsVideo             bool                     `json:"is_video"`
	IsGallery           bool                     `json:"is_gallery"`
	Media               *media                   `json:"media"`
	SecureMedia         *media                   `json:"secure_media"`
	GalleryData         *galleryData             `json:"gallery_data"`
	MediaMetadata       map[string]mediaMetadata `json:"media_metadata"`
	CreatedUTC          float64                  `json:"created_utc"`
}

type media struct {
	Type        string       `json:"type"`
	RedditVideo *redditVideo `json:"reddit_video"`
	OEmbed      *oembed      `json:"oembed"`
}

type redditVideo struct {
	FallbackURL string `json:"fallback_url"`
	Height      int    `json:"height"`
}

type oembed struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

type galleryData struct {
	Items []struct {
		MediaID string `json:"media_id"`
	} `json:"items"`
}

type mediaMetadata struct {
	Status string `json:"status"`
	E      string `json:"e"`
	S      struct {
		U   string `json:"u"`
		GIF string `json:"gif"`
		MP4 string `json:"mp4"`
	} `json:"s"`
}

// DecodeThing decodes a {"kind":"t3","data":{...}} envelope into a post
// record.
func DecodeThing(data []byte) (*domain.PostRecord, error) {
	var t thing
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshal thing: %w", err)
	}
	if t.Kind != submissionKind {
		return nil, fmt.Errorf("%w: kind %q", ErrNotSubmission, t.Kind)
	}
	return DecodeSubmission(t.Data)
}

// DecodeSubmission decodes the data object of a t3 thing.
func DecodeSubmission(data []byte) (*domain.PostRecord, error) {
	var s submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal submission: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("submission without id")
	}
	return s.toPostRecord(), nil
}

func (s *submission) toPostRecord() *domain.PostRecord {
	post := &domain.PostRecord{
		ID:             s.ID,
		Source:         s.Subreddit,
		Title:          s.Title,
		Permalink:      s.Permalink,
		IsRemoved:      s.RemovedByCategory != nil && *s.RemovedByCategory != "",
		IsPinned:       s.Stickied,
		PrimaryURL:     s.URLOverriddenByDest,
		MediaShapeHint: s.shapeHint(),
	}
	if post.PrimaryURL == "" {
		post.PrimaryURL = s.URL
	}
	if s.LinkFlairText != nil {
		post.CategoryTag = *s.LinkFlairText
	}

	m := s.Media
	if m == nil {
		m = s.SecureMedia
	}
	if m != nil {
		if s.IsVideo && m.RedditVideo != nil {
			post.NativeVideo = &domain.NativeVideo{
				FallbackURL: m.RedditVideo.FallbackURL,
				Height:      m.RedditVideo.Height,
			}
		}
		if m.OEmbed != nil {
			post.EmbeddedMedia = &domain.EmbeddedMedia{
				Provider:     m.Type,
				ThumbnailURL: html.UnescapeString(m.OEmbed.ThumbnailURL),
			}
		}
	}

	if s.IsGallery && s.GalleryData != nil {
		post.GalleryEntries = s.galleryEntries()
	}

	return post
}

func (s *submission) shapeHint() domain.ShapeHint {
	if s.IsGallery {
		return domain.ShapeGallery
	}
	switch s.PostHint {
	case string(domain.ShapeHostedVideo):
		return domain.ShapeHostedVideo
	case string(domain.ShapeRichVideo):
		return domain.ShapeRichVideo
	case string(domain.ShapeImage):
		return domain.ShapeImage
	case string(domain.ShapeLink):
		return domain.ShapeLink
	}
	if s.IsVideo {
		return domain.ShapeHostedVideo
	}
	return domain.ShapeNone
}

// galleryEntries orders media_metadata by gallery_data, which carries the
// author's ordering.
func (s *submission) galleryEntries() []domain.GalleryEntry {
	entries := make([]domain.GalleryEntry, 0, len(s.GalleryData.Items))
	for _, item := range s.GalleryData.Items {
		meta, ok := s.MediaMetadata[item.MediaID]
		if !ok {
			entries = append(entries, domain.GalleryEntry{ID: item.MediaID, Status: domain.EntryUnknown})
			continue
		}

		entry := domain.GalleryEntry{
			ID:     item.MediaID,
			Status: domain.EntryStatus(meta.Status),
			Kind:   domain.EntryKind(meta.E),
		}
		switch entry.Kind {
		case domain.EntryImage:
			entry.URL = html.UnescapeString(meta.S.U)
		case domain.EntryAnimatedImage:
			entry.URL = meta.S.GIF
			if entry.URL == "" {
				entry.URL = meta.S.MP4
			}
			entry.URL = html.UnescapeString(entry.URL)
		}
		entries = append(entries, entry)
	}
	return entries
}
