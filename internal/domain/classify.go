package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	photoExtensions     = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}
	animationExtensions = map[string]bool{"gif": true, "gifv": true, "mp4": true}
)

// Height bounds of the adaptive-bitrate variants the video host publishes.
const (
	maxVideoHeight  = 1080
	snapVideoHeight = 720
	snapUpperBound  = 1000
)

// ClassifierSettings controls kind resolution.
type ClassifierSettings struct {
	// PhotosOnly turns every non-photo kind into KindUnsupported.
	PhotosOnly bool

	// EmbedProvider is the only embedded-video provider that is delivered.
	EmbedProvider string

	// VideoBaseURL hosts native video variants.
	VideoBaseURL string

	// EmbedBaseURL hosts the embedded provider's playable renditions.
	EmbedBaseURL string
}

// DefaultClassifierSettings returns the settings for reddit-hosted content.
func DefaultClassifierSettings() ClassifierSettings {
	return ClassifierSettings{
		EmbedProvider: "gfycat.com",
		VideoBaseURL:  "https://v.redd.it",
		EmbedBaseURL:  "https://thumbs.gfycat.com",
	}
}

// Classifier resolves a post's kind and media refs.
type Classifier struct {
	settings ClassifierSettings
	captions *CaptionFormatter
}

// NewClassifier creates a Classifier. Empty URL settings fall back to the
// defaults.
func NewClassifier(settings ClassifierSettings, captions *CaptionFormatter) *Classifier {
	defaults := DefaultClassifierSettings()
	if settings.VideoBaseURL == "" {
		settings.VideoBaseURL = defaults.VideoBaseURL
	}
	if settings.EmbedBaseURL == "" {
		settings.EmbedBaseURL = defaults.EmbedBaseURL
	}
	if captions == nil {
		captions = NewCaptionFormatter(CaptionSettings{IncludeTitle: true})
	}
	return &Classifier{settings: settings, captions: captions}
}

// Classify is a pure function of post. It always returns one of the six
// kinds; missing optional fields only make a predicate false.
func (c *Classifier) Classify(post *PostRecord) ClassifiedPost {
	result := ClassifiedPost{
		Kind:        KindUnsupported,
		CategoryTag: post.CategoryTag,
	}

	switch {
	case post.IsRemoved:
		result.Ineligible = IneligibleRemoved
		return result
	case post.IsPinned:
		result.Ineligible = IneligiblePinned
		return result
	}

	result.Kind, result.Refs = c.resolve(post)
	if c.settings.PhotosOnly && result.Kind != KindPhoto {
		result.Kind, result.Refs = KindUnsupported, nil
	}
	if result.Kind != KindUnsupported {
		result.Caption = c.captions.Format(post)
	}
	return result
}

func (c *Classifier) resolve(post *PostRecord) (Kind, []MediaRef) {
	if refs := galleryRefs(post); len(refs) > 0 {
		return KindGallery, refs
	}

	ext := urlExtension(post.PrimaryURL)
	if photoExtensions[ext] {
		return KindPhoto, []MediaRef{{Kind: MediaPhoto, URL: post.PrimaryURL}}
	}
	if animationExtensions[ext] {
		return KindAnimation, []MediaRef{{Kind: MediaAnimation, URL: rewriteGIFV(post.PrimaryURL, ext)}}
	}

	if post.MediaShapeHint == ShapeHostedVideo && post.NativeVideo != nil {
		if ref, ok := c.nativeVideoRef(post.NativeVideo); ok {
			return KindNativeVideo, []MediaRef{ref}
		}
	}

	if post.MediaShapeHint == ShapeRichVideo && post.EmbeddedMedia != nil &&
		strings.EqualFold(post.EmbeddedMedia.Provider, c.settings.EmbedProvider) {
		if id, ok := ExtractEmbedID(post.EmbeddedMedia.ThumbnailURL); ok {
			u := fmt.Sprintf("%s/%s-mobile.mp4", strings.TrimRight(c.settings.EmbedBaseURL, "/"), id)
			return KindEmbeddedVideo, []MediaRef{{Kind: MediaVideo, URL: u}}
		}
	}

	return KindUnsupported, nil
}

func (c *Classifier) nativeVideoRef(v *NativeVideo) (MediaRef, bool) {
	if v.FallbackURL == "" {
		return MediaRef{}, false
	}
	if v.Height <= 0 {
		return MediaRef{Kind: MediaVideo, URL: v.FallbackURL}, true
	}

	id := nativeVideoID(v.FallbackURL)
	if id == "" {
		return MediaRef{}, false
	}

	height := ClampVideoHeight(v.Height)
	return MediaRef{
		Kind:   MediaVideo,
		URL:    c.videoURL(id, height),
		Height: height,
	}, true
}

func (c *Classifier) videoURL(id string, height int) string {
	return fmt.Sprintf("%s/%s/DASH_%d.mp4", strings.TrimRight(c.settings.VideoBaseURL, "/"), id, height)
}

// ClampVideoHeight maps a reported height onto a variant the host serves.
func ClampVideoHeight(h int) int {
	switch {
	case h > maxVideoHeight:
		return maxVideoHeight
	case h > snapVideoHeight && h < snapUpperBound:
		return snapVideoHeight
	default:
		return h
	}
}

// ExtractEmbedID returns the second-to-last "-" token of the thumbnail URL's
// last path segment.
func ExtractEmbedID(thumbnailURL string) (string, bool) {
	p := thumbnailURL
	if u, err := url.Parse(thumbnailURL); err == nil && u.Path != "" {
		p = u.Path
	}

	seg := p[strings.LastIndex(p, "/")+1:]
	tokens := strings.Split(seg, "-")
	if len(tokens) < 2 {
		return "", false
	}

	id := tokens[len(tokens)-2]
	return id, id != ""
}

// nativeVideoID returns the first path segment of a hosted video URL.
func nativeVideoID(fallbackURL string) string {
	u, err := url.Parse(fallbackURL)
	if err != nil {
		return ""
	}
	id, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	return id
}

// urlExtension returns the lowercased extension of the URL's path without
// the dot, or "" if there is none.
func urlExtension(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
}

func rewriteGIFV(raw, ext string) string {
	if ext != "gifv" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Path = strings.TrimSuffix(u.Path, path.Ext(u.Path)) + ".mp4"
	return u.String()
}

// videoLadder lists the published video variants, highest first.
var videoLadder = []int{1080, 720, 480, 360, 240}

// lowerVideoVariant returns ref moved steps variants down the ladder. Refs
// without a height hint, or already at the bottom, are returned unchanged.
func lowerVideoVariant(ref MediaRef, steps int) MediaRef {
	if ref.Height <= 0 {
		return ref
	}

	height := ref.Height
	for ; steps > 0; steps-- {
		next := 0
		for _, h := range videoLadder {
			if h < height {
				next = h
				break
			}
		}
		if next == 0 {
			break
		}
		height = next
	}
	if height == ref.Height {
		return ref
	}

	from := fmt.Sprintf("/DASH_%d.mp4", ref.Height)
	to := fmt.Sprintf("/DASH_%d.mp4", height)
	if !strings.Contains(ref.URL, from) {
		return ref
	}
	return MediaRef{
		Kind:   ref.Kind,
		URL:    strings.Replace(ref.URL, from, to, 1),
		Height: height,
	}
}
