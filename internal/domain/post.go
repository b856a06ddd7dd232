package domain

// ShapeHint is the source's own description of a post's media shape.
type ShapeHint string

const (
	ShapeNone        ShapeHint = ""
	ShapeLink        ShapeHint = "link"
	ShapeImage       ShapeHint = "image"
	ShapeHostedVideo ShapeHint = "hosted:video"
	ShapeRichVideo   ShapeHint = "rich:video"
	ShapeGallery     ShapeHint = "gallery"
)

// EntryStatus is the processing status the source reports for a gallery entry.
type EntryStatus string

const (
	EntryValid   EntryStatus = "valid"
	EntryFailed  EntryStatus = "failed"
	EntryUnknown EntryStatus = "unprocessed"
)

// EntryKind distinguishes static from animated gallery entries.
type EntryKind string

const (
	EntryImage         EntryKind = "Image"
	EntryAnimatedImage EntryKind = "AnimatedImage"
)

// PostRecord is a candidate post as delivered by a PostSource. The pipeline
// treats it as read-only.
type PostRecord struct {
	// ID is unique within Source.
	ID string

	// Source identifies the forum the post came from (e.g. a subreddit name).
	Source string

	Title string

	// Permalink is the source-relative path of the post's discussion page.
	Permalink string

	// CategoryTag is the post's flair. Empty when the post has none.
	CategoryTag string

	IsRemoved bool
	IsPinned  bool

	// PrimaryURL is either a direct media link or a landing page.
	PrimaryURL string

	MediaShapeHint ShapeHint

	// GalleryEntries is in source order. Nil for non-gallery posts.
	GalleryEntries []GalleryEntry

	// NativeVideo is set only for natively hosted video.
	NativeVideo *NativeVideo

	// EmbeddedMedia is set only for externally embedded media.
	EmbeddedMedia *EmbeddedMedia
}

// Key returns the (source, id) pair used for deduplication.
func (p *PostRecord) Key() SeenKey {
	return SeenKey{Source: p.Source, PostID: p.ID}
}

// GalleryEntry is one item of a multi-item post.
type GalleryEntry struct {
	ID     string
	Status EntryStatus
	Kind   EntryKind

	// URL is the resolved full-resolution media link.
	URL string
}

// NativeVideo describes a video hosted by the source itself.
type NativeVideo struct {
	FallbackURL string
	Height      int
}

// EmbeddedMedia describes media embedded from a third-party provider.
type EmbeddedMedia struct {
	// Provider is the provider's domain, e.g. "gfycat.com".
	Provider     string
	ThumbnailURL string
}

// SeenKey identifies a post for deduplication.
type SeenKey struct {
	Source string
	PostID string
}
