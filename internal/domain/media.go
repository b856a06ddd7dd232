package domain

// Kind is the classified shape of a post.
type Kind string

const (
	KindPhoto         Kind = "photo"
	KindAnimation     Kind = "animation"
	KindGallery       Kind = "gallery"
	KindNativeVideo   Kind = "native_video"
	KindEmbeddedVideo Kind = "embedded_video"
	KindUnsupported   Kind = "unsupported"
)

// MediaKind selects the transport operation used for a single media item.
type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaAnimation MediaKind = "animation"
	MediaVideo     MediaKind = "video"
)

// MediaRef is one deliverable media item.
type MediaRef struct {
	Kind MediaKind
	URL  string

	// Height is a hint for video items and zero otherwise.
	Height int
}

// IneligibleReason explains why a post was rejected before kind resolution.
type IneligibleReason string

const (
	NotIneligible     IneligibleReason = ""
	IneligibleRemoved IneligibleReason = "removed"
	IneligiblePinned  IneligibleReason = "pinned"
)

// ClassifiedPost is the result of classifying a PostRecord. It lives for a
// single pipeline pass.
type ClassifiedPost struct {
	Kind Kind

	// Ineligible is set when the post was gated out before kind resolution.
	// Kind is KindUnsupported in that case.
	Ineligible IneligibleReason

	// Refs is never empty unless Kind is KindUnsupported. Gallery refs are
	// in source order with static and animated items interleaved.
	Refs []MediaRef

	// Caption is attached to exactly one ref at delivery time.
	Caption string

	CategoryTag string
}

// Deliverable reports whether the post has anything to send.
func (c ClassifiedPost) Deliverable() bool {
	return c.Ineligible == NotIneligible && c.Kind != KindUnsupported && len(c.Refs) > 0
}
