package domain

// ResolveGallery walks a gallery post's entries in source order and splits
// the valid ones into static and animated items. Only the first static item
// carries caption. Invalid entries are dropped.
func ResolveGallery(post *PostRecord, caption string) (static []GroupItem, animated []string) {
	return partitionRefs(galleryRefs(post), caption)
}

// galleryRefs converts the valid gallery entries of post to media refs,
// preserving order.
func galleryRefs(post *PostRecord) []MediaRef {
	var refs []MediaRef
	for _, e := range post.GalleryEntries {
		if e.Status != EntryValid || e.URL == "" {
			continue
		}
		switch e.Kind {
		case EntryImage:
			refs = append(refs, MediaRef{Kind: MediaPhoto, URL: e.URL})
		case EntryAnimatedImage:
			refs = append(refs, MediaRef{Kind: MediaAnimation, URL: e.URL})
		}
	}
	return refs
}

func partitionRefs(refs []MediaRef, caption string) (static []GroupItem, animated []string) {
	for _, r := range refs {
		switch r.Kind {
		case MediaAnimation:
			animated = append(animated, r.URL)
		default:
			item := GroupItem{Kind: MediaPhoto, URL: r.URL}
			if len(static) == 0 {
				item.Caption = caption
			}
			static = append(static, item)
		}
	}
	return static, animated
}
