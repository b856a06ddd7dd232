package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGallery_PartitionsInSourceOrder(t *testing.T) {
	post := &PostRecord{
		GalleryEntries: []GalleryEntry{
			{ID: "img1", Status: EntryValid, Kind: EntryImage, URL: "https://i.redd.it/img1.jpg"},
			{ID: "gif1", Status: EntryValid, Kind: EntryAnimatedImage, URL: "https://i.redd.it/gif1.gif"},
			{ID: "img2", Status: EntryFailed, Kind: EntryImage, URL: "https://i.redd.it/img2.jpg"},
			{ID: "img3", Status: EntryValid, Kind: EntryImage, URL: "https://i.redd.it/img3.jpg"},
		},
	}

	static, animated := ResolveGallery(post, "X")

	assert.Equal(t, []GroupItem{
		{Kind: MediaPhoto, URL: "https://i.redd.it/img1.jpg", Caption: "X"},
		{Kind: MediaPhoto, URL: "https://i.redd.it/img3.jpg"},
	}, static)
	assert.Equal(t, []string{"https://i.redd.it/gif1.gif"}, animated)
}

func TestResolveGallery_AnimationsNeverCarryCaption(t *testing.T) {
	post := &PostRecord{
		GalleryEntries: []GalleryEntry{
			{ID: "gif1", Status: EntryValid, Kind: EntryAnimatedImage, URL: "https://i.redd.it/gif1.gif"},
			{ID: "gif2", Status: EntryValid, Kind: EntryAnimatedImage, URL: "https://i.redd.it/gif2.gif"},
		},
	}

	static, animated := ResolveGallery(post, "X")
	assert.Empty(t, static)
	assert.Equal(t, []string{"https://i.redd.it/gif1.gif", "https://i.redd.it/gif2.gif"}, animated)
}

func TestResolveGallery_NoSurvivingEntries(t *testing.T) {
	post := &PostRecord{
		GalleryEntries: []GalleryEntry{
			{ID: "a", Status: EntryUnknown, Kind: EntryImage, URL: "https://i.redd.it/a.jpg"},
			{ID: "b", Status: EntryValid, Kind: EntryImage},
		},
	}

	static, animated := ResolveGallery(post, "X")
	assert.Empty(t, static)
	assert.Empty(t, animated)
}
