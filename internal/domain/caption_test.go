package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptionFormatter_AllLines(t *testing.T) {
	f := NewCaptionFormatter(CaptionSettings{
		IncludeTitle: true,
		LinkToPost:   true,
		SignMessages: true,
		ChannelName:  "Daily Cats",
		ChannelLink:  "https://t.me/dailycats",
	})

	got := f.Format(&PostRecord{
		Source:    "cats",
		Title:     "Look at him",
		Permalink: "/r/cats/comments/abc/look_at_him/",
	})

	want := "Look at him\n" +
		"<a href=\"https://www.reddit.com/r/cats/comments/abc/look_at_him/\">r/cats</a>\n\n" +
		"<a href=\"https://t.me/dailycats\">-Daily Cats</a>"
	assert.Equal(t, want, got)
}

func TestCaptionFormatter_EscapesTitle(t *testing.T) {
	f := NewCaptionFormatter(CaptionSettings{IncludeTitle: true})

	got := f.Format(&PostRecord{Title: "Cats & <b>Dogs</b>"})
	assert.Equal(t, "Cats &amp; Dogs", got)
}

func TestCaptionFormatter_EscapesLinkTargets(t *testing.T) {
	f := NewCaptionFormatter(CaptionSettings{
		LinkToPost:   true,
		SignMessages: true,
		ChannelName:  "Cats",
		ChannelLink:  `https://t.me/cats?x="><b>1</b>&y=2`,
	})

	got := f.Format(&PostRecord{Source: "cats", Permalink: `/r/cats/comments/abc/"quoted"&more/`})
	assert.Equal(t,
		`<a href="https://www.reddit.com/r/cats/comments/abc/&#34;quoted&#34;&amp;more/">r/cats</a>`+"\n\n"+
			`<a href="https://t.me/cats?x=&#34;&gt;&lt;b&gt;1&lt;/b&gt;&amp;y=2">-Cats</a>`,
		got)
}

func TestCaptionFormatter_NothingEnabled(t *testing.T) {
	f := NewCaptionFormatter(CaptionSettings{})

	assert.Empty(t, f.Format(&PostRecord{Title: "t", Permalink: "/r/x/1"}))
}

func TestCaptionFormatter_LinkOnlyHasNoTrailingNewlines(t *testing.T) {
	f := NewCaptionFormatter(CaptionSettings{LinkToPost: true, PostBaseURL: "https://old.reddit.com/"})

	got := f.Format(&PostRecord{Source: "pics", Permalink: "/r/pics/comments/1/"})
	assert.Equal(t, "<a href=\"https://old.reddit.com/r/pics/comments/1/\">r/pics</a>", got)
}
