package domain

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// CaptionSettings controls which lines a caption carries.
type CaptionSettings struct {
	IncludeTitle bool
	LinkToPost   bool
	SignMessages bool

	// ChannelName and ChannelLink form the signature line.
	ChannelName string
	ChannelLink string

	// PostBaseURL prefixes a post's permalink. Defaults to https://www.reddit.com.
	PostBaseURL string
}

// CaptionFormatter assembles HTML captions. It has no effect on
// classification or delivery decisions.
type CaptionFormatter struct {
	settings CaptionSettings
	policy   *bluemonday.Policy
}

// NewCaptionFormatter creates a formatter with the given settings.
func NewCaptionFormatter(settings CaptionSettings) *CaptionFormatter {
	if settings.PostBaseURL == "" {
		settings.PostBaseURL = "https://www.reddit.com"
	}
	return &CaptionFormatter{
		settings: settings,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Format builds the caption for a post. User-supplied text and link targets
// are escaped since the channel parses captions as HTML.
func (f *CaptionFormatter) Format(post *PostRecord) string {
	var b strings.Builder

	if f.settings.IncludeTitle && post.Title != "" {
		b.WriteString(f.policy.Sanitize(post.Title))
		b.WriteString("\n")
	}

	if f.settings.LinkToPost && post.Permalink != "" {
		postURL := strings.TrimRight(f.settings.PostBaseURL, "/") + post.Permalink
		fmt.Fprintf(&b, "<a href=\"%s\">r/%s</a>\n\n", html.EscapeString(postURL), f.policy.Sanitize(post.Source))
	}

	if f.settings.SignMessages && f.settings.ChannelName != "" {
		fmt.Fprintf(&b, "<a href=\"%s\">-%s</a>", html.EscapeString(f.settings.ChannelLink), f.policy.Sanitize(f.settings.ChannelName))
	}

	return strings.TrimRight(b.String(), "\n")
}
