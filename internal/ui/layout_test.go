package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout_ContentHeight(t *testing.T) {
	l := NewLayout(80, 24)
	assert.Equal(t, 22, l.ContentHeight())

	l.Offline = true
	assert.Equal(t, 21, l.ContentHeight())

	assert.Equal(t, 0, NewLayout(80, 1).ContentHeight())
}

func TestLayout_RenderHeaderShowsUnread(t *testing.T) {
	l := NewLayout(80, 24)

	assert.Contains(t, l.RenderHeader("Deal Room", 3, "ada"), "3 unread")
	assert.NotContains(t, l.RenderHeader("Deal Room", 0, "ada"), "unread")
}

func TestLayout_BannerOnlyWhenOffline(t *testing.T) {
	l := NewLayout(40, 10)
	banner := l.RenderOfflineBanner("offline")

	online := l.RenderWithFrame("head", banner, "body", "status")
	assert.NotContains(t, online, "offline")
	assert.Equal(t, 3, strings.Count(online, "\n")+1)

	l.Offline = true
	offline := l.RenderWithFrame("head", banner, "body", "status")
	assert.Contains(t, offline, "offline")
}
