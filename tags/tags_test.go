package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanRead(t *testing.T) {
	assert.True(t, CanRead("/m/01 Help!.flac"))
	assert.True(t, CanRead("/m/01 Help!.MP3"))
	assert.False(t, CanRead("/m/cover.jpg"))
	assert.False(t, CanRead("/m/notes.txt"))
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 3, ParseNumber("3"))
	assert.Equal(t, 3, ParseNumber("3/12"))
	assert.Equal(t, 3, ParseNumber(" 3 "))
	assert.Equal(t, 0, ParseNumber(""))
	assert.Equal(t, 0, ParseNumber("x"))
}

func TestTrackString(t *testing.T) {
	assert.Equal(t, "Help!", (&Track{Path: "/m/01.flac", Title: "Help!"}).String())
	assert.Equal(t, "01.flac", (&Track{Path: "/m/01.flac"}).String())
}
