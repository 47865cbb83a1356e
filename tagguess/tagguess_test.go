package tagguess

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tagmatch/tagmap"
)

func TestGuess(t *testing.T) {
	t.Parallel()

	m := Guess("Some Artist - Some Album - 03 - Some Title.flac")
	assert.Equal(t, "Some Artist", m.Get(tagmap.Artist).String())
	assert.Equal(t, "Some Album", m.Get(tagmap.Album).String())
	assert.Equal(t, 3, m.Get(tagmap.TrackNumber).Int())
	assert.Equal(t, "Some Title", m.Get(tagmap.Title).String())

	m = Guess("07 - Artist - Title.mp3")
	assert.Equal(t, 7, m.Get(tagmap.TrackNumber).Int())
	assert.Equal(t, "Artist", m.Get(tagmap.Artist).String())
	assert.Equal(t, "Title", m.Get(tagmap.Title).String())

	m = Guess("Artist - Title.ogg")
	assert.Equal(t, "Artist", m.Get(tagmap.Artist).String())
	assert.Equal(t, "Title", m.Get(tagmap.Title).String())
	assert.False(t, m.Has(tagmap.Album))

	m = Guess("01 Intro.m4a")
	assert.Equal(t, 1, m.Get(tagmap.TrackNumber).Int())
	assert.Equal(t, "Intro", m.Get(tagmap.Title).String())
}

func TestGuessUnderscoresAndBareTitle(t *testing.T) {
	t.Parallel()

	m := Guess("some_song_name.flac")
	assert.Equal(t, "some song name", m.Get(tagmap.Title).String())
	assert.False(t, m.Has(tagmap.Artist))

	m = Guess("")
	assert.True(t, m.Empty())
}
