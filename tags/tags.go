// Package tags reads local audio tracks via go-taglib.
package tags

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.senan.xyz/taglib"
)

// Track is a local audio file's known metadata. Tracks are handed around by
// pointer, two references to the same track compare equal.
type Track struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNumber int
	DiscNumber  int
	Length      int // milliseconds
	Bitrate     int // kbps
}

func (t *Track) String() string {
	if t.Title != "" {
		return t.Title
	}
	return filepath.Base(t.Path)
}

func CanRead(absPath string) bool {
	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".mp3", ".flac", ".opus", ".aac", ".aiff", ".ape", ".m4a", ".m4b", ".mp2", ".mpc", ".oga", ".ogg", ".spx", ".tak", ".wav", ".wma", ".wv":
		return true
	}
	return false
}

func ReadTrack(path string) (*Track, error) {
	raw, err := taglib.ReadTags(path)
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}

	first := func(key string) string {
		if vs := raw[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	return &Track{
		Path:        path,
		Title:       first("TITLE"),
		Artist:      first("ARTIST"),
		Album:       first("ALBUM"),
		AlbumArtist: first("ALBUMARTIST"),
		TrackNumber: ParseNumber(first("TRACKNUMBER")),
		DiscNumber:  ParseNumber(first("DISCNUMBER")),
		Length:      int(props.Length / time.Millisecond),
		Bitrate:     int(props.Bitrate),
	}, nil
}

// ReadDir reads every supported audio file directly under dir, sorted by
// path.
func ReadDir(dir string) ([]*Track, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("glob dir: %w", err)
	}
	sort.Strings(paths)

	var tracks []*Track
	for _, path := range paths {
		if !CanRead(path) {
			continue
		}
		track, err := ReadTrack(path)
		if err != nil {
			return nil, fmt.Errorf("read track %q: %w", path, err)
		}
		tracks = append(tracks, track)
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("no tracks in dir")
	}
	return tracks, nil
}

// ParseNumber parses a track or disc number tag, tolerating the "3/12"
// number-of-total form.
func ParseNumber(s string) int {
	s, _, _ = strings.Cut(s, "/")
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
