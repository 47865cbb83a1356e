// Package tagguess extracts metadata from file names for tracks that carry
// no usable tags.
package tagguess

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"tagmatch/tagmap"
)

type scheme struct {
	expr *regexp.Regexp
	keys []tagmap.Key
}

// schemes are tried in order, most specific first. Underscores have already
// been folded to spaces by the time these run.
var schemes = []scheme{
	{
		regexp.MustCompile(`^(.+?) - (.+?) - (\d{1,3}) - (.+)$`),
		[]tagmap.Key{tagmap.Artist, tagmap.Album, tagmap.TrackNumber, tagmap.Title},
	},
	{
		regexp.MustCompile(`^(\d{1,3})\. (.+?) - (.+?) - (.+)$`),
		[]tagmap.Key{tagmap.TrackNumber, tagmap.Artist, tagmap.Album, tagmap.Title},
	},
	{
		regexp.MustCompile(`^(\d{1,3}) - (.+?) - (.+)$`),
		[]tagmap.Key{tagmap.TrackNumber, tagmap.Artist, tagmap.Title},
	},
	{
		regexp.MustCompile(`^(.+?) - (\d{1,3}) - (.+)$`),
		[]tagmap.Key{tagmap.Artist, tagmap.TrackNumber, tagmap.Title},
	},
	{
		regexp.MustCompile(`^(\d{1,3})\.? (.+)$`),
		[]tagmap.Key{tagmap.TrackNumber, tagmap.Title},
	},
	{
		regexp.MustCompile(`^(.+?) - (.+)$`),
		[]tagmap.Key{tagmap.Artist, tagmap.Title},
	},
	{
		regexp.MustCompile(`^(.+)$`),
		[]tagmap.Key{tagmap.Title},
	},
}

// Guess parses a file name into tags, trying a fixed list of common naming
// schemes. The result holds at least a title for any non-empty name.
func Guess(filename string) tagmap.Map {
	var m tagmap.Map

	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return m
	}

	for _, s := range schemes {
		groups := s.expr.FindStringSubmatch(name)
		if groups == nil {
			continue
		}
		for i, key := range s.keys {
			val := strings.TrimSpace(groups[i+1])
			switch key {
			case tagmap.TrackNumber, tagmap.DiscNumber:
				if n, err := strconv.Atoi(val); err == nil && n > 0 {
					m.Set(key, tagmap.Int(n))
				}
			default:
				if val != "" {
					m.Set(key, tagmap.String(val))
				}
			}
		}
		break
	}
	return m
}
