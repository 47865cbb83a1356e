package musicbrainz

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Result is everything extracted from one ws/2 XML document, keyed by MBID.
type Result struct {
	Recordings    map[string]Recording
	Artists       map[string]string
	Releases      map[string]Release
	ReleaseGroups map[string]ReleaseGroup
}

func (r Result) Empty() bool {
	return len(r.Recordings) == 0 && len(r.ReleaseGroups) == 0
}

type Recording struct {
	ID         string
	Title      string
	Length     int // ms, 0 when unknown
	Relevance  int // search score out of 100, 0 for direct lookups
	Artists    []ArtistCredit
	ReleaseIDs []string
	Positions  map[string][]TrackPosition // release MBID -> positions of this recording
}

type TrackPosition struct {
	Title       string // track title on the release, may differ from the recording title
	Length      int
	TrackNumber int
	DiscNumber  int // 0 when unknown or suppressed
}

type Release struct {
	ID             string
	Title          string
	TrackCount     int
	ReleaseGroupID string
	Date           time.Time
}

type ReleaseGroup struct {
	ID               string
	Title            string
	Artists          []ArtistCredit
	FirstReleaseYear int
}

type ArtistCredit struct {
	ID         string
	Name       string
	JoinPhrase string
}

// ArtistsString renders an artist credit the way MusicBrainz displays it,
// join phrases included.
func ArtistsString(credits []ArtistCredit) string {
	var sb strings.Builder
	for _, c := range credits {
		sb.WriteString(c.Name)
		sb.WriteString(c.JoinPhrase)
	}
	return sb.String()
}

type xmlMetadata struct {
	XMLName       xml.Name         `xml:"metadata"`
	RecordingList xmlRecordingList `xml:"recording-list"`
	Recording     *xmlRecording    `xml:"recording"`
	ReleaseGroup  *xmlReleaseGroup `xml:"release-group"`
}

type xmlRecordingList struct {
	Recordings []xmlRecording `xml:"recording"`
}

type xmlRecording struct {
	ID           string           `xml:"id,attr"`
	Score        string           `xml:"score,attr"`
	Title        string           `xml:"title"`
	Length       string           `xml:"length"`
	ArtistCredit xmlArtistCredit `xml:"artist-credit"`
	ReleaseList  struct {
		Releases []xmlRelease `xml:"release"`
	} `xml:"release-list"`
}

type xmlArtistCredit struct {
	NameCredits []struct {
		JoinPhrase string `xml:"joinphrase,attr"`
		Name       string `xml:"name"`
		Artist     struct {
			ID   string `xml:"id,attr"`
			Name string `xml:"name"`
		} `xml:"artist"`
	} `xml:"name-credit"`
}

type xmlRelease struct {
	ID           string `xml:"id,attr"`
	Title        string `xml:"title"`
	Date         string `xml:"date"`
	ReleaseGroup struct {
		ID string `xml:"id,attr"`
	} `xml:"release-group"`
	MediumList struct {
		Media []xmlMedium `xml:"medium"`
	} `xml:"medium-list"`
}

type xmlMedium struct {
	Position  string `xml:"position"`
	TrackList struct {
		Count  string     `xml:"count,attr"`
		Tracks []xmlTrack `xml:"track"`
	} `xml:"track-list"`
}

type xmlTrack struct {
	Number   string `xml:"number"`
	Position string `xml:"position"`
	Title    string `xml:"title"`
	Length   string `xml:"length"`
}

type xmlReleaseGroup struct {
	ID               string          `xml:"id,attr"`
	Title            string          `xml:"title"`
	FirstReleaseDate string          `xml:"first-release-date"`
	ArtistCredit     xmlArtistCredit `xml:"artist-credit"`
}

var yearExpr = regexp.MustCompile(`^(\d{4})`)

// Parse extracts recordings, artists, releases and release groups from a
// ws/2 XML document. A document that does not decode yields an empty Result,
// never an error.
func Parse(doc []byte) Result {
	res := Result{
		Recordings:    map[string]Recording{},
		Artists:       map[string]string{},
		Releases:      map[string]Release{},
		ReleaseGroups: map[string]ReleaseGroup{},
	}

	var meta xmlMetadata
	if err := xml.Unmarshal(doc, &meta); err != nil {
		return res
	}

	recordings := meta.RecordingList.Recordings
	if meta.Recording != nil {
		recordings = append(recordings, *meta.Recording)
	}
	for _, xr := range recordings {
		if xr.ID == "" {
			continue
		}
		res.Recordings[xr.ID] = parseRecording(xr, &res)
	}
	if xrg := meta.ReleaseGroup; xrg != nil && xrg.ID != "" {
		res.ReleaseGroups[xrg.ID] = parseReleaseGroup(*xrg, &res)
	}
	return res
}

func parseRecording(xr xmlRecording, res *Result) Recording {
	rec := Recording{
		ID:        xr.ID,
		Title:     xr.Title,
		Length:    atoi(xr.Length),
		Relevance: atoi(xr.Score),
		Artists:   parseArtistCredit(xr.ArtistCredit, res),
		Positions: map[string][]TrackPosition{},
	}
	for _, xrel := range xr.ReleaseList.Releases {
		if xrel.ID == "" {
			continue
		}
		rec.ReleaseIDs = append(rec.ReleaseIDs, xrel.ID)
		if _, ok := res.Releases[xrel.ID]; !ok {
			res.Releases[xrel.ID] = parseRelease(xrel)
		}
		rec.Positions[xrel.ID] = append(rec.Positions[xrel.ID], parsePositions(xrel)...)
	}
	return rec
}

func parseRelease(xrel xmlRelease) Release {
	rel := Release{
		ID:             xrel.ID,
		Title:          xrel.Title,
		ReleaseGroupID: xrel.ReleaseGroup.ID,
	}
	for _, m := range xrel.MediumList.Media {
		rel.TrackCount += atoi(m.TrackList.Count)
	}
	if xrel.Date != "" {
		if t, err := dateparse.ParseAny(xrel.Date); err == nil {
			rel.Date = t
		}
	}
	return rel
}

// parsePositions lists where the recording sits on the release. A disc
// number of 1 is dropped unless the release both reports its per-medium
// track count and has exactly two media, since single-disc releases carry
// no useful disc information.
func parsePositions(xrel xmlRelease) []TrackPosition {
	media := xrel.MediumList.Media
	var out []TrackPosition
	for _, m := range media {
		disc := atoi(m.Position)
		if disc == 1 && (atoi(m.TrackList.Count) <= 0 || len(media) != 2) {
			disc = 0
		}
		for _, t := range m.TrackList.Tracks {
			num := atoi(t.Position)
			if num == 0 {
				num = atoi(t.Number)
			}
			out = append(out, TrackPosition{
				Title:       t.Title,
				Length:      atoi(t.Length),
				TrackNumber: num,
				DiscNumber:  disc,
			})
		}
	}
	return out
}

func parseReleaseGroup(xrg xmlReleaseGroup, res *Result) ReleaseGroup {
	rg := ReleaseGroup{
		ID:      xrg.ID,
		Title:   xrg.Title,
		Artists: parseArtistCredit(xrg.ArtistCredit, res),
	}
	if m := yearExpr.FindStringSubmatch(xrg.FirstReleaseDate); m != nil {
		rg.FirstReleaseYear = atoi(m[1])
	}
	return rg
}

func parseArtistCredit(xac xmlArtistCredit, res *Result) []ArtistCredit {
	var credits []ArtistCredit
	for _, nc := range xac.NameCredits {
		name := nc.Name
		if name == "" {
			name = nc.Artist.Name
		}
		credits = append(credits, ArtistCredit{
			ID:         nc.Artist.ID,
			Name:       name,
			JoinPhrase: nc.JoinPhrase,
		})
		if nc.Artist.ID != "" {
			res.Artists[nc.Artist.ID] = nc.Artist.Name
		}
	}
	return credits
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
