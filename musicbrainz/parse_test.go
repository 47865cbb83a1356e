package musicbrainz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchDoc = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://musicbrainz.org/ns/mmd-2.0#" xmlns:ext="http://musicbrainz.org/ns/ext#-2.0">
  <recording-list count="2" offset="0">
    <recording id="rec-good" ext:score="97">
      <title>Alpha Song</title>
      <length>201000</length>
      <artist-credit>
        <name-credit>
          <artist id="art-1"><name>Alpha Artist</name></artist>
        </name-credit>
      </artist-credit>
      <release-list count="1">
        <release id="rel-1">
          <title>Alpha Album</title>
          <date>1994-05-10</date>
          <release-group id="rg-1"/>
          <medium-list count="1">
            <medium>
              <position>1</position>
              <track-list count="10" offset="2">
                <track id="tr-1">
                  <position>3</position>
                  <number>3</number>
                  <title>Alpha Song</title>
                  <length>201000</length>
                </track>
              </track-list>
            </medium>
          </medium-list>
        </release>
      </release-list>
    </recording>
    <recording id="rec-weak" ext:score="12">
      <title>Noise</title>
      <artist-credit>
        <name-credit>
          <artist id="art-2"><name>Other</name></artist>
        </name-credit>
      </artist-credit>
    </recording>
  </recording-list>
</metadata>`

const recordingDoc = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://musicbrainz.org/ns/mmd-2.0#">
  <recording id="rec-fp">
    <title>Beta Song</title>
    <length>150000</length>
    <artist-credit>
      <name-credit>
        <artist id="art-3"><name>Beta Artist</name></artist>
      </name-credit>
    </artist-credit>
    <release-list count="1">
      <release id="rel-2">
        <title>Beta Album</title>
        <date>1998-03-02</date>
        <medium-list count="2">
          <medium>
            <position>1</position>
            <track-list count="9">
              <track><position>1</position><title>Beta Song</title><length>150000</length></track>
            </track-list>
          </medium>
          <medium>
            <position>2</position>
            <track-list count="8">
              <track><position>4</position><title>Beta Song</title><length>150000</length></track>
            </track-list>
          </medium>
        </medium-list>
      </release>
    </release-list>
  </recording>
</metadata>`

const releaseGroupDoc = `<?xml version="1.0" encoding="UTF-8"?>
<metadata xmlns="http://musicbrainz.org/ns/mmd-2.0#">
  <release-group id="rg-1" type="Album">
    <title>Alpha Album</title>
    <first-release-date>1994-05-10</first-release-date>
    <artist-credit>
      <name-credit>
        <artist id="art-1"><name>Alpha Artist</name></artist>
      </name-credit>
    </artist-credit>
  </release-group>
</metadata>`

func TestParseSearch(t *testing.T) {
	t.Parallel()

	res := Parse([]byte(searchDoc))
	require.Len(t, res.Recordings, 2)

	rec := res.Recordings["rec-good"]
	assert.Equal(t, "Alpha Song", rec.Title)
	assert.Equal(t, 201000, rec.Length)
	assert.Equal(t, 97, rec.Relevance)
	assert.Equal(t, "Alpha Artist", ArtistsString(rec.Artists))
	assert.Equal(t, []string{"rel-1"}, rec.ReleaseIDs)

	rel := res.Releases["rel-1"]
	assert.Equal(t, "Alpha Album", rel.Title)
	assert.Equal(t, "rg-1", rel.ReleaseGroupID)
	assert.Equal(t, 10, rel.TrackCount)
	assert.Equal(t, 1994, rel.Date.Year())

	require.Len(t, rec.Positions["rel-1"], 1)
	pos := rec.Positions["rel-1"][0]
	assert.Equal(t, 3, pos.TrackNumber)
	// single medium, disc number carries no information
	assert.Equal(t, 0, pos.DiscNumber)

	assert.Equal(t, 12, res.Recordings["rec-weak"].Relevance)
	assert.Equal(t, "Alpha Artist", res.Artists["art-1"])
}

func TestParseRecordingLookup(t *testing.T) {
	t.Parallel()

	res := Parse([]byte(recordingDoc))
	require.Len(t, res.Recordings, 1)

	rec := res.Recordings["rec-fp"]
	assert.Zero(t, rec.Relevance)
	assert.Equal(t, 17, res.Releases["rel-2"].TrackCount)
	assert.Equal(t, 1998, res.Releases["rel-2"].Date.Year())

	positions := rec.Positions["rel-2"]
	require.Len(t, positions, 2)
	assert.Equal(t, 1, positions[0].DiscNumber)
	assert.Equal(t, 1, positions[0].TrackNumber)
	assert.Equal(t, 2, positions[1].DiscNumber)
	assert.Equal(t, 4, positions[1].TrackNumber)
}

func TestParseReleaseGroup(t *testing.T) {
	t.Parallel()

	res := Parse([]byte(releaseGroupDoc))
	require.Len(t, res.ReleaseGroups, 1)

	rg := res.ReleaseGroups["rg-1"]
	assert.Equal(t, "Alpha Album", rg.Title)
	assert.Equal(t, 1994, rg.FirstReleaseYear)
	assert.Equal(t, "Alpha Artist", ArtistsString(rg.Artists))
}

func TestParseBadInput(t *testing.T) {
	t.Parallel()

	for _, doc := range []string{"", "not xml at all", "<metadata><recording-list>"} {
		res := Parse([]byte(doc))
		assert.True(t, res.Empty())
	}
}

func TestParseYearFallback(t *testing.T) {
	t.Parallel()

	doc := `<metadata><release-group id="rg-x"><first-release-date>season of 94</first-release-date></release-group></metadata>`
	res := Parse([]byte(doc))
	assert.Zero(t, res.ReleaseGroups["rg-x"].FirstReleaseYear)

	doc = `<metadata><release-group id="rg-y"><first-release-date>2001</first-release-date></release-group></metadata>`
	res = Parse([]byte(doc))
	assert.Equal(t, 2001, res.ReleaseGroups["rg-y"].FirstReleaseYear)
}
