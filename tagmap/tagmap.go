// Package tagmap provides a sparse, ordered tag bag keyed by a closed
// vocabulary of metadata field names.
package tagmap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// https://picard-docs.musicbrainz.org/downloads/MusicBrainz_Picard_Tag_Map.html
const (
	Title       Key = "TITLE"
	Artist      Key = "ARTIST"
	Album       Key = "ALBUM"
	AlbumArtist Key = "ALBUMARTIST"
	Year        Key = "YEAR"
	TrackNumber Key = "TRACKNUMBER"
	DiscNumber  Key = "DISCNUMBER"
	Length      Key = "LENGTH"
	TrackCount  Key = "TRACKCOUNT"

	ArtistID       Key = "ARTISTID"
	ReleaseID      Key = "RELEASEID"
	ReleaseGroupID Key = "RELEASEGROUPID"
	ReleaseList    Key = "RELEASELIST"
	TrackID        Key = "TRACKID"
	TrackInfo      Key = "TRACKINFO"
	Similarity     Key = "SIMILARITY"

	// per-provider match scores
	ScoreMusicBrainz Key = "musicbrainz"
	ScoreAcoustID    Key = "acoustid"
)

type Key string

// Value is one tag value. The zero Value means "not set".
type Value struct {
	kind kind
	s    string
	i    int
	f    float64
	l    []string
}

type kind uint8

const (
	kindEmpty kind = iota
	kindString
	kindInt
	kindFloat
	kindList
)

func String(s string) Value { return Value{kind: kindString, s: s} }
func Int(i int) Value { return Value{kind: kindInt, i: i} }
func Float(f float64) Value { return Value{kind: kindFloat, f: f} }
func List(vs ...string) Value { return Value{kind: kindList, l: vs} }

func (v Value) IsZero() bool { return v.kind == kindEmpty }
func (v Value) String() string { return v.s }
func (v Value) Int() int { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) List() []string { return v.l }

// Display renders the value for user facing output.
func (v Value) Display() string {
	switch v.kind {
	case kindString:
		return v.s
	case kindInt:
		return fmt.Sprint(v.i)
	case kindFloat:
		return fmt.Sprintf("%.2f", v.f)
	case kindList:
		return strings.Join(v.l, "; ")
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindString:
		return json.Marshal(v.s)
	case kindInt:
		return json.Marshal(v.i)
	case kindFloat:
		return json.Marshal(v.f)
	case kindList:
		return json.Marshal(v.l)
	}
	return []byte("null"), nil
}

func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.s == o.s && v.i == o.i && v.f == o.f && slices.Equal(v.l, o.l)
}

// Map is an ordered Key to Value mapping. The zero Map is empty and ready to
// use. Maps share underlying storage when copied, use Clone for a snapshot.
type Map struct {
	keys []Key
	vals map[Key]Value
}

func New(kvs ...any) Map {
	if len(kvs)%2 != 0 {
		panic("kvs should be key value pairs")
	}
	var m Map
	for i := 0; i < len(kvs)-1; i += 2 {
		m.Set(kvs[i].(Key), kvs[i+1].(Value))
	}
	return m
}

func (m *Map) Set(k Key, v Value) {
	if m.vals == nil {
		m.vals = map[Key]Value{}
	}
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

func (m Map) Get(k Key) Value {
	return m.vals[k]
}

func (m Map) Has(k Key) bool {
	_, ok := m.vals[k]
	return ok
}

func (m *Map) Delete(k Key) {
	if _, ok := m.vals[k]; !ok {
		return
	}
	delete(m.vals, k)
	m.keys = slices.DeleteFunc(m.keys, func(o Key) bool { return o == k })
}

func (m Map) Len() int {
	return len(m.vals)
}

func (m Map) Empty() bool {
	return len(m.vals) == 0
}

// Keys returns the keys in insertion order.
func (m Map) Keys() []Key {
	return slices.Clone(m.keys)
}

func (m Map) Clone() Map {
	var out Map
	for _, k := range m.keys {
		out.Set(k, m.vals[k])
	}
	return out
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
