package tagmap

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapOrder(t *testing.T) {
	var m Map
	m.Set(Title, String("Help!"))
	m.Set(Artist, String("The Beatles"))
	m.Set(TrackNumber, Int(1))
	m.Set(Title, String("Help"))

	assert.Equal(t, []Key{Title, Artist, TrackNumber}, m.Keys())
	assert.Equal(t, "Help", m.Get(Title).String())
	assert.Equal(t, 3, m.Len())

	m.Delete(Artist)
	assert.Equal(t, []Key{Title, TrackNumber}, m.Keys())
	assert.False(t, m.Has(Artist))
	assert.True(t, m.Get(Artist).IsZero())
}

func TestValues(t *testing.T) {
	assert.Equal(t, 4, Int(4).Int())
	assert.Equal(t, 0.25, Float(0.25).Float())
	assert.Equal(t, []string{"a", "b"}, List("a", "b").List())
	assert.True(t, Int(4).Equal(Int(4)))
	assert.False(t, Int(4).Equal(String("4")))
	assert.False(t, List("a").Equal(List("a", "b")))
	assert.True(t, Value{}.IsZero())
	assert.False(t, String("").IsZero())
}

func TestClone(t *testing.T) {
	m := New(Title, String("Yesterday"), Year, Int(1965))
	c := m.Clone()
	c.Set(Year, Int(1966))

	assert.Equal(t, 1965, m.Get(Year).Int())
	assert.Equal(t, 1966, c.Get(Year).Int())
	assert.Equal(t, m.Keys(), c.Keys())
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "12", Int(12).Display())
	assert.Equal(t, "0.80", Float(0.8).Display())
	assert.Equal(t, "a; b", List("a", "b").Display())
	assert.Equal(t, "", Value{}.Display())
}

func TestMarshalJSON(t *testing.T) {
	m := New(
		Title, String("Yesterday"),
		TrackNumber, Int(13),
		Similarity, Float(0.5),
		ArtistID, List("a-1", "a-2"),
	)
	got, err := json.Marshal(m)
	assert.NoError(t, err)
	assert.Equal(t, `{"TITLE":"Yesterday","TRACKNUMBER":13,"SIMILARITY":0.5,"ARTISTID":["a-1","a-2"]}`, string(got))
}
