package tagmatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagmatch/tagmap"
	"tagmatch/tags"
)

type stubProvider struct {
	name    string
	events  chan Event
	running atomic.Bool
	stopped atomic.Bool
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name, events: make(chan Event, 16)}
}

func (p *stubProvider) Name() string { return p.name }
func (p *stubProvider) Events() <-chan Event { return p.events }
func (p *stubProvider) IsRunning() bool { return p.running.Load() }
func (p *stubProvider) Stop() { p.stopped.Store(true) }

func (p *stubProvider) Run(_ context.Context, batch []*tags.Track) {
	p.running.Store(true)
	go func() {
		defer p.running.Store(false)
		defer close(p.events)
		for _, t := range batch {
			p.events <- ProgressStep{}
			var m tagmap.Map
			m.Set(tagmap.Title, tagmap.String(p.name+": "+t.Path))
			p.events <- TrackFound{Track: t, Tags: m}
		}
	}()
}

func drainEvents(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestFinderMultiplexesProviders(t *testing.T) {
	t.Parallel()

	pa, pb := newStubProvider("a"), newStubProvider("b")
	f := NewFinder(pa, pb)

	batch := []*tags.Track{{Path: "one.flac"}, {Path: "two.flac"}}
	f.Run(context.Background(), batch)

	events := drainEvents(t, f.Events())

	var found, steps, dones int
	for _, ev := range events {
		switch ev.(type) {
		case TrackFound:
			found++
		case ProgressStep:
			steps++
		case Done:
			dones++
		}
	}
	assert.Equal(t, 4, found)
	assert.Equal(t, 4, steps)
	assert.Equal(t, 1, dones)

	// Done is last
	require.NotEmpty(t, events)
	assert.IsType(t, Done{}, events[len(events)-1])
	assert.False(t, f.IsRunning())
}

func TestFinderNoProviders(t *testing.T) {
	t.Parallel()

	f := NewFinder()
	f.Run(context.Background(), []*tags.Track{{Path: "one.flac"}})

	events := drainEvents(t, f.Events())
	require.Len(t, events, 1)
	assert.IsType(t, Done{}, events[0])
}

func TestFinderStopReachesProviders(t *testing.T) {
	t.Parallel()

	pa, pb := newStubProvider("a"), newStubProvider("b")
	f := NewFinder(pa, pb)
	f.Stop()

	assert.True(t, pa.stopped.Load())
	assert.True(t, pb.stopped.Load())
}

type lookupProvider struct {
	*stubProvider
	got string
}

func (p *lookupProvider) LookupByAcousticID(track *tags.Track, acousticID string) bool {
	p.got = acousticID
	return true
}

func TestFinderRoutesAcousticLookups(t *testing.T) {
	t.Parallel()

	plain := newStubProvider("plain")
	lp := &lookupProvider{stubProvider: newStubProvider("lookup")}
	f := NewFinder(plain, lp)

	ok := f.LookupByAcousticID(&tags.Track{Path: "one.flac"}, "abcd-1234")
	assert.True(t, ok)
	assert.Equal(t, "abcd-1234", lp.got)

	assert.False(t, NewFinder(plain).LookupByAcousticID(&tags.Track{}, "abcd-1234"))
}
