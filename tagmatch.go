// Package tagmatch matches local audio tracks against remote metadata
// providers and aggregates their asynchronous results.
package tagmatch

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"tagmatch/tagmap"
	"tagmatch/tags"
)

var (
	Name    = "tagmatch"
	Version = "v0.3.0"
)

// Event is one update from a matching session. The concrete types are
// TrackFound, ProgressStep and Done.
type Event interface {
	event()
}

// TrackFound carries one candidate tag set for a track. Empty Tags mean the
// track was searched for but nothing was found, so callers can still list it.
type TrackFound struct {
	Track *tags.Track
	Tags  tagmap.Map
}

// ProgressStep marks one unit of work done: a network round trip or a
// decoded fingerprint.
type ProgressStep struct{}

// Done is emitted exactly once, after every provider has finished.
type Done struct{}

func (TrackFound) event()   {}
func (ProgressStep) event() {}
func (Done) event()         {}

// Provider issues metadata queries for a batch of tracks and emits results on
// its event stream, closing the stream once the batch has fully drained. A
// Provider serves a single session.
type Provider interface {
	Name() string
	Run(ctx context.Context, batch []*tags.Track)
	IsRunning() bool
	Stop()
	Events() <-chan Event
}

// AcousticLookup is implemented by providers that can resolve an acoustic id
// to metadata candidates.
type AcousticLookup interface {
	LookupByAcousticID(track *tags.Track, acousticID string) bool
}

// Finder fans a track batch out to its providers and multiplexes their event
// streams into one. It does no merging itself, that is the match tree's job.
type Finder struct {
	providers []Provider
	events    chan Event
	runOnce   sync.Once
}

func NewFinder(providers ...Provider) *Finder {
	return &Finder{
		providers: providers,
		events:    make(chan Event, 64),
	}
}

// Events is the merged stream. It yields a single Done and is closed after
// it.
func (f *Finder) Events() <-chan Event {
	return f.events
}

// Run starts every provider on the batch. Safe to call once per Finder.
func (f *Finder) Run(ctx context.Context, batch []*tags.Track) {
	f.runOnce.Do(func() {
		for _, p := range f.providers {
			p.Run(ctx, batch)
		}
		go func() {
			var g errgroup.Group
			for _, p := range f.providers {
				g.Go(func() error {
					for ev := range p.Events() {
						f.events <- ev
					}
					return nil
				})
			}
			_ = g.Wait()
			f.events <- Done{}
			close(f.events)
		}()
	})
}

func (f *Finder) IsRunning() bool {
	for _, p := range f.providers {
		if p.IsRunning() {
			return true
		}
	}
	return false
}

// LookupByAcousticID routes an acoustic id to whichever provider supports it.
func (f *Finder) LookupByAcousticID(track *tags.Track, acousticID string) bool {
	for _, p := range f.providers {
		if l, ok := p.(AcousticLookup); ok {
			return l.LookupByAcousticID(track, acousticID)
		}
	}
	return false
}

// Stop aborts all providers. Pending work is dropped without further
// emissions, though each provider still closes its stream and Done still
// arrives.
func (f *Finder) Stop() {
	for _, p := range f.providers {
		p.Stop()
	}
}
