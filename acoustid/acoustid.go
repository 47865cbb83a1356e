// Package acoustid resolves tracks by audio fingerprint and hands the
// resulting IDs to a recording lookup.
package acoustid

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/shlex"

	"tagmatch"
	"tagmatch/tags"
)

// NullFingerprint is what decoders report for audio they could not
// fingerprint. It never matches anything and is dropped on sight.
const NullFingerprint = "00000000-0000-0000-0000-000000000000"

type Fingerprinter interface {
	Fingerprint(ctx context.Context, path string) (string, error)
}

// Lookup receives resolved fingerprints. The decoding hooks keep the
// receiver's event stream open while fingerprints are still being computed.
type Lookup interface {
	LookupByAcousticID(track *tags.Track, acousticID string) bool
	DecodingStarted()
	DecodingFinished()
}

// Provider fingerprints a batch of tracks one by one. It emits a progress
// step per track and forwards usable fingerprints to the lookup, which
// delivers any resulting candidates on its own stream.
type Provider struct {
	fp     Fingerprinter
	lookup Lookup

	events  chan tagmatch.Event
	stop    chan struct{}
	running atomic.Bool

	runOnce  sync.Once
	stopOnce sync.Once
}

func NewProvider(fp Fingerprinter, lookup Lookup) *Provider {
	return &Provider{
		fp:     fp,
		lookup: lookup,
		events: make(chan tagmatch.Event, 16),
		stop:   make(chan struct{}),
	}
}

func (p *Provider) Name() string { return "acoustid" }
func (p *Provider) Events() <-chan tagmatch.Event { return p.events }
func (p *Provider) IsRunning() bool { return p.running.Load() }

func (p *Provider) Run(ctx context.Context, batch []*tags.Track) {
	p.runOnce.Do(func() {
		p.running.Store(true)
		p.lookup.DecodingStarted()
		go p.run(ctx, batch)
	})
}

func (p *Provider) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Provider) run(ctx context.Context, batch []*tags.Track) {
	defer close(p.events)
	defer p.lookup.DecodingFinished()
	defer p.running.Store(false)

	for _, t := range batch {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		default:
		}

		id, err := p.fp.Fingerprint(ctx, t.Path)
		p.events <- tagmatch.ProgressStep{}
		if err != nil {
			slog.Debug("fingerprint failed", "path", t.Path, "err", err)
			continue
		}
		if id == "" || id == NullFingerprint {
			continue
		}
		p.lookup.LookupByAcousticID(t, id)
	}
}

// CommandFingerprinter shells out to an external decoder, fpcalc style. The
// track path is appended to the configured command line.
type CommandFingerprinter struct {
	Command string
}

func (c CommandFingerprinter) Fingerprint(ctx context.Context, path string) (string, error) {
	args, err := shlex.Split(c.Command)
	if err != nil {
		return "", fmt.Errorf("split command: %w", err)
	}
	if len(args) == 0 {
		return "", fmt.Errorf("empty fingerprint command")
	}
	args = append(args, path)

	out, err := exec.CommandContext(ctx, args[0], args[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}
