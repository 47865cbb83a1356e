package musicbrainz

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tagmatch"
	"tagmatch/similarity"
	"tagmatch/tagguess"
	"tagmatch/tagmap"
	"tagmatch/tags"
)

const (
	relevanceCutoff = 50
	minSimilarity   = 0.6

	textToleranceMs = 30000
	idToleranceMs   = 10000

	weightArtist = 6
	weightAlbum  = 12
	weightTitle  = 22
	weightLength = 8
	weightNumber = 6

	// small nudge so a candidate with a wrong disc or track number sorts
	// below an otherwise identical one
	numberMismatchPenalty = 0.1
)

type requestKind int

const (
	kindSearch requestKind = iota
	kindRecording
	kindReleaseGroup
)

type request struct {
	kind  requestKind
	track *tags.Track
	query string // search query, or an MBID for lookups
	meta  tagmap.Map
}

type reply struct {
	req request
	res Result
	err error
}

type queuedTrack struct {
	track *tags.Track
	tags  tagmap.Map
}

// Finder resolves local tracks against MusicBrainz. Requests are issued one
// per tick so the remote service sees a steady, low rate. All state lives in
// a single coordinator goroutine; the exported methods only pass it messages.
type Finder struct {
	// TickInterval is the pause between outgoing requests. Leave zero for
	// the default of one second.
	TickInterval time.Duration

	// GuessTags fills in metadata from a file name when the track carries
	// neither artist nor album tags.
	GuessTags func(filename string) tagmap.Map

	client *Client

	events  chan tagmatch.Event
	cmds    chan func()
	replies chan reply
	closed  chan struct{}

	startOnce sync.Once
	ctx       context.Context
	running   atomic.Bool

	// coordinator state, loop goroutine only
	started  bool
	stopped  bool
	pending  []request
	inflight int
	decoding int
	waiting  map[string][]queuedTrack
	rgCache  map[string]ReleaseGroup
}

func NewFinder(client *Client) *Finder {
	return &Finder{
		TickInterval: 1 * time.Second,
		GuessTags:    tagguess.Guess,
		client:       client,
		events:       make(chan tagmatch.Event, 64),
		cmds:         make(chan func(), 16),
		replies:      make(chan reply, 16),
		closed:       make(chan struct{}),
		waiting:      map[string][]queuedTrack{},
		rgCache:      map[string]ReleaseGroup{},
	}
}

func (f *Finder) Name() string { return "musicbrainz" }
func (f *Finder) Events() <-chan tagmatch.Event { return f.events }
func (f *Finder) IsRunning() bool { return f.running.Load() }

// Run queues a search for every track in the batch. Results arrive on
// Events, ending with a single Done once everything has settled.
func (f *Finder) Run(ctx context.Context, batch []*tags.Track) {
	f.start(ctx)
	f.do(func() {
		f.started = true
		for _, t := range batch {
			meta := f.guessMetadata(t)
			f.pending = append(f.pending, request{
				kind:  kindSearch,
				track: t,
				query: searchQuery(meta),
				meta:  meta,
			})
		}
	})
}

// LookupByAcousticID queues a recording lookup for a fingerprint match.
// It reports whether the lookup was accepted.
func (f *Finder) LookupByAcousticID(track *tags.Track, acousticID string) bool {
	if acousticID == "" {
		return false
	}
	f.start(context.Background())
	return f.do(func() {
		f.started = true
		f.pending = append(f.pending, request{
			kind:  kindRecording,
			track: track,
			query: acousticID,
			meta:  f.guessMetadata(track),
		})
	})
}

// DecodingStarted tells the finder that a fingerprint decoder holds tracks
// it may still look up, keeping the event stream open until
// DecodingFinished.
func (f *Finder) DecodingStarted() {
	f.start(context.Background())
	f.do(func() {
		f.started = true
		f.decoding++
	})
}

func (f *Finder) DecodingFinished() {
	f.do(func() {
		f.decoding--
	})
}

// Stop abandons all queued work. In-flight requests are drained silently and
// no further track events are emitted.
func (f *Finder) Stop() {
	f.do(func() {
		f.started = true
		f.stopped = true
		f.pending = nil
		f.waiting = map[string][]queuedTrack{}
	})
}

func (f *Finder) start(ctx context.Context) {
	f.startOnce.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		f.ctx = ctx
		f.running.Store(true)
		go f.loop()
	})
}

func (f *Finder) do(fn func()) bool {
	select {
	case f.cmds <- fn:
		return true
	case <-f.closed:
		return false
	}
}

func (f *Finder) loop() {
	interval := f.TickInterval
	if interval <= 0 {
		interval = 1 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctxDone := f.ctx.Done()
	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			f.started = true
			f.stopped = true
			f.pending = nil
			f.waiting = map[string][]queuedTrack{}
			if f.inflight == 0 && f.decoding <= 0 {
				f.finish()
				return
			}
		case fn := <-f.cmds:
			fn()
			if f.done() {
				f.finish()
				return
			}
		case <-ticker.C:
			if len(f.pending) == 0 {
				if f.done() {
					f.finish()
					return
				}
				continue
			}
			req := f.pending[0]
			f.pending = f.pending[1:]
			f.inflight++
			go f.issue(req)
		case rep := <-f.replies:
			f.inflight--
			f.handleReply(rep)
			if f.done() {
				f.finish()
				return
			}
		}
	}
}

func (f *Finder) done() bool {
	if !f.started {
		return false
	}
	return len(f.pending) == 0 && f.inflight == 0 && f.decoding <= 0
}

func (f *Finder) finish() {
	// a release group that never resolved still owes its tracks an answer
	if !f.stopped {
		for _, queued := range f.waiting {
			for _, q := range queued {
				f.emit(tagmatch.TrackFound{Track: q.track, Tags: tagmap.Map{}})
			}
		}
	}
	f.waiting = nil
	f.running.Store(false)
	close(f.closed)
	close(f.events)
}

func (f *Finder) issue(req request) {
	var body []byte
	var err error
	switch req.kind {
	case kindSearch:
		body, err = f.client.SearchRecordings(f.ctx, req.query)
	case kindRecording:
		body, err = f.client.GetRecording(f.ctx, req.query)
	case kindReleaseGroup:
		body, err = f.client.GetReleaseGroup(f.ctx, req.query)
	}
	var res Result
	if err == nil {
		res = Parse(body)
	}
	select {
	case f.replies <- reply{req: req, res: res, err: err}:
	case <-f.closed:
	}
}

func (f *Finder) handleReply(rep reply) {
	if f.stopped {
		return
	}
	f.emit(tagmatch.ProgressStep{})

	if rep.err != nil {
		slog.Debug("musicbrainz request failed", "kind", rep.req.kind, "err", rep.err)
		if rep.req.kind != kindReleaseGroup {
			f.emit(tagmatch.TrackFound{Track: rep.req.track, Tags: tagmap.Map{}})
		}
		return
	}

	switch rep.req.kind {
	case kindSearch, kindRecording:
		f.handleCandidates(rep)
	case kindReleaseGroup:
		f.handleReleaseGroup(rep)
	}
}

func (f *Finder) handleCandidates(rep reply) {
	tolerance, scoreKey := textToleranceMs, tagmap.ScoreMusicBrainz
	if rep.req.kind == kindRecording {
		tolerance, scoreKey = idToleranceMs, tagmap.ScoreAcoustID
	}

	var produced int
	for _, rec := range rep.res.Recordings {
		if rep.req.kind == kindSearch && rec.Relevance < relevanceCutoff {
			continue
		}
		produced += f.scoreRecording(rep.req, rec, rep.res, tolerance, scoreKey)
	}
	if produced == 0 {
		// every track hears back, even when nothing matched
		f.emit(tagmatch.TrackFound{Track: rep.req.track, Tags: tagmap.Map{}})
	}
}

func (f *Finder) handleReleaseGroup(rep reply) {
	for id, rg := range rep.res.ReleaseGroups {
		f.rgCache[id] = rg
		for _, q := range f.waiting[id] {
			f.sendTrack(q.track, q.tags)
		}
		delete(f.waiting, id)
	}
	// lookup came back without the group, flush its queue as-is
	if rep.res.Empty() {
		id := rep.req.query
		for _, q := range f.waiting[id] {
			q.tags.Delete(tagmap.ReleaseGroupID)
			f.emit(tagmatch.TrackFound{Track: q.track, Tags: q.tags})
		}
		delete(f.waiting, id)
	}
}

// scoreRecording weighs one recording against the track's metadata and
// passes every placement that clears the similarity threshold on for
// delivery. It returns how many answers the track was promised.
func (f *Finder) scoreRecording(req request, rec Recording, res Result, toleranceMs int, scoreKey tagmap.Key) int {
	artist := ArtistsString(rec.Artists)
	var artistID string
	if len(rec.Artists) > 0 {
		artistID = rec.Artists[0].ID
	}

	var produced int
	for _, releaseID := range rec.ReleaseIDs {
		release, ok := res.Releases[releaseID]
		if !ok {
			continue
		}
		positions := rec.Positions[releaseID]
		if len(positions) == 0 {
			positions = []TrackPosition{{}}
		}
		for _, pos := range positions {
			title, length := pos.Title, pos.Length
			if title == "" {
				title = rec.Title
			}
			if length == 0 {
				length = rec.Length
			}

			score, possible := f.scoreFields(req, artist, title, release.Title, length, toleranceMs)
			if n := req.meta.Get(tagmap.DiscNumber).Int(); n > 0 && pos.DiscNumber > 0 {
				possible += weightNumber
				if n == pos.DiscNumber {
					score += weightNumber
				} else {
					score -= numberMismatchPenalty
				}
			}
			if n := req.meta.Get(tagmap.TrackNumber).Int(); n > 0 && pos.TrackNumber > 0 {
				possible += weightNumber
				if n == pos.TrackNumber {
					score += weightNumber
				} else {
					score -= numberMismatchPenalty
				}
			}
			if possible == 0 {
				continue
			}
			sim := score / possible
			if sim <= minSimilarity {
				continue
			}

			m := tagmap.Map{}
			m.Set(tagmap.Title, tagmap.String(title))
			if artist != "" {
				m.Set(tagmap.Artist, tagmap.String(artist))
			}
			if artistID != "" {
				m.Set(tagmap.ArtistID, tagmap.String(artistID))
			}
			m.Set(tagmap.Album, tagmap.String(release.Title))
			if pos.TrackNumber > 0 {
				m.Set(tagmap.TrackNumber, tagmap.Int(pos.TrackNumber))
			}
			if pos.DiscNumber > 0 {
				m.Set(tagmap.DiscNumber, tagmap.Int(pos.DiscNumber))
			}
			if release.TrackCount > 0 {
				m.Set(tagmap.TrackCount, tagmap.Int(release.TrackCount))
			}
			// release group's first-release year overrides this on enrichment
			if !release.Date.IsZero() {
				m.Set(tagmap.Year, tagmap.Int(release.Date.Year()))
			}
			if length > 0 {
				m.Set(tagmap.Length, tagmap.Int(length))
			}
			m.Set(tagmap.TrackID, tagmap.String(rec.ID))
			m.Set(tagmap.ReleaseID, tagmap.String(release.ID))
			if release.ReleaseGroupID != "" {
				m.Set(tagmap.ReleaseGroupID, tagmap.String(release.ReleaseGroupID))
			}
			m.Set(tagmap.Similarity, tagmap.Float(sim))
			m.Set(scoreKey, tagmap.Float(sim))

			f.sendTrack(req.track, m)
			produced++
		}
	}
	if len(rec.ReleaseIDs) > 0 {
		return produced
	}

	// standalone recording, score on title and length alone
	score, possible := f.scoreFields(req, artist, rec.Title, "", rec.Length, toleranceMs)
	if possible == 0 {
		return 0
	}
	sim := score / possible
	if sim <= minSimilarity {
		return 0
	}
	m := tagmap.Map{}
	m.Set(tagmap.Title, tagmap.String(rec.Title))
	if artist != "" {
		m.Set(tagmap.Artist, tagmap.String(artist))
	}
	if artistID != "" {
		m.Set(tagmap.ArtistID, tagmap.String(artistID))
	}
	if rec.Length > 0 {
		m.Set(tagmap.Length, tagmap.Int(rec.Length))
	}
	m.Set(tagmap.TrackID, tagmap.String(rec.ID))
	m.Set(tagmap.Similarity, tagmap.Float(sim))
	m.Set(scoreKey, tagmap.Float(sim))

	f.sendTrack(req.track, m)
	return 1
}

func (f *Finder) scoreFields(req request, artist, title, album string, lengthMs, toleranceMs int) (score, possible float64) {
	if a := req.meta.Get(tagmap.Artist).String(); a != "" && artist != "" {
		score += weightArtist * similarity.Score(similarity.Fold(a), similarity.Fold(artist))
		possible += weightArtist
	}
	if al := req.meta.Get(tagmap.Album).String(); al != "" && album != "" {
		score += weightAlbum * similarity.Score(similarity.Fold(al), similarity.Fold(album))
		possible += weightAlbum
	}
	if t := req.meta.Get(tagmap.Title).String(); t != "" && title != "" {
		score += weightTitle * similarity.Score(similarity.Fold(t), similarity.Fold(title))
		possible += weightTitle
	}
	if lengthMs > 0 && req.track != nil && req.track.Length > 0 {
		diff := req.track.Length - lengthMs
		if diff < 0 {
			diff = -diff
		}
		if diff > toleranceMs {
			diff = toleranceMs
		}
		score += weightLength * (1 - float64(diff)/float64(toleranceMs))
		possible += weightLength
	}
	return score, possible
}

// sendTrack emits a scored candidate, first detouring through a release
// group lookup when the group's artist and year are not cached yet. Pending
// group lookups jump the queue so waiting tracks resolve quickly.
func (f *Finder) sendTrack(track *tags.Track, m tagmap.Map) {
	if rgID := m.Get(tagmap.ReleaseGroupID).String(); rgID != "" {
		rg, ok := f.rgCache[rgID]
		if !ok {
			if _, queued := f.waiting[rgID]; !queued {
				f.pending = append([]request{{kind: kindReleaseGroup, query: rgID}}, f.pending...)
			}
			f.waiting[rgID] = append(f.waiting[rgID], queuedTrack{track: track, tags: m})
			return
		}
		if s := ArtistsString(rg.Artists); s != "" {
			m.Set(tagmap.AlbumArtist, tagmap.String(s))
		}
		if rg.FirstReleaseYear > 0 {
			m.Set(tagmap.Year, tagmap.Int(rg.FirstReleaseYear))
		}
	}
	f.emit(tagmatch.TrackFound{Track: track, Tags: m})
}

func (f *Finder) emit(ev tagmatch.Event) {
	f.events <- ev
}

func (f *Finder) guessMetadata(t *tags.Track) tagmap.Map {
	var meta tagmap.Map
	if t.Artist == "" && t.Album == "" {
		if f.GuessTags != nil {
			meta = f.GuessTags(filepath.Base(t.Path))
		}
		if t.Title != "" {
			meta.Set(tagmap.Title, tagmap.String(t.Title))
		}
	} else {
		if t.Title != "" {
			meta.Set(tagmap.Title, tagmap.String(t.Title))
		}
		if t.Artist != "" {
			meta.Set(tagmap.Artist, tagmap.String(t.Artist))
		}
		if t.Album != "" {
			meta.Set(tagmap.Album, tagmap.String(t.Album))
		}
	}
	if t.TrackNumber > 0 {
		meta.Set(tagmap.TrackNumber, tagmap.Int(t.TrackNumber))
	}
	if t.DiscNumber > 0 {
		meta.Set(tagmap.DiscNumber, tagmap.Int(t.DiscNumber))
	}
	return meta
}

var stripPunct = strings.NewReplacer(
	".", "", ",", "", ":", "", ";", "",
	"!", "", "?", "", "(", "", ")", "",
	"[", "", "]", "", "{", "", "}", "", `"`, "",
)

var escapeLucene *strings.Replacer

func init() {
	specials := []string{"&&", "||", "+", "-", "!", "(", ")", "{", "}", "[", "]", "^", `"`, "~", "*", "?", ":", `\`, "/"}
	var pairs []string
	for _, s := range specials {
		pairs = append(pairs, s, `\`+s)
	}
	escapeLucene = strings.NewReplacer(pairs...)
}

// searchQuery builds a Lucene recording query from guessed metadata. Each
// field carries both the exact phrase, boosted, and its words with fuzzy
// matching.
func searchQuery(meta tagmap.Map) string {
	var parts []string
	add := func(field, value string, boost int) {
		if value == "" {
			return
		}
		parts = append(parts, luceneField(field, value, boost))
	}
	add("track", meta.Get(tagmap.Title).String(), 20)
	add("artist", meta.Get(tagmap.Artist).String(), 2)
	add("release", meta.Get(tagmap.Album).String(), 7)
	return strings.Join(parts, " AND ")
}

func luceneField(field, value string, boost int) string {
	value = escapeLucene.Replace(stripPunct.Replace(value))
	words := strings.Fields(value)
	for i, w := range words {
		words[i] = w + "~"
	}
	return fmt.Sprintf(`%s:("%s"^%d %s)`, field, value, boost, strings.Join(words, " "))
}
