// Package matches accumulates scored metadata candidates for a batch of
// local tracks and tracks which candidate is chosen per track.
package matches

import (
	"slices"
	"sync"

	"go.senan.xyz/natcmp"

	"tagmatch/tagmap"
	"tagmatch/tags"
)

// Node is one item in the match tree. The root has no track and no data, its
// children are track branches (one per distinct track), and branch children
// are scored candidates with non empty data and no children of their own.
//
// Every node guards its data and chosen flag with its own lock, and its child
// list with a second one. Appends for different tracks only contend on the
// root, appends for the same track serialise on that branch.
type Node struct {
	parent *Node
	track  *tags.Track

	dataMu sync.RWMutex
	data   tagmap.Map
	chosen bool

	childMu  sync.RWMutex
	children []*Node
}

func (n *Node) Track() *tags.Track {
	return n.track
}

func (n *Node) Data() tagmap.Map {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	return n.data.Clone()
}

func (n *Node) Chosen() bool {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	return n.chosen
}

func (n *Node) Children() []*Node {
	n.childMu.RLock()
	defer n.childMu.RUnlock()
	return slices.Clone(n.children)
}

// Score is the candidate's combined similarity. Fingerprint only results go
// to the bottom as they are weak matches, only their length was compared.
func (n *Node) Score() float64 {
	n.dataMu.RLock()
	defer n.dataMu.RUnlock()
	return score(n.data)
}

func score(m tagmap.Map) float64 {
	s := m.Get(tagmap.Similarity).Float()
	if !m.Has(tagmap.ScoreMusicBrainz) {
		s -= 1.0
	}
	return s
}

func (n *Node) setChosen(chosen bool) {
	n.dataMu.Lock()
	defer n.dataMu.Unlock()
	n.chosen = chosen
}

// chosenChild returns the branch's chosen candidate, if any.
func (n *Node) chosenChild() *Node {
	n.childMu.RLock()
	defer n.childMu.RUnlock()
	for _, c := range n.children {
		if c.Chosen() {
			return c
		}
	}
	return nil
}

// equivalent reports whether two candidates present the same display fields.
// Length is deliberately not part of the comparison, a user can't tell two
// such candidates apart.
func equivalent(a, b tagmap.Map) bool {
	for _, k := range []tagmap.Key{tagmap.Title, tagmap.Artist, tagmap.Album, tagmap.AlbumArtist} {
		if a.Get(k).String() != b.Get(k).String() {
			return false
		}
	}
	for _, k := range []tagmap.Key{tagmap.Year, tagmap.TrackCount, tagmap.DiscNumber, tagmap.TrackNumber} {
		if a.Get(k).Int() != b.Get(k).Int() {
			return false
		}
	}
	return true
}

// addCandidate inserts or merges a candidate under a track branch.
func (n *Node) addCandidate(data tagmap.Map) {
	n.childMu.Lock()
	defer n.childMu.Unlock()

	for _, c := range n.children {
		if equivalent(c.Data(), data) {
			c.merge(data)
			n.sortLocked()
			return
		}
	}

	data.Set(tagmap.Similarity, tagmap.Float(
		data.Get(tagmap.ScoreMusicBrainz).Float()+data.Get(tagmap.ScoreAcoustID).Float()))
	for _, k := range []tagmap.Key{tagmap.TrackID, tagmap.ArtistID, tagmap.ReleaseID} {
		if data.Has(k) {
			data.Set(k, tagmap.List(data.Get(k).String()))
		}
	}

	n.children = append(n.children, &Node{parent: n, track: n.track, data: data})
	n.sortLocked()
}

// merge folds an equivalent incoming candidate into this one. The id fields
// accumulate, the higher scoring side keeps its provider scores and its ids
// lead the lists.
func (c *Node) merge(in tagmap.Map) {
	c.dataMu.Lock()
	defer c.dataMu.Unlock()

	// What the merged result will score: the incoming side inherits any
	// provider score it is missing before comparison.
	if !in.Has(tagmap.ScoreMusicBrainz) && c.data.Has(tagmap.ScoreMusicBrainz) {
		in.Set(tagmap.ScoreMusicBrainz, c.data.Get(tagmap.ScoreMusicBrainz))
	}
	if !in.Has(tagmap.ScoreAcoustID) && c.data.Has(tagmap.ScoreAcoustID) {
		in.Set(tagmap.ScoreAcoustID, c.data.Get(tagmap.ScoreAcoustID))
	}
	in.Set(tagmap.Similarity, tagmap.Float(
		in.Get(tagmap.ScoreMusicBrainz).Float()+in.Get(tagmap.ScoreAcoustID).Float()))

	ids := map[tagmap.Key][]string{}
	for _, k := range []tagmap.Key{tagmap.TrackID, tagmap.ArtistID, tagmap.ReleaseID} {
		ids[k] = c.data.Get(k).List()
	}

	if score(in) > score(c.data) {
		for _, k := range []tagmap.Key{tagmap.ScoreMusicBrainz, tagmap.ScoreAcoustID} {
			if in.Has(k) {
				c.data.Set(k, in.Get(k))
			}
		}
		c.data.Set(tagmap.Similarity, in.Get(tagmap.Similarity))
		for _, k := range []tagmap.Key{tagmap.TrackID, tagmap.ArtistID, tagmap.ReleaseID} {
			if in.Has(k) {
				ids[k] = append([]string{in.Get(k).String()}, ids[k]...)
			}
		}
	} else {
		for _, k := range []tagmap.Key{tagmap.TrackID, tagmap.ArtistID, tagmap.ReleaseID} {
			if in.Has(k) {
				ids[k] = append(ids[k], in.Get(k).String())
			}
		}
	}

	for _, k := range []tagmap.Key{tagmap.TrackID, tagmap.ArtistID, tagmap.ReleaseID} {
		c.data.Set(k, tagmap.List(ids[k]...))
	}
}

// sortLocked ranks candidates: matched by both providers first, then by
// combined similarity, text verified matches ahead of fingerprint only ones.
// Callers hold the branch's child lock.
func (n *Node) sortLocked() {
	both := func(c *Node) int {
		c.dataMu.RLock()
		defer c.dataMu.RUnlock()
		if c.data.Has(tagmap.ScoreMusicBrainz) && c.data.Has(tagmap.ScoreAcoustID) {
			return 1
		}
		return 0
	}
	text := func(c *Node) int {
		c.dataMu.RLock()
		defer c.dataMu.RUnlock()
		if c.data.Has(tagmap.ScoreMusicBrainz) {
			return 1
		}
		return 0
	}
	slices.SortStableFunc(n.children, func(a, b *Node) int {
		if d := both(b) - both(a); d != 0 {
			return d
		}
		as, bs := a.Score(), b.Score()
		switch {
		case bs > as:
			return 1
		case bs < as:
			return -1
		}
		return text(b) - text(a)
	})
}

// Model owns the match tree for one matching session.
type Model struct {
	root *Node
}

func NewModel() *Model {
	return &Model{root: &Node{}}
}

// AddCandidate records one scored candidate for track. An empty tags map
// still creates the track's branch so the track shows up as searched but not
// found. Stale or nil tracks are no-ops.
func (m *Model) AddCandidate(track *tags.Track, data tagmap.Map) {
	if track == nil {
		return
	}
	branch := m.ensureBranch(track)
	if data.Empty() {
		return
	}
	branch.addCandidate(data.Clone())
}

// ensureBranch finds or creates the branch for track. A write lock even for
// the lookup: with a read lock two providers referencing the same track could
// both miss and queue up to create duplicate branches.
func (m *Model) ensureBranch(track *tags.Track) *Node {
	m.root.childMu.Lock()
	defer m.root.childMu.Unlock()
	for _, b := range m.root.children {
		if b.track == track {
			return b
		}
	}
	b := &Node{parent: m.root, track: track}
	m.root.children = append(m.root.children, b)
	return b
}

func (m *Model) branch(track *tags.Track) *Node {
	m.root.childMu.RLock()
	defer m.root.childMu.RUnlock()
	for _, b := range m.root.children {
		if b.track == track {
			return b
		}
	}
	return nil
}

// Tracks returns the track branches in natural path order.
func (m *Model) Tracks() []*Node {
	branches := m.root.Children()
	slices.SortFunc(branches, func(a, b *Node) int {
		return natcmp.Compare(a.track.Path, b.track.Path)
	})
	return branches
}

// Candidates returns the candidates for a track, best ranked first.
func (m *Model) Candidates(track *tags.Track) []*Node {
	b := m.branch(track)
	if b == nil {
		return nil
	}
	return b.Children()
}

// Choose marks the i'th candidate of track chosen, clearing any sibling
// first. Unknown tracks or out of range indices are no-ops.
func (m *Model) Choose(track *tags.Track, i int) bool {
	b := m.branch(track)
	if b == nil {
		return false
	}
	children := b.Children()
	if i < 0 || i >= len(children) {
		return false
	}
	for _, c := range children {
		c.setChosen(false)
	}
	children[i].setChosen(true)
	return true
}

// ChooseBestMatch marks track's highest scoring candidate chosen. It reports
// false when one is already chosen, the track is unknown, or no candidate
// scores above zero.
func (m *Model) ChooseBestMatch(track *tags.Track) bool {
	b := m.branch(track)
	if b == nil {
		return false
	}
	return chooseBest(b, nil)
}

// ChooseBestMatches runs ChooseBestMatch over every track and returns how
// many were newly chosen.
func (m *Model) ChooseBestMatches() int {
	var n int
	for _, b := range m.root.Children() {
		if chooseBest(b, nil) {
			n++
		}
	}
	return n
}

// ChooseBestMatchesFromRelease chooses, per still unchosen track, the highest
// scoring candidate referencing any of the given release ids. Returns how
// many tracks were chosen.
func (m *Model) ChooseBestMatchesFromRelease(releaseIDs []string) int {
	ids := map[string]struct{}{}
	for _, id := range releaseIDs {
		ids[id] = struct{}{}
	}
	filter := func(c *Node) bool {
		for _, id := range c.Data().Get(tagmap.ReleaseID).List() {
			if _, ok := ids[id]; ok {
				return true
			}
		}
		return false
	}

	var n int
	for _, b := range m.root.Children() {
		if chooseBest(b, filter) {
			n++
		}
	}
	return n
}

func chooseBest(b *Node, filter func(*Node) bool) bool {
	if b.chosenChild() != nil {
		return false
	}

	b.childMu.RLock()
	defer b.childMu.RUnlock()

	var best *Node
	var maxScore float64
	for _, c := range b.children {
		if filter != nil && !filter(c) {
			continue
		}
		if s := c.Score(); s > maxScore {
			best, maxScore = c, s
		}
	}
	if best == nil {
		return false
	}
	best.setChosen(true)
	return true
}

// ClearChoices unmarks every chosen candidate in the tree.
func (m *Model) ClearChoices() {
	for _, b := range m.root.Children() {
		for _, c := range b.Children() {
			c.setChosen(false)
		}
	}
}

// internal bookkeeping stripped from the final exported tags
var bookkeepingKeys = []tagmap.Key{
	tagmap.ArtistID,
	tagmap.ScoreMusicBrainz,
	tagmap.ScoreAcoustID,
	tagmap.ReleaseID,
	tagmap.Similarity,
	tagmap.TrackCount,
	tagmap.TrackID,
}

// ChosenTags exports the chosen candidate per track, stripped of internal
// bookkeeping fields.
func (m *Model) ChosenTags() map[*tags.Track]tagmap.Map {
	out := map[*tags.Track]tagmap.Map{}
	for _, b := range m.root.Children() {
		c := b.chosenChild()
		if c == nil {
			continue
		}
		data := c.Data()
		for _, k := range bookkeepingKeys {
			data.Delete(k)
		}
		out[b.track] = data
	}
	return out
}
