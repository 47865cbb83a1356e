package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/r3labs/sse/v2"

	"tagmatch"
	"tagmatch/acoustid"
	"tagmatch/cmd/internal/logging"
	"tagmatch/cmd/internal/matchflag"
	"tagmatch/matches"
	"tagmatch/musicbrainz"
	"tagmatch/tagmap"
	"tagmatch/tags"
)

type sessionStatus string

const (
	statusRunning  sessionStatus = "running"
	statusComplete sessionStatus = "complete"
	statusStopped  sessionStatus = "stopped"
)

type session struct {
	ID     uint64
	Dir    string
	Status sessionStatus
	Steps  int

	finder *tagmatch.Finder
	model  *matches.Model
	mu     sync.Mutex
}

type sessionTrack struct {
	Path       string     `json:"path"`
	Chosen     bool       `json:"chosen"`
	Candidates int        `json:"candidates"`
	Tags       tagmap.Map `json:"tags"`
}

func main() {
	exit := logging.Logging()
	defer exit()

	confListenAddr := flag.String("listen-addr", "", "listen addr")
	confAPIKey := flag.String("api-key", "", "api key")
	mbClient := matchflag.MusicBrainzClient()
	fingerprinter := matchflag.Fingerprinter()
	matchflag.Parse()
	matchflag.DefaultClient()

	if *confAPIKey == "" {
		log.Fatal("need api key")
	}

	sseServ := sse.New()
	sseServ.AutoStream = true
	sseServ.AutoReplay = false
	defer sseServ.Close()

	stream := sseServ.CreateStream("sessions")
	emit := func(e string) {
		sseServ.Publish(stream.ID, &sse.Event{Event: []byte(e), Data: []byte{0}})
	}
	eventAllSessions := "sessions"
	eventUpdateSession := func(id uint64) string { return fmt.Sprintf("session-%d", id) }

	var (
		sessionsMu sync.Mutex
		sessions   = map[uint64]*session{}
		nextID     uint64
	)
	getSession := func(id uint64) *session {
		sessionsMu.Lock()
		defer sessionsMu.Unlock()
		return sessions[id]
	}

	startSession := func(ctx context.Context, dir string) (*session, error) {
		batch, err := tags.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}

		mb := musicbrainz.NewFinder(mbClient)
		providers := []tagmatch.Provider{mb}
		if fingerprinter.Command != "" {
			providers = append(providers, acoustid.NewProvider(fingerprinter, mb))
		}

		s := &session{
			Dir:    dir,
			Status: statusRunning,
			finder: tagmatch.NewFinder(providers...),
			model:  matches.NewModel(),
		}
		for _, t := range batch {
			// list every track up front so clients see them before results
			s.model.AddCandidate(t, tagmap.Map{})
		}

		sessionsMu.Lock()
		nextID++
		s.ID = nextID
		sessions[s.ID] = s
		sessionsMu.Unlock()

		// the session outlives the request that started it
		s.finder.Run(context.WithoutCancel(ctx), batch)
		go func() {
			for ev := range s.finder.Events() {
				switch ev := ev.(type) {
				case tagmatch.TrackFound:
					s.model.AddCandidate(ev.Track, ev.Tags)
				case tagmatch.ProgressStep:
					s.mu.Lock()
					s.Steps++
					s.mu.Unlock()
				}
				emit(eventUpdateSession(s.ID))
			}
			s.mu.Lock()
			if s.Status == statusRunning {
				s.Status = statusComplete
			}
			s.mu.Unlock()
			s.model.ChooseBestMatches()
			emit(eventUpdateSession(s.ID))
			emit(eventAllSessions)
		}()
		return s, nil
	}

	respondJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("encode response", "err", err)
		}
	}

	sessionTracks := func(s *session) []sessionTrack {
		chosen := s.model.ChosenTags()
		var out []sessionTrack
		for _, branch := range s.model.Tracks() {
			track := branch.Track()
			st := sessionTrack{
				Path:       track.Path,
				Candidates: len(s.model.Candidates(track)),
			}
			if m, ok := chosen[track]; ok {
				st.Chosen = true
				st.Tags = m
			}
			out = append(out, st)
		}
		return out
	}

	mux := http.NewServeMux()
	mux.Handle("GET /events", sseServ)

	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		sessionsMu.Lock()
		ids := make([]uint64, 0, len(sessions))
		for id := range sessions {
			ids = append(ids, id)
		}
		sessionsMu.Unlock()
		respondJSON(w, ids)
	})

	mux.HandleFunc("POST /sessions", func(w http.ResponseWriter, r *http.Request) {
		dir := r.FormValue("path")
		if dir == "" {
			http.Error(w, "no path provided", http.StatusBadRequest)
			return
		}
		s, err := startSession(r.Context(), dir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		emit(eventAllSessions)
		respondJSON(w, s.ID)
	})

	mux.HandleFunc("GET /sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseUint(r.PathValue("id"), 10, 64)
		s := getSession(id)
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		s.mu.Lock()
		resp := struct {
			ID     uint64         `json:"id"`
			Dir    string         `json:"dir"`
			Status sessionStatus  `json:"status"`
			Steps  int            `json:"steps"`
			Tracks []sessionTrack `json:"tracks"`
		}{s.ID, s.Dir, s.Status, s.Steps, nil}
		s.mu.Unlock()
		resp.Tracks = sessionTracks(s)
		respondJSON(w, resp)
	})

	mux.HandleFunc("POST /sessions/{id}/choose", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseUint(r.PathValue("id"), 10, 64)
		s := getSession(id)
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		path := r.FormValue("path")
		candidate, err := strconv.Atoi(r.FormValue("candidate"))
		if err != nil {
			http.Error(w, "bad candidate index", http.StatusBadRequest)
			return
		}
		var chosen bool
		for _, branch := range s.model.Tracks() {
			if branch.Track().Path == path {
				chosen = s.model.Choose(branch.Track(), candidate)
				break
			}
		}
		if !chosen {
			http.Error(w, "no such track or candidate", http.StatusBadRequest)
			return
		}
		emit(eventUpdateSession(s.ID))
	})

	mux.HandleFunc("POST /sessions/{id}/stop", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseUint(r.PathValue("id"), 10, 64)
		s := getSession(id)
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		s.mu.Lock()
		s.Status = statusStopped
		s.mu.Unlock()
		s.finder.Stop()
		emit(eventUpdateSession(s.ID))
	})

	log.Printf("starting on %s", *confListenAddr)
	log.Panicln(http.ListenAndServe(*confListenAddr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("WWW-Authenticate", "Basic")
		if _, key, _ := r.BasicAuth(); subtle.ConstantTimeCompare([]byte(key), []byte(*confAPIKey)) != 1 {
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})))
}
