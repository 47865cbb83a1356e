package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.senan.xyz/table/table"

	"tagmatch"
	"tagmatch/acoustid"
	"tagmatch/cmd/internal/logging"
	"tagmatch/cmd/internal/matchflag"
	"tagmatch/matches"
	"tagmatch/musicbrainz"
	"tagmatch/notifications"
	"tagmatch/tagmap"
	"tagmatch/tags"
)

func main() {
	exit := logging.Logging()
	defer exit()

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage:\n")
		fmt.Fprintf(os.Stderr, "  $ %s [options] <dir>\n", os.Args[0])
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "options:\n")
		flag.PrintDefaults()
	}

	mbClient := matchflag.MusicBrainzClient()
	fingerprinter := matchflag.Fingerprinter()
	notifs := matchflag.Notifications()
	matchflag.Parse()
	matchflag.DefaultClient()

	dir := flag.Arg(0)
	if dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	batch, err := tags.ReadDir(dir)
	if err != nil {
		slog.ErrorContext(ctx, "read dir", "dir", dir, "err", err)
		notifs.Sendf(ctx, notifications.Error, "error reading %s: %v", dir, err)
		return
	}
	mb := musicbrainz.NewFinder(mbClient)
	providers := []tagmatch.Provider{mb}
	if fingerprinter.Command != "" {
		providers = append(providers, acoustid.NewProvider(fingerprinter, mb))
	}
	finder := tagmatch.NewFinder(providers...)

	model := matches.NewModel()
	finder.Run(ctx, batch)

	var steps int
	for ev := range finder.Events() {
		switch ev := ev.(type) {
		case tagmatch.TrackFound:
			model.AddCandidate(ev.Track, ev.Tags)
		case tagmatch.ProgressStep:
			steps++
			slog.DebugContext(ctx, "progress", "steps", steps)
		}
	}

	chosen := model.ChooseBestMatches()
	if chosen == 0 {
		notifs.Sendf(ctx, notifications.NoMatches, "no matches found in %s", dir)
		slog.InfoContext(ctx, "no matches", "dir", dir, "tracks", len(batch))
		return
	}

	t := table.NewStringWriter()
	chosenTags := model.ChosenTags()
	for _, branch := range model.Tracks() {
		track := branch.Track()
		m, ok := chosenTags[track]
		if !ok {
			fmt.Fprintf(t, "%s\t(no match)\t\t\n", track.Path)
			continue
		}
		fmt.Fprintf(t, "%s\t%s\t%s\t%s\n",
			track.Path,
			m.Get(tagmap.Artist).Display(),
			m.Get(tagmap.Title).Display(),
			m.Get(tagmap.Album).Display(),
		)
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		fmt.Println(row)
	}

	notifs.Sendf(ctx, notifications.Complete, "matched %d/%d tracks in %s", chosen, len(batch), dir)
	slog.InfoContext(ctx, "done", "matched", chosen, "tracks", len(batch), "steps", steps)
}
