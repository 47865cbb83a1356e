// Package matchflag holds the flag definitions shared by the tagmatch
// commands.
package matchflag

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.senan.xyz/flagconf"

	"tagmatch"
	"tagmatch/acoustid"
	"tagmatch/clientutil"
	"tagmatch/musicbrainz"
	"tagmatch/notifications"
)

// DefaultClient wraps the process-wide HTTP transport with logging and a
// user agent, for any request that doesn't go through a provider client.
func DefaultClient() {
	chain := clientutil.Chain(
		clientutil.WithLogging(slog.Default()),
		clientutil.WithUserAgent(fmt.Sprintf("%s/%s", tagmatch.Name, tagmatch.Version)),
	)
	http.DefaultTransport = chain(http.DefaultTransport)
}

func Parse() {
	userConfig, err := os.UserConfigDir()
	if err != nil {
		panic(err)
	}

	defaultConfigPath := filepath.Join(userConfig, tagmatch.Name, "config")
	configPath := flag.String("config-path", defaultConfigPath, "Path to config file")

	printVersion := flag.Bool("version", false, "Print the version and exit")
	printConfig := flag.Bool("config", false, "Print the parsed config and exit")

	flag.Parse()
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string { return tagmatch.Name }
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), tagmatch.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-16s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}
}

func MusicBrainzClient() *musicbrainz.Client {
	client := musicbrainz.DefaultClient()
	client.UserAgent = fmt.Sprintf("%s/%s", tagmatch.Name, tagmatch.Version)
	flag.StringVar(&client.BaseURL, "mb-base-url", client.BaseURL, "MusicBrainz base URL")
	flag.DurationVar(&client.RateLimit, "mb-rate-limit", client.RateLimit, "MusicBrainz rate limit duration")
	return client
}

// Fingerprinter defines the acoustic decoder command flag. An empty command
// means fingerprinting is disabled.
func Fingerprinter() *acoustid.CommandFingerprinter {
	var fp acoustid.CommandFingerprinter
	flag.StringVar(&fp.Command, "fingerprint-command", "", "Command which prints an acoustic id for the file path appended to it")
	return &fp
}

func Notifications() *notifications.Notifications {
	var n notifications.Notifications
	flag.Var(&notificationsParser{&n}, "notification-uri", "Add a shoutrrr notification URI for an event (stackable)")
	return &n
}

var _ flag.Value = (*notificationsParser)(nil)

type notificationsParser struct{ *notifications.Notifications }

func (n *notificationsParser) Set(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("invalid notification uri format. expected eg \"ev1,ev2 uri\"")
	}
	var lineErrs []error
	for _, ev := range strings.Split(eventsRaw, ",") {
		ev, uri := strings.TrimSpace(ev), strings.TrimSpace(uri)
		err := n.AddURI(notifications.Event(ev), uri)
		lineErrs = append(lineErrs, err)
	}
	return errors.Join(lineErrs...)
}

func (n notificationsParser) String() string {
	if n.Notifications == nil {
		return ""
	}
	var parts []string
	n.Notifications.IterMappings(func(e notifications.Event, uri string) {
		u, _ := url.Parse(uri)
		parts = append(parts, fmt.Sprintf("%s: %s://%s/...", e, u.Scheme, u.Host))
	})
	return strings.Join(parts, ", ")
}
