package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/Clark-Hu/ghost-guide/internal/epg"
	"github.com/Clark-Hu/ghost-guide/internal/logging"
)

var (
	app      = kingpin.New("pluto-mock", "Serves a canned Pluto TV channel feed for local development.")
	addr     = app.Flag("addr", "address to listen on").Default(":9098").String()
	feedFile = app.Flag("feed", "JSON feed file; a generated schedule is served when empty").Default("").String()
	slot     = app.Flag("slot", "length of each generated airing").Default("90m").Duration()
	failRate = app.Flag("fail-every", "answer every Nth request with 503 (0 disables)").Default("0").Int()
	logLevel = app.Flag("log-level", "log level").Default("info").Enum("debug", "info", "warn", "error")
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger, err := logging.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	var fixed []epg.FeedChannel
	if *feedFile != "" {
		f, err := os.Open(*feedFile)
		if err != nil {
			logger.Fatal("open feed", zap.Error(err))
		}
		fixed, err = epg.DecodeFeed(f)
		_ = f.Close()
		if err != nil {
			logger.Fatal("parse feed", zap.Error(err))
		}
		logger.Info("loaded feed", zap.Int("channels", len(fixed)))
	}

	var requests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/channels", func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if *failRate > 0 && n%int64(*failRate) == 0 {
			logger.Info("injected failure", zap.Int64("request", n))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}

		channels := fixed
		if channels == nil {
			from, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
			if err != nil {
				from = time.Now().UTC()
			}
			to, err := time.Parse(time.RFC3339, r.URL.Query().Get("stop"))
			if err != nil || !to.After(from) {
				to = from.Add(epg.MaxUpcoming)
			}
			channels = generateFeed(from, to, *slot)
		}

		logger.Debug("serving feed", zap.String("query", r.URL.RawQuery), zap.Int("channels", len(channels)))
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(channels); err != nil {
			logger.Warn("encode feed", zap.Error(err))
		}
	})

	logger.Info("mock pluto listening", zap.String("addr", *addr))
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

type sampleChannel struct {
	id, slug, name, category string
	number                   int
	shows                    []sampleShow
}

type sampleShow struct {
	title, description, genre string
}

var sampleChannels = []sampleChannel{
	{
		id: "5f1a-horror", slug: "pluto-tv-horror", name: "Pluto TV Horror", number: 420, category: "Movies",
		shows: []sampleShow{
			{"Night of the Living Dead", "Zombies besiege a farmhouse.", "Horror"},
			{"Carnival of Souls", "A haunted organist drifts between worlds.", "Horror"},
			{"The Last Man on Earth", "The lone survivor of a vampire plague.", "Horror"},
		},
	},
	{
		id: "5f1a-scifi", slug: "pluto-tv-sci-fi", name: "Pluto TV Sci-Fi", number: 430, category: "Movies",
		shows: []sampleShow{
			{"Plan 9 from Outer Space", "Aliens resurrect the dead.", "Sci-Fi & Fantasy"},
			{"The Day the Earth Stood Still", "A visitor from space brings a warning.", "Science Fiction"},
		},
	},
	{
		id: "5f1a-mst3k", slug: "mst3k", name: "MST3K", number: 431, category: "Comedy",
		shows: []sampleShow{
			{"Mystery Science Theater 3000", "Robots riff on a monster movie.", "Comedy"},
		},
	},
	{
		id: "5f1a-cooking", slug: "cooking", name: "Cooking", number: 900, category: "Lifestyle",
		shows: []sampleShow{
			{"Kitchen Basics", "Knife skills and stocks.", "Cooking"},
		},
	},
}

// slotIndex picks a show for the slot starting at t. Slots before the epoch
// have negative numbers and still wrap into [0, n).
func slotIndex(t time.Time, slot time.Duration, n int) int {
	i := t.Unix() / int64(slot/time.Second) % int64(n)
	if i < 0 {
		i += int64(n)
	}
	return int(i)
}

// generateFeed lays back-to-back airings over [from, to) aligned to slot
// boundaries so consecutive requests agree on start times.
func generateFeed(from, to time.Time, slot time.Duration) []epg.FeedChannel {
	if slot < time.Minute {
		slot = 90 * time.Minute
	}
	start := from.Truncate(slot)

	out := make([]epg.FeedChannel, 0, len(sampleChannels))
	for _, ch := range sampleChannels {
		fc := epg.FeedChannel{
			ID:       ch.id,
			Slug:     ch.slug,
			Name:     ch.name,
			Number:   ch.number,
			Category: ch.category,
			Logo:     epg.FeedImage{Path: "https://images.example/" + ch.slug + ".png"},
		}
		for t := start; t.Before(to); t = t.Add(slot) {
			show := ch.shows[slotIndex(t, slot, len(ch.shows))]
			fc.Timelines = append(fc.Timelines, epg.FeedTimeline{
				ID:    fmt.Sprintf("%s-%d", ch.id, t.Unix()),
				Start: t.UTC().Format(time.RFC3339),
				Stop:  t.Add(slot).UTC().Format(time.RFC3339),
				Title: show.title,
				Episode: epg.FeedEpisode{
					Name:        show.title,
					Description: show.description,
					Genre:       show.genre,
				},
			})
		}
		out = append(out, fc)
	}
	return out
}
