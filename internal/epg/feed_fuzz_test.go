package epg

import (
	"strings"
	"testing"
)

func FuzzDecodeAndNormalize(f *testing.F) {
	f.Add(`[{"_id":"c","number":1,"timelines":[{"_id":"t","start":"2025-10-31T19:00:00Z","stop":"2025-10-31T21:00:00Z","title":"Zombie Night"}]}]`)
	f.Add(`[]`)
	f.Add(`[{"timelines":[{"start":"bad","stop":"2025-10-31T21:00:00Z","title":"Alien"}]}]`)
	f.Add(`{`)

	classifier := NewClassifier(DefaultKeywords())
	f.Fuzz(func(t *testing.T, payload string) {
		channels, err := DecodeFeed(strings.NewReader(payload))
		if err != nil {
			return
		}
		programs := Normalize(channels, classifier)
		for i, p := range programs {
			if !p.Stop.After(p.Start) {
				t.Fatalf("program %q has stop <= start", p.ID)
			}
			if p.Category == "" {
				t.Fatalf("program %q unclassified", p.ID)
			}
			if i > 0 && programs[i-1].Start.After(p.Start) {
				t.Fatalf("programs out of order at %d", i)
			}
		}
	})
}
