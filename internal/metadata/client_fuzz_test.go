package metadata

import "testing"

func FuzzConvertToResult(f *testing.F) {
	f.Add("8.2", "109 min", "Horror, Sci-Fi", "N/A")
	f.Add("", "", "", "")
	f.Add("11", "-5 min", ",,", "https://img.example/p.jpg")

	f.Fuzz(func(t *testing.T, rating, runtime, genres, poster string) {
		res := convertToResult(apiResponse{ImdbRating: rating, Runtime: runtime, Genre: genres, Poster: poster})
		if res == nil {
			t.Fatalf("convertToResult returned nil")
		}
		if res.Rating != nil && (*res.Rating <= 0 || *res.Rating > 10) {
			t.Fatalf("rating out of range: %v", *res.Rating)
		}
		if res.Runtime != nil && *res.Runtime <= 0 {
			t.Fatalf("runtime must be positive: %d", *res.Runtime)
		}
		for _, g := range res.Genres {
			if g == "" {
				t.Fatalf("empty genre in %q", res.Genres)
			}
		}
		if res.PosterURL != nil && *res.PosterURL == "" {
			t.Fatalf("empty poster should be nil")
		}
	})
}
