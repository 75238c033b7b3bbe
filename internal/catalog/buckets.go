package catalog

import "fmt"

// Bucket maps a filter key to an inclusive numeric range. A nil Max means the
// range is open-ended.
type Bucket struct {
	Key   string
	Label string
	Min   int
	Max   *int
}

// Contains reports whether v falls inside the bucket.
func (b Bucket) Contains(v int) bool {
	if v < b.Min {
		return false
	}
	return b.Max == nil || v <= *b.Max
}

func bounded(key, label string, min, max int) Bucket {
	return Bucket{Key: key, Label: label, Min: min, Max: &max}
}

// Decades lists the decade buckets offered by the browse filter bar.
var Decades = func() []Bucket {
	out := make([]Bucket, 0, 11)
	for start := 1920; start <= 2020; start += 10 {
		key := fmt.Sprintf("%ds", start)
		out = append(out, bounded(key, key, start, start+9))
	}
	return out
}()

// Runtimes lists the runtime buckets in minutes. Unknown runtimes (zero) never
// fall in a bucket.
var Runtimes = []Bucket{
	bounded("under-90", "Under 90 min", 1, 89),
	bounded("90-120", "90-120 min", 90, 120),
	{Key: "over-120", Label: "Over 120 min", Min: 121},
}

// DecadeByKey returns the decade bucket for key, e.g. "1980s".
func DecadeByKey(key string) (Bucket, bool) {
	return lookup(Decades, key)
}

// RuntimeByKey returns the runtime bucket for key, e.g. "90-120".
func RuntimeByKey(key string) (Bucket, bool) {
	return lookup(Runtimes, key)
}

func lookup(buckets []Bucket, key string) (Bucket, bool) {
	for _, b := range buckets {
		if b.Key == key {
			return b, true
		}
	}
	return Bucket{}, false
}
