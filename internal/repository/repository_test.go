package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/ghost-guide/internal/catalog"
	"github.com/Clark-Hu/ghost-guide/internal/domain"
	"github.com/Clark-Hu/ghost-guide/internal/store/storetest"
)

type testEnv struct {
	ctx        context.Context
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	pool := storetest.NewPool(t, "ghostguide_test")
	return &testEnv{ctx: context.Background(), repository: NewWithPool(pool)}
}

func intPtr(v int) *int { return &v }

func ratingPtr(v float32) *float32 { return &v }

func mustUpsertCard(t testing.TB, env *testEnv, p CardUpsertParams) domain.Card {
	t.Helper()
	card, err := env.repository.Cards.Upsert(env.ctx, p)
	require.NoError(t, err, "upsert card %s", p.ID)
	return card
}

var (
	seedGenres   = [][]string{{"Horror"}, {"Sci-Fi"}, {"Horror", "Thriller"}, {"Sci-Fi", "Horror"}, {"Documentary"}}
	seedServices = [][]domain.Source{
		{{Service: "Shudder", Type: "subscription"}},
		{{Service: "Netflix", Type: "subscription"}, {Service: "Apple TV", Type: "rent"}},
		{{Service: "Tubi TV", Type: "free"}},
		{},
		{{Service: "Prime Video", Type: "subscription"}, {Service: "Shudder", Type: "addon"}},
	}
)

// seedCatalog writes n cards with attributes spread over every filter and
// sort dimension, including unknown ratings, runtimes and years.
func seedCatalog(t testing.TB, env *testEnv, n int) []domain.Card {
	t.Helper()
	base := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	cards := make([]domain.Card, 0, n)
	for i := 0; i < n; i++ {
		p := CardUpsertParams{
			ID:       fmt.Sprintf("card-%03d", i),
			Title:    fmt.Sprintf("Title %c%03d", 'a'+rune(i%7), i),
			Genres:   seedGenres[i%len(seedGenres)],
			Featured: i%9 == 0,
			Sources:  seedServices[i%len(seedServices)],
		}
		if i%11 != 0 {
			p.Year = intPtr(1925 + (i*7)%100)
		}
		switch i % 6 {
		case 0:
			p.Runtime = intPtr(0)
		case 1:
		default:
			p.Runtime = intPtr(70 + (i*13)%90)
		}
		switch i % 5 {
		case 0:
			p.Rating = ratingPtr(0)
		case 1:
		default:
			p.Rating = ratingPtr(float32(i%10) + 0.5)
		}
		created := base.Add(time.Duration(i%17) * time.Hour)
		p.CreatedAt = &created
		cards = append(cards, mustUpsertCard(t, env, p))
	}
	return cards
}

func expectedOrder(all []domain.Card, f catalog.Filters) []string {
	matched := make([]domain.Card, 0)
	for _, c := range all {
		if catalog.Matches(c, f) {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return catalog.Less(matched[i], matched[j], f.Sort) })
	ids := make([]string, len(matched))
	for i, c := range matched {
		ids[i] = c.ID
	}
	return ids
}

// collectAll walks pages until NextPage is nil.
func collectAll(t *testing.T, env *testEnv, f catalog.Filters) ([]string, int64) {
	t.Helper()
	var (
		ids   []string
		total int64
	)
	for page := 0; ; page++ {
		f.Page = page
		res, err := env.repository.Cards.List(env.ctx, f)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Cards), catalog.PageSize)
		total = res.TotalCount
		for _, c := range res.Cards {
			ids = append(ids, c.ID)
		}
		if res.NextPage == nil {
			return ids, total
		}
		require.Equal(t, page+1, *res.NextPage)
		require.Len(t, res.Cards, catalog.PageSize)
	}
}

func TestCardsRepository_ListMatchesInMemoryFilters(t *testing.T) {
	env := newTestEnv(t)
	all := seedCatalog(t, env, 70)

	decade, _ := catalog.DecadeByKey("1980s")
	under90, _ := catalog.RuntimeByKey("under-90")
	over120, _ := catalog.RuntimeByKey("over-120")

	cases := []struct {
		name    string
		filters catalog.Filters
	}{
		{name: "all", filters: catalog.Filters{}},
		{name: "genre case-insensitive", filters: catalog.Filters{Genre: "horror"}},
		{name: "genre mixed case", filters: catalog.Filters{Genre: "SCI-FI", Sort: catalog.SortRating}},
		{name: "decade", filters: catalog.Filters{Decade: &decade, Sort: catalog.SortYearAsc}},
		{name: "runtime open-ended", filters: catalog.Filters{Runtime: &over120, Sort: catalog.SortYearDesc}},
		{name: "runtime short", filters: catalog.Filters{Runtime: &under90}},
		{name: "service substring", filters: catalog.Filters{Service: "tv"}},
		{name: "service exact", filters: catalog.Filters{Service: "SHUDDER", Sort: catalog.SortRecent}},
		{name: "combined", filters: catalog.Filters{Genre: "Horror", Service: "shudder", Sort: catalog.SortRating}},
		{name: "no matches", filters: catalog.Filters{Genre: "western"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			want := expectedOrder(all, tc.filters)
			got, total := collectAll(t, env, tc.filters)
			assert.Equal(t, int64(len(want)), total)
			if len(want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestCardsRepository_TitleSortCoversEveryMatch(t *testing.T) {
	env := newTestEnv(t)
	all := seedCatalog(t, env, 30)

	got, total := collectAll(t, env, catalog.Filters{Sort: catalog.SortTitle})
	assert.Equal(t, int64(len(all)), total)
	assert.Equal(t, expectedOrder(all, catalog.Filters{Sort: catalog.SortTitle}), got)
}

func TestCardsRepository_TitleSortExactOrder(t *testing.T) {
	env := newTestEnv(t)
	for id, title := range map[string]string{
		"t1": "the thing",
		"t2": "The Thing",
		"t3": "Blob",
		"t4": "alien",
		"t5": "Zombi 2",
		"t6": "Zombi-2",
		"t7": "carrie",
		"t8": "Alien",
	} {
		mustUpsertCard(t, env, CardUpsertParams{ID: id, Title: title})
	}

	got, total := collectAll(t, env, catalog.Filters{Sort: catalog.SortTitle})
	assert.Equal(t, int64(8), total)
	assert.Equal(t, []string{"t4", "t8", "t3", "t7", "t1", "t2", "t5", "t6"}, got)
}

func TestCardsRepository_PageBeyondEnd(t *testing.T) {
	env := newTestEnv(t)
	seedCatalog(t, env, 5)

	res, err := env.repository.Cards.List(env.ctx, catalog.Filters{Page: 3})
	require.NoError(t, err)
	assert.Empty(t, res.Cards)
	assert.Equal(t, int64(5), res.TotalCount)
	assert.Nil(t, res.NextPage)
}

func TestCardsRepository_ServiceFilterSpansAllPages(t *testing.T) {
	env := newTestEnv(t)
	// Matching cards sit at the tail of the default ordering so a filter
	// applied after pagination would miss them.
	for i := 0; i < 60; i++ {
		p := CardUpsertParams{
			ID:       fmt.Sprintf("card-%03d", i),
			Title:    fmt.Sprintf("Card %d", i),
			Rating:   ratingPtr(9),
			Featured: true,
			Sources:  []domain.Source{{Service: "Netflix"}},
		}
		if i >= 50 {
			p.Rating = nil
			p.Featured = false
			p.Sources = []domain.Source{{Service: "Shudder"}}
		}
		mustUpsertCard(t, env, p)
	}

	res, err := env.repository.Cards.List(env.ctx, catalog.Filters{Service: "shud"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.TotalCount)
	assert.Len(t, res.Cards, 10)
	assert.Nil(t, res.NextPage)
	for _, c := range res.Cards {
		assert.True(t, c.HasService("shudder"), c.ID)
	}
}

func TestCardsRepository_ServiceFilterEscapesWildcards(t *testing.T) {
	env := newTestEnv(t)
	mustUpsertCard(t, env, CardUpsertParams{ID: "a", Title: "A", Sources: []domain.Source{{Service: "Netflix"}}})
	mustUpsertCard(t, env, CardUpsertParams{ID: "b", Title: "B", Sources: []domain.Source{{Service: "100% Horror"}}})

	res, err := env.repository.Cards.List(env.ctx, catalog.Filters{Service: "%"})
	require.NoError(t, err)
	require.Len(t, res.Cards, 1)
	assert.Equal(t, "b", res.Cards[0].ID)

	res, err = env.repository.Cards.List(env.ctx, catalog.Filters{Service: "_"})
	require.NoError(t, err)
	assert.Empty(t, res.Cards)
}

func TestCardsRepository_ZeroMeansUnknown(t *testing.T) {
	env := newTestEnv(t)
	card := mustUpsertCard(t, env, CardUpsertParams{
		ID:      "zero",
		Title:   "Zero",
		Runtime: intPtr(0),
		Rating:  ratingPtr(0),
	})
	assert.Nil(t, card.Runtime)
	assert.Nil(t, card.Rating)
	assert.Equal(t, []string{}, card.Genres)
	assert.Equal(t, []domain.Source{}, card.Sources)

	short, _ := catalog.RuntimeByKey("under-90")
	res, err := env.repository.Cards.List(env.ctx, catalog.Filters{Runtime: &short})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestCardsRepository_GetAndFillMetadata(t *testing.T) {
	env := newTestEnv(t)
	plot := "Existing plot"
	mustUpsertCard(t, env, CardUpsertParams{ID: "tt1", Title: "The Thing", Plot: &plot})

	_, err := env.repository.Cards.GetByID(env.ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	poster := "https://img.example/thing.jpg"
	newPlot := "Replacement plot"
	director := "John Carpenter"
	filled, err := env.repository.Cards.FillMetadata(env.ctx, "tt1", CardMetadata{
		PosterURL: &poster,
		Plot:      &newPlot,
		Rating:    ratingPtr(8.2),
		Runtime:   intPtr(109),
		Director:  &director,
		Genres:    []string{"Horror", "Sci-Fi"},
	})
	require.NoError(t, err)
	require.NotNil(t, filled.PosterURL)
	assert.Equal(t, poster, *filled.PosterURL)
	assert.Equal(t, plot, *filled.Plot)
	assert.Equal(t, 109, *filled.Runtime)
	assert.InDelta(t, 8.2, *filled.Rating, 0.001)
	assert.Equal(t, []string{"Horror", "Sci-Fi"}, filled.Genres)
	assert.Nil(t, filled.Country)

	_, err = env.repository.Cards.FillMetadata(env.ctx, "missing", CardMetadata{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWatchlistRepository_AddRemoveReorder(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"a", "b", "c"} {
		mustUpsertCard(t, env, CardUpsertParams{ID: id, Title: "Card " + id})
	}

	for i, id := range []string{"a", "b", "c"} {
		item, inserted, err := env.repository.Watchlist.Add(env.ctx, "user-1", id)
		require.NoError(t, err)
		assert.True(t, inserted)
		assert.Equal(t, i, item.Position)
	}

	again, inserted, err := env.repository.Watchlist.Add(env.ctx, "user-1", "b")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1, again.Position)

	_, _, err = env.repository.Watchlist.Add(env.ctx, "user-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.repository.Watchlist.Reorder(env.ctx, "user-1", []string{"c", "a", "b"}))
	items, err := env.repository.Watchlist.List(env.ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{items[0].CardID, items[1].CardID, items[2].CardID})
	require.NotNil(t, items[0].Card)
	assert.Equal(t, "Card c", items[0].Card.Title)

	assert.ErrorIs(t, env.repository.Watchlist.Reorder(env.ctx, "user-1", []string{"a", "b"}), ErrOrderMismatch)
	assert.ErrorIs(t, env.repository.Watchlist.Reorder(env.ctx, "user-1", []string{"a", "b", "b"}), ErrOrderMismatch)
	assert.ErrorIs(t, env.repository.Watchlist.Reorder(env.ctx, "user-1", []string{"a", "b", "x"}), ErrOrderMismatch)

	require.NoError(t, env.repository.Watchlist.Remove(env.ctx, "user-1", "a"))
	assert.ErrorIs(t, env.repository.Watchlist.Remove(env.ctx, "user-1", "a"), ErrNotFound)

	other, err := env.repository.Watchlist.List(env.ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestWatchlistRepository_ConcurrentAdds(t *testing.T) {
	env := newTestEnv(t)
	const workers = 8
	for i := 0; i < workers; i++ {
		mustUpsertCard(t, env, CardUpsertParams{ID: fmt.Sprintf("c%d", i), Title: "Card"})
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, _, err := env.repository.Watchlist.Add(env.ctx, "user-1", id); err != nil {
				t.Errorf("add %s: %v", id, err)
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	items, err := env.repository.Watchlist.List(env.ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, items, workers)
	positions := make([]int, len(items))
	for i, item := range items {
		positions[i] = item.Position
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, positions)
}

func TestListsRepository_ConcurrentAddItems(t *testing.T) {
	env := newTestEnv(t)
	const workers = 8
	for i := 0; i < workers; i++ {
		mustUpsertCard(t, env, CardUpsertParams{ID: fmt.Sprintf("c%d", i), Title: "Card"})
	}
	list, err := env.repository.Lists.Create(env.ctx, ListCreateParams{OwnerID: "owner", Title: "Crowded", Kind: domain.ListKindCommunity})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, _, err := env.repository.Lists.AddItem(env.ctx, list.ID, id, ""); err != nil {
				t.Errorf("add %s: %v", id, err)
			}
		}(fmt.Sprintf("c%d", i))
	}
	wg.Wait()

	items, err := env.repository.Lists.Items(env.ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, items, workers)
	positions := make([]int, len(items))
	for i, item := range items {
		positions[i] = item.Position
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, positions)
}

func TestListsRepository_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"a", "b"} {
		mustUpsertCard(t, env, CardUpsertParams{ID: id, Title: "Card " + id})
	}

	list, err := env.repository.Lists.Create(env.ctx, ListCreateParams{
		OwnerID:  "owner",
		Title:    "Best of '80s Body Horror!",
		Kind:     domain.ListKindCommunity,
		IsPublic: true,
	})
	require.NoError(t, err)
	assert.Regexp(t, `^best-of-80s-body-horror-[0-9a-f]{8}$`, list.Slug)
	assert.Zero(t, list.ItemCount)

	bySlug, err := env.repository.Lists.GetBySlug(env.ctx, list.Slug)
	require.NoError(t, err)
	assert.Equal(t, list, bySlug)
	assert.False(t, list.CreatedAt.IsZero())

	_, err = env.repository.Lists.GetByID(env.ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	_, inserted, err := env.repository.Lists.AddItem(env.ctx, list.ID, "a", "classic")
	require.NoError(t, err)
	assert.True(t, inserted)
	_, inserted, err = env.repository.Lists.AddItem(env.ctx, list.ID, "b", "")
	require.NoError(t, err)
	assert.True(t, inserted)
	updated, inserted, err := env.repository.Lists.AddItem(env.ctx, list.ID, "a", "still classic")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, "still classic", updated.Note)

	_, _, err = env.repository.Lists.AddItem(env.ctx, list.ID, "missing", "")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.repository.Lists.Reorder(env.ctx, list.ID, []string{"b", "a"}))
	items, err := env.repository.Lists.Items(env.ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].CardID)
	assert.Equal(t, "still classic", items[1].Note)

	byID, err := env.repository.Lists.GetByID(env.ctx, list.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, byID.ItemCount)

	owned, err := env.repository.Lists.ListByOwner(env.ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	require.NoError(t, env.repository.Lists.RemoveItem(env.ctx, list.ID, "b"))
	assert.ErrorIs(t, env.repository.Lists.RemoveItem(env.ctx, list.ID, "b"), ErrNotFound)

	require.NoError(t, env.repository.Lists.Delete(env.ctx, list.ID))
	_, err = env.repository.Lists.GetBySlug(env.ctx, list.Slug)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListsRepository_CommunityPaging(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < catalog.PageSize+3; i++ {
		_, err := env.repository.Lists.Create(env.ctx, ListCreateParams{
			OwnerID:  fmt.Sprintf("user-%d", i),
			Title:    fmt.Sprintf("List %d", i),
			Kind:     domain.ListKindCommunity,
			IsPublic: true,
		})
		require.NoError(t, err)
	}
	_, err := env.repository.Lists.Create(env.ctx, ListCreateParams{OwnerID: "x", Title: "Private", Kind: domain.ListKindCommunity})
	require.NoError(t, err)
	_, err = env.repository.Lists.Create(env.ctx, ListCreateParams{OwnerID: "staff", Title: "Staff", Kind: domain.ListKindCurated, IsPublic: true})
	require.NoError(t, err)

	first, err := env.repository.Lists.Community(env.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(catalog.PageSize+3), first.TotalCount)
	assert.Len(t, first.Lists, catalog.PageSize)
	require.NotNil(t, first.NextPage)

	second, err := env.repository.Lists.Community(env.ctx, *first.NextPage)
	require.NoError(t, err)
	assert.Len(t, second.Lists, 3)
	assert.Nil(t, second.NextPage)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":          "hello-world",
		"  --Alien (1979)-- ":  "alien-1979",
		"!!!":                  "list",
		"Ça va":                "a-va",
		"The   Thing & Others": "the-thing-others",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestEventsRepository_SessionsAndClicks(t *testing.T) {
	env := newTestEnv(t)
	mustUpsertCard(t, env, CardUpsertParams{ID: "a", Title: "A", Sources: []domain.Source{{Service: "Shudder"}}})

	user := "user-1"
	session, err := env.repository.Events.StartSession(env.ctx, SessionStartParams{UserID: &user, UserAgent: "test"})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Nil(t, session.EndedAt)

	later := session.StartedAt.Add(5 * time.Minute)
	touched, err := env.repository.Events.TouchSession(env.ctx, session.ID, later)
	require.NoError(t, err)
	assert.True(t, touched.LastSeenAt.Equal(later))

	ended, err := env.repository.Events.EndSession(env.ctx, session.ID, later.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	endedAgain, err := env.repository.Events.EndSession(env.ctx, session.ID, later.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, endedAgain.EndedAt.Equal(*ended.EndedAt))

	_, err = env.repository.Events.TouchSession(env.ctx, "not-a-uuid", later)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.repository.Events.EndSession(env.ctx, "00000000-0000-0000-0000-000000000000", later)
	assert.ErrorIs(t, err, ErrNotFound)

	click, err := env.repository.Events.RecordClick(env.ctx, ClickParams{SessionID: &session.ID, CardID: "a", Service: "Shudder"})
	require.NoError(t, err)
	require.NotNil(t, click.SessionID)
	assert.Equal(t, session.ID, *click.SessionID)

	anonymous, err := env.repository.Events.RecordClick(env.ctx, ClickParams{CardID: "a", Service: "shudder"})
	require.NoError(t, err)
	assert.Nil(t, anonymous.SessionID)

	_, err = env.repository.Events.RecordClick(env.ctx, ClickParams{CardID: "missing", Service: "Shudder"})
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := env.repository.Stats.Dashboard(env.ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Cards)
	assert.Equal(t, int64(1), stats.Sessions24h)
	assert.Equal(t, int64(2), stats.Clicks24h)
	require.Len(t, stats.TopServices, 1)
	assert.Equal(t, domain.CountByKey{Key: "shudder", Label: "shudder", Count: 2}, stats.TopServices[0])
	require.Len(t, stats.TopCards, 1)
	assert.Equal(t, "a", stats.TopCards[0].Key)
}

func BenchmarkCardsRepositoryList(b *testing.B) {
	env := newTestEnv(b)
	seedCatalog(b, env, 200)
	filters := catalog.Filters{Genre: "horror", Service: "shudder", Sort: catalog.SortRating}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		filters.Page = i % 3
		if _, err := env.repository.Cards.List(env.ctx, filters); err != nil {
			b.Fatalf("list: %v", err)
		}
	}
}
