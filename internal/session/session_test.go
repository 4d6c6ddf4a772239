package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/services"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fakeSuggester struct {
	mu       sync.Mutex
	lists    map[string]models.CandidateList
	gates    map[string]chan struct{}
	prefixes []string
}

func newFakeSuggester() *fakeSuggester {
	return &fakeSuggester{
		lists: map[string]models.CandidateList{},
		gates: map[string]chan struct{}{},
	}
}

func (f *fakeSuggester) Lookup(ctx context.Context, prefix string) models.CandidateList {
	f.mu.Lock()
	f.prefixes = append(f.prefixes, prefix)
	gate := f.gates[prefix]
	list, ok := f.lists[prefix]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return models.EmptyCandidates()
	}
	return list
}

func (f *fakeSuggester) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prefixes...)
}

type searchCall struct {
	Query string
	Model models.SearchModel
}

type fakeRanking struct {
	mu    sync.Mutex
	calls []searchCall
	fail  map[models.SearchModel]error
	gate  chan struct{}
}

func (f *fakeRanking) Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, searchCall{query, model})
	gate := f.gate
	err := f.fail[model]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Results:         []models.SearchResult{{ID: "1", Title: query}},
		NumberOfResults: 1,
		QueryTime:       4.2,
	}, nil
}

func (f *fakeRanking) snapshot() []searchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]searchCall(nil), f.calls...)
}

type fakeHistory struct {
	mu         sync.Mutex
	deleted    []uint
	created    []string
	err        error
	createGate chan struct{}
}

func (f *fakeHistory) List(ctx context.Context, prefix string, limit int) ([]models.HistoryEntry, error) {
	return nil, nil
}

func (f *fakeHistory) Create(ctx context.Context, query string) (*models.HistoryEntry, error) {
	f.mu.Lock()
	gate := f.createGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, query)
	return &models.HistoryEntry{ID: uint(len(f.created)), Query: query}, nil
}

func (f *fakeHistory) Delete(ctx context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeHistory) deletes() []uint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.deleted...)
}

func (f *fakeHistory) creates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

type harness struct {
	session   *Session
	suggester *fakeSuggester
	ranking   *fakeRanking
	history   *fakeHistory
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Debounce == 0 {
		opts.Debounce = 10 * time.Millisecond
	}
	h := &harness{
		suggester: newFakeSuggester(),
		ranking:   &fakeRanking{fail: map[models.SearchModel]error{}},
		history:   &fakeHistory{},
	}
	logger := quietLogger()
	searcher := services.NewSearchService(h.ranking, h.history, logger)
	h.session = New(opts, h.suggester, searcher, h.history, logger)
	t.Cleanup(h.session.Close)
	return h
}

func (h *harness) settled(t *testing.T) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return !h.session.Snapshot().Loading }, waitFor, tick)
	return h.session.Snapshot()
}

func TestTieuSelectionEndToEnd(t *testing.T) {
	h := newHarness(t, Options{})
	h.suggester.lists["Tiểu"] = models.CandidateList{
		Suggestions: []models.Suggestion{{ID: 1, Text: "Tiểu đường"}},
		History:     []models.HistoryEntry{},
	}

	h.session.OnQueryChange("Tiểu")
	require.Eventually(t, func() bool {
		return h.session.Snapshot().Dropdown == DropdownOpenPopulated
	}, waitFor, tick)
	assert.Equal(t, []string{"Tiểu đường"}, h.session.Snapshot().Candidates.Texts())

	require.NoError(t, h.session.OnSelectCandidate("Tiểu đường"))
	snap := h.session.Snapshot()
	assert.Equal(t, "Tiểu đường", snap.Query)
	assert.Equal(t, DropdownClosed, snap.Dropdown)

	snap = h.settled(t)
	assert.Equal(t, []searchCall{{"Tiểu đường", models.ModelBM25}}, h.ranking.snapshot())
	require.NotNil(t, snap.Response)
	assert.Empty(t, snap.Error)
	assert.Equal(t, "Sử dụng mô hình bm25, tìm thấy 1 kết quả trong vòng 4.20 ms.", snap.Summary)
	assert.Eventually(t, func() bool {
		return len(h.history.creates()) == 1
	}, waitFor, tick)
}

func TestSotComparisonWithOneFailingModel(t *testing.T) {
	h := newHarness(t, Options{})
	h.ranking.fail[models.ModelHuggingFace] = errors.New("model offline")

	h.session.OnQueryChange("Sốt")
	require.NoError(t, h.session.OnToggleComparisonMode(true))
	require.NoError(t, h.session.OnSubmit())

	snap := h.settled(t)
	assert.Equal(t, models.SearchFailedMessage, snap.Error)
	assert.Empty(t, snap.Comparison)
	assert.False(t, snap.Loading)
	assert.Nil(t, snap.Response)
	assert.Len(t, h.ranking.snapshot(), 3)
}

func TestComparisonRendersOnlyWhenAllSettle(t *testing.T) {
	h := newHarness(t, Options{})
	h.ranking.gate = make(chan struct{})

	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnToggleComparisonMode(true))
	require.NoError(t, h.session.OnSubmit())

	require.Eventually(t, func() bool { return len(h.ranking.snapshot()) == 3 }, waitFor, tick)
	snap := h.session.Snapshot()
	assert.True(t, snap.Loading)
	assert.Empty(t, snap.Comparison)

	close(h.ranking.gate)
	snap = h.settled(t)
	require.Len(t, snap.Comparison, 3)
	for i, model := range models.AllSearchModels() {
		assert.Equal(t, model, snap.Comparison[i].Model)
	}
	assert.Empty(t, snap.Error)
}

func TestDebounceCollapsesBurst(t *testing.T) {
	h := newHarness(t, Options{Debounce: 40 * time.Millisecond})

	for _, text := range []string{"d", "di", "dis", "dise"} {
		h.session.OnQueryChange(text)
	}

	require.Eventually(t, func() bool { return len(h.suggester.calls()) == 1 }, waitFor, tick)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{"dise"}, h.suggester.calls())
}

func TestClearingIsImmediate(t *testing.T) {
	h := newHarness(t, Options{Debounce: 50 * time.Millisecond})
	h.suggester.lists["ho"] = models.CandidateList{
		Suggestions: []models.Suggestion{{ID: 1, Text: "Ho gà"}},
		History:     []models.HistoryEntry{},
	}

	h.session.OnQueryChange("ho")
	require.Eventually(t, func() bool { return h.session.Snapshot().Candidates.Len() == 1 }, waitFor, tick)

	h.session.OnQueryChange("h")
	h.session.OnQueryChange("   ")
	snap := h.session.Snapshot()
	assert.True(t, snap.Candidates.IsEmpty())
	assert.Equal(t, DropdownClosed, snap.Dropdown)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"ho"}, h.suggester.calls())
}

func TestStaleSuggestionsAreDiscarded(t *testing.T) {
	h := newHarness(t, Options{Debounce: 5 * time.Millisecond})
	gate := make(chan struct{})
	h.suggester.gates["di"] = gate
	h.suggester.lists["di"] = models.CandidateList{
		Suggestions: []models.Suggestion{{ID: 1, Text: "Dị ứng"}},
		History:     []models.HistoryEntry{},
	}
	h.suggester.lists["dis"] = models.CandidateList{
		Suggestions: []models.Suggestion{},
		History:     []models.HistoryEntry{{ID: 4, Query: "disease"}},
	}

	h.session.OnQueryChange("di")
	require.Eventually(t, func() bool { return len(h.suggester.calls()) == 1 }, waitFor, tick)

	h.session.OnQueryChange("dis")
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"disease"}, h.session.Snapshot().Candidates.Texts())
	}, waitFor, tick)

	close(gate)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, []string{"disease"}, h.session.Snapshot().Candidates.Texts())
}

func TestStaleSearchIsDiscarded(t *testing.T) {
	h := newHarness(t, Options{})
	gate := make(chan struct{})
	h.ranking.gate = gate

	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnSubmit())
	require.Eventually(t, func() bool { return len(h.ranking.snapshot()) == 1 }, waitFor, tick)

	h.ranking.mu.Lock()
	h.ranking.gate = nil
	h.ranking.mu.Unlock()

	h.session.OnQueryChange("sốt")
	require.NoError(t, h.session.OnSubmit())
	snap := h.settled(t)
	require.NotNil(t, snap.Response)
	assert.Equal(t, "sốt", snap.Response.Results[0].Title)

	close(gate)
	time.Sleep(30 * time.Millisecond)
	snap = h.session.Snapshot()
	assert.Equal(t, "sốt", snap.Response.Results[0].Title)
	assert.Equal(t, "sốt", snap.SubmittedQuery)
}

func TestDeleteHistoryIsOptimistic(t *testing.T) {
	for name, storeErr := range map[string]error{
		"store ok":     nil,
		"store failed": errors.New("connection reset"),
		"not found":    models.ErrHistoryNotFound,
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.history.err = storeErr
			h.suggester.lists["c"] = models.CandidateList{
				Suggestions: []models.Suggestion{{ID: 1, Text: "Cao huyết áp"}},
				History:     []models.HistoryEntry{{ID: 7, Query: "cảm cúm"}, {ID: 8, Query: "cao"}},
			}

			h.session.OnQueryChange("c")
			require.Eventually(t, func() bool { return h.session.Snapshot().Candidates.HasHistory(7) }, waitFor, tick)

			require.NoError(t, h.session.OnDeleteHistory(float64(7)))
			snap := h.session.Snapshot()
			assert.False(t, snap.Candidates.HasHistory(7))
			assert.True(t, snap.Candidates.HasHistory(8))
			assert.Equal(t, DropdownOpenPopulated, snap.Dropdown)

			require.Eventually(t, func() bool { return len(h.history.deletes()) == 1 }, waitFor, tick)
			assert.Equal(t, []uint{7}, h.history.deletes())

			// A fresh lookup for the same prefix must not bring it back.
			h.session.OnQueryChange("c")
			require.Eventually(t, func() bool { return h.session.Snapshot().Candidates.HasHistory(8) }, waitFor, tick)
			assert.False(t, h.session.Snapshot().Candidates.HasHistory(7))
			assert.Len(t, h.history.deletes(), 1)
		})
	}
}

func TestDeleteHistoryRejectsBadIDs(t *testing.T) {
	h := newHarness(t, Options{})

	for _, id := range []any{nil, "7", 1.5, -3, 0} {
		err := h.session.OnDeleteHistory(id)
		assert.True(t, models.IsValidation(err), "id %v", id)
	}
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, h.history.deletes())
}

func TestSelectingTwiceSearchesTwice(t *testing.T) {
	h := newHarness(t, Options{})

	require.NoError(t, h.session.OnSelectCandidate("Viêm phổi cấp"))
	h.settled(t)
	require.NoError(t, h.session.OnSelectCandidate("Viêm phổi cấp"))
	snap := h.settled(t)

	assert.Equal(t, "Viêm phổi cấp", snap.Query)
	assert.Equal(t, DropdownClosed, snap.Dropdown)
	require.Eventually(t, func() bool { return len(h.ranking.snapshot()) == 2 }, waitFor, tick)
	for _, c := range h.ranking.snapshot() {
		assert.Equal(t, "Viêm phổi cấp", c.Query)
	}
}

func TestSubmitCancelsPendingLookup(t *testing.T) {
	h := newHarness(t, Options{Debounce: 40 * time.Millisecond})
	h.suggester.lists["ho"] = models.CandidateList{
		Suggestions: []models.Suggestion{{ID: 1, Text: "Ho gà"}},
		History:     []models.HistoryEntry{},
	}

	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnSubmit())
	time.Sleep(80 * time.Millisecond)

	assert.Empty(t, h.suggester.calls())
	assert.Equal(t, DropdownClosed, h.session.Snapshot().Dropdown)
}

func TestSubmitEmptyQuery(t *testing.T) {
	h := newHarness(t, Options{})
	h.session.OnQueryChange("  ")
	assert.ErrorIs(t, h.session.OnSubmit(), models.ErrEmptyQuery)
	assert.Empty(t, h.ranking.snapshot())
}

func TestToggleComparisonRequiresQuery(t *testing.T) {
	h := newHarness(t, Options{})
	err := h.session.OnToggleComparisonMode(true)
	assert.True(t, models.IsValidation(err))
	assert.False(t, h.session.Snapshot().ComparisonMode)
}

func TestToggleComparisonReruns(t *testing.T) {
	h := newHarness(t, Options{})
	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnSubmit())
	h.settled(t)

	require.NoError(t, h.session.OnToggleComparisonMode(true))
	snap := h.settled(t)
	assert.Len(t, snap.Comparison, 3)
	assert.Nil(t, snap.Response)
	assert.Len(t, h.ranking.snapshot(), 4)
}

func TestFocusAndOutsideClick(t *testing.T) {
	h := newHarness(t, Options{})
	h.suggester.lists["sốt"] = models.CandidateList{
		Suggestions: []models.Suggestion{{ID: 2, Text: "Sốt xuất huyết"}},
		History:     []models.HistoryEntry{},
	}

	h.session.OnFocus()
	assert.Equal(t, DropdownClosed, h.session.Snapshot().Dropdown)

	h.session.OnQueryChange("sốt")
	require.Eventually(t, func() bool { return h.session.Snapshot().Dropdown == DropdownOpenPopulated }, waitFor, tick)

	h.session.OnOutsideClick()
	assert.Equal(t, DropdownClosed, h.session.Snapshot().Dropdown)

	h.session.OnFocus()
	assert.Equal(t, DropdownOpenPopulated, h.session.Snapshot().Dropdown)
}

func TestSetModel(t *testing.T) {
	h := newHarness(t, Options{ModelSelection: true})
	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnSubmit())
	h.settled(t)

	require.NoError(t, h.session.SetModel(models.ModelWord2Vec))
	snap := h.settled(t)
	assert.Equal(t, models.ModelWord2Vec, snap.Model)
	assert.Contains(t, snap.Summary, "word2vec")

	calls := h.ranking.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, models.ModelWord2Vec, calls[1].Model)

	assert.True(t, models.IsValidation(h.session.SetModel("tfidf")))
}

func TestSetModelDisabled(t *testing.T) {
	h := newHarness(t, Options{ModelSelection: false})
	err := h.session.SetModel(models.ModelHuggingFace)
	assert.True(t, models.IsValidation(err))
	assert.Equal(t, models.ModelBM25, h.session.Snapshot().Model)
}

func TestURLSync(t *testing.T) {
	h := newHarness(t, Options{SyncURL: true, ModelSelection: true})
	h.session.OnQueryChange("Sốt xuất huyết")
	require.NoError(t, h.session.OnSubmit())
	require.NoError(t, h.session.SetModel(models.ModelWord2Vec))

	loc := h.session.Snapshot().Location
	u, err := url.Parse(loc)
	require.NoError(t, err)
	assert.Equal(t, "/search", u.Path)
	assert.Equal(t, "Sốt xuất huyết", u.Query().Get("query"))
	assert.Equal(t, "word2vec", u.Query().Get("model"))

	ranking := &fakeRanking{fail: map[models.SearchModel]error{}}
	restored, err := NewFromURL(loc, Options{ModelSelection: true}, newFakeSuggester(),
		services.NewSearchService(ranking, nil, quietLogger()), nil, quietLogger())
	require.NoError(t, err)
	defer restored.Close()

	snap := restored.Snapshot()
	assert.Equal(t, "Sốt xuất huyết", snap.Query)
	assert.Equal(t, models.ModelWord2Vec, snap.Model)
	assert.Equal(t, loc, snap.Location)
	require.Eventually(t, func() bool { return len(ranking.snapshot()) == 1 }, waitFor, tick)
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, Options{Debounce: time.Minute})
	var (
		mu   sync.Mutex
		seen []Snapshot
	)
	unsubscribe := h.session.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	h.session.OnQueryChange("ho")
	mu.Lock()
	require.NotEmpty(t, seen)
	assert.Equal(t, "ho", seen[len(seen)-1].Query)
	count := len(seen)
	mu.Unlock()

	unsubscribe()
	h.session.OnQueryChange("")
	mu.Lock()
	assert.Len(t, seen, count)
	mu.Unlock()
}

func TestSubscribersNeverSeeOlderSnapshotLast(t *testing.T) {
	h := newHarness(t, Options{Debounce: 5 * time.Millisecond})
	h.suggester.lists["di"] = models.CandidateList{
		Suggestions: []models.Suggestion{},
		History:     []models.HistoryEntry{{ID: 4, Query: "disease"}},
	}

	var (
		mu       sync.Mutex
		last     Snapshot
		versions []uint64
		once     sync.Once
	)
	blocked := make(chan struct{})
	release := make(chan struct{})
	h.session.Subscribe(func(snap Snapshot) {
		if snap.Query == "di" && snap.Dropdown == DropdownOpenPopulated {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		last = snap
		versions = append(versions, snap.Version)
		mu.Unlock()
	})

	h.session.OnQueryChange("di")
	select {
	case <-blocked:
	case <-time.After(waitFor):
		t.Fatal("suggestions for \"di\" were never delivered")
	}

	typed := make(chan struct{})
	go func() {
		h.session.OnQueryChange("dis")
		close(typed)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-typed

	require.Eventually(t, func() bool { return len(h.suggester.calls()) == 2 }, waitFor, tick)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "dis", last.Query)
	assert.NotEqual(t, DropdownOpenPopulated, last.Dropdown)
	assert.Empty(t, last.Candidates.Texts())
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestHistoryIsRecordedBeforeSearch(t *testing.T) {
	h := newHarness(t, Options{})
	gate := make(chan struct{})
	h.history.createGate = gate

	h.session.OnQueryChange("ho gà")
	require.NoError(t, h.session.OnSubmit())

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, h.ranking.snapshot())
	assert.True(t, h.session.Snapshot().Loading)

	close(gate)
	snap := h.settled(t)
	assert.Equal(t, []string{"ho gà"}, h.history.creates())
	assert.Equal(t, []searchCall{{"ho gà", models.ModelBM25}}, h.ranking.snapshot())
	require.NotNil(t, snap.Response)
}

func TestToggleDoesNotRecordAgain(t *testing.T) {
	h := newHarness(t, Options{})
	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnSubmit())
	h.settled(t)

	require.NoError(t, h.session.OnToggleComparisonMode(true))
	h.settled(t)
	assert.Equal(t, []string{"ho"}, h.history.creates())
}

func TestSnapshotIsDetached(t *testing.T) {
	h := newHarness(t, Options{})
	h.session.OnQueryChange("ho")
	require.NoError(t, h.session.OnSubmit())
	snap := h.settled(t)
	require.NotNil(t, snap.Response)
	require.Len(t, snap.Response.Results, 1)

	snap.Response.Results[0].Title = "changed"
	snap.Response.NumberOfResults = 99

	fresh := h.session.Snapshot()
	assert.Equal(t, "ho", fresh.Response.Results[0].Title)
	assert.Equal(t, 1, fresh.Response.NumberOfResults)
	assert.Greater(t, fresh.Version, uint64(0))
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(t, Options{Debounce: 30 * time.Millisecond})
	h.session.OnQueryChange("ho")
	h.session.Close()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, h.suggester.calls())
	assert.ErrorIs(t, h.session.OnSubmit(), ErrClosed)
	assert.ErrorIs(t, h.session.OnDeleteHistory(3), ErrClosed)
}
