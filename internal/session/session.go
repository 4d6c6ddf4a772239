// Package session is the headless search-box orchestrator: it debounces
// typing, shows merged candidates, runs single or comparison searches and
// keeps the visible state consistent while results arrive out of order.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tracuu-benhly/lookup/internal/models"
	"github.com/tracuu-benhly/lookup/internal/textutil"
)

var ErrClosed = errors.New("session closed")

// Suggester produces the candidate list for a prefix. Implementations
// swallow their own failures and return an empty list.
type Suggester interface {
	Lookup(ctx context.Context, prefix string) models.CandidateList
}

// Searcher is the ranking side of the session.
type Searcher interface {
	Search(ctx context.Context, query string, model models.SearchModel) (*models.SearchResponse, error)
	Compare(ctx context.Context, query string, searchModels []models.SearchModel) ([]models.ComparisonRow, error)
	Record(ctx context.Context, query string) (*models.HistoryEntry, error)
}

// HistoryDeleter removes stored history rows.
type HistoryDeleter interface {
	Delete(ctx context.Context, id uint) error
}

type Options struct {
	Debounce      time.Duration
	DefaultModel  models.SearchModel
	CompareModels []models.SearchModel
	// ModelSelection allows SetModel; otherwise the default model is fixed.
	ModelSelection bool
	// SyncURL mirrors the submitted query into Snapshot.Location.
	SyncURL  bool
	BasePath string
	// RequestTimeout bounds each lookup, search and delete. Zero means none.
	RequestTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		Debounce:       300 * time.Millisecond,
		DefaultModel:   models.ModelBM25,
		CompareModels:  models.AllSearchModels(),
		ModelSelection: true,
		BasePath:       "/search",
	}
}

// Snapshot is a copy of the visible state. Mutating it has no effect on
// the session.
type Snapshot struct {
	Query          string                 `json:"query"`
	SubmittedQuery string                 `json:"submittedQuery,omitempty"`
	Model          models.SearchModel     `json:"model"`
	ComparisonMode bool                   `json:"comparisonMode"`
	Dropdown       DropdownState          `json:"dropdown"`
	Candidates     models.CandidateList   `json:"candidates"`
	Loading        bool                   `json:"isLoading"`
	Error          string                 `json:"error,omitempty"`
	Response       *models.SearchResponse `json:"response,omitempty"`
	Summary        string                 `json:"summary,omitempty"`
	Comparison     []models.ComparisonRow `json:"performanceResults"`
	Location       string                 `json:"location,omitempty"`
	// Version grows with every state change. Listeners never see it go
	// backwards.
	Version uint64 `json:"version"`
}

type Session struct {
	mu sync.Mutex

	opts      Options
	suggester Suggester
	searcher  Searcher
	history   HistoryDeleter
	logger    *logrus.Logger
	debouncer *Debouncer

	ctx    context.Context
	cancel context.CancelFunc
	closed bool

	query      string
	submitted  string
	model      models.SearchModel
	comparison bool
	dropdown   DropdownState
	candidates models.CandidateList
	loading    bool
	errMsg     string
	response   *models.SearchResponse
	answeredBy models.SearchModel
	rows       []models.ComparisonRow
	location   string

	// removed hides deleted history ids from every later lookup.
	removed map[uint]struct{}

	fetchGen  uint64
	searchGen uint64

	listeners map[int]func(Snapshot)
	nextSub   int
	version   uint64

	// deliverMu serializes listener calls so snapshots arrive in version order.
	deliverMu sync.Mutex
	delivered uint64
}

func New(opts Options, suggester Suggester, searcher Searcher, history HistoryDeleter, logger *logrus.Logger) *Session {
	defaults := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = defaults.DefaultModel
	}
	if len(opts.CompareModels) == 0 {
		opts.CompareModels = defaults.CompareModels
	}
	if opts.BasePath == "" {
		opts.BasePath = defaults.BasePath
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		opts:       opts,
		suggester:  suggester,
		searcher:   searcher,
		history:    history,
		logger:     logger,
		debouncer:  NewDebouncer(opts.Debounce),
		ctx:        ctx,
		cancel:     cancel,
		model:      opts.DefaultModel,
		candidates: models.EmptyCandidates(),
		rows:       []models.ComparisonRow{},
		removed:    make(map[uint]struct{}),
		listeners:  make(map[int]func(Snapshot)),
	}
}

// NewFromURL restores a URL-synced session from a location such as
// "/search?query=S%E1%BB%91t&model=word2vec" and runs the search it names.
func NewFromURL(rawURL string, opts Options, suggester Suggester, searcher Searcher, history HistoryDeleter, logger *logrus.Logger) (*Session, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &models.ValidationError{Field: "url", Reason: err.Error()}
	}
	opts.SyncURL = true
	if opts.BasePath == "" && u.Path != "" {
		opts.BasePath = u.Path
	}

	s := New(opts, suggester, searcher, history, logger)
	params := u.Query()

	if m := params.Get("model"); m != "" && s.opts.ModelSelection {
		if err := s.SetModel(models.SearchModel(m)); err != nil {
			s.Close()
			return nil, err
		}
	}
	if q := textutil.Normalize(params.Get("query")); q != "" {
		s.mu.Lock()
		s.query = q
		s.submitLocked(q, eventSubmitted)
		s.mu.Unlock()
		s.notify()
	}
	return s, nil
}

// OnQueryChange records the typed text. Non-empty text schedules a
// debounced lookup; empty text clears the candidates right away.
func (s *Session) OnQueryChange(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	s.query = text
	prefix := textutil.Normalize(text)
	s.fetchGen++
	s.candidates = models.EmptyCandidates()

	if prefix == "" {
		s.debouncer.Cancel()
		s.dropdown = nextDropdown(s.dropdown, eventCleared, true, 0)
		s.mu.Unlock()
		s.notify()
		return
	}

	s.dropdown = nextDropdown(s.dropdown, eventTyped, false, 0)
	gen := s.fetchGen
	s.debouncer.Trigger(func() { s.fetch(gen, prefix) })
	s.mu.Unlock()
	s.notify()
}

// OnFocus opens the panel when the input holds a query. With nothing
// cached and no lookup pending it starts one immediately.
func (s *Session) OnFocus() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prefix := textutil.Normalize(s.query)
	s.dropdown = nextDropdown(s.dropdown, eventFocus, prefix == "", s.candidates.Len())

	var start func()
	if prefix != "" && s.candidates.IsEmpty() && !s.debouncer.Pending() {
		s.fetchGen++
		gen := s.fetchGen
		start = func() { s.fetch(gen, prefix) }
	}
	s.mu.Unlock()
	s.notify()

	if start != nil {
		go start()
	}
}

func (s *Session) OnOutsideClick() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.dropdown = nextDropdown(s.dropdown, eventOutsideClick, textutil.Normalize(s.query) == "", 0)
	s.mu.Unlock()
	s.notify()
}

// OnSubmit searches for the current query.
func (s *Session) OnSubmit() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	q := textutil.Normalize(s.query)
	if q == "" {
		s.mu.Unlock()
		return models.ErrEmptyQuery
	}
	s.query = q
	s.submitLocked(q, eventSubmitted)
	s.mu.Unlock()
	s.notify()
	return nil
}

// OnSelectCandidate puts text into the input and submits it.
func (s *Session) OnSelectCandidate(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	q := textutil.Normalize(text)
	if q == "" {
		s.mu.Unlock()
		return models.ErrEmptyQuery
	}
	s.query = q
	s.submitLocked(q, eventSelected)
	s.mu.Unlock()
	s.notify()
	return nil
}

// OnToggleComparisonMode switches between one model and all configured
// models. It is refused while the query is empty. A submitted query is
// searched again in the new mode.
func (s *Session) OnToggleComparisonMode(on bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if textutil.Normalize(s.query) == "" {
		s.mu.Unlock()
		return &models.ValidationError{Field: "comparison", Reason: "query cannot be empty"}
	}
	if s.comparison == on {
		s.mu.Unlock()
		return nil
	}

	s.comparison = on
	s.response = nil
	s.rows = []models.ComparisonRow{}
	s.errMsg = ""
	if s.submitted != "" {
		s.runSearchLocked(s.submitted)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetModel chooses the single-mode scorer.
func (s *Session) SetModel(model models.SearchModel) error {
	parsed, err := models.ParseSearchModel(string(model))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if !s.opts.ModelSelection {
		s.mu.Unlock()
		return &models.ValidationError{Field: "model", Reason: "model selection is disabled"}
	}
	if s.model == parsed {
		s.mu.Unlock()
		return nil
	}

	s.model = parsed
	s.updateLocationLocked()
	if s.submitted != "" && !s.comparison {
		s.runSearchLocked(s.submitted)
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Calls are serialized and a snapshot older than one already delivered is
// dropped. fn must not call the session's handlers synchronously. The
// returned func removes it.
func (s *Session) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close cancels the pending lookup and drops every result still in flight.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.debouncer.Stop()
	s.cancel()
	s.fetchGen++
	s.searchGen++
	s.loading = false
	s.mu.Unlock()
}

// submitLocked is shared by submit and candidate selection.
func (s *Session) submitLocked(q string, ev dropdownEvent) {
	s.debouncer.Cancel()
	s.fetchGen++
	s.dropdown = nextDropdown(s.dropdown, ev, false, 0)
	s.submitted = q
	s.updateLocationLocked()
	s.startSearchLocked(q, s.searcher != nil)
}

func (s *Session) runSearchLocked(q string) {
	s.startSearchLocked(q, false)
}

// startSearchLocked launches a search for q. With record set the query is
// stored in history first, then searched.
func (s *Session) startSearchLocked(q string, record bool) {
	s.searchGen++
	gen := s.searchGen
	s.loading = true
	s.errMsg = ""

	comparison := s.comparison
	model := s.model
	compareModels := append([]models.SearchModel(nil), s.opts.CompareModels...)

	go func() {
		if record {
			s.record(q)
		}
		s.search(gen, q, model, comparison, compareModels)
	}()
}

func (s *Session) search(gen uint64, q string, model models.SearchModel, comparison bool, compareModels []models.SearchModel) {
	ctx, cancel := s.requestContext()
	defer cancel()

	var (
		resp *models.SearchResponse
		rows []models.ComparisonRow
		err  error
	)
	if s.searcher == nil {
		err = errors.New("no searcher configured")
	} else if comparison {
		rows, err = s.searcher.Compare(ctx, q, compareModels)
	} else {
		resp, err = s.searcher.Search(ctx, q, model)
	}

	s.mu.Lock()
	if gen != s.searchGen || s.closed {
		s.mu.Unlock()
		s.logger.WithFields(logrus.Fields{"query": q, "generation": gen}).Debug("Discarding stale search result")
		return
	}

	s.loading = false
	s.response = nil
	s.rows = []models.ComparisonRow{}
	if err != nil {
		s.errMsg = models.SearchFailedMessage
		s.logger.WithError(err).WithFields(logrus.Fields{
			"query":      q,
			"comparison": comparison,
		}).Error("Search failed")
	} else if comparison {
		s.rows = rows
	} else {
		s.response = resp
		s.answeredBy = model
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Session) record(q string) {
	ctx, cancel := s.requestContext()
	defer cancel()
	if _, err := s.searcher.Record(ctx, q); err != nil {
		s.logger.WithError(err).WithField("query", q).Warn("Failed to record search history")
	}
}

func (s *Session) fetch(gen uint64, prefix string) {
	if s.suggester == nil {
		return
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	list := s.suggester.Lookup(ctx, prefix)

	s.mu.Lock()
	if gen != s.fetchGen || s.closed {
		s.mu.Unlock()
		s.logger.WithField("prefix", prefix).Debug("Discarding stale suggestions")
		return
	}
	for id := range s.removed {
		if list.HasHistory(id) {
			list = list.WithoutHistory(id)
		}
	}
	s.candidates = list
	s.dropdown = nextDropdown(s.dropdown, eventFetched, textutil.Normalize(s.query) == "", list.Len())
	s.mu.Unlock()
	s.notify()
}

func (s *Session) requestContext() (context.Context, context.CancelFunc) {
	if s.opts.RequestTimeout > 0 {
		return context.WithTimeout(s.ctx, s.opts.RequestTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *Session) updateLocationLocked() {
	if !s.opts.SyncURL || s.submitted == "" {
		return
	}
	params := url.Values{}
	params.Set("query", s.submitted)
	if s.opts.ModelSelection && s.model != s.opts.DefaultModel {
		params.Set("model", string(s.model))
	}
	s.location = fmt.Sprintf("%s?%s", strings.TrimRight(s.opts.BasePath, "?"), params.Encode())
}

func (s *Session) summaryLocked() string {
	if s.response == nil {
		return ""
	}
	return s.response.Summary(s.answeredBy)
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Query:          s.query,
		SubmittedQuery: s.submitted,
		Model:          s.model,
		ComparisonMode: s.comparison,
		Dropdown:       s.dropdown,
		Candidates:     s.candidates.Clone(),
		Loading:        s.loading,
		Error:          s.errMsg,
		Response:       cloneResponse(s.response),
		Summary:        s.summaryLocked(),
		Comparison:     cloneRows(s.rows),
		Location:       s.location,
		Version:        s.version,
	}
	return snap
}

func cloneResponse(resp *models.SearchResponse) *models.SearchResponse {
	if resp == nil {
		return nil
	}
	out := *resp
	out.Results = cloneResults(resp.Results)
	return &out
}

func cloneRows(rows []models.ComparisonRow) []models.ComparisonRow {
	out := make([]models.ComparisonRow, len(rows))
	for i, row := range rows {
		row.Results = cloneResults(row.Results)
		out[i] = row
	}
	return out
}

func cloneResults(results []models.SearchResult) []models.SearchResult {
	if results == nil {
		return nil
	}
	out := make([]models.SearchResult, len(results))
	copy(out, results)
	return out
}

func (s *Session) notify() {
	s.mu.Lock()
	s.version++
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version
	for _, fn := range fns {
		fn(snap)
	}
}
