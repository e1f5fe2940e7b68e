// Package search drives the incremental product search box: keystrokes are
// debounced, queries run against a Searcher, and only the response for the
// latest query is shown.
package search

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/internal/model"
)

const (
	// DebounceDelay is the quiet period after the last keystroke before a
	// query is issued.
	DebounceDelay = 300 * time.Millisecond

	// InlineLimit caps results shown in the dropdown.
	InlineLimit = 8

	// FullLimit caps results on the full search page.
	FullLimit = 50
)

// State is the search box state.
type State int

const (
	Idle State = iota
	Debouncing
	Querying
	Results
	Empty
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Debouncing:
		return "debouncing"
	case Querying:
		return "querying"
	case Results:
		return "results"
	case Empty:
		return "empty"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Searcher runs a product search.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]model.Product, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string, limit int) ([]model.Product, error)

func (f SearcherFunc) Search(ctx context.Context, query string, limit int) ([]model.Product, error) {
	return f(ctx, query, limit)
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock schedules debounce callbacks.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Target is where the user navigates after choosing a result or submitting.
type Target struct {
	Handle string // Product handle; empty for a search page
	Query  string
	Path   string
}

// ProductTarget returns the navigation target for a product.
func ProductTarget(handle string) Target {
	return Target{Handle: handle, Path: "/shop/" + url.PathEscape(handle)}
}

// SearchTarget returns the navigation target for a full search page.
func SearchTarget(query string) Target {
	return Target{Query: query, Path: "/shop?search=" + url.QueryEscape(query)}
}

// View is a point-in-time copy of the session.
type View struct {
	Query   string
	State   State
	Results []model.Product
	Err     error
	Cursor  int
	Open    bool
}

// Options configures a Session.
type Options struct {
	Limit    int           // Defaults to InlineLimit
	Delay    time.Duration // Defaults to DebounceDelay
	Clock    Clock
	Logger   *slog.Logger
	OnChange func(View) // Called after each state change, outside the lock
}

// Session is one search box. Methods are safe for concurrent use.
type Session struct {
	searcher Searcher
	limit    int
	delay    time.Duration
	clock    Clock
	logger   *slog.Logger
	onChange func(View)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	query   string
	state   State
	results []model.Product
	err     error
	cursor  int
	open    bool
	seq     uint64
	timer   Timer
	closed  bool
}

// NewSession creates an idle session.
func NewSession(searcher Searcher, opts Options) *Session {
	if opts.Limit <= 0 {
		opts.Limit = InlineLimit
	}
	if opts.Delay <= 0 {
		opts.Delay = DebounceDelay
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		searcher: searcher,
		limit:    opts.Limit,
		delay:    opts.Delay,
		clock:    opts.Clock,
		logger:   opts.Logger,
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
		cursor:   -1,
	}
}

// Type records the full input value after a keystroke. A blank value
// returns to Idle at once; anything else restarts the debounce timer.
func (s *Session) Type(value string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.query = value
	s.cursor = -1
	s.seq++
	s.stopTimerLocked()

	if strings.TrimSpace(value) == "" {
		s.state = Idle
		s.results = nil
		s.err = nil
		s.open = false
		s.unlockAndNotify()
		return
	}

	s.state = Debouncing
	seq := s.seq
	s.wg.Add(1)
	s.timer = s.clock.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.run(seq, value)
	})
	s.unlockAndNotify()
}

// run issues the query scheduled for seq, unless a later keystroke has
// superseded it.
func (s *Session) run(seq uint64, query string) {
	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = Querying
	s.unlockAndNotify()

	products, err := s.searcher.Search(s.ctx, query, s.limit)

	s.mu.Lock()
	if s.closed || seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("discarding stale search response", slog.String("query", query))
		return
	}
	s.cursor = -1
	s.open = true
	switch {
	case err != nil:
		s.logger.Warn("search failed", slog.String("query", query), slog.String("error", err.Error()))
		s.state = Failed
		s.results = nil
		s.err = err
	case len(products) == 0:
		s.state = Empty
		s.results = nil
		s.err = nil
	default:
		s.state = Results
		s.results = products
		s.err = nil
	}
	s.unlockAndNotify()
}

// Down moves the cursor to the next result, stopping at the last.
func (s *Session) Down() {
	s.mu.Lock()
	if s.open && len(s.results) > 0 {
		s.cursor = min(s.cursor+1, len(s.results)-1)
	}
	s.unlockAndNotify()
}

// Up moves the cursor to the previous result. Above the first result the
// cursor returns to the input (-1).
func (s *Session) Up() {
	s.mu.Lock()
	if s.open && len(s.results) > 0 {
		s.cursor = max(s.cursor-1, -1)
	}
	s.unlockAndNotify()
}

// Enter submits the box. With a result highlighted it targets that product;
// otherwise a non-blank query targets the full search page.
func (s *Session) Enter() (Target, bool) {
	s.mu.Lock()
	if s.open && s.cursor >= 0 && s.cursor < len(s.results) {
		handle := s.results[s.cursor].Handle
		s.resetLocked()
		s.unlockAndNotify()
		return ProductTarget(handle), true
	}
	q := strings.TrimSpace(s.query)
	if q == "" {
		s.mu.Unlock()
		return Target{}, false
	}
	s.open = false
	s.cursor = -1
	s.unlockAndNotify()
	return SearchTarget(q), true
}

// Select chooses result i directly and clears the box.
func (s *Session) Select(i int) (Target, bool) {
	s.mu.Lock()
	if i < 0 || i >= len(s.results) {
		s.mu.Unlock()
		return Target{}, false
	}
	handle := s.results[i].Handle
	s.resetLocked()
	s.unlockAndNotify()
	return ProductTarget(handle), true
}

// Escape closes the dropdown and keeps the query and results.
func (s *Session) Escape() {
	s.mu.Lock()
	s.open = false
	s.cursor = -1
	s.unlockAndNotify()
}

// Focus reopens the dropdown when there is something to show.
func (s *Session) Focus() {
	s.mu.Lock()
	if strings.TrimSpace(s.query) != "" && (len(s.results) > 0 || s.state == Empty) {
		s.open = true
	}
	s.unlockAndNotify()
}

// Dismiss handles a click outside the box. An in-flight query is
// abandoned and shown results are dropped. A pending debounce is kept.
func (s *Session) Dismiss() {
	s.mu.Lock()
	switch s.state {
	case Querying, Results, Empty, Failed:
		s.seq++
		s.state = Idle
		s.results = nil
		s.err = nil
	}
	s.open = false
	s.cursor = -1
	s.unlockAndNotify()
}

// Clear empties the box.
func (s *Session) Clear() {
	s.Type("")
}

// View returns a copy of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close cancels pending work and waits for running callbacks to return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Session) resetLocked() {
	s.seq++
	s.stopTimerLocked()
	s.query = ""
	s.state = Idle
	s.results = nil
	s.err = nil
	s.open = false
	s.cursor = -1
}

func (s *Session) stopTimerLocked() {
	if s.timer == nil {
		return
	}
	if s.timer.Stop() {
		s.wg.Done()
	}
	s.timer = nil
}

func (s *Session) viewLocked() View {
	v := View{
		Query:  s.query,
		State:  s.state,
		Err:    s.err,
		Cursor: s.cursor,
		Open:   s.open,
	}
	if len(s.results) > 0 {
		v.Results = append([]model.Product(nil), s.results...)
	}
	return v
}

func (s *Session) unlockAndNotify() {
	v := s.viewLocked()
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange(v)
	}
}
