// Package dashboard owns the editable consumption snapshot for one session
// and keeps it in step with the persistence service.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sadopc/greencampus/internal/metrics"
	"github.com/sadopc/greencampus/internal/remote"
	"github.com/sadopc/greencampus/internal/session"
)

// Remote is the persistence service as seen by the dashboard. ok is false
// when the service holds no snapshot.
type Remote interface {
	FetchSnapshot(ctx context.Context) (snap metrics.Snapshot, ok bool, err error)
	SaveSnapshot(ctx context.Context, snap metrics.Snapshot) error
}

// Attempt runs a remote operation. The default runs it exactly once; a
// retrying implementation can be supplied with WithAttempt.
type Attempt func(ctx context.Context, op func(context.Context) error) error

func Once(ctx context.Context, op func(context.Context) error) error {
	return op(ctx)
}

var (
	ErrAlreadyLoaded = errors.New("dashboard already loaded")
	ErrNoSuchRecord  = errors.New("no such record")
)

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaults sets the snapshot shown until a remote one arrives.
func WithDefaults(snap metrics.Snapshot) Option {
	return func(s *Store) { s.snapshot = snap.Clone() }
}

func WithAttempt(a Attempt) Option {
	return func(s *Store) {
		if a != nil {
			s.attempt = a
		}
	}
}

// Store is the sole owner of the session's snapshot. Derived values are
// recomputed on every read.
//
// Writes to the remote are armed only once Load has settled. Edits made
// before that are kept locally, win over the late remote snapshot, and are
// persisted when Load returns.
type Store struct {
	remote   Remote
	identity session.Identity
	log      *slog.Logger
	attempt  Attempt

	// persistMu is held for the whole of a remote write, never inside mu.
	persistMu sync.Mutex

	mu          sync.Mutex
	snapshot    metrics.Snapshot
	loadStarted bool
	settled     bool
	fromRemote  bool
	dirty       bool
	pending     bool
	retired     bool
	generation  uint64
}

func New(r Remote, id session.Identity, opts ...Option) *Store {
	s := &Store{
		remote:   r,
		identity: id,
		log:      slog.New(slog.DiscardHandler),
		attempt:  Once,
		snapshot: metrics.DefaultSnapshot(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches the remote snapshot once. Non-empty remote categories replace
// the local ones; a failed or empty fetch keeps the defaults. Remote failures
// are logged, never returned.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.loadStarted {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	s.loadStarted = true
	s.mu.Unlock()

	snap, ok, err := s.remote.FetchSnapshot(ctx)

	s.mu.Lock()
	if s.retired {
		s.mu.Unlock()
		s.log.Debug("dashboard retired; dropping load result")
		return nil
	}
	s.settled = true
	switch {
	case err != nil:
		s.log.Warn("load dashboard snapshot failed; keeping local data", "err", err)
	case !ok || snap.Empty():
		s.log.Info("remote dashboard snapshot empty; keeping local data")
	case s.dirty:
		s.log.Info("local edits made during load; ignoring remote snapshot")
	default:
		s.applyRemote(snap)
	}
	flush := s.pending && s.dirty
	s.pending = false
	s.mu.Unlock()

	if flush {
		if err := s.Persist(ctx); err != nil {
			s.log.Warn("deferred dashboard persist failed", "err", err)
		}
	}
	return nil
}

// applyRemote must be called with mu held.
func (s *Store) applyRemote(snap metrics.Snapshot) {
	for _, c := range metrics.Categories() {
		series := snap.Series(c)
		if len(series) == 0 {
			continue
		}
		if err := metrics.ValidateSeries(series); err != nil {
			s.log.Warn("remote series invalid; keeping local data", "category", c, "err", err)
			continue
		}
		s.snapshot = s.snapshot.WithSeries(c, series)
		s.fromRemote = true
	}
}

// SetSeries replaces a category's series wholesale and persists it. Invalid
// records are rejected with a *metrics.ValidationError and leave the series
// unchanged. A persist failure keeps the edit locally and is returned
// wrapping remote.ErrUnavailable.
func (s *Store) SetSeries(ctx context.Context, c metrics.Category, records metrics.Series) error {
	return s.mutate(ctx, c, func(metrics.Series) (metrics.Series, error) {
		return records.Clone(), nil
	})
}

// mutate reads, edits, validates and commits a category's series under one
// hold of mu, so concurrent edits never build on the same stale series.
func (s *Store) mutate(ctx context.Context, c metrics.Category, edit func(metrics.Series) (metrics.Series, error)) error {
	if _, err := metrics.ParseCategory(string(c)); err != nil {
		return err
	}

	s.mu.Lock()
	next, err := edit(s.snapshot.Series(c).Clone())
	if err == nil {
		err = metrics.ValidateSeries(next)
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.snapshot = s.snapshot.WithSeries(c, next)
	s.dirty = true
	s.generation++
	if !s.settled {
		s.pending = true
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.Persist(ctx)
}

// Persist writes the snapshot to the remote when there are unsaved edits
// and the identity is an admin. Non-admin persists are skipped silently.
//
// Writes are serialized: each one sends the snapshot as it stands when the
// write starts, so the last write to finish always carries the newest edits.
func (s *Store) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	if !s.settled {
		s.pending = true
		s.mu.Unlock()
		return nil
	}
	if !s.identity.IsAdmin() {
		s.mu.Unlock()
		s.log.Info("dashboard persist skipped: identity is not admin", "identity", s.identity.String())
		return nil
	}
	snap := s.snapshot.Clone()
	gen := s.generation
	s.mu.Unlock()

	err := s.attempt(ctx, func(ctx context.Context) error {
		return s.remote.SaveSnapshot(ctx, snap)
	})
	if err != nil {
		s.log.Warn("save dashboard snapshot failed", "err", err)
		return remote.Wrap("save dashboard snapshot", err)
	}

	s.mu.Lock()
	if s.generation == gen {
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

// AddRecord appends a record to a category.
func (s *Store) AddRecord(ctx context.Context, c metrics.Category, r metrics.WeeklyRecord) error {
	return s.mutate(ctx, c, func(cur metrics.Series) (metrics.Series, error) {
		return append(cur, r), nil
	})
}

// UpdateRecord replaces the record at index i.
func (s *Store) UpdateRecord(ctx context.Context, c metrics.Category, i int, r metrics.WeeklyRecord) error {
	return s.mutate(ctx, c, func(cur metrics.Series) (metrics.Series, error) {
		if i < 0 || i >= len(cur) {
			return nil, fmt.Errorf("%w: %s[%d]", ErrNoSuchRecord, c, i)
		}
		cur[i] = r
		return cur, nil
	})
}

// DeleteRecord removes the record at index i.
func (s *Store) DeleteRecord(ctx context.Context, c metrics.Category, i int) error {
	return s.mutate(ctx, c, func(cur metrics.Series) (metrics.Series, error) {
		if i < 0 || i >= len(cur) {
			return nil, fmt.Errorf("%w: %s[%d]", ErrNoSuchRecord, c, i)
		}
		next := make(metrics.Series, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		return append(next, cur[i+1:]...), nil
	})
}

// Retire marks the store as no longer displayed; pending load results are
// dropped instead of applied.
func (s *Store) Retire() {
	s.mu.Lock()
	s.retired = true
	s.mu.Unlock()
}

func (s *Store) Snapshot() metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

func (s *Store) Series(c metrics.Category) metrics.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Series(c).Clone()
}

func (s *Store) Aggregates(c metrics.Category) metrics.Aggregates {
	return metrics.Aggregate(s.Series(c))
}

func (s *Store) GreenScore() int {
	return metrics.ScoreFor(s.Snapshot())
}

// Identity is the actor the store was opened for.
func (s *Store) Identity() session.Identity { return s.identity }

// Loaded reports whether Load has settled, successfully or not.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled
}

// FromRemote reports whether any category came from the remote snapshot.
func (s *Store) FromRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fromRemote
}

// Dirty reports unsaved local edits.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
