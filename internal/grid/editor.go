package grid

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"schedula/availability/internal/domain"
)

// Editor is one operator's editing session over the availability grid.
type Editor struct {
	operator Operator
	backend  Backend
	catalog  domain.SlotCatalog
	log      *slog.Logger

	store     *Store
	ledger    *Ledger
	projector *Projector
	engine    *Engine
	selection *Selection
	notices   *Notices

	mu    sync.RWMutex
	year  int
	month time.Month
}

type editorOptions struct {
	catalog   *domain.SlotCatalog
	log       *slog.Logger
	noticeTTL time.Duration
	now       func() time.Time
}

type EditorOption func(*editorOptions)

func WithCatalog(c domain.SlotCatalog) EditorOption {
	return func(o *editorOptions) { o.catalog = &c }
}

func WithLogger(log *slog.Logger) EditorOption {
	return func(o *editorOptions) { o.log = log }
}

func WithNoticeTTL(ttl time.Duration) EditorOption {
	return func(o *editorOptions) { o.noticeTTL = ttl }
}

func WithClock(now func() time.Time) EditorOption {
	return func(o *editorOptions) { o.now = now }
}

func NewEditor(op Operator, backend Backend, opts ...EditorOption) (*Editor, error) {
	if !op.CanEditAvailability() {
		return nil, ErrNotAuthorized
	}
	if backend == nil {
		return nil, errors.New("grid: backend is required")
	}

	o := editorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	catalog := domain.DefaultCatalog()
	if o.catalog != nil {
		catalog = *o.catalog
	}
	if catalog.Len() == 0 {
		return nil, errors.New("grid: slot catalog must not be empty")
	}
	log := o.log
	if log == nil {
		log = slog.Default()
	}
	now := o.now
	if now == nil {
		now = time.Now
	}

	store := NewStore()
	ledger := NewLedger(catalog)
	today := domain.DateOf(now())

	return &Editor{
		operator:  op,
		backend:   backend,
		catalog:   catalog,
		log:       log.With(slog.String("component", "grid.editor"), slog.String("operator_id", op.ID)),
		store:     store,
		ledger:    ledger,
		projector: NewProjector(catalog, store, ledger),
		engine:    NewEngine(backend, log),
		selection: NewSelection(store, ledger),
		notices:   NewNotices(o.noticeTTL, now),
		year:      today.Year,
		month:     today.Month,
	}, nil
}

func (e *Editor) Operator() Operator { return e.operator }
func (e *Editor) Catalog() domain.SlotCatalog { return e.catalog }
func (e *Editor) Store() *Store { return e.store }
func (e *Editor) Ledger() *Ledger { return e.ledger }
func (e *Editor) Notices() *Notices { return e.notices }

// CurrentMonth is the month most recently requested through ShowMonth.
func (e *Editor) CurrentMonth() (int, time.Month) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.year, e.month
}

// ShowMonth switches the calendar to the given month and loads its
// availability. Pending edits survive month navigation.
func (e *Editor) ShowMonth(ctx context.Context, year int, month time.Month) error {
	first, last := domain.MonthRange(year, month)

	e.mu.Lock()
	e.year, e.month = first.Year, first.Month
	e.mu.Unlock()

	return e.load(ctx, first, last)
}

// PrevMonth and NextMonth navigate relative to the current month.
func (e *Editor) PrevMonth(ctx context.Context) error {
	y, m := e.CurrentMonth()
	return e.ShowMonth(ctx, y, m-1)
}

func (e *Editor) NextMonth(ctx context.Context) error {
	y, m := e.CurrentMonth()
	return e.ShowMonth(ctx, y, m+1)
}

func (e *Editor) load(ctx context.Context, first, last domain.Date) error {
	records, err := e.store.Load(ctx, e.backend, first, last)
	if err != nil {
		if errors.Is(err, ErrLoadSuperseded) {
			e.log.Debug("stale load dropped", slog.String("range_start", first.String()), slog.String("range_end", last.String()))
			return err
		}
		e.log.Error("availability load failed", slog.Any("err", err))
		e.notices.Post(NoticeError, "Error loading availability")
		return err
	}
	e.log.Debug("availability loaded",
		slog.String("range_start", first.String()),
		slog.String("range_end", last.String()),
		slog.Int("count", len(records)),
	)
	return nil
}

func (e *Editor) Select(date domain.Date) error {
	return e.selection.Select(date)
}

func (e *Editor) Selected() (domain.Date, bool) {
	return e.selection.Selected()
}

func (e *Editor) Toggle(start domain.SlotStart) (bool, error) {
	return e.selection.Toggle(start)
}

func (e *Editor) MarkWholeDay(isOpen bool) error {
	if err := e.selection.MarkWholeDay(isOpen); err != nil {
		return err
	}
	e.notices.Post(NoticeSuccess, "Changes staged. Save to apply them")
	return nil
}

func (e *Editor) DaySlots() ([]SlotView, error) {
	return e.selection.Slots()
}

// Month renders the current month's day aggregates.
func (e *Editor) Month() []domain.DayAggregate {
	y, m := e.CurrentMonth()
	return e.projector.Month(y, m)
}

func (e *Editor) Day(date domain.Date) domain.DayAggregate {
	return e.projector.Day(date)
}

func (e *Editor) PendingCount() int {
	return e.ledger.Len()
}

func (e *Editor) Commit(ctx context.Context) (CommitResult, error) {
	res, err := e.engine.Commit(ctx, e.ledger, e.store)
	switch {
	case errors.Is(err, ErrCommitInFlight):
		return res, err
	case err != nil:
		e.log.Error("commit failed", slog.Any("err", err))
		e.notices.Post(NoticeError, "Error saving changes")
		return res, err
	case res.NoOp:
		e.notices.Post(NoticeError, "No pending changes to save")
		return res, nil
	}
	e.notices.Post(NoticeSuccess, fmt.Sprintf("%s saved", plural(res.Applied, "change", "changes")))
	return res, nil
}

// Discard drops all pending edits and reloads the current month.
func (e *Editor) Discard(ctx context.Context) error {
	err := e.engine.Discard(ctx, e.ledger, func(ctx context.Context) error {
		first, last := domain.MonthRange(e.CurrentMonth())
		return e.load(ctx, first, last)
	})
	if err != nil && !errors.Is(err, ErrLoadSuperseded) {
		return err
	}
	e.notices.Post(NoticeSuccess, "Changes discarded")
	return nil
}

// CommitNow writes the toggled value of one slot on the selected day
// straight to the backend, without staging it.
func (e *Editor) CommitNow(ctx context.Context, start domain.SlotStart) (bool, error) {
	writer, ok := e.backend.(SingleWriter)
	if !ok {
		return false, ErrSingleWriteUnsupported
	}
	date, ok := e.selection.Selected()
	if !ok {
		return false, ErrNoSelection
	}
	if !e.catalog.Contains(start) {
		return false, validationError("slot %s is not in the catalog", start)
	}
	key := domain.NewSlotKey(date, start)
	change := domain.NewPendingChange(key, !e.ledger.EffectiveValue(key, e.store))

	if err := e.engine.CommitOne(ctx, writer, e.store, change); err != nil {
		if !errors.Is(err, ErrCommitInFlight) {
			e.notices.Post(NoticeError, "Error saving change")
		}
		return false, err
	}
	e.ledger.Drop(key)
	return change.IsOpen, nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
