package leads

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for lead storage
type Repository interface {
	// Create assigns ID and CreatedAt, stores the lead and returns the stored copy.
	Create(ctx context.Context, lead *Lead) (*Lead, error)
	Get(ctx context.Context, id string) (*Lead, error)
	// ListPage returns up to PageSize leads, newest first, strictly after cursor.
	ListPage(ctx context.Context, cursor string) (*Page, error)
	// UpdateFields writes only the present fields of update.
	UpdateFields(ctx context.Context, id string, update LeadUpdate) error
	// DeleteAll removes every lead and returns how many were deleted.
	DeleteAll(ctx context.Context) (int, error)
}

// ForEach walks every stored lead, newest first, one page at a time.
func ForEach(ctx context.Context, repo Repository, fn func(*Lead) error) error {
	cursor := ""
	for {
		page, err := repo.ListPage(ctx, cursor)
		if err != nil {
			return err
		}
		for _, lead := range page.Leads {
			if err := fn(lead); err != nil {
				return err
			}
		}
		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// InMemoryRepository is a Repository using in-memory storage
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*Lead
	now   func() time.Time
}

// MemoryOption configures an InMemoryRepository.
type MemoryOption func(*InMemoryRepository)

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) MemoryOption {
	return func(r *InMemoryRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository(opts ...MemoryOption) *InMemoryRepository {
	r := &InMemoryRepository{
		leads: make(map[string]*Lead),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *InMemoryRepository) Create(ctx context.Context, lead *Lead) (*Lead, error) {
	if lead == nil {
		return nil, storageErr("create", errNilLead)
	}
	if err := ctx.Err(); err != nil {
		return nil, storageErr("create", err)
	}

	stored := lead.Clone()
	stored.ID = uuid.New().String()
	stored.CreatedAt = r.now().UTC()

	r.mu.Lock()
	r.leads[stored.ID] = stored
	r.mu.Unlock()

	return stored.Clone(), nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead.Clone(), nil
}

func (r *InMemoryRepository) ListPage(ctx context.Context, cursor string) (*Page, error) {
	pos, err := decodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	all := make([]*Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		if pos == nil || pos.before(lead) {
			all = append(all, lead.Clone())
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(all, newestFirst)
	if len(all) > PageSize+1 {
		all = all[:PageSize+1]
	}
	return buildPage(all), nil
}

func (r *InMemoryRepository) UpdateFields(ctx context.Context, id string, update LeadUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	update.Apply(lead)
	return nil
}

func (r *InMemoryRepository) DeleteAll(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.leads)
	r.leads = make(map[string]*Lead)
	return n, nil
}
