package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"parking-service/internal/model"
)

// MemorySessionRepository keeps sessions in process memory. It offers the
// same guarantees as the postgres repository: one open session per plate,
// compare-and-swap close and conditional paid update. Returned values are
// copies.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]model.VehicleSession
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[uuid.UUID]model.VehicleSession)}
}

func (r *MemorySessionRepository) Create(ctx context.Context, session *model.VehicleSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if session.ExitTime == nil {
		for _, existing := range r.sessions {
			if existing.Plate == session.Plate && existing.ExitTime == nil {
				return ErrOpenSessionExists
			}
		}
	}
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if _, ok := r.sessions[session.ID]; ok {
		return ErrAlreadyExists
	}

	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	r.sessions[session.ID] = cloneSession(*session)
	return nil
}

func (r *MemorySessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.VehicleSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneSession(session)
	return &out, nil
}

func (r *MemorySessionRepository) FindOpenByPlate(ctx context.Context, plate string) (*model.VehicleSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, session := range r.sessions {
		if session.Plate == plate && session.ExitTime == nil {
			out := cloneSession(session)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemorySessionRepository) Close(ctx context.Context, id uuid.UUID, closure SessionClosure) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok || session.ExitTime != nil {
		return ErrSessionNotOpen
	}

	exitTime := closure.ExitTime
	exitImage := closure.ExitImageRef
	amount := closure.Amount
	session.ExitTime = &exitTime
	session.ExitImageRef = &exitImage
	session.Amount = &amount
	session.Paid = closure.Paid
	session.UpdatedAt = time.Now().UTC()
	r.sessions[id] = session
	return nil
}

func (r *MemorySessionRepository) MarkPaid(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return false, ErrNotFound
	}
	if session.Paid || session.ExitTime == nil {
		return false, nil
	}
	session.Paid = true
	session.UpdatedAt = time.Now().UTC()
	r.sessions[id] = session
	return true, nil
}

func (r *MemorySessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *MemorySessionRepository) List(ctx context.Context, filter SessionFilter) ([]model.VehicleSession, error) {
	r.mu.RLock()
	plate := strings.ToUpper(strings.TrimSpace(filter.Plate))
	result := make([]model.VehicleSession, 0)
	for _, session := range r.sessions {
		if filter.From != nil && session.EntryTime.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !session.EntryTime.Before(*filter.To) {
			continue
		}
		if plate != "" && !strings.Contains(strings.ToUpper(session.Plate), plate) {
			continue
		}
		if !session.Matches(filter.Status) {
			continue
		}
		result = append(result, cloneSession(session))
	}
	r.mu.RUnlock()

	switch filter.Order {
	case OrderByExitDesc:
		sort.SliceStable(result, func(i, j int) bool {
			a, b := result[i].ExitTime, result[j].ExitTime
			switch {
			case a == nil && b == nil:
				return result[i].EntryTime.After(result[j].EntryTime)
			case a == nil:
				return false
			case b == nil:
				return true
			case a.Equal(*b):
				return result[i].EntryTime.After(result[j].EntryTime)
			default:
				return a.After(*b)
			}
		})
	default:
		sort.SliceStable(result, func(i, j int) bool {
			return result[i].EntryTime.After(result[j].EntryTime)
		})
	}

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (r *MemorySessionRepository) CountForPlateBetween(ctx context.Context, plate string, from, to time.Time, excludeID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for id, session := range r.sessions {
		if id == excludeID || session.Plate != plate {
			continue
		}
		if session.EntryTime.Before(from) || !session.EntryTime.Before(to) {
			continue
		}
		count++
	}
	return count, nil
}

func cloneSession(s model.VehicleSession) model.VehicleSession {
	out := s
	if s.ExitTime != nil {
		t := *s.ExitTime
		out.ExitTime = &t
	}
	if s.ExitImageRef != nil {
		ref := *s.ExitImageRef
		out.ExitImageRef = &ref
	}
	if s.Amount != nil {
		amount := *s.Amount
		out.Amount = &amount
	}
	return out
}

type MemoryCarPolicyRepository struct {
	mu       sync.RWMutex
	policies map[string]model.CarPolicy
}

func NewMemoryCarPolicyRepository() *MemoryCarPolicyRepository {
	return &MemoryCarPolicyRepository{policies: make(map[string]model.CarPolicy)}
}

func (r *MemoryCarPolicyRepository) GetByPlate(ctx context.Context, plate string) (*model.CarPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, ok := r.policies[plate]
	if !ok {
		return nil, ErrNotFound
	}
	out := clonePolicy(policy)
	return &out, nil
}

func (r *MemoryCarPolicyRepository) Create(ctx context.Context, policy *model.CarPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.policies[policy.Plate]; ok {
		return ErrAlreadyExists
	}
	if policy.ID == uuid.Nil {
		policy.ID = uuid.New()
	}
	now := time.Now().UTC()
	policy.CreatedAt = now
	policy.UpdatedAt = now
	r.policies[policy.Plate] = clonePolicy(*policy)
	return nil
}

func (r *MemoryCarPolicyRepository) Upsert(ctx context.Context, policy *model.CarPolicy) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	existing, ok := r.policies[policy.Plate]
	if ok {
		policy.ID = existing.ID
		policy.CreatedAt = existing.CreatedAt
	} else {
		if policy.ID == uuid.Nil {
			policy.ID = uuid.New()
		}
		policy.CreatedAt = now
	}
	policy.UpdatedAt = now
	r.policies[policy.Plate] = clonePolicy(*policy)
	return !ok, nil
}

func clonePolicy(p model.CarPolicy) model.CarPolicy {
	out := p
	if p.Position != nil {
		position := *p.Position
		out.Position = &position
	}
	return out
}

type MemoryCameraEventRepository struct {
	mu     sync.RWMutex
	events []model.CameraEvent
}

func NewMemoryCameraEventRepository() *MemoryCameraEventRepository {
	return &MemoryCameraEventRepository{}
}

func (r *MemoryCameraEventRepository) Create(ctx context.Context, event *model.CameraEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now().UTC()
	r.events = append(r.events, *event)
	return nil
}

func (r *MemoryCameraEventRepository) ListRecent(ctx context.Context, direction *model.CameraDirection, limit int) ([]model.CameraEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > 500 {
		limit = 100
	}
	result := make([]model.CameraEvent, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(result) < limit; i-- {
		if direction != nil && r.events[i].Direction != *direction {
			continue
		}
		result = append(result, r.events[i])
	}
	return result, nil
}
