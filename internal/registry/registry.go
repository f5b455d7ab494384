package registry

import (
	"sort"
	"sync"
	"time"

	"sitetrack/internal/domain"
)

// Broadcaster receives the event emitted by every successful mutation.
// A nil broadcaster disables emission.
type Broadcaster interface {
	Broadcast(evt domain.Event)
}

// Registry is the single source of truth for current per-user position.
// All mutation goes through Update; readers get copies.
type Registry struct {
	mu        sync.RWMutex
	users     map[string]*domain.UserLocation
	byProject map[string]map[string]struct{}
	byRole    map[domain.Role]map[string]struct{}

	staleAfter  time.Duration
	broadcaster Broadcaster
}

func New(staleAfter time.Duration, broadcaster Broadcaster) *Registry {
	return &Registry{
		users:       make(map[string]*domain.UserLocation),
		byProject:   make(map[string]map[string]struct{}),
		byRole:      make(map[domain.Role]map[string]struct{}),
		staleAfter:  staleAfter,
		broadcaster: broadcaster,
	}
}

// Update validates and upserts the position of one user. The new record
// fully replaces the prior one (last-write-wins, no field merge) and a
// location:updated event is emitted, scoped to the record's project when
// present.
func (r *Registry) Update(userID string, coords domain.Coordinates, role domain.Role, projectID, userName string) (*domain.UserLocation, error) {
	if userID == "" {
		return nil, &domain.ValidationError{Field: "userId", Message: "userId is required"}
	}
	if _, ok := domain.RoleColor[role]; !ok {
		return nil, &domain.ValidationError{Field: "role", Message: "invalid role: must be manager, foreman or labour"}
	}
	if err := coords.Validate(); err != nil {
		return nil, err
	}

	loc := &domain.UserLocation{
		UserID:      userID,
		Role:        role,
		Coordinates: coords,
		ProjectID:   projectID,
		UserName:    userName,
		LastUpdated: time.Now(),
	}

	r.mu.Lock()
	if existing, ok := r.users[userID]; ok {
		if existing.ProjectID != loc.ProjectID {
			r.removeFromProjectIndex(userID, existing.ProjectID)
		}
		if existing.Role != loc.Role {
			r.removeFromRoleIndex(userID, existing.Role)
		}
	}
	r.users[userID] = loc
	r.addToIndices(loc)

	result := *loc
	// Emitting under the lock keeps per-user events in acceptance order.
	// Broadcast never blocks, so holding the mutex here is safe.
	if r.broadcaster != nil {
		r.broadcaster.Broadcast(domain.Event{
			Name:      domain.EventLocationUpdated,
			ProjectID: result.ProjectID,
			Payload:   result,
		})
	}
	r.mu.Unlock()

	return &result, nil
}

// Get returns the record for one user regardless of staleness.
func (r *Registry) Get(userID string) (*domain.UserLocation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loc, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	copy := *loc
	return &copy, true
}

// ActiveUsers returns all non-stale records, optionally filtered to one
// project, each colored by role.
func (r *Registry) ActiveUsers(projectID string) []domain.ActiveUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if projectID != "" {
		return r.collect(r.byProject[projectID])
	}

	all := make(map[string]struct{}, len(r.users))
	for id := range r.users {
		all[id] = struct{}{}
	}
	return r.collect(all)
}

// ByRole returns the non-stale records of every user with the given role.
func (r *Registry) ByRole(role domain.Role) []domain.ActiveUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.byRole[role])
}

// Count returns the number of tracked users, stale ones included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ActiveCount returns the number of non-stale records.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := time.Now().Add(-r.staleAfter)
	n := 0
	for _, loc := range r.users {
		if !loc.LastUpdated.Before(cutoff) {
			n++
		}
	}
	return n
}

// collect assumes r.mu is held.
func (r *Registry) collect(ids map[string]struct{}) []domain.ActiveUser {
	cutoff := time.Now().Add(-r.staleAfter)

	result := make([]domain.ActiveUser, 0, len(ids))
	for id := range ids {
		loc := r.users[id]
		if loc == nil || loc.LastUpdated.Before(cutoff) {
			continue
		}
		result = append(result, domain.ActiveUser{
			UserLocation: *loc,
			Color:        domain.RoleColor[loc.Role],
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UserID < result[j].UserID
	})
	return result
}

func (r *Registry) addToIndices(loc *domain.UserLocation) {
	if loc.ProjectID != "" {
		if r.byProject[loc.ProjectID] == nil {
			r.byProject[loc.ProjectID] = make(map[string]struct{})
		}
		r.byProject[loc.ProjectID][loc.UserID] = struct{}{}
	}

	if r.byRole[loc.Role] == nil {
		r.byRole[loc.Role] = make(map[string]struct{})
	}
	r.byRole[loc.Role][loc.UserID] = struct{}{}
}

func (r *Registry) removeFromProjectIndex(userID, projectID string) {
	if projectID == "" {
		return
	}
	if r.byProject[projectID] != nil {
		delete(r.byProject[projectID], userID)
		if len(r.byProject[projectID]) == 0 {
			delete(r.byProject, projectID)
		}
	}
}

func (r *Registry) removeFromRoleIndex(userID string, role domain.Role) {
	if r.byRole[role] != nil {
		delete(r.byRole[role], userID)
		if len(r.byRole[role]) == 0 {
			delete(r.byRole, role)
		}
	}
}
