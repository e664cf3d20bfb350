// Package store provides roster.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/roster"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps both collections in slices so insertion order survives
// updates. Records are copied on the way in and out.
type Memory struct {
	mu       sync.RWMutex
	profiles []payout.Profile
	persons  []payout.Person
}

var _ roster.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ListProfiles(_ context.Context) ([]payout.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payout.Profile, len(m.profiles))
	for i, p := range m.profiles {
		result[i] = cloneProfile(p)
	}
	return result, nil
}

func (m *Memory) GetProfile(_ context.Context, id string) (payout.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.profileIndexLocked(id)
	if i < 0 {
		return payout.Profile{}, roster.ErrProfileNotFound
	}
	return cloneProfile(m.profiles[i]), nil
}

// SaveProfile replaces in place or appends.
func (m *Memory) SaveProfile(_ context.Context, p payout.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.profileIndexLocked(p.ID); i >= 0 {
		m.profiles[i] = cloneProfile(p)
		return nil
	}
	m.profiles = append(m.profiles, cloneProfile(p))
	return nil
}

// DeleteProfile removes the profile and its persons under one lock.
func (m *Memory) DeleteProfile(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.profileIndexLocked(id)
	if i < 0 {
		return roster.ErrProfileNotFound
	}
	m.profiles = append(m.profiles[:i], m.profiles[i+1:]...)

	kept := m.persons[:0]
	for _, p := range m.persons {
		if p.ProfileID != id {
			kept = append(kept, p)
		}
	}
	m.persons = kept
	return nil
}

func (m *Memory) ListPersons(_ context.Context) ([]payout.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]payout.Person, len(m.persons))
	for i, p := range m.persons {
		result[i] = clonePerson(p)
	}
	return result, nil
}

func (m *Memory) GetPerson(_ context.Context, id string) (payout.Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.personIndexLocked(id)
	if i < 0 {
		return payout.Person{}, roster.ErrPersonNotFound
	}
	return clonePerson(m.persons[i]), nil
}

// SavePerson replaces in place or appends. The person's profile must exist.
func (m *Memory) SavePerson(_ context.Context, p payout.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.profileIndexLocked(p.ProfileID) < 0 {
		return roster.ErrProfileNotFound
	}
	if i := m.personIndexLocked(p.ID); i >= 0 {
		m.persons[i] = clonePerson(p)
		return nil
	}
	m.persons = append(m.persons, clonePerson(p))
	return nil
}

func (m *Memory) DeletePerson(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.personIndexLocked(id)
	if i < 0 {
		return roster.ErrPersonNotFound
	}
	m.persons = append(m.persons[:i], m.persons[i+1:]...)
	return nil
}

func (m *Memory) Replace(_ context.Context, profiles []payout.Profile, persons []payout.Person) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles = make([]payout.Profile, len(profiles))
	for i, p := range profiles {
		m.profiles[i] = cloneProfile(p)
	}
	m.persons = make([]payout.Person, len(persons))
	for i, p := range persons {
		m.persons[i] = clonePerson(p)
	}
	return nil
}

func (m *Memory) profileIndexLocked(id string) int {
	for i, p := range m.profiles {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) personIndexLocked(id string) int {
	for i, p := range m.persons {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func cloneProfile(p payout.Profile) payout.Profile {
	p.Deductions = append([]payout.Deduction(nil), p.Deductions...)
	return p
}

func clonePerson(p payout.Person) payout.Person {
	p.ActiveDeductionIDs = append([]string(nil), p.ActiveDeductionIDs...)
	return p
}
