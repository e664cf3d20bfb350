/*
service.go - Profile and person management around the payout engine

PURPOSE:
  The roster is the collaborator that owns the two collections the engine
  reads: profiles (rate templates with deduction rules) and persons
  (instances of work bound to a profile). It validates input, coerces
  numbers at the boundary, assigns ids and keeps the collections
  consistent. Every report is a fresh recomputation over a snapshot.

OPERATIONS:
  Profiles:
    CreateProfile       Validate, assign ids, store
    UpdateProfile       Replace fields; bound persons get the new name and
                        worker rate, stale active deduction ids are pruned
    DeleteProfile       Cascades to every person bound to the profile

  Persons:
    AddPerson           Copies name and base worker rate from the profile,
                        client rate 0, empty time entry, nothing active
    RemovePerson
    UpdateTimeEntry     One field at a time (start, pause, resume, stop, total_hours)
    SetClientRate
    SetDeductionActive  Only deductions of the bound profile

  Reports:
    Summary, Report     Delegate to the payout package

COERCION:
  Rates and deduction values that are negative or not finite become 0.

CONCURRENCY:
  Mutations are read-modify-write against the Store. The service holds a
  mutex around them so two edits to one record cannot interleave.

SEE ALSO:
  - store.go: Persistence contract
  - payout/: The engine
*/
package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// ProfileInput is the editable part of a profile.
type ProfileInput struct {
	Name           string
	BaseWorkerRate float64
	Deductions     []DeductionInput
}

// DeductionInput is one deduction row of a profile being saved. An empty
// ID gets a fresh one.
type DeductionInput struct {
	ID                   string
	Basis                payout.Basis
	Kind                 payout.Kind
	Value                float64
	BeneficiaryProfileID string
}

// TimeField names one field of a time entry.
type TimeField string

const (
	FieldStart      TimeField = "start"
	FieldPause      TimeField = "pause"
	FieldResume     TimeField = "resume"
	FieldStop       TimeField = "stop"
	FieldTotalHours TimeField = "total_hours"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service manages profiles and persons.
type Service struct {
	store  Store
	logger *slog.Logger
	mu     sync.Mutex
	newID  func() string
}

// NewService creates a service over the given store.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger.With("component", "roster"),
		newID:  uuid.NewString,
	}
}

// =============================================================================
// PROFILES
// =============================================================================

// ListProfiles returns all profiles in insertion order.
func (s *Service) ListProfiles(ctx context.Context) ([]payout.Profile, error) {
	return s.store.ListProfiles(ctx)
}

// GetProfile returns one profile.
func (s *Service) GetProfile(ctx context.Context, id string) (payout.Profile, error) {
	return s.store.GetProfile(ctx, id)
}

// CreateProfile validates and stores a new profile.
func (s *Service) CreateProfile(ctx context.Context, in ProfileInput) (payout.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.buildProfile(s.newID(), in)
	if err != nil {
		return payout.Profile{}, err
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return payout.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	s.logger.InfoContext(ctx, "profile created", "profile_id", p.ID, "name", p.Name, "deductions", len(p.Deductions))
	return p, nil
}

// UpdateProfile replaces a profile's fields and propagates the name and
// worker rate to every person bound to it.
func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfileInput) (payout.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetProfile(ctx, id); err != nil {
		return payout.Profile{}, err
	}

	p, err := s.buildProfile(id, in)
	if err != nil {
		return payout.Profile{}, err
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return payout.Profile{}, fmt.Errorf("save profile: %w", err)
	}

	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		return payout.Profile{}, fmt.Errorf("list persons: %w", err)
	}
	updated := 0
	for _, person := range persons {
		if person.ProfileID != id {
			continue
		}
		person.Name = p.Name
		person.WorkerRate = p.BaseWorkerRate
		person.ActiveDeductionIDs = pruneActive(person.ActiveDeductionIDs, p)
		if err := s.store.SavePerson(ctx, person); err != nil {
			return payout.Profile{}, fmt.Errorf("update person %s: %w", person.ID, err)
		}
		updated++
	}

	s.logger.InfoContext(ctx, "profile updated", "profile_id", id, "persons_updated", updated)
	return p, nil
}

// DeleteProfile removes a profile and every person bound to it.
func (s *Service) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteProfile(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "profile deleted", "profile_id", id)
	return nil
}

func (s *Service) buildProfile(id string, in ProfileInput) (payout.Profile, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return payout.Profile{}, fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	p := payout.Profile{
		ID:             id,
		Name:           name,
		BaseWorkerRate: payout.NonNegative(in.BaseWorkerRate),
		Deductions:     make([]payout.Deduction, 0, len(in.Deductions)),
	}

	seen := make(map[string]bool, len(in.Deductions))
	for i, din := range in.Deductions {
		d, err := s.buildDeduction(id, din)
		if err != nil {
			return payout.Profile{}, fmt.Errorf("deduction %d: %w", i, err)
		}
		if seen[d.ID] {
			return payout.Profile{}, fmt.Errorf("%w: duplicate deduction id %q", ErrInvalidProfile, d.ID)
		}
		seen[d.ID] = true
		p.Deductions = append(p.Deductions, d)
	}
	return p, nil
}

func (s *Service) buildDeduction(profileID string, in DeductionInput) (payout.Deduction, error) {
	switch in.Basis {
	case payout.BasisWage, payout.BasisMargin:
	default:
		return payout.Deduction{}, fmt.Errorf("%w: unknown basis %q", ErrInvalidProfile, in.Basis)
	}

	value := payout.NonNegative(in.Value)
	switch in.Kind {
	case payout.KindPercentage:
		if value.GreaterThan(payout.FromFloat(100)) {
			return payout.Deduction{}, fmt.Errorf("%w: percentage %s exceeds 100", ErrInvalidProfile, value)
		}
	case payout.KindFixedAmount:
	default:
		return payout.Deduction{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidProfile, in.Kind)
	}

	if in.BeneficiaryProfileID != "" && in.BeneficiaryProfileID == profileID {
		return payout.Deduction{}, fmt.Errorf("%w: a profile cannot be its own beneficiary", ErrInvalidProfile)
	}

	id := in.ID
	if id == "" {
		id = s.newID()
	}
	return payout.Deduction{
		ID:                   id,
		Basis:                in.Basis,
		Kind:                 in.Kind,
		Value:                value,
		BeneficiaryProfileID: in.BeneficiaryProfileID,
	}, nil
}

func pruneActive(active []string, p payout.Profile) []string {
	kept := make([]string, 0, len(active))
	for _, id := range active {
		if _, ok := p.FindDeduction(id); ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// =============================================================================
// PERSONS
// =============================================================================

// ListPersons returns all persons in insertion order.
func (s *Service) ListPersons(ctx context.Context) ([]payout.Person, error) {
	return s.store.ListPersons(ctx)
}

// GetPerson returns one person.
func (s *Service) GetPerson(ctx context.Context, id string) (payout.Person, error) {
	return s.store.GetPerson(ctx, id)
}

// AddPerson creates a person from a profile.
func (s *Service) AddPerson(ctx context.Context, profileID string) (payout.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return payout.Person{}, err
	}

	p := payout.Person{
		ID:                 s.newID(),
		ProfileID:          profile.ID,
		Name:               profile.Name,
		WorkerRate:         profile.BaseWorkerRate,
		ClientRate:         payout.FromFloat(0),
		ActiveDeductionIDs: []string{},
	}
	if err := s.store.SavePerson(ctx, p); err != nil {
		return payout.Person{}, fmt.Errorf("save person: %w", err)
	}

	s.logger.InfoContext(ctx, "person added", "person_id", p.ID, "profile_id", profile.ID)
	return p, nil
}

// RemovePerson deletes a person.
func (s *Service) RemovePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.DeletePerson(ctx, id)
}

// UpdateTimeEntry sets one field of a person's time entry. Clock fields
// accept "HH:MM", "HH:MM:SS" or an empty string to clear.
func (s *Service) UpdateTimeEntry(ctx context.Context, id string, field TimeField, value string) (payout.Person, error) {
	return s.mutatePerson(ctx, id, func(p *payout.Person) error {
		value = strings.TrimSpace(value)
		if field != FieldTotalHours && value != "" {
			if _, ok := payout.ParseClock(value); !ok {
				return fmt.Errorf("%w: %s %q is not a clock time", ErrInvalidPerson, field, value)
			}
		}

		switch field {
		case FieldStart:
			p.TimeEntry.Start = value
		case FieldPause:
			p.TimeEntry.Pause = value
		case FieldResume:
			p.TimeEntry.Resume = value
		case FieldStop:
			p.TimeEntry.Stop = value
		case FieldTotalHours:
			hours := 0.0
			if value != "" {
				f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
				if err != nil {
					return fmt.Errorf("%w: total_hours %q: %v", ErrInvalidPerson, value, err)
				}
				hours = f
			}
			p.TimeEntry.ManualTotalHours = payout.NonNegative(hours)
		default:
			return fmt.Errorf("%w: unknown time field %q", ErrInvalidPerson, field)
		}
		return nil
	})
}

// SetClientRate sets the per-engagement client rate.
func (s *Service) SetClientRate(ctx context.Context, id string, rate float64) (payout.Person, error) {
	return s.mutatePerson(ctx, id, func(p *payout.Person) error {
		p.ClientRate = payout.NonNegative(rate)
		return nil
	})
}

// SetDeductionActive toggles one deduction of the bound profile for a person.
func (s *Service) SetDeductionActive(ctx context.Context, personID, deductionID string, active bool) (payout.Person, error) {
	return s.mutatePerson(ctx, personID, func(p *payout.Person) error {
		profile, err := s.store.GetProfile(ctx, p.ProfileID)
		if err != nil {
			return err
		}
		if _, ok := profile.FindDeduction(deductionID); !ok {
			return fmt.Errorf("%w: %s", ErrDeductionNotFound, deductionID)
		}

		without := make([]string, 0, len(p.ActiveDeductionIDs)+1)
		for _, id := range p.ActiveDeductionIDs {
			if id != deductionID {
				without = append(without, id)
			}
		}
		if active {
			without = append(without, deductionID)
		}
		p.ActiveDeductionIDs = without
		return nil
	})
}

func (s *Service) mutatePerson(ctx context.Context, id string, fn func(*payout.Person) error) (payout.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return payout.Person{}, err
	}
	if err := fn(&p); err != nil {
		return payout.Person{}, err
	}
	if err := s.store.SavePerson(ctx, p); err != nil {
		return payout.Person{}, fmt.Errorf("save person: %w", err)
	}
	return p, nil
}

// =============================================================================
// WORKSPACE AND REPORTS
// =============================================================================

// Snapshot returns both collections as they are now.
func (s *Service) Snapshot(ctx context.Context) ([]payout.Profile, []payout.Person, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list profiles: %w", err)
	}
	persons, err := s.store.ListPersons(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list persons: %w", err)
	}
	return profiles, persons, nil
}

// Load replaces the whole workspace. Persons whose profile is not part of
// the new profiles are dropped.
func (s *Service) Load(ctx context.Context, profiles []payout.Profile, persons []payout.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		known[p.ID] = true
	}
	kept := make([]payout.Person, 0, len(persons))
	for _, p := range persons {
		if known[p.ProfileID] {
			kept = append(kept, p)
		} else {
			s.logger.WarnContext(ctx, "dropping person with unknown profile", "person_id", p.ID, "profile_id", p.ProfileID)
		}
	}

	if err := s.store.Replace(ctx, profiles, kept); err != nil {
		return fmt.Errorf("replace workspace: %w", err)
	}
	s.logger.InfoContext(ctx, "workspace loaded", "profiles", len(profiles), "persons", len(kept))
	return nil
}

// Reset clears every profile and person.
func (s *Service) Reset(ctx context.Context) error {
	return s.Load(ctx, nil, nil)
}

// Summary computes the financial summary of one person.
func (s *Service) Summary(ctx context.Context, personID string) (payout.FinancialSummary, error) {
	person, err := s.store.GetPerson(ctx, personID)
	if err != nil {
		return payout.FinancialSummary{}, err
	}
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return payout.FinancialSummary{}, fmt.Errorf("list profiles: %w", err)
	}
	return payout.ComputeFinancialSummary(person, profiles), nil
}

// Report recomputes summaries, payouts and totals for the current workspace.
func (s *Service) Report(ctx context.Context) (payout.Report, error) {
	profiles, persons, err := s.Snapshot(ctx)
	if err != nil {
		return payout.Report{}, err
	}
	return payout.BuildReport(persons, profiles), nil
}
