/*
store.go - Persistence interface for profiles and persons

PURPOSE:
  Defines the interface between the roster service and the database.
  Different implementations can use SQLite or in-memory storage.

ORDERING CONTRACT:
  Payout distribution is sensitive to the order of persons and of the
  deductions inside a profile. Every implementation MUST return them in
  insertion order, and an update MUST keep a record in its original slot.

CASCADE:
  DeleteProfile removes every person bound to the profile in the same
  operation. No orphan persons are ever observable.

IMPLEMENTATIONS:
  - roster/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - service.go: Uses Store
*/
package roster

import (
	"context"

	"github.com/warp/payout-engine/payout"
)

// Store persists profiles and persons.
type Store interface {
	// ListProfiles returns all profiles in insertion order.
	ListProfiles(ctx context.Context) ([]payout.Profile, error)

	// GetProfile returns ErrProfileNotFound when the id is unknown.
	GetProfile(ctx context.Context, id string) (payout.Profile, error)

	// SaveProfile inserts or replaces a profile, keeping its position.
	SaveProfile(ctx context.Context, p payout.Profile) error

	// DeleteProfile removes the profile and every person bound to it.
	DeleteProfile(ctx context.Context, id string) error

	// ListPersons returns all persons in insertion order.
	ListPersons(ctx context.Context) ([]payout.Person, error)

	// GetPerson returns ErrPersonNotFound when the id is unknown.
	GetPerson(ctx context.Context, id string) (payout.Person, error)

	// SavePerson inserts or replaces a person, keeping its position.
	SavePerson(ctx context.Context, p payout.Person) error

	// DeletePerson returns ErrPersonNotFound when the id is unknown.
	DeletePerson(ctx context.Context, id string) error

	// Replace swaps the whole workspace atomically.
	Replace(ctx context.Context, profiles []payout.Profile, persons []payout.Person) error
}
