/*
Package sqlite provides a SQLite-backed implementation of roster.Store.

PURPOSE:
  Persists profiles (with their ordered deductions) and persons (with their
  time entries and active deductions) so a workspace survives restarts.

KEY TABLES:
  profiles:          Rate templates, ordered by seq
  deductions:        Deduction rows per profile, ordered by position
  persons:           Persons, ordered by seq, FK to profiles ON DELETE CASCADE
  person_deductions: Active deduction ids per person, ordered by position

ORDERING:
  seq is assigned on first insert and never changes, so updates keep a
  record in its slot. Distribution results depend on this order.

AMOUNTS:
  Money and hours are stored as decimal strings, never as REAL, so a
  round trip is exact.

MIGRATION:
  Schema lives in migrations/*.sql (embedded) and is applied with
  golang-migrate on New().

CONCURRENCY:
  Uses sync.RWMutex plus a single open connection. With one connection
  ":memory:" databases behave like a file: every query sees the schema.

USAGE:
  store, err := sqlite.New("./data/payout.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := roster.NewService(store, logger)

SEE ALSO:
  - roster/store.go: Interface definition
  - roster/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/roster"
)

// Store implements roster.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ roster.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// PROFILES
// =============================================================================

// ListProfiles returns all profiles ordered by insertion.
func (s *Store) ListProfiles(ctx context.Context) ([]payout.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, base_worker_rate FROM profiles ORDER BY seq",
	)
	if err != nil {
		return nil, err
	}

	var profiles []payout.Profile
	for rows.Next() {
		var p payout.Profile
		var rate string
		if err := rows.Scan(&p.ID, &p.Name, &rate); err != nil {
			rows.Close()
			return nil, err
		}
		p.BaseWorkerRate = parseDecimal(rate)
		profiles = append(profiles, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Deductions are loaded after the cursor is closed: the pool has a
	// single connection.
	for i := range profiles {
		deductions, err := loadDeductions(ctx, s.db, profiles[i].ID)
		if err != nil {
			return nil, err
		}
		profiles[i].Deductions = deductions
	}
	return profiles, nil
}

// GetProfile retrieves a profile by ID.
func (s *Store) GetProfile(ctx context.Context, id string) (payout.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p payout.Profile
	var rate string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, base_worker_rate FROM profiles WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &rate)
	if err == sql.ErrNoRows {
		return payout.Profile{}, roster.ErrProfileNotFound
	}
	if err != nil {
		return payout.Profile{}, err
	}
	p.BaseWorkerRate = parseDecimal(rate)

	p.Deductions, err = loadDeductions(ctx, s.db, id)
	if err != nil {
		return payout.Profile{}, err
	}
	return p, nil
}

// SaveProfile upserts a profile and rewrites its deductions.
func (s *Store) SaveProfile(ctx context.Context, p payout.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := saveProfile(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteProfile removes a profile; persons go with it through the
// ON DELETE CASCADE foreign key.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return roster.ErrProfileNotFound
	}
	return nil
}

func saveProfile(ctx context.Context, q querier, p payout.Profile) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		INSERT INTO profiles (id, seq, name, base_worker_rate, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM profiles), ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			base_worker_rate = excluded.base_worker_rate,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.BaseWorkerRate.String(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM deductions WHERE profile_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear deductions: %w", err)
	}
	for i, d := range p.Deductions {
		_, err := q.ExecContext(ctx, `
			INSERT INTO deductions (profile_id, id, position, basis, kind, value, beneficiary_profile_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, d.ID, i, string(d.Basis), string(d.Kind), d.Value.String(), d.BeneficiaryProfileID)
		if err != nil {
			return fmt.Errorf("failed to save deduction %s: %w", d.ID, err)
		}
	}
	return nil
}

func loadDeductions(ctx context.Context, q querier, profileID string) ([]payout.Deduction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, basis, kind, value, beneficiary_profile_id
		FROM deductions
		WHERE profile_id = ?
		ORDER BY position
	`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deductions := []payout.Deduction{}
	for rows.Next() {
		var d payout.Deduction
		var basis, kind, value string
		if err := rows.Scan(&d.ID, &basis, &kind, &value, &d.BeneficiaryProfileID); err != nil {
			return nil, err
		}
		d.Basis = payout.Basis(basis)
		d.Kind = payout.Kind(kind)
		d.Value = parseDecimal(value)
		deductions = append(deductions, d)
	}
	return deductions, rows.Err()
}

// =============================================================================
// PERSONS
// =============================================================================

const personColumns = `id, profile_id, name, worker_rate, client_rate,
	start_time, pause_time, resume_time, stop_time, manual_total_hours`

// ListPersons returns all persons ordered by insertion.
func (s *Store) ListPersons(ctx context.Context) ([]payout.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+personColumns+" FROM persons ORDER BY seq")
	if err != nil {
		return nil, err
	}

	var persons []payout.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		persons = append(persons, p)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range persons {
		active, err := loadActive(ctx, s.db, persons[i].ID)
		if err != nil {
			return nil, err
		}
		persons[i].ActiveDeductionIDs = active
	}
	return persons, nil
}

// GetPerson retrieves a person by ID.
func (s *Store) GetPerson(ctx context.Context, id string) (payout.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+personColumns+" FROM persons WHERE id = ?", id)
	p, err := scanPerson(row)
	if err == sql.ErrNoRows {
		return payout.Person{}, roster.ErrPersonNotFound
	}
	if err != nil {
		return payout.Person{}, err
	}

	p.ActiveDeductionIDs, err = loadActive(ctx, s.db, id)
	if err != nil {
		return payout.Person{}, err
	}
	return p, nil
}

// SavePerson upserts a person and rewrites its active deductions. The
// person's profile must exist.
func (s *Store) SavePerson(ctx context.Context, p payout.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM profiles WHERE id = ?)", p.ProfileID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return roster.ErrProfileNotFound
	}

	if err := savePerson(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePerson removes a person.
func (s *Store) DeletePerson(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM persons WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return roster.ErrPersonNotFound
	}
	return nil
}

func savePerson(ctx context.Context, q querier, p payout.Person) error {
	now := time.Now().UTC().Format(time.RFC3339)
	te := p.TimeEntry
	_, err := q.ExecContext(ctx, `
		INSERT INTO persons (id, seq, profile_id, name, worker_rate, client_rate,
			start_time, pause_time, resume_time, stop_time, manual_total_hours, created_at, updated_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM persons), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile_id = excluded.profile_id,
			name = excluded.name,
			worker_rate = excluded.worker_rate,
			client_rate = excluded.client_rate,
			start_time = excluded.start_time,
			pause_time = excluded.pause_time,
			resume_time = excluded.resume_time,
			stop_time = excluded.stop_time,
			manual_total_hours = excluded.manual_total_hours,
			updated_at = excluded.updated_at
	`, p.ID, p.ProfileID, p.Name, p.WorkerRate.String(), p.ClientRate.String(),
		te.Start, te.Pause, te.Resume, te.Stop, te.ManualTotalHours.String(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save person: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM person_deductions WHERE person_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear active deductions: %w", err)
	}
	for i, id := range p.ActiveDeductionIDs {
		_, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO person_deductions (person_id, deduction_id, position)
			VALUES (?, ?, ?)
		`, p.ID, id, i)
		if err != nil {
			return fmt.Errorf("failed to save active deduction %s: %w", id, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (payout.Person, error) {
	var p payout.Person
	var worker, client, manual string
	err := row.Scan(&p.ID, &p.ProfileID, &p.Name, &worker, &client,
		&p.TimeEntry.Start, &p.TimeEntry.Pause, &p.TimeEntry.Resume, &p.TimeEntry.Stop, &manual)
	if err != nil {
		return payout.Person{}, err
	}
	p.WorkerRate = parseDecimal(worker)
	p.ClientRate = parseDecimal(client)
	p.TimeEntry.ManualTotalHours = parseDecimal(manual)
	return p, nil
}

func loadActive(ctx context.Context, q querier, personID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT deduction_id FROM person_deductions WHERE person_id = ? ORDER BY position",
		personID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// WORKSPACE
// =============================================================================

// Replace clears every table and writes the given workspace in one
// transaction. Profiles are written before persons for the foreign key.
func (s *Store) Replace(ctx context.Context, profiles []payout.Profile, persons []payout.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"person_deductions", "persons", "deductions", "profiles"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	for _, p := range profiles {
		if err := saveProfile(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, p := range persons {
		if err := savePerson(ctx, tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
