package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	archive "github.com/maziggy/bambusy/internal/archive/domain"
)

const defaultArchivesTable = "print_archives"

// ArchiveRepository is a Postgres implementation for print archives.
type ArchiveRepository struct {
	db    DBTX
	table string
}

// NewArchiveRepository constructs a repository.
func NewArchiveRepository(db DBTX, opts ...ArchiveOption) *ArchiveRepository {
	repo := &ArchiveRepository{db: db, table: defaultArchivesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// ArchiveOption configures the repository.
type ArchiveOption func(*ArchiveRepository)

// WithArchivesTable overrides the default table name.
func WithArchivesTable(table string) ArchiveOption {
	return func(repo *ArchiveRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts an archive record together with the captured file.
func (r *ArchiveRepository) Create(ctx context.Context, record archive.PrintArchive, source []byte) error {
	if r == nil || r.db == nil {
		return errors.New("archive repo: nil db")
	}
	if record.ID == "" {
		return errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, device_id, filename, print_name, status, size_bytes, source, photos, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,'[]'::jsonb,$8)`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.DeviceID,
		record.Filename,
		record.PrintName,
		record.Status,
		record.SizeBytes,
		source,
		record.CreatedAt,
	)
	return err
}

// UpdateStatus closes a record out with its terminal status.
func (r *ArchiveRepository) UpdateStatus(ctx context.Context, id, status string, completedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("archive repo: nil db")
	}
	if id == "" {
		return errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, completed_at = $3
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, status, completedAt)
	return err
}

// UpdateEnergy attaches energy usage to a record.
func (r *ArchiveRepository) UpdateEnergy(ctx context.Context, id string, kwh, cost float64) error {
	if r == nil || r.db == nil {
		return errors.New("archive repo: nil db")
	}
	if id == "" {
		return errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET energy_kwh = $2, energy_cost = $3
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, kwh, cost)
	return err
}

// AddPhoto appends a photo reference to a record.
func (r *ArchiveRepository) AddPhoto(ctx context.Context, id, photoURL string) error {
	if r == nil || r.db == nil {
		return errors.New("archive repo: nil db")
	}
	if id == "" {
		return errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET photos = COALESCE(photos, '[]'::jsonb) || to_jsonb($2::text)
WHERE id = $1`, r.table)

	_, err := r.db.ExecContext(ctx, query, id, photoURL)
	return err
}

// Get loads one archive record by id.
func (r *ArchiveRepository) Get(ctx context.Context, id string) (*archive.PrintArchive, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("archive repo: nil db")
	}
	if id == "" {
		return nil, errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, device_id, filename, print_name, status, size_bytes, energy_kwh, energy_cost, photos, created_at, completed_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	return scanArchive(r.db.QueryRowContext(ctx, query, id))
}

// GetSource loads the captured file bytes for one record.
func (r *ArchiveRepository) GetSource(ctx context.Context, id string) ([]byte, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("archive repo: nil db")
	}
	if id == "" {
		return nil, errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT source
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var source []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return source, nil
}

// FindUnresolved returns the open record a completed print most likely
// belongs to: an exact filename match wins, otherwise the most recent
// record still in printing state.
func (r *ArchiveRepository) FindUnresolved(ctx context.Context, deviceID, filename string) (*archive.PrintArchive, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("archive repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("archive repo: empty device id")
	}

	query := fmt.Sprintf(`
SELECT id, device_id, filename, print_name, status, size_bytes, energy_kwh, energy_cost, photos, created_at, completed_at
FROM %s
WHERE device_id = $1 AND status = 'printing'
ORDER BY (filename = $2) DESC, created_at DESC
LIMIT 1`, r.table)

	return scanArchive(r.db.QueryRowContext(ctx, query, deviceID, filename))
}

// ListByDevice lists the records of one printer, newest first.
func (r *ArchiveRepository) ListByDevice(ctx context.Context, deviceID string) ([]archive.PrintArchive, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("archive repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("archive repo: empty device id")
	}

	query := fmt.Sprintf(`
SELECT id, device_id, filename, print_name, status, size_bytes, energy_kwh, energy_cost, photos, created_at, completed_at
FROM %s
WHERE device_id = $1
ORDER BY created_at DESC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArchives(rows)
}

// ListAll lists every record across the fleet, newest first.
func (r *ArchiveRepository) ListAll(ctx context.Context, limit int) ([]archive.PrintArchive, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("archive repo: nil db")
	}
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`
SELECT id, device_id, filename, print_name, status, size_bytes, energy_kwh, energy_cost, photos, created_at, completed_at
FROM %s
ORDER BY created_at DESC
LIMIT $1`, r.table)

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectArchives(rows)
}

// Delete removes a record and its captured file.
func (r *ArchiveRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("archive repo: nil db")
	}
	if id == "" {
		return errors.New("archive repo: empty id")
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchive(row rowScanner) (*archive.PrintArchive, error) {
	var (
		record      archive.PrintArchive
		energyKWh   sql.NullFloat64
		energyCost  sql.NullFloat64
		photosJSON  []byte
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&record.ID,
		&record.DeviceID,
		&record.Filename,
		&record.PrintName,
		&record.Status,
		&record.SizeBytes,
		&energyKWh,
		&energyCost,
		&photosJSON,
		&record.CreatedAt,
		&completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if energyKWh.Valid {
		record.EnergyKWh = &energyKWh.Float64
	}
	if energyCost.Valid {
		record.EnergyCost = &energyCost.Float64
	}
	if len(photosJSON) > 0 {
		if err := json.Unmarshal(photosJSON, &record.Photos); err != nil {
			return nil, fmt.Errorf("archive repo: decode photos: %w", err)
		}
	}
	if completedAt.Valid {
		utc := completedAt.Time.UTC()
		record.CompletedAt = &utc
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}

func collectArchives(rows *sql.Rows) ([]archive.PrintArchive, error) {
	var records []archive.PrintArchive
	for rows.Next() {
		record, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
