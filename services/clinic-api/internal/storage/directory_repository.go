package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/physioflow/physioflow/libs/db"
	"github.com/physioflow/physioflow/services/clinic-api/internal/model"
)

// DirectoryRepository reads the patient and practitioner projections. Both
// tables are owned by other systems; this repository never writes them.
type DirectoryRepository struct {
	pool *db.Pool
}

func NewDirectoryRepository(pool *db.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) GetPatient(ctx context.Context, id string) (model.Patient, error) {
	var p model.Patient
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(phone, ''), COALESCE(email, '')
		FROM patients
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Phone, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Patient{}, ErrNotFound
	}
	if err != nil {
		return model.Patient{}, err
	}
	return p, nil
}

func (r *DirectoryRepository) GetPractitioner(ctx context.Context, id string) (model.Practitioner, error) {
	var p model.Practitioner
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, name, COALESCE(email, '')
		FROM practitioners
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Practitioner{}, ErrNotFound
	}
	if err != nil {
		return model.Practitioner{}, err
	}
	return p, nil
}
