package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/clinicflow/libs/db"
	"github.com/md-rashed-zaman/clinicflow/services/scheduling-service/internal/model"
)

// CatalogRepository reads the reference data bookings depend on: services,
// patients and their owners, providers and supply stock.
type CatalogRepository struct {
	db db.Querier
}

func NewCatalogRepository(q db.Querier) *CatalogRepository {
	return &CatalogRepository{db: q}
}

func (r *CatalogRepository) Service(ctx context.Context, id string) (model.Service, error) {
	var (
		svc      model.Service
		category string
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, category, base_price_cents, duration_minutes
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &category, &svc.BasePriceCents, &svc.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Service{}, &model.NotFoundError{Entity: "service", ID: id}
		}
		return model.Service{}, &model.PersistenceError{Op: "get service", Err: err}
	}
	svc.Category = model.Category(category)

	rows, err := r.db.Query(ctx, `
		SELECT supply_id, quantity
		FROM service_resources
		WHERE service_id = $1
		ORDER BY supply_id
	`, id)
	if err != nil {
		return model.Service{}, &model.PersistenceError{Op: "get service resources", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var req model.ResourceRequirement
		if err := rows.Scan(&req.SupplyID, &req.Quantity); err != nil {
			return model.Service{}, &model.PersistenceError{Op: "get service resources", Err: err}
		}
		svc.Resources = append(svc.Resources, req)
	}
	if err := rows.Err(); err != nil {
		return model.Service{}, &model.PersistenceError{Op: "get service resources", Err: err}
	}
	return svc, nil
}

func (r *CatalogRepository) OwnerOf(ctx context.Context, patientID string) (string, error) {
	var owner string
	err := r.db.QueryRow(ctx, `SELECT owner_id FROM patients WHERE id = $1`, patientID).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &model.NotFoundError{Entity: "patient", ID: patientID}
		}
		return "", &model.PersistenceError{Op: "get patient owner", Err: err}
	}
	return owner, nil
}

// Available returns a stock snapshot; unknown supplies count as zero.
func (r *CatalogRepository) Available(ctx context.Context, supplyIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(supplyIDs))
	if len(supplyIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, available
		FROM supplies
		WHERE id = ANY($1)
	`, supplyIDs)
	if err != nil {
		return nil, &model.PersistenceError{Op: "read stock", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, &model.PersistenceError{Op: "read stock", Err: err}
		}
		out[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &model.PersistenceError{Op: "read stock", Err: err}
	}
	return out, nil
}

// Contacts returns the patient's owner contact and the provider contact.
// Missing rows yield empty contacts.
func (r *CatalogRepository) Contacts(ctx context.Context, patientID, providerID string) (model.Contact, model.Contact, error) {
	var owner, provider model.Contact
	err := r.db.QueryRow(ctx, `
		SELECT owner_id, owner_name, owner_email, owner_phone
		FROM patients
		WHERE id = $1
	`, patientID).Scan(&owner.ID, &owner.Name, &owner.Email, &owner.Phone)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, model.Contact{}, &model.PersistenceError{Op: "patient contact", Err: err}
	}
	err = r.db.QueryRow(ctx, `
		SELECT id, name, email, phone
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&provider.ID, &provider.Name, &provider.Email, &provider.Phone)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.Contact{}, model.Contact{}, &model.PersistenceError{Op: "provider contact", Err: err}
	}
	return owner, provider, nil
}
