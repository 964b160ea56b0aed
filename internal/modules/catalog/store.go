// README: Catalog store backed by PostgreSQL. Deletes are soft (is_active = false).
package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"workshop/internal/infra"
	"workshop/internal/types"
)

type Repository interface {
	CreateAnalysisTemplate(ctx context.Context, t *AnalysisTemplate) error
	GetAnalysisTemplate(ctx context.Context, id types.ID) (*AnalysisTemplate, error)
	ListAnalysisTemplates(ctx context.Context, includeInactive bool) ([]*AnalysisTemplate, error)
	UpdateAnalysisTemplate(ctx context.Context, t *AnalysisTemplate) error

	CreateEstimationItem(ctx context.Context, e *EstimationItem) error
	GetEstimationItem(ctx context.Context, id types.ID) (*EstimationItem, error)
	ListEstimationItems(ctx context.Context, serviceType string, includeInactive bool) ([]*EstimationItem, error)
	UpdateEstimationItem(ctx context.Context, e *EstimationItem) error

	CreateWhatsappTemplate(ctx context.Context, w *WhatsappTemplate) error
	GetWhatsappTemplate(ctx context.Context, id types.ID) (*WhatsappTemplate, error)
	ListWhatsappTemplates(ctx context.Context, includeInactive bool) ([]*WhatsappTemplate, error)
	UpdateWhatsappTemplate(ctx context.Context, w *WhatsappTemplate) error
	// ActiveWhatsappTemplate returns the most recently created active template for kind.
	ActiveWhatsappTemplate(ctx context.Context, kind string) (*WhatsappTemplate, error)
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func conflictOn(err error, entity, field string) error {
	if _, ok := infra.UniqueViolation(err); ok {
		return types.Conflict(entity, field)
	}
	if name, ok := infra.ValueViolation(err); ok {
		return types.Invalid(entity, "value out of range for storage ("+name+")")
	}
	return err
}

func notFoundOn(err error, entity string, id types.ID) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NotFound(entity, id)
	}
	return err
}

const analysisColumns = `id, name, category, checklist_items, is_active, created_at, updated_at`

func scanAnalysis(row pgx.Row) (*AnalysisTemplate, error) {
	var t AnalysisTemplate
	if err := row.Scan(&t.ID, &t.Name, &t.Category, &t.ChecklistItems, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateAnalysisTemplate(ctx context.Context, t *AnalysisTemplate) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO analysis_templates (name, category, checklist_items, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		t.Name, t.Category, t.ChecklistItems, t.IsActive,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return conflictOn(err, "analysis_template", "name")
}

func (s *Store) GetAnalysisTemplate(ctx context.Context, id types.ID) (*AnalysisTemplate, error) {
	t, err := scanAnalysis(s.db.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analysis_templates WHERE id = $1`, int64(id)))
	return t, notFoundOn(err, "analysis_template", id)
}

func (s *Store) ListAnalysisTemplates(ctx context.Context, includeInactive bool) ([]*AnalysisTemplate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+analysisColumns+` FROM analysis_templates
		WHERE $1 OR is_active
		ORDER BY category, name`, includeInactive)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (*AnalysisTemplate, error) { return scanAnalysis(r) })
}

func (s *Store) UpdateAnalysisTemplate(ctx context.Context, t *AnalysisTemplate) error {
	err := s.db.QueryRow(ctx, `
		UPDATE analysis_templates
		SET name = $1, category = $2, checklist_items = $3, is_active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		t.Name, t.Category, t.ChecklistItems, t.IsActive, int64(t.ID),
	).Scan(&t.UpdatedAt)
	return conflictOn(notFoundOn(err, "analysis_template", t.ID), "analysis_template", "name")
}

const estimationColumns = `id, service_type, name, description, economic_price, standard_price, premium_price, is_active, created_at, updated_at`

func scanEstimation(row pgx.Row) (*EstimationItem, error) {
	var e EstimationItem
	err := row.Scan(&e.ID, &e.ServiceType, &e.Name, &e.Description,
		&e.EconomicPrice, &e.StandardPrice, &e.PremiumPrice, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateEstimationItem(ctx context.Context, e *EstimationItem) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO estimation_library (service_type, name, description, economic_price, standard_price, premium_price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		e.ServiceType, e.Name, e.Description, e.EconomicPrice, e.StandardPrice, e.PremiumPrice, e.IsActive,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	return conflictOn(err, "estimation_item", "name")
}

func (s *Store) GetEstimationItem(ctx context.Context, id types.ID) (*EstimationItem, error) {
	e, err := scanEstimation(s.db.QueryRow(ctx, `SELECT `+estimationColumns+` FROM estimation_library WHERE id = $1`, int64(id)))
	return e, notFoundOn(err, "estimation_item", id)
}

func (s *Store) ListEstimationItems(ctx context.Context, serviceType string, includeInactive bool) ([]*EstimationItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+estimationColumns+` FROM estimation_library
		WHERE ($1 = '' OR service_type = $1) AND ($2 OR is_active)
		ORDER BY service_type, name`, serviceType, includeInactive)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (*EstimationItem, error) { return scanEstimation(r) })
}

func (s *Store) UpdateEstimationItem(ctx context.Context, e *EstimationItem) error {
	err := s.db.QueryRow(ctx, `
		UPDATE estimation_library
		SET service_type = $1, name = $2, description = $3,
		    economic_price = $4, standard_price = $5, premium_price = $6,
		    is_active = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`,
		e.ServiceType, e.Name, e.Description, e.EconomicPrice, e.StandardPrice, e.PremiumPrice, e.IsActive, int64(e.ID),
	).Scan(&e.UpdatedAt)
	return conflictOn(notFoundOn(err, "estimation_item", e.ID), "estimation_item", "name")
}

const whatsappColumns = `id, name, event_kind, body, is_active, created_at, updated_at`

func scanWhatsapp(row pgx.Row) (*WhatsappTemplate, error) {
	var w WhatsappTemplate
	if err := row.Scan(&w.ID, &w.Name, &w.EventKind, &w.Body, &w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Store) CreateWhatsappTemplate(ctx context.Context, w *WhatsappTemplate) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO whatsapp_templates (name, event_kind, body, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		w.Name, w.EventKind, w.Body, w.IsActive,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	return conflictOn(err, "whatsapp_template", "name")
}

func (s *Store) GetWhatsappTemplate(ctx context.Context, id types.ID) (*WhatsappTemplate, error) {
	w, err := scanWhatsapp(s.db.QueryRow(ctx, `SELECT `+whatsappColumns+` FROM whatsapp_templates WHERE id = $1`, int64(id)))
	return w, notFoundOn(err, "whatsapp_template", id)
}

func (s *Store) ListWhatsappTemplates(ctx context.Context, includeInactive bool) ([]*WhatsappTemplate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+whatsappColumns+` FROM whatsapp_templates
		WHERE $1 OR is_active
		ORDER BY event_kind, name`, includeInactive)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (*WhatsappTemplate, error) { return scanWhatsapp(r) })
}

func (s *Store) UpdateWhatsappTemplate(ctx context.Context, w *WhatsappTemplate) error {
	err := s.db.QueryRow(ctx, `
		UPDATE whatsapp_templates
		SET name = $1, event_kind = $2, body = $3, is_active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`,
		w.Name, w.EventKind, w.Body, w.IsActive, int64(w.ID),
	).Scan(&w.UpdatedAt)
	return conflictOn(notFoundOn(err, "whatsapp_template", w.ID), "whatsapp_template", "name")
}

func (s *Store) ActiveWhatsappTemplate(ctx context.Context, kind string) (*WhatsappTemplate, error) {
	w, err := scanWhatsapp(s.db.QueryRow(ctx, `
		SELECT `+whatsappColumns+` FROM whatsapp_templates
		WHERE event_kind = $1 AND is_active
		ORDER BY id DESC
		LIMIT 1`, kind))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &types.NotFoundError{Entity: "whatsapp_template"}
	}
	return w, err
}
