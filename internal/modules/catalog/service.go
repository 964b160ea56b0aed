// README: Catalog service: CRUD with soft delete over templates and the estimation library.
package catalog

import (
	"context"
	"io"
	"slices"
	"strings"
	"text/template"

	"workshop/internal/types"
)

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type AnalysisTemplatePatch struct {
	Name           *string
	Category       *string
	ChecklistItems []string
	IsActive       *bool
}

type EstimationItemPatch struct {
	ServiceType   *string
	Name          *string
	Description   *string
	EconomicPrice *types.Money
	StandardPrice *types.Money
	PremiumPrice  *types.Money
	IsActive      *bool
}

type WhatsappTemplatePatch struct {
	Name      *string
	EventKind *string
	Body      *string
	IsActive  *bool
}

// Analysis templates

func (s *Service) CreateAnalysisTemplate(ctx context.Context, t AnalysisTemplate) (*AnalysisTemplate, error) {
	t.Name, t.Category = strings.TrimSpace(t.Name), strings.ToUpper(strings.TrimSpace(t.Category))
	t.ChecklistItems = cleanItems(t.ChecklistItems)
	t.IsActive = true
	if err := validateAnalysis(&t); err != nil {
		return nil, err
	}
	if err := s.store.CreateAnalysisTemplate(ctx, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) GetAnalysisTemplate(ctx context.Context, id types.ID) (*AnalysisTemplate, error) {
	return s.store.GetAnalysisTemplate(ctx, id)
}

func (s *Service) ListAnalysisTemplates(ctx context.Context, includeInactive bool) ([]*AnalysisTemplate, error) {
	return s.store.ListAnalysisTemplates(ctx, includeInactive)
}

func (s *Service) UpdateAnalysisTemplate(ctx context.Context, id types.ID, p AnalysisTemplatePatch) (*AnalysisTemplate, error) {
	t, err := s.store.GetAnalysisTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		t.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		t.Category = strings.ToUpper(strings.TrimSpace(*p.Category))
	}
	if p.ChecklistItems != nil {
		t.ChecklistItems = cleanItems(p.ChecklistItems)
	}
	if p.IsActive != nil {
		t.IsActive = *p.IsActive
	}
	if err := validateAnalysis(t); err != nil {
		return nil, err
	}
	if err := s.store.UpdateAnalysisTemplate(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) DeleteAnalysisTemplate(ctx context.Context, id types.ID) error {
	off := false
	_, err := s.UpdateAnalysisTemplate(ctx, id, AnalysisTemplatePatch{IsActive: &off})
	return err
}

func validateAnalysis(t *AnalysisTemplate) error {
	if t.Name == "" {
		return types.Invalid("name", "is required")
	}
	if t.Category == "" {
		return types.Invalid("category", "is required")
	}
	return nil
}

// Estimation library

func (s *Service) CreateEstimationItem(ctx context.Context, e EstimationItem) (*EstimationItem, error) {
	e.ServiceType = strings.ToUpper(strings.TrimSpace(e.ServiceType))
	e.Name, e.Description = strings.TrimSpace(e.Name), strings.TrimSpace(e.Description)
	e.IsActive = true
	if err := validateEstimation(&e); err != nil {
		return nil, err
	}
	if err := s.store.CreateEstimationItem(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Service) GetEstimationItem(ctx context.Context, id types.ID) (*EstimationItem, error) {
	return s.store.GetEstimationItem(ctx, id)
}

func (s *Service) ListEstimationItems(ctx context.Context, serviceType string, includeInactive bool) ([]*EstimationItem, error) {
	return s.store.ListEstimationItems(ctx, strings.ToUpper(strings.TrimSpace(serviceType)), includeInactive)
}

func (s *Service) UpdateEstimationItem(ctx context.Context, id types.ID, p EstimationItemPatch) (*EstimationItem, error) {
	e, err := s.store.GetEstimationItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ServiceType != nil {
		e.ServiceType = strings.ToUpper(strings.TrimSpace(*p.ServiceType))
	}
	if p.Name != nil {
		e.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		e.Description = strings.TrimSpace(*p.Description)
	}
	if p.EconomicPrice != nil {
		e.EconomicPrice = *p.EconomicPrice
	}
	if p.StandardPrice != nil {
		e.StandardPrice = *p.StandardPrice
	}
	if p.PremiumPrice != nil {
		e.PremiumPrice = *p.PremiumPrice
	}
	if p.IsActive != nil {
		e.IsActive = *p.IsActive
	}
	if err := validateEstimation(e); err != nil {
		return nil, err
	}
	if err := s.store.UpdateEstimationItem(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) DeleteEstimationItem(ctx context.Context, id types.ID) error {
	off := false
	_, err := s.UpdateEstimationItem(ctx, id, EstimationItemPatch{IsActive: &off})
	return err
}

func validateEstimation(e *EstimationItem) error {
	switch {
	case e.ServiceType == "":
		return types.Invalid("service_type", "is required")
	case e.Name == "":
		return types.Invalid("name", "is required")
	case !e.EconomicPrice.IsPositive():
		return types.Invalid("economic_price", "must be greater than zero")
	case !e.StandardPrice.IsPositive():
		return types.Invalid("standard_price", "must be greater than zero")
	case !e.PremiumPrice.IsPositive():
		return types.Invalid("premium_price", "must be greater than zero")
	}
	if err := types.CheckCents("economic_price", e.EconomicPrice, types.MaxAmount); err != nil {
		return err
	}
	if err := types.CheckCents("standard_price", e.StandardPrice, types.MaxAmount); err != nil {
		return err
	}
	return types.CheckCents("premium_price", e.PremiumPrice, types.MaxAmount)
}

// WhatsApp templates

func (s *Service) CreateWhatsappTemplate(ctx context.Context, w WhatsappTemplate) (*WhatsappTemplate, error) {
	w.Name = strings.TrimSpace(w.Name)
	w.EventKind = strings.ToUpper(strings.TrimSpace(w.EventKind))
	w.IsActive = true
	if err := validateWhatsapp(&w); err != nil {
		return nil, err
	}
	if err := s.store.CreateWhatsappTemplate(ctx, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *Service) GetWhatsappTemplate(ctx context.Context, id types.ID) (*WhatsappTemplate, error) {
	return s.store.GetWhatsappTemplate(ctx, id)
}

func (s *Service) ListWhatsappTemplates(ctx context.Context, includeInactive bool) ([]*WhatsappTemplate, error) {
	return s.store.ListWhatsappTemplates(ctx, includeInactive)
}

func (s *Service) UpdateWhatsappTemplate(ctx context.Context, id types.ID, p WhatsappTemplatePatch) (*WhatsappTemplate, error) {
	w, err := s.store.GetWhatsappTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Name != nil {
		w.Name = strings.TrimSpace(*p.Name)
	}
	if p.EventKind != nil {
		w.EventKind = strings.ToUpper(strings.TrimSpace(*p.EventKind))
	}
	if p.Body != nil {
		w.Body = *p.Body
	}
	if p.IsActive != nil {
		w.IsActive = *p.IsActive
	}
	if err := validateWhatsapp(w); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWhatsappTemplate(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Service) DeleteWhatsappTemplate(ctx context.Context, id types.ID) error {
	off := false
	_, err := s.UpdateWhatsappTemplate(ctx, id, WhatsappTemplatePatch{IsActive: &off})
	return err
}

// ActiveWhatsappTemplate is the lookup used by the notification dispatcher.
func (s *Service) ActiveWhatsappTemplate(ctx context.Context, kind string) (*WhatsappTemplate, error) {
	return s.store.ActiveWhatsappTemplate(ctx, kind)
}

func validateWhatsapp(w *WhatsappTemplate) error {
	if w.Name == "" {
		return types.Invalid("name", "is required")
	}
	if w.EventKind == "" {
		return types.Invalid("event_kind", "is required")
	}
	if !slices.Contains(EventKinds, w.EventKind) {
		return types.Invalid("event_kind", "must be one of "+strings.Join(EventKinds, ", "))
	}
	if strings.TrimSpace(w.Body) == "" {
		return types.Invalid("body", "is required")
	}
	tpl, err := template.New(w.Name).Option("missingkey=error").Parse(w.Body)
	if err != nil {
		return types.Invalid("body", "is not a valid template: "+err.Error())
	}
	// field typos only surface on execution
	sample := MessageFields{CustomerName: "Budi", OrderNumber: "SO-1", Status: w.EventKind, Reason: "reason"}
	if err := tpl.Execute(io.Discard, sample); err != nil {
		return types.Invalid("body", "cannot be rendered: "+err.Error())
	}
	return nil
}

func cleanItems(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
