// README: Catalog service tests (soft delete, name conflicts, template lookup).
package catalog

import (
	"context"
	"errors"
	"testing"

	"workshop/internal/types"
)

func TestWhatsappTemplateLifecycle(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	first, err := svc.CreateWhatsappTemplate(ctx, WhatsappTemplate{
		Name: "done-v1", EventKind: "completed", Body: "Hi {{.CustomerName}}, order {{.OrderNumber}} is done.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.EventKind != "COMPLETED" || !first.IsActive {
		t.Fatalf("template = %+v", first)
	}

	if _, err := svc.CreateWhatsappTemplate(ctx, WhatsappTemplate{Name: "done-v1", EventKind: "COMPLETED", Body: "x"}); !errors.Is(err, types.ErrConflict) {
		t.Fatalf("duplicate name: %v", err)
	}

	second, _ := svc.CreateWhatsappTemplate(ctx, WhatsappTemplate{Name: "done-v2", EventKind: "COMPLETED", Body: "Thanks {{.CustomerName}}!"})
	active, err := svc.ActiveWhatsappTemplate(ctx, "COMPLETED")
	if err != nil || active.ID != second.ID {
		t.Fatalf("active = %+v, %v", active, err)
	}

	if err := svc.DeleteWhatsappTemplate(ctx, second.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	active, _ = svc.ActiveWhatsappTemplate(ctx, "COMPLETED")
	if active.ID != first.ID {
		t.Fatalf("soft-deleted template still served")
	}
	list, _ := svc.ListWhatsappTemplates(ctx, false)
	if len(list) != 1 {
		t.Fatalf("active list = %d", len(list))
	}
	all, _ := svc.ListWhatsappTemplates(ctx, true)
	if len(all) != 2 {
		t.Fatalf("full list = %d", len(all))
	}

	if _, err := svc.ActiveWhatsappTemplate(ctx, "CANCELLED"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("missing kind: %v", err)
	}
}

func TestWhatsappTemplateBodyMustParse(t *testing.T) {
	svc := NewService(NewMemStore())
	_, err := svc.CreateWhatsappTemplate(context.Background(), WhatsappTemplate{Name: "bad", EventKind: "COMPLETED", Body: "Hi {{.CustomerName"})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Field != "body" {
		t.Fatalf("expected body validation error, got %v", err)
	}
}

func TestWhatsappTemplateFieldsAndKindChecked(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	_, err := svc.CreateWhatsappTemplate(ctx, WhatsappTemplate{Name: "typo", EventKind: "COMPLETED", Body: "Thanks {{.CustomerNmae}}!"})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Field != "body" {
		t.Fatalf("unknown field accepted: %v", err)
	}

	_, err = svc.CreateWhatsappTemplate(ctx, WhatsappTemplate{Name: "odd", EventKind: "BIRTHDAY", Body: "Hi {{.CustomerName}}"})
	if !errors.As(err, &ve) || ve.Field != "event_kind" {
		t.Fatalf("unknown kind accepted: %v", err)
	}

	ok, err := svc.CreateWhatsappTemplate(ctx, WhatsappTemplate{Name: "ok", EventKind: "CANCELLED", Body: "{{.OrderNumber}} cancelled{{if .Reason}}: {{.Reason}}{{end}}"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	bad := "Hi {{.Name}}"
	if _, err := svc.UpdateWhatsappTemplate(ctx, ok.ID, WhatsappTemplatePatch{Body: &bad}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("update with unknown field: %v", err)
	}
}

func TestEstimationItemPricesMustFitStorage(t *testing.T) {
	svc := NewService(NewMemStore())
	_, err := svc.CreateEstimationItem(context.Background(), EstimationItem{
		ServiceType: "BRAKES", Name: "pads",
		EconomicPrice: types.MustMoney("0.004"), StandardPrice: types.MustMoney("1"), PremiumPrice: types.MustMoney("2"),
	})
	var ve *types.ValidationError
	if !errors.As(err, &ve) || ve.Field != "economic_price" {
		t.Fatalf("sub-cent price accepted: %v", err)
	}
}

func TestEstimationItems(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	item, err := svc.CreateEstimationItem(ctx, EstimationItem{
		ServiceType: "brake_service", Name: "Front pads",
		EconomicPrice: types.MustMoney("350000"), StandardPrice: types.MustMoney("500000"), PremiumPrice: types.MustMoney("900000"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateEstimationItem(ctx, EstimationItem{ServiceType: "BRAKE_SERVICE", Name: "Rear pads"}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("zero prices: %v", err)
	}

	price := types.MustMoney("550000")
	updated, err := svc.UpdateEstimationItem(ctx, item.ID, EstimationItemPatch{StandardPrice: &price})
	if err != nil || !updated.StandardPrice.Equal(price) {
		t.Fatalf("update: %+v, %v", updated, err)
	}

	list, _ := svc.ListEstimationItems(ctx, "Brake_Service", false)
	if len(list) != 1 {
		t.Fatalf("list by type = %d", len(list))
	}
	_ = svc.DeleteEstimationItem(ctx, item.ID)
	if list, _ := svc.ListEstimationItems(ctx, "", false); len(list) != 0 {
		t.Fatalf("deleted item listed")
	}
	if _, err := svc.UpdateEstimationItem(ctx, 999, EstimationItemPatch{}); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown item: %v", err)
	}
}

func TestAnalysisTemplates(t *testing.T) {
	svc := NewService(NewMemStore())
	ctx := context.Background()

	tpl, err := svc.CreateAnalysisTemplate(ctx, AnalysisTemplate{
		Name: "Brake noise", Category: "brakes", ChecklistItems: []string{"pad thickness", " ", "rotor runout"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tpl.Category != "BRAKES" || len(tpl.ChecklistItems) != 2 {
		t.Fatalf("template = %+v", tpl)
	}
	if _, err := svc.CreateAnalysisTemplate(ctx, AnalysisTemplate{Name: "Brake noise", Category: "x"}); !errors.Is(err, types.ErrConflict) {
		t.Fatalf("duplicate: %v", err)
	}
	if _, err := svc.CreateAnalysisTemplate(ctx, AnalysisTemplate{Name: "No category"}); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("missing category: %v", err)
	}
	_ = svc.DeleteAnalysisTemplate(ctx, tpl.ID)
	got, _ := svc.GetAnalysisTemplate(ctx, tpl.ID)
	if got.IsActive {
		t.Fatalf("soft delete did not deactivate")
	}
}
