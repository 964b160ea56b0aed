// README: Notification service: dedupe + enqueue on the request path, render + send in the dispatcher.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"go.uber.org/zap"

	"workshop/internal/modules/catalog"
	"workshop/internal/modules/customer"
	"workshop/internal/types"
)

type Customers interface {
	GetCustomer(ctx context.Context, id types.ID) (*customer.Customer, error)
}

type Templates interface {
	ActiveWhatsappTemplate(ctx context.Context, kind string) (*catalog.WhatsappTemplate, error)
}

// Message is the data a WhatsApp template body is executed against.
type Message = catalog.MessageFields

// defaultBodies are used when no active template exists for a kind.
var defaultBodies = map[string]string{
	"ESTIMATE_READY":    "Hi {{.CustomerName}}, the cost estimate for service order {{.OrderNumber}} is ready for your approval.",
	"QC_FAILED":         "Hi {{.CustomerName}}, service order {{.OrderNumber}} needs a little more work after our quality check.",
	"READY_FOR_PAYMENT": "Hi {{.CustomerName}}, service order {{.OrderNumber}} passed quality control and is ready for payment.",
	"COMPLETED":         "Thank you {{.CustomerName}}! Service order {{.OrderNumber}} is completed.",
	"CANCELLED":         "Hi {{.CustomerName}}, service order {{.OrderNumber}} was cancelled.{{if .Reason}} Reason: {{.Reason}}.{{end}}",
}

type Options struct {
	DedupeTTL   time.Duration
	PollTimeout time.Duration
}

type Service struct {
	queue     Queue
	customers Customers
	templates Templates
	sender    Sender
	log       *zap.Logger
	opts      Options
}

func NewService(queue Queue, customers Customers, templates Templates, sender Sender, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 24 * time.Hour
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	return &Service{queue: queue, customers: customers, templates: templates, sender: sender, log: log, opts: opts}
}

// Notify enqueues a notification once per (order, kind, status version).
func (s *Service) Notify(ctx context.Context, orderID types.ID, kind string, payload map[string]string) error {
	key := fmt.Sprintf("%d:%s:%s", orderID, kind, payload["status_version"])
	fresh, err := s.queue.Claim(ctx, key, s.opts.DedupeTTL)
	if err != nil {
		return fmt.Errorf("claim notification: %w", err)
	}
	if !fresh {
		s.log.Debug("duplicate notification dropped", zap.String("key", key))
		return nil
	}
	if err := s.queue.Push(ctx, Job{OrderID: orderID, Kind: kind, Payload: payload, EnqueuedAt: time.Now()}); err != nil {
		if rerr := s.queue.Release(ctx, key); rerr != nil {
			s.log.Warn("notification claim not released", zap.String("key", key), zap.Error(rerr))
		}
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// RunDispatcher drains the queue until ctx is cancelled.
func (s *Service) RunDispatcher(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := s.queue.Pop(ctx, s.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Error("notification queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := s.Deliver(ctx, *job); err != nil {
			s.log.Warn("notification dropped",
				zap.Int64("service_order_id", int64(job.OrderID)),
				zap.String("kind", job.Kind),
				zap.Error(err),
			)
		}
	}
}

// Deliver renders the job's message and hands it to the sender.
func (s *Service) Deliver(ctx context.Context, job Job) error {
	customerID, err := types.ParseID(job.Payload["customer_id"])
	if err != nil {
		return fmt.Errorf("job without customer: %w", err)
	}
	c, err := s.customers.GetCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	body, err := s.body(ctx, job.Kind)
	if err != nil {
		return err
	}
	msg := Message{
		CustomerName: c.Name,
		OrderNumber:  job.Payload["order_number"],
		Status:       job.Payload["status"],
		Reason:       job.Payload["reason"],
	}
	text, err := Render(body, msg)
	if err != nil {
		fallback, ok := defaultBodies[job.Kind]
		if !ok || fallback == body {
			return err
		}
		s.log.Warn("stored template failed, using default body", zap.String("kind", job.Kind), zap.Error(err))
		if text, err = Render(fallback, msg); err != nil {
			return err
		}
	}
	if err := s.sender.Send(ctx, c.Phone, text); err != nil {
		return err
	}
	s.log.Info("notification sent",
		zap.Int64("service_order_id", int64(job.OrderID)),
		zap.String("kind", job.Kind),
		zap.String("latency", time.Since(job.EnqueuedAt).Round(time.Millisecond).String()),
	)
	return nil
}

func (s *Service) body(ctx context.Context, kind string) (string, error) {
	if s.templates != nil {
		tpl, err := s.templates.ActiveWhatsappTemplate(ctx, kind)
		if err == nil {
			return tpl.Body, nil
		}
		if !errors.Is(err, types.ErrNotFound) {
			return "", err
		}
	}
	body, ok := defaultBodies[kind]
	if !ok {
		return "", fmt.Errorf("no template for notification kind %s", strconv.Quote(kind))
	}
	return body, nil
}

func Render(body string, m Message) (string, error) {
	tpl, err := template.New("message").Option("missingkey=error").Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, m); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}
