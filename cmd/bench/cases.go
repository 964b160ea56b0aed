// README: Smoke cases: environment checks, the full service order workflow, races and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// tokens by role, filled by the staff setup case
	tokens     map[string]string
	customerID float64
	vehicleID  float64
	orderID    float64
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:    cfg,
		httpc:  &http.Client{Timeout: 10 * time.Second},
		tokens: map[string]string{"ADMIN": cfg.AdminToken},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

type response struct {
	code    int
	body    map[string]any
	latency time.Duration
}

func (r *Runner) call(ctx context.Context, method, path, role string, body any) (response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return response{}, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := r.tokens[role]; tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()
	out := response{code: resp.StatusCode, latency: time.Since(start)}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out.body)
	return out, nil
}

func (r *Runner) orderPath(suffix string) string {
	return fmt.Sprintf("/api/orders/%.0f%s", r.orderID, suffix)
}

// orderStatus reads the status out of either an order body or a stage response.
func orderStatus(body map[string]any) string {
	if o, ok := body["order"].(map[string]any); ok {
		body = o
	}
	s, _ := body["status"].(string)
	return s
}

func expectStatus(res response, err error, code int, status string) Result {
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if res.code != code {
		return Result{Status: "FAIL", Latency: res.latency, Note: fmt.Sprintf("status=%d body=%v", res.code, res.body)}
	}
	if status != "" && orderStatus(res.body) != status {
		return Result{Status: "FAIL", Latency: res.latency, Note: fmt.Sprintf("order status=%s want %s", orderStatus(res.body), status)}
	}
	return Result{Status: "PASS", Latency: res.latency, Note: fmt.Sprintf("status=%d %s", res.code, status)}
}

// step posts a stage submission for the current order.
func step(name, suffix, role string, body map[string]any, wantStatus string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Workflow",
		Run: func(ctx context.Context, r *Runner) Result {
			if r.orderID == 0 {
				return Result{Status: "SKIP", Note: "no order created"}
			}
			res, err := r.call(ctx, http.MethodPost, r.orderPath(suffix), role, body)
			return expectStatus(res, err, http.StatusOK, wantStatus)
		},
	}
}

var (
	initialCheckBody = map[string]any{
		"engine_oil_checked": true, "coolant_checked": true, "brakes_checked": true,
		"tires_checked": true, "lights_checked": true, "battery_checked": true,
	}
	analysisBody = map[string]any{
		"problem_description": "brake noise",
		"root_cause_analysis": "worn pads",
		"recommended_actions": "replace pads",
	}
	educationBody  = map[string]any{"explanation_provided": true, "understanding_level": "UNDERSTOOD"}
	estimationBody = map[string]any{
		"economic_price": "250000", "economic_description": "aftermarket",
		"standard_price": "400000", "standard_description": "OEM",
		"premium_price": "650000", "premium_description": "OEM plus rotors",
	}
	decisionBody = map[string]any{"decision": "APPROVED", "chosen_tier": "STANDARD"}
	workBody     = map[string]any{
		"work_description": "replaced pads", "labor_hours": "1.5",
		"completion_checklist": map[string]bool{"pads": true}, "mark_complete": true,
	}
	qcPassBody  = map[string]any{"final_approval": true}
	paymentBody = map[string]any{"amount": "400000", "payment_method": "CASH"}
)

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Tables from migrations/0001_init.sql",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("%d tables", len(tables))}
			},
		},
		{
			Name:  "API: health",
			Focus: "Server reachable and dependencies up",
			Run: func(ctx context.Context, r *Runner) Result {
				res, err := r.call(ctx, http.MethodGet, "/health", "", nil)
				return expectStatus(res, err, http.StatusOK, "")
			},
		},
		{
			Name:  "API: missing token -> 401",
			Focus: "Auth",
			Run: func(ctx context.Context, r *Runner) Result {
				res, err := r.call(ctx, http.MethodGet, "/api/orders", "", nil)
				return expectStatus(res, err, http.StatusUnauthorized, "")
			},
		},
		{
			Name:  "Setup: staff users",
			Focus: "One user per role",
			Run:   setupStaff,
		},
		{
			Name:  "Setup: customer and vehicle",
			Focus: "Directory",
			Run:   setupCustomer,
		},
		{
			Name:  "Workflow: create order",
			Focus: "Order enters PENDING_INITIAL_CHECK",
			Run: func(ctx context.Context, r *Runner) Result {
				id, res := r.createOrder(ctx)
				r.orderID = id
				return res
			},
		},
		{
			Name:  "Workflow: out-of-order QC -> 409",
			Focus: "Illegal events leave the order untouched",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.orderID == 0 {
					return Result{Status: "SKIP", Note: "no order created"}
				}
				res, err := r.call(ctx, http.MethodPost, r.orderPath("/quality-control"), "QC_INSPECTOR", qcPassBody)
				return expectStatus(res, err, http.StatusConflict, "")
			},
		},
		step("Workflow: initial check", "/initial-check", "MECHANIC", initialCheckBody, "TECHNICAL_ANALYSIS"),
		step("Workflow: technical analysis", "/technical-analysis", "MECHANIC", analysisBody, "CUSTOMER_EDUCATION"),
		step("Workflow: customer education", "/customer-education", "SERVICE_ADVISOR", educationBody, "COST_ESTIMATION"),
		step("Workflow: cost estimation", "/cost-estimation", "SERVICE_ADVISOR", estimationBody, "AWAITING_APPROVAL"),
		step("Workflow: customer approves", "/cost-estimation/decision", "SERVICE_ADVISOR", decisionBody, "WORK_IN_PROGRESS"),
		step("Workflow: work complete", "/work-execution", "MECHANIC", workBody, "QUALITY_CONTROL"),
		step("Workflow: QC fail -> rework", "/quality-control", "QC_INSPECTOR", map[string]any{"final_approval": false, "defects_found": "pads squeal"}, "WORK_IN_PROGRESS"),
		step("Workflow: rework complete", "/work-execution", "MECHANIC", workBody, "QUALITY_CONTROL"),
		step("Workflow: QC pass", "/quality-control", "QC_INSPECTOR", qcPassBody, "AWAITING_PAYMENT"),
		step("Workflow: partial payment", "/payments", "CASHIER", map[string]any{"amount": "100000", "payment_method": "CARD"}, "AWAITING_PAYMENT"),
		step("Workflow: final payment", "/payments", "CASHIER", map[string]any{"amount": "300000", "payment_method": "CASH"}, "COMPLETED"),
		{
			Name:  "Workflow: completed cannot transition",
			Focus: "Terminal states reject every event",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.orderID == 0 {
					return Result{Status: "SKIP", Note: "no order created"}
				}
				res, err := r.call(ctx, http.MethodPost, r.orderPath("/cancel"), "ADMIN", map[string]any{"reason": "late"})
				return expectStatus(res, err, http.StatusConflict, "")
			},
		},
		{
			Name:  "Consistency: timeline chains statuses",
			Focus: "Each event starts where the previous one ended",
			Run:   checkTimeline,
		},
		{
			Name:  "Cancel: mechanic lacks authority -> 409",
			Focus: "Cancel authority",
			Run: func(ctx context.Context, r *Runner) Result {
				id, res := r.createOrder(ctx)
				if res.Status != "PASS" {
					return res
				}
				path := fmt.Sprintf("/api/orders/%.0f/cancel", id)
				got, err := r.call(ctx, http.MethodPost, path, "MECHANIC", map[string]any{"reason": "customer left"})
				if res := expectStatus(got, err, http.StatusConflict, ""); res.Status != "PASS" {
					return res
				}
				got, err = r.call(ctx, http.MethodPost, path, "SERVICE_ADVISOR", map[string]any{"reason": "customer left"})
				return expectStatus(got, err, http.StatusOK, "CANCELLED")
			},
		},
		{
			Name:  "Concurrency: parallel QC submissions",
			Focus: "Exactly one QC decision wins",
			Run:   concurrentQC,
		},
		{
			Name:  "Redis: notification dedupe keys",
			Focus: "Notifications were claimed in Redis",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				keys, _, err := r.redis.Scan(ctx, 0, "workshop:notifications:dedupe:*", 100).Result()
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if len(keys) == 0 {
					return Result{Status: "FAIL", Note: "no dedupe keys found"}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("keys>=%d", len(keys))}
			},
		},
		{
			Name:  "Perf: dashboard status counts",
			Focus: "Read throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, "/api/dashboard/status-counts")
			},
		},
	}
}

func setupStaff(ctx context.Context, r *Runner) Result {
	names := map[string]string{
		"SERVICE_ADVISOR": "Bench Advisor",
		"MECHANIC":        "Bench Mechanic",
		"QC_INSPECTOR":    "Bench Inspector",
		"CASHIER":         "Bench Cashier",
	}
	for role, name := range names {
		res, err := r.call(ctx, http.MethodPost, "/api/users", "ADMIN", map[string]any{"name": name, "role": role})
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if res.code != http.StatusCreated {
			return Result{Status: "FAIL", Note: fmt.Sprintf("create %s: status=%d", role, res.code)}
		}
		id, _ := res.body["id"].(float64)
		r.tokens[role] = fmt.Sprintf("%.0f:%s", id, role)
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("%d users", len(names))}
}

func setupCustomer(ctx context.Context, r *Runner) Result {
	suffix := time.Now().UnixNano() % 1_000_000
	res, err := r.call(ctx, http.MethodPost, "/api/customers", "SERVICE_ADVISOR", map[string]any{
		"name": "Bench Customer", "phone": fmt.Sprintf("0800%06d", suffix),
	})
	if out := expectStatus(res, err, http.StatusCreated, ""); out.Status != "PASS" {
		return out
	}
	r.customerID, _ = res.body["id"].(float64)
	res, err = r.call(ctx, http.MethodPost, fmt.Sprintf("/api/customers/%.0f/vehicles", r.customerID), "SERVICE_ADVISOR", map[string]any{
		"make": "Toyota", "model": "Avanza", "year": 2020, "license_plate": fmt.Sprintf("BN %06d", suffix),
	})
	if out := expectStatus(res, err, http.StatusCreated, ""); out.Status != "PASS" {
		return out
	}
	r.vehicleID, _ = res.body["id"].(float64)
	return Result{Status: "PASS"}
}

func (r *Runner) createOrder(ctx context.Context) (float64, Result) {
	if r.vehicleID == 0 {
		return 0, Result{Status: "SKIP", Note: "no vehicle"}
	}
	res, err := r.call(ctx, http.MethodPost, "/api/orders", "SERVICE_ADVISOR", map[string]any{
		"customer_id":   r.customerID,
		"vehicle_id":    r.vehicleID,
		"service_types": []string{"BRAKE_SERVICE"},
		"complaints":    "squeaking brakes",
	})
	out := expectStatus(res, err, http.StatusCreated, "PENDING_INITIAL_CHECK")
	if out.Status != "PASS" {
		return 0, out
	}
	id, _ := res.body["id"].(float64)
	return id, out
}

func checkTimeline(ctx context.Context, r *Runner) Result {
	if r.orderID == 0 {
		return Result{Status: "SKIP", Note: "no order created"}
	}
	res, err := r.call(ctx, http.MethodGet, r.orderPath("/timeline"), "SERVICE_ADVISOR", nil)
	if out := expectStatus(res, err, http.StatusOK, ""); out.Status != "PASS" {
		return out
	}
	events, _ := res.body["events"].([]any)
	prev := ""
	for i, e := range events {
		ev, _ := e.(map[string]any)
		from, _ := ev["from_status"].(string)
		to, _ := ev["to_status"].(string)
		if from != prev {
			return Result{Status: "FAIL", Note: fmt.Sprintf("event %d starts at %q, previous ended at %q", i, from, prev)}
		}
		prev = to
	}
	if prev != "COMPLETED" {
		return Result{Status: "FAIL", Note: "timeline ends at " + prev}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("%d events", len(events))}
}

// concurrentQC drives a fresh order to QUALITY_CONTROL and then fires
// conflicting QC decisions at it in parallel.
func concurrentQC(ctx context.Context, r *Runner) Result {
	id, res := r.createOrder(ctx)
	if res.Status != "PASS" {
		return res
	}
	r.orderID, id = id, r.orderID
	defer func() { r.orderID = id }()

	for _, s := range []struct {
		suffix, role string
		body         map[string]any
	}{
		{"/initial-check", "MECHANIC", initialCheckBody},
		{"/technical-analysis", "MECHANIC", analysisBody},
		{"/customer-education", "SERVICE_ADVISOR", educationBody},
		{"/cost-estimation", "SERVICE_ADVISOR", estimationBody},
		{"/cost-estimation/decision", "SERVICE_ADVISOR", decisionBody},
		{"/work-execution", "MECHANIC", workBody},
	} {
		got, err := r.call(ctx, http.MethodPost, r.orderPath(s.suffix), s.role, s.body)
		if out := expectStatus(got, err, http.StatusOK, ""); out.Status != "PASS" {
			out.Note = s.suffix + ": " + out.Note
			return out
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, conf int
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := r.call(ctx, http.MethodPost, r.orderPath("/quality-control"), "QC_INSPECTOR", map[string]any{"final_approval": i%2 == 0})
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			switch got.code {
			case http.StatusOK:
				ok++
			case http.StatusConflict:
				conf++
			}
		}(i)
	}
	wg.Wait()

	// A failed QC sends the order back to WORK_IN_PROGRESS, so later
	// submissions conflict either way.
	if ok != 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("success=%d conflict=%d", ok, conf)}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("success=%d conflict=%d", ok, conf)}
}

func perfLoad(ctx context.Context, r *Runner, path string) Result {
	if r.tokens["SERVICE_ADVISOR"] == "" {
		return Result{Status: "SKIP", Note: "no staff token"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var (
		count, errCount int64
		mu              sync.Mutex
		wg              sync.WaitGroup
	)

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				res, err := r.call(ctx, http.MethodGet, path, "SERVICE_ADVISOR", nil)
				mu.Lock()
				if err != nil || res.code != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
