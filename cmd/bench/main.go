// README: Smoke/benchmark runner; drives the service order workflow over HTTP and checks DB/Redis.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	results := NewRunner(cfg).RunAll(ctx)

	tally := map[string]int{}
	for _, r := range results {
		tally[r.Status]++
	}
	fmt.Printf("\n== Summary ==\nPASS=%d FAIL=%d SKIP=%d\n", tally["PASS"], tally["FAIL"], tally["SKIP"])

	if tally["FAIL"] > 0 || (cfg.Strict && tally["SKIP"] > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL        string
	DSN            string
	RedisAddr      string
	MigrationPath  string
	ApplyMigration bool
	AdminToken     string
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

// loadConfig reads WORKSHOP_BENCH_* env vars through viper; flags override them.
// The DSN and Redis address share the API's own env keys.
func loadConfig() Config {
	v := viper.New()
	v.SetEnvPrefix("WORKSHOP_BENCH")
	v.AutomaticEnv()
	_ = v.BindEnv("dsn", "WORKSHOP_DB_DSN")
	_ = v.BindEnv("redis", "WORKSHOP_REDIS_ADDR")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("migration", "migrations/0001_init.sql")
	v.SetDefault("admin_token", "1:ADMIN")
	v.SetDefault("timeout", 60*time.Second)
	v.SetDefault("concurrency", 20)
	v.SetDefault("duration", 10*time.Second)

	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", v.GetString("base_url"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", v.GetString("dsn"), "Postgres DSN (empty skips DB checks)")
	flag.StringVar(&cfg.RedisAddr, "redis", v.GetString("redis"), "Redis address (empty skips Redis checks)")
	flag.StringVar(&cfg.MigrationPath, "migration", v.GetString("migration"), "Migration SQL path")
	flag.BoolVar(&cfg.ApplyMigration, "apply-migration", v.GetBool("apply_migration"), "Apply migration SQL before tests")
	flag.StringVar(&cfg.AdminToken, "admin-token", v.GetString("admin_token"), "Bearer token with the ADMIN role")
	flag.BoolVar(&cfg.Strict, "strict", v.GetBool("strict"), "Fail on skipped checks")
	flag.DurationVar(&cfg.Timeout, "timeout", v.GetDuration("timeout"), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", v.GetInt("concurrency"), "Concurrency for race and perf checks")
	flag.DurationVar(&cfg.Duration, "duration", v.GetDuration("duration"), "Duration for perf checks")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg
}
