// migrate управляет схемой базы: накатывает и откатывает миграции,
// показывает текущую версию. DSN берётся из -dsn или SALESOPS_POSTGRES_DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/salesops/internal/storage/postgres"
)

const (
	dsnEnvVar      = "SALESOPS_POSTGRES_DSN"
	defaultTimeout = 30 * time.Second
)

func main() {
	var (
		direction string
		steps     int
		dsn       string
	)

	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: "+dsnEnvVar+")")
	flag.Parse()

	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv(dsnEnvVar))
	}
	if dsn == "" {
		fail("%s (or -dsn) is required", dsnEnvVar)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	action := strings.ToLower(strings.TrimSpace(direction))
	switch action {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			fail("migrate up failed: %v", err)
		}
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			fail("migrate down failed: %v", err)
		}
	case "status":
	default:
		fail("unsupported direction: %s (use up|down|status)", direction)
	}

	printStatus(ctx, store, action)
}

func printStatus(ctx context.Context, store *postgres.Store, action string) {
	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}

	if action == "status" {
		fmt.Printf("migration status: version=%d applied=%d\n", version, count)
		return
	}
	fmt.Printf("migrate %s ok: version=%d applied=%d\n", action, version, count)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
