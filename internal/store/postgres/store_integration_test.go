//go:build integration

package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"

	"github.com/goliatone/go-intake/pkg/draft"
	"github.com/goliatone/go-intake/pkg/testsupport"
)

func TestStoreContract(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	baseURL := strings.TrimSpace(os.Getenv("INTAKE_TEST_POSTGRES_URL"))
	if baseURL == "" {
		t.Skip("set INTAKE_TEST_POSTGRES_URL to run integration tests")
	}

	adminPool, err := pgxpool.New(ctx, baseURL)
	if err != nil {
		t.Skipf("skip integration test: cannot create admin pool (%v)", err)
	}
	defer adminPool.Close()
	if err := adminPool.Ping(ctx); err != nil {
		t.Skipf("skip integration test: cannot reach database (%v)", err)
	}

	dbName := "intake_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := adminPool.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		t.Skipf("skip integration test: cannot create database (%v)", err)
	}
	defer func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cleanupCancel()
		_, _ = adminPool.Exec(cleanupCtx, `
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = $1 AND pid <> pg_backend_pid()
		`, dbName)
		if _, err := adminPool.Exec(cleanupCtx, "DROP DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			t.Logf("cleanup warning: drop temp database failed (%v)", err)
		}
	}()

	cfg, err := pgxpool.ParseConfig(baseURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.ConnConfig.Database = dbName
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open test pool: %v", err)
	}
	defer pool.Close()

	logger := zaptest.NewLogger(t)
	if err := EnsureSchema(ctx, pool, logger); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	// second run must be a no-op
	if err := EnsureSchema(ctx, pool, logger); err != nil {
		t.Fatalf("EnsureSchema again: %v", err)
	}

	testsupport.RunStoreContract(t, func(t *testing.T) draft.Store {
		if _, err := pool.Exec(ctx, `TRUNCATE drafts`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return New(pool)
	})
}
