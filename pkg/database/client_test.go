package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestClient spins up a disposable Postgres container, applies the
// embedded migrations through the real NewClient path, and tears the
// container down when the test finishes.
func newTestClient(t *testing.T) *Client {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("caseintake_test"),
		postgres.WithUsername("caseintake"),
		postgres.WithPassword("caseintake"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	cfg := Config{
		Host:         host,
		Port:         port.Int(),
		User:         "caseintake",
		Password:     "caseintake",
		Database:     "caseintake_test",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
	}

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestDatabaseClientConnectionPool(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.DB.PingContext(ctx))

	health, err := Health(ctx, client.DB.DB)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Greater(t, health.MaxOpenConns, 0)
}

func TestMigrationsCreateExpectedTables(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, table := range []string{
		"quality_gates", "clarification_sessions", "escalations",
		"exemplars", "audit_entries", "case_snapshots", "tasks",
		"business_contexts", "kb_articles", "work_note_outbox",
	} {
		var exists bool
		err := client.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table)
		require.NoError(t, err)
		assert.True(t, exists, "expected table %s to exist", table)
	}
}

func TestAuditMetadataGinIndexSupportsContainment(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.ExecContext(ctx, `
		INSERT INTO audit_entries (id, entity_type, entity_id, action, metadata)
		VALUES (gen_random_uuid(), 'case', 'CS0001001', 'gate_transition', '{"reviewer":"alice"}')
	`)
	// gen_random_uuid requires pgcrypto; fall back to a literal UUID if unavailable.
	if err != nil {
		_, err = client.ExecContext(ctx, `
			INSERT INTO audit_entries (id, entity_type, entity_id, action, metadata)
			VALUES ('11111111-1111-1111-1111-111111111111', 'case', 'CS0001001', 'gate_transition', '{"reviewer":"alice"}')
		`)
		require.NoError(t, err)
	}

	var count int
	err = client.GetContext(ctx, &count,
		`SELECT count(*) FROM audit_entries WHERE metadata @> '{"reviewer":"alice"}'`)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: false,
		},
		{
			name: "missing password",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: 5,
			},
			wantErr: true,
		},
		{
			name: "idle conns exceed max conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 5, MaxIdleConns: 10,
			},
			wantErr: true,
		},
		{
			name: "zero max open conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 0, MaxIdleConns: 0,
			},
			wantErr: true,
		},
		{
			name: "negative idle conns",
			cfg: Config{
				Host: "localhost", Port: 5432, User: "test", Password: "test",
				Database: "test", MaxOpenConns: 10, MaxIdleConns: -1,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
