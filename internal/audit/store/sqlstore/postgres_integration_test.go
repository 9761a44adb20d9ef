//go:build integration

package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"riskcast/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)

	for _, driver := range []string{DriverPgx, DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			store, err := Open(ctx, driver, pg.DSN)
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			require.NoError(t, pg.Truncate(ctx, "processing_records", "input_snapshots", "audit_records"))

			exerciseLedger(t, store)
		})
	}
}
