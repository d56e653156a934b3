package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/storage/ent/migrate"
	"github.com/papercomputeco/tastes/pkg/storage/postgres"
	testutils "github.com/papercomputeco/tastes/pkg/utils/test"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("TASTES_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("TASTES_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		ctx := context.Background()
		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all rows before each test for isolation.
		for _, t := range migrate.Tables {
			_, err := d.Driver.DB().ExecContext(ctx, "DELETE FROM "+t.Name)
			Expect(err).NotTo(HaveOccurred())
		}
		return d
	})
})
