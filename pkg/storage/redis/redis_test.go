package redis_test

import (
	"context"
	"fmt"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/storage"
	"github.com/papercomputeco/tastes/pkg/storage/redis"
	testutils "github.com/papercomputeco/tastes/pkg/utils/test"
)

// addr returns the Redis address from environment or skips the test.
func addr() string {
	a := os.Getenv("TASTES_TEST_REDIS_ADDR")
	if a == "" {
		Skip("TASTES_TEST_REDIS_ADDR not set, skipping Redis tests")
	}
	return a
}

var _ = Describe("Driver", func() {
	It("requires an address", func() {
		_, err := redis.NewDriver(context.Background(), redis.Config{})
		Expect(err).To(MatchError(ContainSubstring("address is required")))
	})

	testutils.DescribeDriver(func() storage.Driver {
		// a fresh prefix per test isolates keys without flushing the server
		d, err := redis.NewDriver(context.Background(), redis.Config{
			Addr:   addr(),
			Prefix: fmt.Sprintf("tastes-test-%d", time.Now().UnixNano()),
		})
		Expect(err).NotTo(HaveOccurred())
		return d
	})
})
