package pgstore_test

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/eventflux-io/engine/internal/core/persistence/pgstore"
)

func TestPgstore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Pgstore Integration Suite")
}

var (
	ctx      context.Context
	pool     *pgxpool.Pool
	teardown func()
	store    *pgstore.Store
)

var _ = BeforeSuite(func() {
	ctx = context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17.5-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "secret",
			"POSTGRES_USER":     "user",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	Expect(err).NotTo(HaveOccurred())

	host, err := postgresC.Host(ctx)
	Expect(err).NotTo(HaveOccurred())
	port, err := postgresC.MappedPort(ctx, "5432")
	Expect(err).NotTo(HaveOccurred())

	dsn := fmt.Sprintf("postgres://user:secret@%s:%s/testdb?sslmode=disable", host, port.Port())
	poolConfig, err := pgxpool.ParseConfig(dsn)
	Expect(err).NotTo(HaveOccurred())

	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
	poolConfig.ConnConfig.StatementCacheCapacity = 100

	pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	Expect(err).NotTo(HaveOccurred())

	Eventually(func() error {
		return pool.Ping(ctx)
	}, 10*time.Second, 200*time.Millisecond).Should(Succeed())

	store = pgstore.New(pool)
	Expect(store.EnsureSchema(ctx)).To(Succeed())

	teardown = func() {
		if postgresC != nil {
			logsReader, err := postgresC.Logs(ctx)
			if err == nil {
				defer logsReader.Close()
				logBytes, readErr := io.ReadAll(logsReader)
				if readErr == nil && len(logBytes) > 0 {
					GinkgoWriter.Printf("--- PostgreSQL Container Logs ---\n%s\n-------------------------------\n", string(logBytes))
				}
			}
			_ = postgresC.Terminate(ctx)
		}
		if pool != nil {
			pool.Close()
		}
	}
})

var _ = AfterSuite(func() {
	if teardown != nil {
		teardown()
	}
})

var _ = Describe("pgstore.Store", func() {
	BeforeEach(func() {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE eventflux_snapshots")
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips a saved blob through Load", func() {
		Expect(store.Save(ctx, "app1", 1, []byte("snapshot-1"))).To(Succeed())

		got, err := store.Load(ctx, "app1", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("snapshot-1")))
	})

	It("upserts on a repeated Save for the same revision", func() {
		Expect(store.Save(ctx, "app1", 1, []byte("v1"))).To(Succeed())
		Expect(store.Save(ctx, "app1", 1, []byte("v2"))).To(Succeed())

		got, err := store.Load(ctx, "app1", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("v2")))
	})

	It("reports no last revision for an app with none", func() {
		_, ok, err := store.GetLastRevision(ctx, "app-none")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("tracks the max revision across out-of-order saves", func() {
		Expect(store.Save(ctx, "app2", 3, []byte("a"))).To(Succeed())
		Expect(store.Save(ctx, "app2", 1, []byte("b"))).To(Succeed())
		Expect(store.Save(ctx, "app2", 2, []byte("c"))).To(Succeed())

		rev, ok, err := store.GetLastRevision(ctx, "app2")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(rev).To(Equal(int64(3)))
	})

	It("distinguishes an app with no snapshots from one sitting at revision 0", func() {
		Expect(store.Save(ctx, "app-zero", 0, []byte("z"))).To(Succeed())

		rev, ok, err := store.GetLastRevision(ctx, "app-zero")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(rev).To(Equal(int64(0)))
	})

	It("clears every revision for an app without touching other apps", func() {
		Expect(store.Save(ctx, "app3", 1, []byte("a"))).To(Succeed())
		Expect(store.Save(ctx, "app4", 1, []byte("b"))).To(Succeed())

		Expect(store.ClearAll(ctx, "app3")).To(Succeed())

		_, err := store.Load(ctx, "app3", 1)
		Expect(err).To(MatchError(pgstore.ErrNotFound))

		got, err := store.Load(ctx, "app4", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("b")))
	})

	It("deletes a single revision and leaves the others intact", func() {
		Expect(store.Save(ctx, "app5", 1, []byte("a"))).To(Succeed())
		Expect(store.Save(ctx, "app5", 2, []byte("b"))).To(Succeed())

		Expect(store.DeleteRevision(ctx, "app5", 1)).To(Succeed())

		_, err := store.Load(ctx, "app5", 1)
		Expect(err).To(MatchError(pgstore.ErrNotFound))

		got, err := store.Load(ctx, "app5", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("b")))
	})
})
