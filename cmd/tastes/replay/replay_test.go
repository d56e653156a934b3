package replaycmder

import (
	"bytes"
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/dotdir"
	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/storage/sqlite"
	"github.com/papercomputeco/tastes/pkg/vector"
)

var _ = Describe("replay command", func() {
	var (
		ctx       context.Context
		configDir string
		dbPath    string
		cfg       *config.Config
		prov      vector.Provenance
	)

	BeforeEach(func() {
		ctx = context.Background()
		configDir = GinkgoT().TempDir()
		dbPath = filepath.Join(configDir, "tastes.db")

		cfg = config.NewDefaultConfig()
		cfg.Storage.SQLitePath = dbPath
		cfg.VectorStore.Provider = "none"
		prov = vector.Provenance{Provider: "ollama", Model: cfg.Embedding.Model, Dims: int(cfg.Embedding.Dimensions)}

		driver, err := sqlite.NewSQLiteDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		for i, product := range []string{"p1", "p2", "p3"} {
			vec := make([]float32, prov.Dims)
			vec[i] = 1
			e := &interaction.Event{
				UserID:    interaction.String("u1"),
				ProductID: product,
				Action:    interaction.ActionPurchase,
				Context:   interaction.VectorContext{Vector: vec, Provenance: prov},
			}
			_, err := driver.Append(ctx, e)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(driver.Close()).To(Succeed())
	})

	version := func() int64 {
		driver, err := sqlite.NewSQLiteDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer driver.Close()

		s, err := driver.Read(ctx, "u1")
		Expect(err).NotTo(HaveOccurred())
		return s.Version
	}

	It("has the expected flags", func() {
		cmd := NewReplayCmd()
		for _, name := range []string{"user", "resume", "page-size", "continue-on-error", "dry-run"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("rebuilds state and checkpoints progress", func() {
		out := &bytes.Buffer{}
		c := &replayCommander{configDir: configDir}
		Expect(c.run(ctx, out, cfg)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("3 applied"))
		Expect(version()).To(Equal(int64(3)))

		cp, err := dotdir.NewManager().LoadReplayCheckpoint(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp.Matches(storageIdentity(cfg), "")).To(BeTrue())
		Expect(cp.Applied).To(Equal(3))
		Expect(cp.Cursor).NotTo(BeEmpty())
	})

	It("resumes without reapplying checkpointed events", func() {
		c := &replayCommander{configDir: configDir}
		Expect(c.run(ctx, &bytes.Buffer{}, cfg)).To(Succeed())

		out := &bytes.Buffer{}
		c = &replayCommander{configDir: configDir, resume: true}
		Expect(c.run(ctx, out, cfg)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Resuming after"))
		Expect(out.String()).To(ContainSubstring("0 applied"))
		Expect(version()).To(Equal(int64(3)))
	})

	It("ignores a checkpoint written for another user filter", func() {
		c := &replayCommander{configDir: configDir, userID: "someone-else"}
		Expect(c.run(ctx, &bytes.Buffer{}, cfg)).To(Succeed())

		out := &bytes.Buffer{}
		c = &replayCommander{configDir: configDir, resume: true}
		Expect(c.run(ctx, out, cfg)).To(Succeed())
		Expect(out.String()).NotTo(ContainSubstring("Resuming after"))
		Expect(version()).To(Equal(int64(3)))
	})

	It("does not write state or checkpoints in dry run mode", func() {
		c := &replayCommander{configDir: configDir, dryRun: true}
		Expect(c.run(ctx, &bytes.Buffer{}, cfg)).To(Succeed())

		cp, err := dotdir.NewManager().LoadReplayCheckpoint(configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cp).To(BeNil())
	})
})

var _ = Describe("storageIdentity", func() {
	It("does not leak postgres credentials", func() {
		cfg := config.NewDefaultConfig()
		cfg.Storage.Driver = "postgres"
		cfg.Storage.PostgresDSN = "postgres://tastes:s3cret@db/tastes"
		Expect(storageIdentity(cfg)).To(HavePrefix("postgres:"))
		Expect(storageIdentity(cfg)).NotTo(ContainSubstring("s3cret"))
	})
})
