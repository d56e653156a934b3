package servecmder

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/ingest"
	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/interaction"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/preference"
)

var _ = Describe("NewServeCmd", func() {
	It("registers every serve flag", func() {
		cmd := NewServeCmd()
		for _, key := range config.ServeFlagKeys {
			name := config.ServeFlags[key].Name
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
		Expect(cmd.Flags().Lookup("json-logs")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
	})
})

var _ = Describe("setupLogger", func() {
	It("tees JSON records into the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "serve.log")
		c := &serveCommander{logFile: path}

		closeLog, err := c.setupLogger()
		Expect(err).NotTo(HaveOccurred())
		c.logger.Info("listening", "addr", ":8081")
		closeLog()

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"listening"`))
		Expect(string(data)).To(ContainSubstring(`"addr":":8081"`))
	})

	It("fails when the log file cannot be opened", func() {
		c := &serveCommander{logFile: filepath.Join(GinkgoT().TempDir(), "missing", "serve.log")}
		_, err := c.setupLogger()
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})

var _ = Describe("newService", func() {
	var (
		ctx context.Context
		cfg *config.Config
		svc *service
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = config.NewDefaultConfig()
		cfg.Storage.Driver = "inmemory"
		cfg.VectorStore.Provider = "none"

		var err error
		svc, err = newService(ctx, cfg, GinkgoT().TempDir(), logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(svc.Close()).To(Succeed())
	})

	It("wires ingestion through the engine", func() {
		prov := svc.stack.Embedder.Provenance()
		vec := make([]float32, prov.Dims)
		vec[0] = 1
		user := "u1"

		ack, err := svc.ingest.Ingest(ctx, &interaction.Event{
			UserID:    &user,
			ProductID: "p1",
			Action:    interaction.ActionPurchase,
			Context:   interaction.VectorContext{Vector: vec, Provenance: prov},
		}, ingest.Options{Sync: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(ack.State).NotTo(BeNil())
		Expect(ack.State.Version).To(Equal(int64(1)))

		state, err := svc.stack.Engine.GetPreferenceState(ctx, user)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.Vector[0]).To(BeNumerically("~", 1, 1e-6))
	})

	It("queues asynchronous updates on the pool", func() {
		prov := svc.stack.Embedder.Provenance()
		vec := make([]float32, prov.Dims)
		vec[1] = 1
		user := "u2"

		ack, err := svc.ingest.Ingest(ctx, &interaction.Event{
			UserID:    &user,
			ProductID: "p2",
			Action:    interaction.ActionView,
			Context:   interaction.VectorContext{Vector: vec, Provenance: prov},
		}, ingest.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(ack.Queued).To(BeTrue())

		Eventually(func() (int64, error) {
			s, err := svc.stack.Engine.GetPreferenceState(ctx, user)
			if s == nil {
				return 0, err
			}
			return s.Version, err
		}).Should(Equal(int64(1)))
	})
})

type recordingEngine struct {
	mu     sync.Mutex
	tuning []preference.Tuning
}

func (r *recordingEngine) SetTuning(t preference.Tuning) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tuning = append(r.tuning, t)
	return nil
}

var _ = Describe("tuningReloader", func() {
	var (
		dir    string
		path   string
		engine *recordingEngine
		cancel context.CancelFunc
		r      *tuningReloader
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		path = filepath.Join(dir, "config.toml")
		Expect(os.WriteFile(path, []byte("[engine]\ndecay = 0.9\n"), 0o600)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())

		engine = &recordingEngine{}
		r, err = newTuningReloader(path, v, engine, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		r.reloaded = make(chan error, 4)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		go r.Run(ctx)
	})

	AfterEach(func() {
		cancel()
		r.Close()
	})

	It("swaps in tuning from a rewritten config file", func() {
		Expect(os.WriteFile(path, []byte("[engine]\ndecay = 0.5\n"), 0o600)).To(Succeed())

		Eventually(func() float64 {
			engine.mu.Lock()
			defer engine.mu.Unlock()
			if len(engine.tuning) == 0 {
				return 0
			}
			return engine.tuning[len(engine.tuning)-1].Decay
		}, 5*time.Second).Should(Equal(0.5))
	})

	It("keeps the previous tuning when the new one is invalid", func() {
		Expect(os.WriteFile(path, []byte("[engine]\ndecay = 4.0\n"), 0o600)).To(Succeed())

		Eventually(r.reloaded, 5*time.Second).Should(Receive(MatchError(preference.ErrInvalidTuning)))
		engine.mu.Lock()
		defer engine.mu.Unlock()
		for _, t := range engine.tuning {
			Expect(t.Decay).NotTo(Equal(4.0))
		}
	})
})
