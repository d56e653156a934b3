package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/tastes/cmd/tastes/init"
	"github.com/papercomputeco/tastes/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has --preset and --force flags", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Flags().Lookup("preset")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("force")).NotTo(BeNil())
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "tastes-init-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	execute := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	readConfig := func() *config.Config {
		data, err := os.ReadFile(filepath.Join(tmpDir, ".tastes", "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		cfg := &config.Config{}
		Expect(toml.Unmarshal(data, cfg)).To(Succeed())
		return cfg
	}

	It("creates a .tastes directory with a default config", func() {
		Expect(execute()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".tastes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := readConfig()
		Expect(cfg.Embedding.Provider).To(Equal("ollama"))
		Expect(cfg.Engine.Decay).To(Equal(0.9))
	})

	It("writes the requested preset", func() {
		Expect(execute("--preset", "cluster")).To(Succeed())

		cfg := readConfig()
		Expect(cfg.Storage.Driver).To(Equal("postgres"))
		Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
	})

	It("keeps an existing config unless forced", func() {
		Expect(execute("--preset", "openai")).To(Succeed())
		Expect(execute()).To(Succeed())
		Expect(readConfig().Embedding.Provider).To(Equal("openai"))

		Expect(execute("--force")).To(Succeed())
		Expect(readConfig().Embedding.Provider).To(Equal("ollama"))
	})

	It("rejects unknown presets without creating anything", func() {
		Expect(execute("--preset", "anthropic")).To(MatchError(ContainSubstring("unknown preset")))

		_, err := os.Stat(filepath.Join(tmpDir, ".tastes"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
