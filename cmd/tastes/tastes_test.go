package tastescmder_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	tastescmder "github.com/papercomputeco/tastes/cmd/tastes"
)

var _ = Describe("NewTastesCmd", func() {
	It("registers every subcommand", func() {
		cmd := tastescmder.NewTastesCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("init", "config", "serve", "replay", "index", "version"))
	})

	It("has global debug and config-dir flags", func() {
		cmd := tastescmder.NewTastesCmd()
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	It("passes --config-dir through to subcommands", func() {
		dir := GinkgoT().TempDir()
		out := &bytes.Buffer{}

		cmd := tastescmder.NewTastesCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--config-dir", dir, "config", "set", "engine.decay", "0.8"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring(dir))

		out.Reset()
		cmd = tastescmder.NewTastesCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--config-dir", dir, "config", "get", "engine.decay"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("0.8"))
	})

	It("prints the version", func() {
		out := &bytes.Buffer{}
		cmd := tastescmder.NewTastesCmd()
		cmd.SetOut(out)
		cmd.SetArgs([]string{"version"})
		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Version: dev"))
	})
})
