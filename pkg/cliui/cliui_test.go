package cliui_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/tastes/pkg/cliui"
)

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second and seconds above", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Step", func() {
	It("prints a single success line for redirected output", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "reading catalog", func() error { return nil })).To(Succeed())

		Expect(strings.Count(buf.String(), "\n")).To(Equal(1))
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
		Expect(buf.String()).To(ContainSubstring("reading catalog"))
	})

	It("returns the step's error and marks the failure", func() {
		var buf bytes.Buffer
		err := cliui.Step(&buf, "indexing", func() error { return errors.New("boom") })

		Expect(err).To(MatchError("boom"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("Fields", func() {
	It("aligns keys and marks empty values", func() {
		var buf bytes.Buffer
		cliui.Fields(&buf,
			cliui.Field{Key: "indexed", Value: "12"},
			cliui.Field{Key: "api.listen"},
		)

		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]).To(ContainSubstring("indexed   "))
		Expect(lines[1]).To(ContainSubstring("<not set>"))
	})
})
