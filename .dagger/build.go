package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/tastes/internal/dagger"
)

// Build returns a directory holding the tastes binary for the container's
// native platform. Cross compiling is skipped since the sqlite drivers need CGO.
func (t *Tastes) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	const out = "bin/"

	build := t.goContainer().
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", out, "./cli/tastes"})

	return dag.Directory().WithDirectory(out, build.Directory(out))
}

// BuildRelease compiles a versioned binary with embedded version info
func (t *Tastes) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now().UTC().Format(time.RFC3339)

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/tastes/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/tastes/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/tastes/pkg/utils.Buildtime=%s'", buildtime),
	}

	return t.Build(ctx, strings.Join(ldflags, " "))
}
