// Package replaycmder provides the `tastes replay` CLI command.
package replaycmder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/tastes/cmd/tastes/stack"
	"github.com/papercomputeco/tastes/pkg/cliui"
	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/dotdir"
	"github.com/papercomputeco/tastes/pkg/logger"
	"github.com/papercomputeco/tastes/pkg/replay"
)

const replayLongDesc string = `Re-apply logged interaction events to preference state.

Walks the event log in append order and folds each named user's event into
their preference vector. Use it to rebuild state after the state store was
reset or to catch up after asynchronous updates were dropped.

Progress is checkpointed in .tastes/replay.json after every page. --resume
continues from the checkpoint written for the same storage and user filter.
Replaying events that were already applied counts them again.

Examples:
  tastes replay
  tastes replay --user u_123
  tastes replay --resume --continue-on-error
  tastes replay --dry-run`

const replayShortDesc string = "Rebuild preference state from the event log"

type replayCommander struct {
	userID          string
	resume          bool
	pageSize        int
	continueOnError bool
	dryRun          bool
	debug           bool
	configDir       string
}

// NewReplayCmd creates the replay cobra command.
func NewReplayCmd() *cobra.Command {
	cmder := &replayCommander{}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: replayShortDesc,
		Long:  replayLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), config.FromViper(v))
		},
	}

	cmd.Flags().StringVarP(&cmder.userID, "user", "u", "", "Only replay this user's events")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Continue from the last checkpoint")
	cmd.Flags().IntVar(&cmder.pageSize, "page-size", 0, "Events listed per page (default 500)")
	cmd.Flags().BoolVar(&cmder.continueOnError, "continue-on-error", false, "Count failed updates and keep going")
	cmd.Flags().BoolVar(&cmder.dryRun, "dry-run", false, "Count events without applying them")

	return cmd
}

func (c *replayCommander) run(ctx context.Context, out io.Writer, cfg *config.Config) error {
	log := logger.Nop()
	if c.debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(os.Stderr))
	}

	st, err := stack.Build(ctx, cfg, c.configDir, log)
	if err != nil {
		return err
	}
	defer st.Close()

	ddm := dotdir.NewManager()
	storageID := storageIdentity(cfg)

	after := ""
	applied := 0
	if c.resume {
		cp, err := ddm.LoadReplayCheckpoint(c.configDir)
		if err != nil {
			return err
		}
		if cp.Matches(storageID, c.userID) {
			after = cp.Cursor
			applied = cp.Applied
			fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render(
				fmt.Sprintf("Resuming after %s (%d applied so far)", cp.Cursor, cp.Applied)))
		}
	}

	checkpoint := func(res replay.Result) error {
		if c.dryRun || res.Cursor == "" {
			return nil
		}
		return ddm.SaveReplayCheckpoint(&dotdir.ReplayCheckpoint{
			Storage:   storageID,
			UserID:    c.userID,
			Cursor:    res.Cursor,
			Applied:   applied + res.Applied,
			UpdatedAt: time.Now().UTC(),
		}, c.configDir)
	}

	r, err := replay.NewReplayer(st.Storage, st.Engine, replay.Options{
		UserID:          c.userID,
		After:           after,
		PageSize:        c.pageSize,
		ContinueOnError: c.continueOnError,
		DryRun:          c.dryRun,
		OnPage:          checkpoint,
	}, log)
	if err != nil {
		return err
	}

	var res *replay.Result
	stepErr := cliui.Step(out, "Replaying events", func() error {
		var err error
		res, err = r.Run(ctx)
		return err
	})
	if res != nil {
		if err := checkpoint(*res); err != nil {
			log.Warn("saving replay checkpoint", "error", err)
		}
		fmt.Fprintf(out, "\n%s\n", res.Summary())
	}
	return stepErr
}

// storageIdentity names the event log a checkpoint cursor belongs to.
func storageIdentity(cfg *config.Config) string {
	s := cfg.Storage
	switch s.Driver {
	case "sqlite":
		return "sqlite:" + s.SQLitePath
	case "postgres":
		// The DSN may carry a password; only a digest is persisted.
		sum := sha256.Sum256([]byte(s.PostgresDSN))
		return "postgres:" + hex.EncodeToString(sum[:8])
	case "redis":
		return fmt.Sprintf("redis:%s/%d/%s", s.RedisAddr, s.RedisDB, s.RedisPrefix)
	default:
		return s.Driver
	}
}
