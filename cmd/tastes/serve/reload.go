package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/papercomputeco/tastes/pkg/config"
	"github.com/papercomputeco/tastes/pkg/preference"
)

// tuningSetter is the slice of the engine a reload touches.
type tuningSetter interface {
	SetTuning(t preference.Tuning) error
}

// tuningReloader re-reads config.toml when it changes and swaps the engine
// tuning. Other settings need a restart.
type tuningReloader struct {
	path    string
	v       *viper.Viper
	engine  tuningSetter
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// reloaded is signalled after every reload attempt, for tests.
	reloaded chan error
}

func newTuningReloader(path string, v *viper.Viper, engine tuningSetter, logger *slog.Logger) (*tuningReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	// Watch the directory so editors that replace the file are still seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config dir: %w", err)
	}

	return &tuningReloader{
		path:    path,
		v:       v,
		engine:  engine,
		watcher: watcher,
		logger:  logger,
	}, nil
}

// Run processes watcher events until ctx is done or the watcher closes.
func (r *tuningReloader) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			err := r.reload()
			if r.reloaded != nil {
				select {
				case r.reloaded <- err:
				default:
				}
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (r *tuningReloader) reload() error {
	if err := r.v.ReadInConfig(); err != nil {
		r.logger.Warn("config reload failed", "path", r.path, "error", err)
		return err
	}

	cfg := config.FromViper(r.v)
	tuning, err := cfg.Engine.Tuning()
	if err == nil {
		err = r.engine.SetTuning(tuning)
	}
	if err != nil {
		r.logger.Warn("keeping previous engine tuning", "error", err)
		return err
	}

	r.logger.Info("engine tuning reloaded",
		"decay", tuning.Decay,
		"weight_scale", tuning.WeightScale,
		"max_attempts", tuning.MaxAttempts,
	)
	return nil
}

func (r *tuningReloader) Close() error {
	return r.watcher.Close()
}
