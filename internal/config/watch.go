package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type rosterWatcher struct {
	path     string
	logger   zerolog.Logger
	onUpdate func(*RosterConfig)

	modTime time.Time
	content []byte
}

// WatchRoster loads the roster, hands it to onUpdate, then polls the file and
// calls onUpdate again whenever its content changes. The first load must
// succeed; a later invalid edit is logged and the previous roster stays in effect.
func WatchRoster(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, onUpdate func(*RosterConfig)) error {
	if path == "" {
		path = "configs/roster.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	w := &rosterWatcher{
		path:     path,
		logger:   logger.With().Str("component", "roster_watch").Str("path", path).Logger(),
		onUpdate: onUpdate,
	}
	if err := w.load(); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.poll()
			}
		}
	}()
	return nil
}

func (w *rosterWatcher) load() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	cfg, err := ParseRoster(data)
	if err != nil {
		return fmt.Errorf("roster %s: %w", w.path, err)
	}

	w.modTime, w.content = info.ModTime(), data
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
	return nil
}

func (w *rosterWatcher) poll() {
	info, err := os.Stat(w.path)
	if err != nil || !info.ModTime().After(w.modTime) {
		return
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	// touched but unchanged
	if bytes.Equal(data, w.content) {
		w.modTime = info.ModTime()
		return
	}

	cfg, err := ParseRoster(data)
	if err != nil {
		w.modTime = info.ModTime()
		w.logger.Error().Err(err).Msg("roster reload rejected")
		return
	}
	w.modTime, w.content = info.ModTime(), data
	w.logger.Info().Str("roster", cfg.String()).Msg("roster reloaded")
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
