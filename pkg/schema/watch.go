package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watch reloads the schema at path whenever it, or a YAML file in it,
// changes, and passes every schema that loads to onChange. Load errors are
// logged and the previous schema stays in use. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, path string, log zerolog.Logger, onChange func(*Schema)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	// Editors replace files on save, so single files are watched through
	// their directory.
	dir, file := path, ""
	if !info.IsDir() {
		dir, file = filepath.Dir(path), filepath.Clean(path)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.Info().Str("path", path).Msg("watching schema")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event, file) {
				continue
			}
			s, err := Load(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("schema reload failed")
				continue
			}
			log.Info().Str("path", path).Int("models", len(s.Models)).Msg("schema reloaded")
			onChange(s)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

func relevant(event fsnotify.Event, file string) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(event.Name)
	if file != "" {
		return name == file
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}
