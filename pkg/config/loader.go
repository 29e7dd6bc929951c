package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/0x00000002/multi-ai/pkg/aierrors"
)

// LoaderOptions configures a catalog loader.
type LoaderOptions struct {
	// Path of the YAML catalog document.
	Path string

	// Watch enables file watching; OnChange is invoked with each
	// successfully reloaded catalog.
	Watch    bool
	OnChange func(*Config) error
}

// Loader reads the catalog document from disk.
type Loader struct {
	options  LoaderOptions
	watcher  *fsnotify.Watcher
	stopChan chan struct{}
}

// NewLoader creates a loader for the given options.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}

	return &Loader{
		options:  opts,
		stopChan: make(chan struct{}),
	}, nil
}

// Load parses the catalog document, expands environment references,
// applies defaults and validates the result.
func (l *Loader) Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(l.options.Path), yaml.Parser()); err != nil {
		return nil, aierrors.Wrap(aierrors.KindConfigInvalid,
			fmt.Sprintf("failed to read config file %s", l.options.Path), err)
	}

	expanded, ok := ExpandEnvVarsInData(k.Raw()).(map[string]interface{})
	if !ok {
		return nil, aierrors.New(aierrors.KindConfigInvalid, "config root must be a mapping")
	}

	k = koanf.New(".")
	if err := k.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return nil, aierrors.Wrap(aierrors.KindConfigInvalid, "failed to merge expanded config", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, aierrors.Wrap(aierrors.KindConfigInvalid, "failed to unmarshal config", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, aierrors.Wrap(aierrors.KindConfigInvalid, "config validation failed", err)
	}

	return &cfg, nil
}

// StartWatch begins watching the config file and invokes OnChange after
// each successful reload. Reload failures keep the previous catalog and are
// only logged.
func (l *Loader) StartWatch() error {
	if !l.options.Watch || l.options.OnChange == nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	l.watcher = watcher

	// Watch the directory: editors typically replace the file on save.
	if err := watcher.Add(filepath.Dir(l.options.Path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	target := filepath.Clean(l.options.Path)

	for {
		select {
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			cfg, err := l.Load()
			if err != nil {
				slog.Warn("Config reload failed, keeping previous catalog", "path", l.options.Path, "error", err)
				continue
			}
			if err := l.options.OnChange(cfg); err != nil {
				slog.Warn("Config change handler failed", "path", l.options.Path, "error", err)
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)

		case <-l.stopChan:
			return
		}
	}
}

// Stop ends watching. Safe to call when watching was never started.
func (l *Loader) Stop() {
	select {
	case <-l.stopChan:
	default:
		close(l.stopChan)
	}
	if l.watcher != nil {
		l.watcher.Close()
	}
}
