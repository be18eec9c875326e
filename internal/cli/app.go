// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared wiring for every command that talks to the endpoint.

package cli

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/export"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/signature"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/transport"
)

// persistTimeout bounds a single state write. Redis is the only backend
// that can block for long.
const persistTimeout = 5 * time.Second

// AppOptions tunes NewApp for the command being run.
type AppOptions struct {
	// OnRender is the throttled scroll/flush hook handed to the engine.
	OnRender func()

	// Ephemeral skips restoring and persisting the conversation. Used by
	// "ask", which must not clobber the stored chat. The stored pass is
	// still read.
	Ephemeral bool

	// Watch reloads the config file on change.
	Watch bool
}

// App bundles the configured collaborators of one streamchat process.
type App struct {
	Config     *config.Config
	ConfigPath string
	Store      storage.Store
	Archive    *storage.Archive
	Client     *transport.Client
	Engine     *engine.Engine

	ephemeral bool
	watcher   *config.Watcher
	unsub     func()

	mu     sync.Mutex
	closed bool
}

// NewApp loads the configuration, opens storage, restores the persisted
// conversation and builds the engine.
func NewApp(ctx context.Context, args Args, opts AppOptions) (*App, error) {
	cfg, cfgPath, err := loadConfig(args)
	if err != nil {
		return nil, err
	}
	if args.Storage != "" {
		cfg.Storage.Backend = args.Storage
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	config.SetGlobal(cfg)

	app := &App{Config: cfg, ConfigPath: cfgPath, ephemeral: opts.Ephemeral}

	app.Store, err = storage.Open(ctx, storage.Options{
		Backend:     cfg.Storage.Backend,
		Dir:         cfg.Storage.Dir,
		RedisAddr:   cfg.Storage.RedisAddr,
		RedisDB:     cfg.Storage.RedisDB,
		RedisPrefix: cfg.Storage.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}

	// Credential: an explicit config value wins and is remembered
	pass := cfg.Auth.Pass
	if pass != "" {
		if err := storage.SavePass(ctx, app.Store, pass); err != nil {
			log.Printf("[app] failed to store pass: %v", err)
		}
	} else if pass, err = storage.LoadPass(ctx, app.Store); err != nil {
		log.Printf("[app] failed to load pass: %v", err)
	}

	app.Client = transport.NewClientWithConfig(clientConfig(cfg, pass))

	app.Engine, err = engine.New(app.Client, engine.Options{
		OnRender:       opts.OnRender,
		RenderInterval: cfg.UI.ScrollThrottle(),
	})
	if err != nil {
		app.Store.Close()
		return nil, err
	}

	if !opts.Ephemeral {
		conv, err := storage.LoadState(ctx, app.Store)
		if err != nil {
			log.Printf("[app] starting with an empty conversation: %v", err)
		}
		if err := app.Engine.Restore(conv); err != nil {
			app.Store.Close()
			return nil, err
		}
		app.unsub = app.Engine.Subscribe(app.persist)
	}

	if dir := archiveDir(cfg); dir != "" && !opts.Ephemeral {
		if app.Archive, err = storage.NewArchive(dir); err != nil {
			log.Printf("[app] archive disabled: %v", err)
		}
	}

	app.Engine.SetDirective(args.System)

	if opts.Watch && cfgPath != "" {
		if app.watcher, err = config.Watch(cfgPath, config.DefaultWatchDebounce, app.applyConfig); err != nil {
			log.Printf("[app] config watch disabled: %v", err)
		}
	}

	return app, nil
}

// loadConfig honours --config, otherwise the default locations. A broken
// default file is reported but not fatal.
func loadConfig(args Args) (*config.Config, string, error) {
	if args.ConfigPath != "" {
		cfg, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, "", err
		}
		return cfg, args.ConfigPath, nil
	}

	cfg, err := config.Load()
	if cfg == nil {
		return nil, "", err
	}
	if err != nil {
		log.Printf("[app] using default config: %v", err)
	}
	path, _ := config.ConfigPathTOML()
	return cfg, path, nil
}

func clientConfig(cfg *config.Config, pass string) *transport.ClientConfig {
	var signer signature.Signer
	if cfg.Auth.SiteKey != "" {
		signer = signature.NewSHA256Signer(cfg.Auth.SiteKey)
	}
	return &transport.ClientConfig{
		BaseURL:        cfg.Endpoint.URL,
		Path:           cfg.Endpoint.Path,
		ConnectTimeout: cfg.Endpoint.ConnectTimeout(),
		Pass:           pass,
		Signer:         signer,
	}
}

func archiveDir(cfg *config.Config) string {
	dir := cfg.Storage.Dir
	if dir == "" {
		d, err := storage.DefaultDir()
		if err != nil {
			return ""
		}
		dir = d
	}
	return filepath.Join(dir, "archive")
}

// applyConfig swaps endpoint settings in place. The engine and the stored
// conversation are untouched; the next request uses the new values.
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	pass := cfg.Auth.Pass
	if pass == "" {
		pass = a.Client.Config().Pass
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := storage.SavePass(ctx, a.Store, pass); err != nil {
			log.Printf("[app] failed to store pass: %v", err)
		}
		cancel()
	}
	a.Client.Update(*clientConfig(cfg, pass))
	a.Config = cfg
	config.SetGlobal(cfg)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist writes the conversation after every committed change. The
// in-progress buffer is never written.
func (a *App) persist(ev engine.Event) {
	switch ev.Type {
	case engine.EventMessageAppended, engine.EventMessageRemoved,
		engine.EventCleared, engine.EventDirectiveChanged, engine.EventStreamEnded:
	default:
		return
	}
	if err := a.Save(); err != nil {
		log.Printf("[app] failed to persist conversation: %v", err)
	}
}

// Save writes the current conversation to the store.
func (a *App) Save() error {
	if a.ephemeral {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return storage.SaveState(ctx, a.Store, a.Engine.Snapshot())
}

// SetPass stores a new credential and uses it from the next request on.
func (a *App) SetPass(ctx context.Context, pass string) error {
	a.Client.SetPass(pass)
	return storage.SavePass(ctx, a.Store, pass)
}

// =============================================================================
// ARCHIVE
// =============================================================================

// ArchiveCurrent saves the conversation to the archive and returns its id.
func (a *App) ArchiveCurrent() (string, error) {
	if a.Archive == nil {
		return "", fmt.Errorf("archive is not available")
	}
	return a.Archive.Save(a.Engine.Snapshot())
}

// Clear archives a non-empty conversation, then clears it. The archive id
// is "" when nothing was archived.
func (a *App) Clear() string {
	var id string
	if a.Archive != nil && !a.Engine.Snapshot().IsEmpty() {
		var err error
		if id, err = a.Archive.Save(a.Engine.Snapshot()); err != nil {
			log.Printf("[app] failed to archive before clear: %v", err)
		}
	}
	a.Engine.Clear()
	return id
}

// LoadArchived replaces the conversation with an archived one. ref is an
// archive id or a list index.
func (a *App) LoadArchived(ref string) (*storage.Archived, error) {
	if a.Archive == nil {
		return nil, fmt.Errorf("archive is not available")
	}
	archived, err := a.Archive.Load(ref)
	if err != nil {
		return nil, err
	}
	if err := a.Engine.Restore(archived.Conversation()); err != nil {
		return nil, err
	}
	return archived, a.Save()
}

// Export writes the conversation in format ("md" or "json") and returns
// the path written.
func (a *App) Export(format, path string) (string, error) {
	return export.Conversation(a.Engine.Snapshot(), format, path, export.DefaultOptions())
}

// Snapshot is a convenience for callers that only hold the App.
func (a *App) Snapshot() *model.Conversation {
	return a.Engine.Snapshot()
}

// =============================================================================
// SHUTDOWN
// =============================================================================

// Close cancels any stream, persists the conversation and releases
// storage. Safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.watcher != nil {
		a.watcher.Close()
	}
	a.Engine.Cancel()
	a.Engine.Wait()
	if err := a.Save(); err != nil {
		log.Printf("[app] failed to persist conversation on exit: %v", err)
	}
	if a.unsub != nil {
		a.unsub()
	}
	return a.Store.Close()
}
