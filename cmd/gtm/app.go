// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gigantum/gtm/internal/config"
	"github.com/gigantum/gtm/internal/container"
	"github.com/gigantum/gtm/internal/platform"
	"github.com/gigantum/gtm/internal/prompt"
	"github.com/gigantum/gtm/internal/tracker"
	"github.com/gigantum/gtm/internal/vcs"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// EngineFactory opens the container engine selected by the configuration.
	EngineFactory func(cfg *config.Config) (container.Engine, error)

	// PlatformDetector builds the host profile for a working directory.
	PlatformDetector func(workDir string) (platform.Profile, error)

	// App wires CLI services and shared dependencies. It is the composition root
	// of the CLI layer: every command handler receives the App and builds its
	// orchestrator from it.
	App struct {
		Config    ConfigProvider
		Engines   EngineFactory
		VCS       vcs.Provider
		Platform  PlatformDetector
		Confirmer prompt.Confirmer
		Now       func() time.Time
		stdout    io.Writer
		stderr    io.Writer
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config    ConfigProvider
		Engines   EngineFactory
		VCS       vcs.Provider
		Platform  PlatformDetector
		Confirmer prompt.Confirmer
		Now       func() time.Time
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// rootFlags holds the persistent flags shared by every command.
	rootFlags struct {
		verbose      bool
		configFile   string
		overrideName string
		noCache      bool
		yes          bool
	}

	// session is the per-command state: configuration, logger, engine and tracker.
	session struct {
		app     *App
		flags   *rootFlags
		cfg     *config.Config
		logger  *log.Logger
		engine  container.Engine
		tracker *tracker.Tracker
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Engines == nil {
		deps.Engines = openEngine
	}
	if deps.VCS == nil {
		deps.VCS = commitProvider()
	}
	if deps.Platform == nil {
		deps.Platform = platform.Detect
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &App{
		Config:    deps.Config,
		Engines:   deps.Engines,
		VCS:       deps.VCS,
		Platform:  deps.Platform,
		Confirmer: deps.Confirmer,
		Now:       deps.Now,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
}

// commitProvider reads HEAD with go-git unless GTM_COMMIT pins the hash (CI builds
// from exported trees without a .git directory).
func commitProvider() vcs.Provider {
	if hash := os.Getenv("GTM_COMMIT"); hash != "" {
		return vcs.StaticProvider{Hash: hash}
	}
	return vcs.NewGitProvider()
}

// openEngine is the production EngineFactory.
func openEngine(cfg *config.Config) (container.Engine, error) {
	engineType, err := container.ParseEngineType(cfg.Engine.Type)
	if err != nil {
		return nil, err
	}
	if engineType != container.EngineTypeAPI {
		return container.NewEngine(engineType)
	}

	var opts []container.APIEngineOption
	if cfg.Registry.Username != "" {
		opts = append(opts, container.WithRegistryAuth(cfg.Registry.Username, cfg.Registry.Password, cfg.Registry.Server))
	}
	api, err := container.NewAPIEngine(opts...)
	if err != nil {
		return nil, &container.EngineNotAvailableError{Engine: "api", Reason: err.Error()}
	}
	if !api.Available() {
		_ = api.Close()
		return nil, &container.EngineNotAvailableError{Engine: "api", Reason: "the Docker daemon did not answer on the configured host"}
	}
	return api, nil
}

// loadConfig reads the configuration honoring --config.
func (a *App) loadConfig(ctx context.Context, flags *rootFlags) (*config.Config, error) {
	return a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configFile})
}

// newSession loads the configuration and opens the engine. Callers must Close it.
func (a *App) newSession(ctx context.Context, flags *rootFlags) (*session, error) {
	cfg, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	if cfg.UI.Verbose {
		flags.verbose = true
	}

	logger := log.NewWithOptions(a.stderr, log.Options{Prefix: "gtm"})
	if flags.verbose {
		logger.SetLevel(log.DebugLevel)
	}

	engine, err := a.Engines(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("container engine selected", "engine", engine.Name(), "tracking_file", cfg.TrackingFile)
	if flags.verbose {
		if version, err := engine.Version(ctx); err != nil {
			logger.Debug("container engine version unavailable", "error", err)
		} else {
			logger.Debug("container engine version", "version", version)
		}
	}

	return &session{
		app:     a,
		flags:   flags,
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		tracker: tracker.New(cfg.TrackingFile),
	}, nil
}

// Close releases the engine when it holds a connection.
func (s *session) Close() {
	if closer, ok := s.engine.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Debug("closing container engine", "error", err)
		}
	}
}

// confirmer returns the rebuild prompt: always-yes under --yes or ui.assume_yes,
// otherwise the injected or terminal prompt.
func (s *session) confirmer() prompt.Confirmer {
	if s.flags.yes || s.cfg.UI.AssumeYes {
		return prompt.AlwaysYes{}
	}
	if s.app.Confirmer != nil {
		return s.app.Confirmer
	}
	return prompt.NewTerminalConfirmer()
}

// output is where streamed engine output goes.
func (s *session) output() io.Writer {
	return s.app.stdout
}
