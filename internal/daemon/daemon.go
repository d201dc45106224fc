package daemon

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/h2200080115/telegram-bot/internal/config"
	"github.com/h2200080115/telegram-bot/internal/logger"
	"github.com/h2200080115/telegram-bot/internal/metrics"
	"github.com/h2200080115/telegram-bot/internal/telegram"
	"github.com/h2200080115/telegram-bot/internal/telemetry"
	"github.com/h2200080115/telegram-bot/pkg/codec"
	"github.com/h2200080115/telegram-bot/pkg/ledger"
	"github.com/h2200080115/telegram-bot/pkg/workflow"
)

// drainTimeout bounds how long shutdown waits for in-flight transformations.
const drainTimeout = 30 * time.Second

// Daemon wires every module of the bot together: scratch ledger, codecs,
// workflow engine, Telegram transport, telemetry, and the metrics endpoint.
type Daemon struct {
	config *config.Config
	logger *logger.Logger

	// Core modules
	ledger   *ledger.Ledger
	janitor  *ledger.Janitor
	renderer *codec.FontRenderer
	store    *workflow.Store
	engine   *workflow.Engine

	// Services
	telemetry  *telemetry.Store
	bot        *telegram.Bot
	metricsSrv *http.Server

	pidFile *PIDFile

	startTime time.Time
	running   bool
	mu        sync.RWMutex
}

// unavailableRemover stands in when the rembg service is not configured.
type unavailableRemover struct{}

func (unavailableRemover) Remove(ctx context.Context, img []byte) ([]byte, error) {
	return nil, fmt.Errorf("background removal service is not configured")
}

// New creates a new daemon instance
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	metrics.EnsureRegistered()

	d := &Daemon{
		config: cfg,
		logger: log,
	}

	if err := d.initializeCoreModules(); err != nil {
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}
	if err := d.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	d.pidFile = NewPIDFile(cfg.DataDir, log.GetZerolog())

	return d, nil
}

// initializeCoreModules builds the ledger, codecs, and workflow engine.
func (d *Daemon) initializeCoreModules() error {
	zl := d.logger.GetZerolog()

	led, err := ledger.New(d.config.Scratch.Dir, zl)
	if err != nil {
		return fmt.Errorf("failed to create scratch ledger: %w", err)
	}
	d.ledger = led
	d.janitor = ledger.NewJanitor(led, time.Duration(d.config.Scratch.MaxAgeMinutes)*time.Minute, zl)
	d.logger.Info().Str("dir", led.Dir()).Msg("Scratch ledger initialized")

	renderer, err := codec.NewFontRenderer(d.config.Font.Path, d.config.Font.Size, zl)
	if err != nil {
		return fmt.Errorf("failed to load handwriting font: %w", err)
	}
	d.renderer = renderer
	d.logger.Info().Str("font", d.config.Font.Path).Msg("Font renderer initialized")

	d.store = workflow.NewStore()
	return nil
}

// initializeServices builds telemetry, the Telegram transport, and the engine.
func (d *Daemon) initializeServices() error {
	zl := d.logger.GetZerolog()

	if d.config.Telemetry.Enabled {
		store, err := telemetry.Open(d.config.Telemetry.DBPath, zl)
		if err != nil {
			return fmt.Errorf("failed to open telemetry store: %w", err)
		}
		d.telemetry = store
		d.logger.Info().Str("db", d.config.Telemetry.DBPath).Msg("Telemetry store initialized")
	}

	bot, err := telegram.New(d.config.Telegram.BotToken, zl)
	if err != nil {
		return fmt.Errorf("failed to create telegram bot: %w", err)
	}
	d.bot = bot

	var remover codec.BackgroundRemover = unavailableRemover{}
	if d.config.Rembg.Enabled {
		remover = codec.NewRembg(d.config.Rembg.URL, zl)
	}

	codecs := codec.Codecs{
		Document: codec.NewPDF(zl),
		Raster:   codec.NewImage(zl),
		Renderer: d.renderer,
		QR:       codec.NewQRCodec(zl),
		Docx:     codec.NewDocxCodec(zl),
		Remover:  remover,
	}

	var sink workflow.Sink
	if d.telemetry != nil {
		sink = d.telemetry
	}
	d.engine = workflow.NewEngine(d.store, d.ledger, codecs, bot, sink, zl)

	media := telegram.NewMedia(bot)
	handler := telegram.NewHandler(bot, d.engine, media, d.telemetry, d.config.Telegram.AdminID)
	bot.SetHandler(handler)
	d.logger.Info().Msg("Workflow engine initialized")

	if d.config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.MetricsHandler())
		d.metricsSrv = &http.Server{Addr: d.config.Metrics.Addr, Handler: mux}
	}

	return nil
}

// Start starts every service. It returns once the bot is polling.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.logger.Info().Msg("Starting document bot")

	if err := d.pidFile.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire PID file: %w", err)
	}

	if d.config.Font.HotReload {
		if err := d.renderer.Watch(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to watch font file, hot reload disabled")
		} else {
			d.logger.Info().Msg("Font hot reload enabled")
		}
	}

	if err := d.janitor.Start(d.config.Scratch.SweepSchedule); err != nil {
		return fmt.Errorf("failed to start scratch janitor: %w", err)
	}
	d.logger.Info().Str("schedule", d.config.Scratch.SweepSchedule).Msg("Scratch janitor started")

	if d.metricsSrv != nil {
		go func() {
			if err := d.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				d.logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		d.logger.Info().Str("addr", d.metricsSrv.Addr).Msg("Metrics endpoint started")
	}

	if err := d.bot.Start(); err != nil {
		return fmt.Errorf("failed to start telegram bot: %w", err)
	}
	d.logger.Info().Msg("Telegram bot started")

	d.logger.Info().Msg("Daemon started successfully")
	return nil
}

// Stop stops the daemon gracefully: stop taking updates, drain in-flight
// transformations, then shut down the supporting services.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Stopping document bot")

	if err := d.bot.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop telegram bot")
	}

	if !d.engine.Queue().Drain(drainTimeout) {
		d.logger.Warn().Msg("Timed out waiting for in-flight transformations")
	}
	if err := d.engine.Queue().Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close workflow queue")
	}

	d.janitor.Stop()
	d.logger.Info().Msg("Scratch janitor stopped")

	if d.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.metricsSrv.Shutdown(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Failed to shut down metrics server")
		}
		cancel()
	}

	if err := d.renderer.Close(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to close font renderer")
	}

	if d.telemetry != nil {
		if err := d.telemetry.Close(); err != nil {
			d.logger.Error().Err(err).Msg("Failed to close telemetry store")
		}
	}

	if err := d.pidFile.Release(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to remove PID file")
	}

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Status describes the running daemon.
type Status struct {
	Running bool
	Uptime  time.Duration
}

// Status returns the daemon's current status.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	st := Status{Running: d.running}
	if d.running {
		st.Uptime = time.Since(d.startTime)
	}
	return st
}

// GetConfig returns the daemon configuration.
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}

// GetEngine returns the workflow engine.
func (d *Daemon) GetEngine() *workflow.Engine {
	return d.engine
}

// GetLedger returns the scratch ledger.
func (d *Daemon) GetLedger() *ledger.Ledger {
	return d.ledger
}
