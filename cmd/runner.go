package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/signx/internal/repositories"
	"github.com/desertthunder/signx/internal/services"
	"github.com/desertthunder/signx/internal/shared"
	"github.com/desertthunder/signx/internal/tasks"
	"github.com/desertthunder/signx/internal/workflow"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	client     *services.Client
	processor  *services.ProcessService
	results    *services.ResultService
	db         *sql.DB
	runs       *repositories.RunRepository
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	open       func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Open       func(url string) error
}

// NewRunner creates a new Runner with the provided configuration.
//
// Service clients are built from the config right away; [Runner.Init] rebuilds them once the
// global flags are parsed.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Open == nil {
		opts.Open = shared.OpenBrowser
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		open:       opts.Open,
	}
	if err := r.connect(); err != nil {
		r.logger.Warn("service client not configured", "error", err)
	}
	return r
}

// Init loads the config named by the global --config flag and applies the log level.
// It runs before every command.
func (r *Runner) Init(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}

	config, err := shared.LoadConfigOrDefault(r.configPath)
	if err != nil {
		return ctx, err
	}
	r.config = config

	level := cmd.String("log-level")
	if level == "" {
		level = config.Logging.Level
	}
	if err := shared.ApplyLogLevel(r.logger, level); err != nil {
		return ctx, err
	}

	return ctx, r.connect()
}

func (r *Runner) connect() error {
	client, err := services.NewClient(services.ClientOpts{
		BaseURL:       r.config.Service.BaseURL,
		ProcessedPath: r.config.Service.ProcessedPath,
		APIToken:      r.config.Service.APIToken,
		RateLimit:     r.config.Service.RateLimit,
		Timeout:       r.config.Service.Timeout,
		HTTPClient:    r.httpClient,
	})
	if err != nil {
		return err
	}

	r.client = client
	r.processor = services.NewProcessService(client)
	r.results = services.NewResultService(client)
	return nil
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(logger *log.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// history opens the run database on first use and applies pending migrations.
func (r *Runner) history() (*repositories.RunRepository, error) {
	if r.runs != nil {
		return r.runs, nil
	}

	db, err := shared.OpenRunDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	if _, err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.runs = repositories.NewRunRepository(db)
	return r.runs, nil
}

// recorder returns the run history for the workflow, or nil when it cannot be opened.
// History is a convenience; the workflow runs without it.
func (r *Runner) recorder() workflow.Recorder {
	runs, err := r.history()
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return nil
	}
	return runs
}

// newMachine builds a workflow session over the configured services.
func (r *Runner) newMachine(onChange func(workflow.Snapshot)) (*workflow.Machine, error) {
	if r.processor == nil || r.results == nil {
		return nil, fmt.Errorf("%w: service client not initialized", shared.ErrServiceUnavailable)
	}

	opts := workflow.Opts{
		Processor: r.processor,
		Retriever: r.results,
		Simulator: tasks.NewSimulator(r.config.Progress),
		Logger:    r.logger,
		OnChange:  onChange,
	}
	if rec := r.recorder(); rec != nil {
		opts.Recorder = rec
	}
	return workflow.New(opts)
}

// Close releases the run database if it was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.runs = nil, nil
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, processCommand, latestCommand, listCommand, downloadCommand, openCommand,
		compareCommand, labelsCommand, historyCommand, setupCommand, apiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeBytes(b []byte) error {
	if _, err := r.output.Write(b); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if len(b) > 0 && b[len(b)-1] != '\n' {
		return r.writePlain("\n")
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
