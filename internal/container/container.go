package container

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"

	"sheetflow/adapters/excel"
	"sheetflow/adapters/postgres"
	"sheetflow/adapters/sheets"
	"sheetflow/app"
	"sheetflow/domain/core"
	"sheetflow/internal/api"
	"sheetflow/internal/config"
	"sheetflow/ports"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB     *sqlx.DB
	Source ports.SheetSource
	Store  ports.DatasetStore

	// Services
	Pipeline   *app.Pipeline
	Workspaces *app.WorkspaceManager
	Datasets   *app.DatasetService
	Server     *api.Server
}

// Options carries the terminal the interactive consent flow talks to.
// A nil In disables interactive consent.
type Options struct {
	In  io.Reader
	Out io.Writer
}

// New creates a container with the sheet source and pipeline wired
func New(ctx context.Context, cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config:   cfg,
		Pipeline: app.NewPipeline(PipelineOptions(cfg)),
	}

	source, err := newSource(ctx, cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheet source: %w", err)
	}
	c.Source = source
	return c, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.Store = postgres.NewDatasetStore(db)
	c.Workspaces = app.NewWorkspaceManager(c.Source, c.Store, c.Pipeline)
	c.Datasets = app.NewDatasetService(c.Store)
	c.Server = api.NewServer(c.Workspaces, c.Datasets, core.ID(c.Config.Import.DefaultUserID))

	log.Printf("Container initialized with %s sheet source and database connection", c.Config.Sheets.Source)
	return nil
}

// PipelineOptions maps the import configuration onto the pipeline stages
func PipelineOptions(cfg *config.Config) app.PipelineOptions {
	opts := app.DefaultPipelineOptions()
	if cfg.Import.MaxSamples > 0 {
		opts.Infer.MaxSamples = cfg.Import.MaxSamples
	}
	if cfg.Import.EnumThreshold > 0 {
		opts.Infer.EnumCardinalityThreshold = cfg.Import.EnumThreshold
	}
	opts.Infer.StringAsBoolean = cfg.Import.StringAsBoolean
	opts.Coerce.DayFirst = cfg.Import.DayFirst
	opts.Validate.DayFirst = cfg.Import.DayFirst
	if len(cfg.Import.IDFields) > 0 {
		opts.IDFields = cfg.Import.IDFields
	}
	opts.PreserveFields = cfg.Import.PreserveFields
	opts.DropMissing = cfg.Import.DropMissing
	return opts
}

func newSource(ctx context.Context, cfg *config.Config, opts Options) (ports.SheetSource, error) {
	if cfg.Sheets.Source == config.SourceXLSX {
		log.Printf("Reading workbooks from %s", cfg.Sheets.XLSXDir)
		return excel.NewWorkbookSource(cfg.Sheets.XLSXDir), nil
	}

	var conf *oauth2.Config
	if cfg.Sheets.ClientID != "" {
		conf = &oauth2.Config{
			ClientID:     cfg.Sheets.ClientID,
			ClientSecret: cfg.Sheets.ClientSecret,
			Endpoint:     googleEndpoint,
			RedirectURL:  "http://localhost",
			Scopes:       sheets.Scopes,
		}
	}

	var initial *oauth2.Token
	if cfg.Sheets.AccessToken != "" || cfg.Sheets.RefreshToken != "" {
		initial = &oauth2.Token{AccessToken: cfg.Sheets.AccessToken, RefreshToken: cfg.Sheets.RefreshToken}
	}
	if conf == nil && initial == nil {
		return nil, fmt.Errorf("google source needs GOOGLE_CLIENT_ID or GOOGLE_ACCESS_TOKEN")
	}

	var consent sheets.ConsentFunc
	if conf != nil && opts.In != nil && opts.Out != nil {
		consent = sheets.PromptConsent(conf, opts.In, opts.Out)
	}

	auth := sheets.NewAuthenticator(ctx, conf, initial, consent)
	return sheets.NewClient(sheets.Config{
		SheetsBaseURL: cfg.Sheets.SheetsAPI,
		DriveBaseURL:  cfg.Sheets.DriveAPI,
		Timeout:       cfg.Sheets.Timeout,
	}, auth), nil
}

// Shutdown releases the database connection
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
