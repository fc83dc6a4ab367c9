package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"
	"github.com/soundprint-app/soundprint/internal/repositories"
	"github.com/soundprint-app/soundprint/internal/services"
	"github.com/soundprint-app/soundprint/internal/shared"
	"github.com/soundprint-app/soundprint/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for
// each command action.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	clock      clockwork.Clock
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Clock      clockwork.Clock
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		clock:      opts.Clock,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, usersCommand, connectCommand, syncCommand, statsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDatabase opens the configured database with pool settings applied.
// The caller owns the connection.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	return db, nil
}

// spotifyClient builds the provider client from the configured application
// credentials.
func (r *Runner) spotifyClient() (*services.SpotifyClient, error) {
	return services.NewSpotifyClient(services.SpotifyClientOpts{
		ClientID:     r.config.Credentials.Spotify.ClientID,
		ClientSecret: r.config.Credentials.Spotify.ClientSecret,
		HTTPClient:   r.httpClient,
		Clock:        r.clock,
		Logger:       r.logger,
	})
}

// pipeline bundles the components a sync needs. Close drains the catalog
// backfill queue.
type pipeline struct {
	users    *repositories.UserRepository
	tokens   *tasks.TokenManager
	resolver *tasks.CatalogResolver
	syncer   *tasks.HistorySyncer
}

func (p *pipeline) Close() {
	p.resolver.Close()
}

// buildPipeline wires the sync pipeline on top of an open database.
func (r *Runner) buildPipeline(db *sql.DB) (*pipeline, error) {
	client, err := r.spotifyClient()
	if err != nil {
		return nil, err
	}

	tokens := tasks.NewTokenManager(repositories.NewCredentialRepository(db), client, r.clock, r.logger)
	resolver := tasks.NewCatalogResolver(
		repositories.NewArtistRepository(db),
		repositories.NewAlbumRepository(db),
		repositories.NewTrackRepository(db),
		client,
		tokens,
		r.logger,
	)
	syncer := tasks.NewHistorySyncer(repositories.NewHistoryRepository(db), resolver, tokens, client, r.clock, r.logger)

	return &pipeline{
		users:    repositories.NewUserRepository(db),
		tokens:   tokens,
		resolver: resolver,
		syncer:   syncer,
	}, nil
}

// resolveUser turns a username argument into a user record.
func (r *Runner) resolveUser(users *repositories.UserRepository, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("username argument is required: %w", shared.ErrInvalidInput)
	}
	user, err := users.GetByUsername(username)
	if err != nil {
		return "", err
	}
	return user.ID, nil
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
