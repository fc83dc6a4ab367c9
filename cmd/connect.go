package main

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprint-app/soundprint/internal/server"
	"github.com/soundprint-app/soundprint/internal/shared"
	"github.com/urfave/cli/v3"
)

// authTimeout bounds how long the connect flow waits for the user to
// finish authorizing in the browser.
const authTimeout = 2 * time.Minute

// Connect links a Spotify account to a local user.
//
// Starts a local HTTP server, opens the browser for authorization, and
// trades the callback code for the credential triple.
func (r *Runner) Connect(ctx context.Context, cmd *cli.Command) error {
	spotify := r.config.Credentials.Spotify
	if spotify.ClientID == "" || spotify.ClientSecret == "" {
		return fmt.Errorf("spotify client_id and client_secret must be configured: %w", shared.ErrInvalidInput)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := r.buildPipeline(db)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	userID, err := r.resolveUser(pipeline.users, cmd.StringArg("username"))
	if err != nil {
		return err
	}

	addr, err := spotify.CallbackAddr()
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	client, err := r.spotifyClient()
	if err != nil {
		return err
	}
	authURL := client.AuthorizationURL(spotify.RedirectURI, state)

	callback := server.NewCallbackServer(addr, state, r.logger)
	callback.Start()
	defer func() {
		if err := callback.Shutdown(); err != nil {
			r.logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	code, err := callback.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	if err := pipeline.tokens.Connect(ctx, userID, code, spotify.RedirectURI); err != nil {
		return err
	}

	r.writePlainln("✓ Spotify account connected")
	r.writePlain("Your history will sync on the next run of: soundprint sync --all\n")
	return nil
}

// Disconnect unlinks the Spotify account. Synced history stays.
func (r *Runner) Disconnect(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := r.buildPipeline(db)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	userID, err := r.resolveUser(pipeline.users, cmd.StringArg("username"))
	if err != nil {
		return err
	}

	if err := pipeline.tokens.Disconnect(userID); err != nil {
		return err
	}

	return r.writePlain("✓ Spotify account disconnected; history kept\n")
}
