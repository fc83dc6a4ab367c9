// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles database initialization and migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Run pending database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.Migrate,
			},
		},
	}
}

// usersCommand handles account management.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "users",
		Aliases: []string{"user"},
		Usage:   "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
				},
				Action: r.UserAdd,
			},
			{
				Name:   "list",
				Usage:  "List accounts and their connection state",
				Action: r.UserList,
			},
			{
				Name:  "delete",
				Usage: "Delete an account and its listening history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
				},
				Action: r.UserDelete,
			},
		},
	}
}

// connectCommand handles linking a streaming account.
func connectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Link a Spotify account via OAuth2",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "username"},
		},
		Action: r.Connect,
		Commands: []*cli.Command{
			{
				Name:  "revoke",
				Usage: "Unlink the Spotify account, keeping history",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "username"},
				},
				Action: r.Disconnect,
			},
		},
	}
}

// syncCommand handles history synchronization.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Pull recently played tracks",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "username"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Sync every connected account once",
			},
		},
		Action: r.SyncRun,
		Commands: []*cli.Command{
			{
				Name:   "watch",
				Usage:  "Keep syncing all connected accounts on an interval",
				Action: r.SyncWatch,
			},
		},
	}
}

// statsCommand handles listening aggregates.
func statsCommand(r *Runner) *cli.Command {
	statFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Usage:    "Username to report on",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "timeframe",
			Aliases: []string{"t"},
			Usage:   "Lookback window: week, month, year or all",
			Value:   "all",
		},
		&cli.IntFlag{
			Name:    "limit",
			Aliases: []string{"l"},
			Usage:   "Rows per page",
			Value:   20,
		},
		&cli.IntFlag{
			Name:    "page",
			Aliases: []string{"p"},
			Usage:   "One-based page number",
			Value:   1,
		},
		&cli.StringFlag{
			Name:  "csv",
			Usage: "Write the listing to a CSV file instead of the terminal",
		},
	}

	return &cli.Command{
		Name:  "stats",
		Usage: "Ranked listening aggregates",
		Commands: []*cli.Command{
			{
				Name:   "tracks",
				Usage:  "Most streamed tracks",
				Flags:  statFlags,
				Action: r.StatsTracks,
			},
			{
				Name:   "albums",
				Usage:  "Most streamed albums",
				Flags:  statFlags,
				Action: r.StatsAlbums,
			},
			{
				Name:   "artists",
				Usage:  "Most streamed artists",
				Flags:  statFlags,
				Action: r.StatsArtists,
			},
			{
				Name:   "genres",
				Usage:  "Most streamed genres",
				Flags:  statFlags,
				Action: r.StatsGenres,
			},
			{
				Name:  "overview",
				Usage: "Stream and entity counts for a timeframe",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "Username to report on",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "timeframe",
						Aliases: []string{"t"},
						Usage:   "Lookback window: week, month, year or all",
						Value:   "all",
					},
				},
				Action: r.StatsOverview,
			},
			{
				Name:  "album",
				Usage: "Track listing, runtime and top listeners for one album",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "album-id"},
				},
				Action: r.StatsAlbum,
			},
		},
	}
}
