// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// resolveCommand turns free text into a canonical piece
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a free-text request into a canonical piece",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "context",
				Usage: "Prior conversation context passed to the model",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Resolve,
	}
}

// searchCommand resolves and ranks recordings
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Find and rank album recordings of a piece",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, csv or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the ranking to a file (a directory picks a generated name)",
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Prior conversation context passed to the model",
			},
		},
		Action: r.Search,
	}
}

// extractCommand selects the tracks of one album that make up a work
func extractCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Pick the tracks of an album that belong to a work",
		ArgsUsage: "<album-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "work",
				Usage:    "Work title, e.g. \"Symphony No. 5\"",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "movement",
				Usage: "Movement to select (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Skip the model and take every track",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Extract,
	}
}

// playlistCommand runs the whole pipeline from a query to a playlist
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "playlist",
		Aliases:   []string{"pl"},
		Usage:     "Search, pick recordings and assemble a Spotify playlist",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "album",
				Usage: "Album ID to include, skips the picker (repeatable)",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Take the N best ranked albums, skips the picker",
			},
			&cli.StringFlag{
				Name:  "context",
				Usage: "Prior conversation context passed to the model",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the assembly job as JSON",
			},
		},
		Action: r.Playlist,
	}
}

// serveCommand starts the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API and the authorization callback",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// cacheCommand manages the classification cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the classification cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached classifications",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Only entries for this canonical key",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "prune",
				Usage:  "Delete expired classifications",
				Action: r.CachePrune,
			},
			{
				Name:   "clear",
				Usage:  "Delete every classification",
				Action: r.CacheClear,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml from the bundled template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}
