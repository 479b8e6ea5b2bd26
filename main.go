// Command yellowbench is a terminal workbench for the yellow coding agent:
// it drives agent runs over the backend's SSE stream, mirrors the sandbox
// workspace locally, and handles diff review and pause/resume approval.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/hugemartyr/yellowbench/internal/app"
	"github.com/hugemartyr/yellowbench/internal/config"
	"github.com/hugemartyr/yellowbench/internal/mock"
	"github.com/hugemartyr/yellowbench/internal/review"
	"github.com/hugemartyr/yellowbench/internal/stream"
	"github.com/hugemartyr/yellowbench/internal/workspace"
	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

func main() {
	cliApp := &cli.App{
		Name:  "yellowbench",
		Usage: "terminal workbench for the yellow coding agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Usage:   "backend base URL",
				EnvVars: []string{"YELLOW_SERVER"},
			},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:  "mock",
				Usage: "run a local mock backend",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Value: 8000, Usage: "listen port"},
				},
				Action: func(c *cli.Context) error {
					return mock.NewServer().Start(c.Int("port"))
				},
			},
			resolveCommand(),
			{
				Name:      "upload",
				Usage:     "ingest a GitHub project into the sandbox",
				ArgsUsage: "<github-url>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("usage: yellowbench upload <github-url>")
					}
					client := newClient(c)
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
					defer cancel()
					if err := client.Upload(ctx, c.Args().First()); err != nil {
						return err
					}
					fmt.Println("project uploaded")
					return nil
				},
			},
			{
				Name:  "download",
				Usage: "save the sandbox as a zip archive",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "project.zip", Usage: "output path"},
				},
				Action: func(c *cli.Context) error {
					client := newClient(c)
					ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
					defer cancel()
					data, err := client.Download(ctx)
					if err != nil {
						return err
					}
					out := c.String("out")
					if err := os.WriteFile(out, data, 0o644); err != nil {
						return err
					}
					fmt.Printf("wrote %s (%d bytes)\n", out, len(data))
					return nil
				},
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// serverURL resolves the backend URL from flag, preferences, then default.
func serverURL(c *cli.Context) string {
	if url := c.String("server"); url != "" {
		return url
	}
	if prefs, err := config.Load(); err == nil && prefs.ServerURL != "" {
		return prefs.ServerURL
	}
	return config.DefaultServerURL
}

func newClient(c *cli.Context) *yellow.Client {
	return yellow.NewClient(serverURL(c),
		yellow.WithTimeout(30*time.Second),
		yellow.WithLogger(yellow.NewLoggerFromEnv()),
	)
}

func runTUI(c *cli.Context) error {
	prefs, err := config.Load()
	if err != nil {
		prefs = &config.Preferences{Layout: config.DefaultLayoutRatio()}
	}

	logger := yellow.NewLoggerFromEnv()
	client := yellow.NewClient(serverURL(c),
		yellow.WithTimeout(30*time.Second),
		yellow.WithLogger(logger),
	)

	store := workspace.NewStore()
	resolver := review.NewResolver(store, client, logger)
	consumer := stream.New(client, store, resolver, logger)

	// Seed the tree before the first run so the workspace is browsable.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if tree, err := client.FileTree(ctx); err == nil {
		store.SetFileTree(tree)
	}
	cancel()

	m := app.New(store, consumer, resolver, client, prefs)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.SetProgram(p)

	_, err = p.Run()
	return err
}
