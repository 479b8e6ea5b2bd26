package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

// resolveCommand resolves pending agent diffs without the TUI: apply or
// discard the whole set, or a single file. The bulk apply path lets the
// server write its own proposals, since there is no edited client copy in
// this mode.
func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "apply or discard pending agent diffs",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "approve", Usage: "apply the pending changes"},
			&cli.BoolFlag{Name: "discard", Usage: "discard the pending changes"},
			&cli.StringFlag{Name: "file", Usage: "resolve a single file instead of the whole set"},
			&cli.StringFlag{Name: "run", Usage: "run identifier to resolve against"},
			&cli.BoolFlag{Name: "q", Aliases: []string{"quiet"}, Usage: "suppress output except errors"},
		},
		Action: runResolve,
	}
}

func runResolve(c *cli.Context) error {
	approve := c.Bool("approve")
	discard := c.Bool("discard")
	if approve == discard {
		return fmt.Errorf("pass exactly one of --approve or --discard")
	}
	quiet := c.Bool("q")

	client := newClient(c)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if file := c.String("file"); file != "" {
		resp, err := client.ResolveFile(ctx, yellow.ResolveFileRequest{
			RunID:    c.String("run"),
			File:     file,
			Approved: approve,
		})
		if err != nil {
			return fmt.Errorf("resolve %s: %w", file, err)
		}
		if !quiet {
			if resp.Applied {
				fmt.Printf("applied %s\n", resp.File)
			} else {
				fmt.Printf("discarded %s\n", resp.File)
			}
		}
		return nil
	}

	resp, err := client.ResolveAll(ctx, yellow.ResolveAllRequest{
		RunID:    c.String("run"),
		Approved: approve,
	})
	if err != nil {
		return fmt.Errorf("resolve all: %w", err)
	}
	if !quiet {
		if approve {
			fmt.Printf("applied %d file(s)\n", resp.Applied)
		} else {
			fmt.Println("discarded all pending changes")
		}
	}
	return nil
}
