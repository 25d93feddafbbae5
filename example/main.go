package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/meikuraledutech/pipeline/client"
	"github.com/meikuraledutech/pipeline/editor"
	"github.com/meikuraledutech/pipeline/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "pipeline-example",
		Usage: "Walk through an editing session against a running pipeline server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "Base URL of the pipeline API",
				Value:   "http://localhost:3000",
				Sources: cli.EnvVars("API_URL"),
			},
			&cli.Int64Flag{
				Name:  "pipeline",
				Usage: "Pipeline to edit; a new one is created when zero",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("example")
	api := client.New(command.String("api-url"), client.WithLogger(logger))

	pipelineID := command.Int64("pipeline")
	if pipelineID == 0 {
		p, err := api.CreatePipeline(ctx, "example")
		if err != nil {
			return fmt.Errorf("create pipeline: %w", err)
		}
		pipelineID = p.ID
		fmt.Printf("created pipeline %d\n", pipelineID)
	}

	// ── Open ──────────────────────────────────────────────────────────
	cfg := editor.DefaultConfig()
	cfg.SettleDelay = 0
	s, err := editor.Open(ctx, api, pipelineID, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("opened pipeline %d with %d nodes, %d devices\n", pipelineID, len(s.Graph.Nodes()), len(s.Devices()))

	// ── Device node ───────────────────────────────────────────────────
	var source string
	if capture := s.CaptureDevices(); len(capture) > 0 {
		draft, err := s.Graph.AddDevice(capture[0])
		if err != nil {
			return err
		}
		if err := s.Controller.Save(ctx, draft); err != nil {
			return err
		}
		// The saved node is the last one; its id changed on save.
		nodes := s.Graph.Nodes()
		source = nodes[len(nodes)-1].ID
		fmt.Printf("saved device %s as %s\n", capture[0].Name, source)
	}

	// ── Gain node ─────────────────────────────────────────────────────
	gain, err := s.Graph.AddNode("Gain")
	if err != nil {
		return err
	}
	if err := s.Graph.SetField(gain, "db", -6.0); err != nil {
		return err
	}
	if source != "" {
		if _, ok := s.Graph.Connect(source, gain); ok {
			fmt.Printf("connected %s -> %s\n", source, gain)
		}
	}
	if err := s.Controller.Save(ctx, gain); err != nil {
		return err
	}

	nodes := s.Graph.Nodes()
	saved := nodes[len(nodes)-1]
	widgets, _ := s.Graph.Widgets(saved.ID, false)
	for _, w := range widgets {
		fmt.Printf("  %s = %s\n", w.Field.Name, w.Preview)
	}

	// ── Layout ────────────────────────────────────────────────────────
	if err := s.Graph.AutoLayout(ctx); err != nil {
		return err
	}
	for _, n := range s.Graph.Nodes() {
		fmt.Printf("  %-12s %-24s (%.0f, %.0f)\n", n.ID, n.Kind, n.Position.X, n.Position.Y)
	}

	// ── Submit ────────────────────────────────────────────────────────
	fmt.Println("\npayload:")
	printJSON(s.Pending())
	if err := s.Submit(ctx); err != nil {
		return err
	}

	stored, err := api.Pipeline(ctx, pipelineID)
	if err != nil {
		return err
	}
	fmt.Println("\nstored pipeline:")
	printJSON(stored)
	return nil
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
