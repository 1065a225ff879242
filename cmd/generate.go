package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmix/internal/formatter"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/desertthunder/ytmix/internal/tasks"
	"github.com/desertthunder/ytmix/internal/ui"
	"github.com/urfave/cli/v3"
)

const defaultUserID = "local"

func userFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User the generation lock and history belong to",
		Value:   defaultUserID,
		Sources: cli.EnvVars("YTMIX_USER"),
	}
}

func generateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Generate a playlist from recent tracks on both services",
		ArgsUsage: "[spotify|youtube]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Service to publish the playlist on (spotify or youtube)",
				Value:   string(models.Spotify),
			},
			&cli.IntFlag{
				Name:    "last",
				Aliases: []string{"n"},
				Usage:   "Number of recent tracks per service to seed from",
			},
			&cli.BoolFlag{
				Name:  "shuffle",
				Usage: "Shuffle the playlist before publishing",
			},
			&cli.BoolFlag{
				Name:  "include-originals",
				Usage: "Add the seed tracks to the playlist",
			},
			&cli.BoolFlag{
				Name:  "standalone",
				Usage: "Ask catalog recommenders for one seed per request",
			},
			userFlag(),
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, csv or json",
				Value:   string(formatter.Text),
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the result to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "Run in the interactive terminal UI",
			},
		},
		Action: r.Generate,
	}
}

// generateRequest merges flags over the generator config.
func (r *Runner) generateRequest(cmd *cli.Command) (tasks.GenerateRequest, error) {
	gcfg := r.config.Generator

	targetArg := cmd.String("target")
	if cmd.Args().Present() {
		targetArg = cmd.Args().First()
	}
	target, err := models.ParsePlatform(targetArg)
	if err != nil {
		return tasks.GenerateRequest{}, err
	}

	req := tasks.GenerateRequest{
		UserID:           cmd.String("user"),
		Target:           target,
		LastN:            gcfg.LastN,
		Shuffle:          gcfg.Shuffle,
		IncludeOriginals: gcfg.IncludeOriginals,
		Standalone:       gcfg.Standalone,
	}
	if cmd.IsSet("last") {
		req.LastN = int(cmd.Int("last"))
	}
	if cmd.IsSet("shuffle") {
		req.Shuffle = cmd.Bool("shuffle")
	}
	if cmd.IsSet("include-originals") {
		req.IncludeOriginals = cmd.Bool("include-originals")
	}
	if cmd.IsSet("standalone") {
		req.Standalone = cmd.Bool("standalone")
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.LastN <= 0 {
		return req, fmt.Errorf("%w: --last must be positive", shared.ErrInvalidArgument)
	}
	return req, nil
}

// Generate runs the pipeline and prints or exports the result.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	req, err := r.generateRequest(cmd)
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	if cmd.Bool("tui") {
		return r.generateTUI(ctx, req)
	}

	gen, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		for u := range progress {
			r.logger.Info(ui.PhaseLabel(u), "message", u.Message)
		}
	}()

	result, err := gen.Generate(ctx, req, progress)
	close(progress)
	<-logged
	if err != nil {
		return fmt.Errorf("failed to generate playlist: %w", err)
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteExport(result, format, out)
		if err != nil {
			return err
		}
		r.logger.Info("exported playlist", "path", path, "format", format)
		return r.writePlain("✓ %s\n", result.Playlist.URL)
	}

	return formatter.Render(r.output, result, format)
}

// generateTUI hands the terminal to the bubbletea model; logs go to ~/.ytmix/ytmix.log meanwhile.
func (r *Runner) generateTUI(ctx context.Context, req tasks.GenerateRequest) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	fileLogger, f, err := shared.NewFileLogger(filepath.Join(homeDir, ".ytmix", "ytmix.log"))
	if err != nil {
		return err
	}
	defer f.Close()
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	gen, err := r.pipeline(ctx)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, gen, req)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	if err := model.Err(); err != nil {
		return fmt.Errorf("failed to generate playlist: %w", err)
	}
	if result := model.Result(); result != nil {
		return r.writePlain("%s\n", result.Playlist.URL)
	}
	return nil
}
