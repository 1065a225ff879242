package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/ytmix/internal/formatter"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/urfave/cli/v3"
)

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List past generations, newest first",
		Flags: []cli.Flag{
			userFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of generations to show (0 for all)",
				Value:   10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output as JSON",
			},
		},
		Action: r.History,
	}
}

func unlockCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "unlock",
		Usage:  "Clear a user's in-progress flag after an interrupted generation",
		Flags:  []cli.Flag{userFlag()},
		Action: r.Unlock,
	}
}

// History prints the user's recorded generations.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	gens, err := store.History(cmd.String("user"), int(cmd.Int("limit")))
	if err != nil && !errors.Is(err, shared.ErrUserNotFound) {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if cmd.Bool("json") {
		data, err := formatter.HistoryToJSON(gens)
		if err != nil {
			return err
		}
		_, err = r.output.Write(data)
		return err
	}

	_, err = r.output.Write(formatter.HistoryToText(gens))
	return err
}

// Unlock releases the user's generation lock.
func (r *Runner) Unlock(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	userID := cmd.String("user")
	busy, err := store.Busy(userID)
	if err != nil {
		return fmt.Errorf("failed to check lock: %w", err)
	}
	if !busy {
		r.logger.Info("no fresh lock held", "user", userID, "stale_after", store.StaleAfter())
	}

	if err := store.Unlock(ctx, userID); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", userID, err)
	}

	r.logger.Info("lock released", "user", userID)
	return r.writePlain("✓ Unlocked %s\n", userID)
}
