package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/urfave/cli/v3"
)

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml if missing, initialize the database and run migrations",
		Action: r.SetupDatabase,
		Commands: []*cli.Command{
			{
				Name:  "youtube",
				Usage: "Register a ytmusicapi browser.json for the YouTube Music proxy",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "auth-file",
						Usage: "Path to a browser.json produced by `ytmusicapi browser`",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to a music.youtube.com request copied as cURL from the browser",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Where to keep the copy (default ~/.ytmix/browser.json)",
					},
				},
				Action: r.SetupYouTube,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.RollbackDatabase,
			},
		},
	}
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		config, err := shared.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load created config: %w", err)
		}
		config.ApplyEnv()
		r.config = config
		r.configPath = configPath
		r.logger.Info("config file created", "path", configPath)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", r.config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Fill in credentials in %s\n", configPath)
	r.writePlain("2. Run 'ytmix auth spotify'\n")
	r.writePlain("3. Run 'ytmix setup youtube --auth-file browser.json'\n")
	return nil
}

// readBrowserAuth returns browser.json content from exactly one of authFile or curlFile.
func readBrowserAuth(authFile, curlFile string) ([]byte, error) {
	switch {
	case authFile != "" && curlFile != "":
		return nil, fmt.Errorf("%w: use either --auth-file or --curl-file", shared.ErrInvalidArgument)
	case curlFile != "":
		headers, err := shared.ParseCurlFile(curlFile)
		if err != nil {
			return nil, err
		}
		return headers.BrowserJSON()
	case authFile != "":
		data, err := os.ReadFile(authFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read auth file: %w", err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("%w: %s is not valid JSON", shared.ErrInvalidInput, authFile)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: --auth-file or --curl-file", shared.ErrMissingArgument)
	}
}

// SetupYouTube writes browser.json for the proxy, records its path in the config and checks the proxy.
func (r *Runner) SetupYouTube(ctx context.Context, cmd *cli.Command) error {
	outputPath := cmd.String("output")

	data, err := readBrowserAuth(cmd.String("auth-file"), cmd.String("curl-file"))
	if err != nil {
		return err
	}

	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".ytmix", "browser.json")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write auth file: %w", err)
	}
	r.logger.Info("browser.json saved", "path", outputPath)

	r.config.Credentials.YouTube.AuthFile = outputPath
	if r.configPath != "" {
		if err := shared.SaveConfig(r.configPath, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	r.writePlain("✓ YouTube Music auth file saved to: %s\n", outputPath)

	ytCfg := r.config.Credentials.YouTube
	proxy := services.NewProxyClient(ytCfg.ProxyURL, outputPath, r.httpClient, ytCfg.RequestsPerSecond)
	status, authenticated, err := proxy.Health(ctx)
	if err != nil {
		r.logger.Warn("proxy health check failed", "error", err)
		r.writePlain("⚠ Proxy not reachable at %s; start it before generating\n", ytCfg.ProxyURL)
		return nil
	}
	r.writePlain("Proxy: %s (authenticated: %v)\n", status, authenticated)
	return nil
}

// RollbackDatabase reverts the latest applied migration.
func (r *Runner) RollbackDatabase(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}
	r.logger.Info("rolled back latest migration", "path", r.config.Database.Path)
	return r.writePlain("✓ Rolled back latest migration\n")
}
