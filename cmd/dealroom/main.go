// Command dealroom is the terminal client for deal and document review.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nhle/dealroom/internal/api"
	"github.com/nhle/dealroom/internal/app"
	"github.com/nhle/dealroom/internal/biometric"
	"github.com/nhle/dealroom/internal/catalog"
	"github.com/nhle/dealroom/internal/credential"
	"github.com/nhle/dealroom/internal/logging"
	"github.com/nhle/dealroom/internal/model"
	"github.com/nhle/dealroom/internal/session"
	"github.com/nhle/dealroom/internal/store"
	appsync "github.com/nhle/dealroom/internal/sync"
	"github.com/nhle/dealroom/internal/ui/upload"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dealroom: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// A .env file is optional.
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("dealroom", pflag.ContinueOnError)
	model.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	path, _ := fs.GetString("config")

	cfg, err := model.LoadConfig(path, fs)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := model.SaveConfig(path, cfg); err != nil {
			return err
		}
	}

	logFile, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logging.New(cfg.Log.Level, cfg.Log.Format, logFile)
	ctx := context.Background()

	stateDir := filepath.Dir(cfg.Storage.DBPath)
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	db, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	creds, err := credential.Open(stateDir)
	if err != nil {
		return err
	}

	client := api.NewClient(cfg.API.BaseURL, cfg.RequestTimeout())
	worker := appsync.New(client, db, log, cfg.SyncInterval(), cfg.OnlineCheckInterval())

	m := app.New(app.Options{
		Store:       db,
		Catalog:     catalog.New(client, db, cfg.Storage.CacheDir, log),
		Auth:        client,
		Vault:       session.NewVault(creds),
		Worker:      worker,
		Verifier:    biometric.PINVerifier{},
		Log:         log,
		DeviceToken: cfg.Push.DeviceToken,
		UploadDir:   upload.DefaultDir(),
	})

	log.Info(ctx, "starting", "api", cfg.API.BaseURL, "db", cfg.Storage.DBPath)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	_, err = p.Run()
	worker.Stop()
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	log.Info(ctx, "stopped")
	return nil
}
