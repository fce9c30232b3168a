// Command emailorgd periodically synchronizes the mailboxes of all
// registered users: it fetches the latest messages over IMAP,
// classifies them, and persists new ones to the local database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohitk/email-organizer/internal/classify"
	"github.com/mohitk/email-organizer/internal/credential"
	"github.com/mohitk/email-organizer/internal/mailbox"
	"github.com/mohitk/email-organizer/internal/model"
	"github.com/mohitk/email-organizer/internal/store"
	"github.com/mohitk/email-organizer/internal/sync"
)

func main() {
	configPath := flag.String("config", model.DefaultConfigPath(), "path to the YAML config file")
	once := flag.Bool("once", false, "run a single sync pass and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		log.Error("loading config", "error", err)
		os.Exit(1)
	}

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Error("opening store", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	classifier := classify.New()
	if err := classifier.Load(cfg.ClassifierModelPath); err != nil {
		// Syncs still run; every message fails classification until a
		// model is trained and saved at the configured path.
		log.Warn("classifier model not loaded", "path", cfg.ClassifierModelPath, "error", err)
	}

	sessions := func(username, password string) sync.Session {
		return mailbox.NewSession(cfg.IMAP, username, password, log)
	}

	coordinator := sync.NewCoordinator(sessions, classifier, st, log)
	scheduler := sync.NewScheduler(coordinator, cfg.Sync.Workers, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runPass(ctx, log, st, scheduler, cfg.Sync.FetchCount)

	if !*once {
		ticker := time.NewTicker(cfg.Sync.PollInterval())
		defer ticker.Stop()

	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case <-ticker.C:
				runPass(ctx, log, st, scheduler, cfg.Sync.FetchCount)
			}
		}
	}

	log.Info("shutting down")
	scheduler.Shutdown(true)
}

// runPass syncs every registered user whose mailbox password is
// available in the system keyring.
func runPass(
	ctx context.Context,
	log *slog.Logger,
	st store.Store,
	scheduler *sync.Scheduler,
	count int,
) {
	users, err := st.GetUsers(ctx)
	if err != nil {
		log.Error("listing users", "error", err)
		return
	}

	accounts := make([]sync.Account, 0, len(users))
	for _, user := range users {
		password, err := credential.MailboxPassword(user.Email)
		if err != nil {
			log.Warn("no mailbox password in keyring, skipping", "account", user.Email)
			continue
		}
		accounts = append(accounts, sync.Account{
			UserID:   user.ID,
			Email:    user.Email,
			Password: password,
		})
	}

	if len(accounts) == 0 {
		log.Info("no accounts to sync")
		return
	}

	for _, result := range scheduler.SyncMany(ctx, accounts, count) {
		if !result.Success {
			log.Error("sync failed", "account", result.Account, "errors", result.Errors)
			continue
		}
		log.Info("sync finished",
			"account", result.Account,
			"fetched", result.Fetched,
			"classified", result.Classified,
			"saved", result.Saved,
			"errors", len(result.Errors),
		)
	}
}
