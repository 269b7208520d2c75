// Command syncusers pushes every locally stored user to the website in one pass.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/Proton-105/savos-bot/internal/domain"
	"github.com/Proton-105/savos-bot/internal/repository"
	"github.com/Proton-105/savos-bot/internal/website"
	"github.com/Proton-105/savos-bot/pkg/config"
	"github.com/Proton-105/savos-bot/pkg/logger"
)

const syncSource = "telegram_bot_sync"

// UserLister reads the stored users.
type UserLister interface {
	List(ctx context.Context) ([]*domain.User, error)
}

// UserPusher creates or refreshes a user on the website.
type UserPusher interface {
	PushUser(ctx context.Context, u *domain.User) (website.Result, error)
}

// Report counts the outcome of one run.
type Report struct {
	Total   int
	Success int
	Failed  int
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	flags := pflag.NewFlagSet("syncusers", pflag.ContinueOnError)
	dataDir := flags.String("data-dir", "", "directory holding users.json (defaults to storage.data_dir)")
	source := flags.String("source", syncSource, "source tag sent with every user")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	cfg, _, err := config.LoadTool()
	if err != nil {
		fmt.Fprintf(os.Stderr, "syncusers: %v\n", err)
		return 1
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}
	cfg.Website.Source = *source

	appLog := logger.New(cfg.Logger, false)
	defer appLog.Close()
	log := appLog.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo := repository.NewUserRepository(cfg.Storage.DataDir, log)
	client := newPusher(cfg.Website, log)

	report, err := Sync(ctx, repo, client, out)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return 1
	}

	log.Info("user sync finished",
		slog.Int("total", report.Total),
		slog.Int("success", report.Success),
		slog.Int("failed", report.Failed),
	)

	if report.Failed > 0 {
		return 1
	}
	return 0
}

// newPusher builds the website client for a bulk run. The breaker never opens,
// so every user is attempted even while the website is flaky.
func newPusher(cfg config.WebsiteConfig, log *slog.Logger) *website.Client {
	return website.NewClient(cfg, log, website.WithoutBreaker())
}

// Sync pushes every user one by one and prints progress to out.
// A failed push is counted and the run continues.
func Sync(ctx context.Context, users UserLister, pusher UserPusher, out io.Writer) (Report, error) {
	list, err := users.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("read users: %w", err)
	}

	var report Report
	if len(list) == 0 {
		fmt.Fprintln(out, "📭 No users to sync")
		return report, nil
	}

	fmt.Fprintf(out, "📊 Found %d users\n", len(list))

	for _, u := range list {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if u == nil {
			continue
		}
		report.Total++

		fmt.Fprintf(out, "\n📤 Sending user %d (%s)...\n", u.ID, u.FirstName)

		result, err := pusher.PushUser(ctx, u)
		if err != nil {
			report.Failed++
			fmt.Fprintf(out, "❌ Failed to sync %d: %v\n", u.ID, err)
			continue
		}

		report.Success++
		fmt.Fprintf(out, "✅ User %d synced (internal_id: %v)\n", u.ID, result["internal_id"])
	}

	line := strings.Repeat("=", 50)
	fmt.Fprintf(out, "\n%s\n✅ Success: %d\n❌ Errors: %d\n%s\n", line, report.Success, report.Failed, line)

	return report, nil
}
