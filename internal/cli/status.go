package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/HypeFluxAI/Thinkus-sub007/internal/core/config"
	redisclient "github.com/HypeFluxAI/Thinkus-sub007/internal/infra/redis"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage"
	"github.com/HypeFluxAI/Thinkus-sub007/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show jobs from the last saved checkpoint",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx := context.Background()
	repo, closeRepo, err := openSnapshots(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open checkpoint backend", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = closeRepo()
	}()

	snap, err := repo.Load(ctx)
	if err != nil {
		slog.Error("Failed to load checkpoint", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Checkpoint taken at %s\n\n", snap.TakenAt.Format(time.RFC3339))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "JOB\tNAME\tPRIORITY\tSTATUS\tSTAGE\tPROGRESS\tWORKER")
	for _, j := range snap.Jobs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\n",
			j.ID, j.Name, j.Priority, j.Status, j.CurrentStage, j.Progress, j.WorkerID)
	}
	_ = w.Flush()

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "WORKER\tSTATUS\tCOMPLETED\tFAILED")
	for _, n := range snap.Workers {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", n.ID, n.Status, n.Completed, n.Failed)
	}
	_ = w.Flush()
}

// openSnapshots connects to the configured checkpoint backend.
func openSnapshots(ctx context.Context, cfg *config.AppConfig) (storage.SnapshotRepository, func() error, error) {
	switch cfg.Checkpoint.Backend {
	case config.BackendPostgres:
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.NewSnapshotRepo(db), db.Close, nil
	case config.BackendRedis:
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return redisclient.NewSnapshotRepo(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("checkpoint backend %q is not persistent", cfg.Checkpoint.Backend)
	}
}
