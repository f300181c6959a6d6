// Command cubeplace wires the placement and distribution engine's
// configuration, storage backend, and orchestrator together behind a
// small CLI surface: run a timestep range, mirror production to
// backup, or delete confirmed backups.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/scigolib/cubeplace/internal/backup"
	"github.com/scigolib/cubeplace/internal/config"
	"github.com/scigolib/cubeplace/internal/fleet"
	"github.com/scigolib/cubeplace/internal/metrics"
	"github.com/scigolib/cubeplace/internal/orchestrator"
	"github.com/scigolib/cubeplace/internal/sourceadapter"
	"github.com/scigolib/cubeplace/internal/splitter"
	"github.com/scigolib/cubeplace/internal/storage"
	"github.com/scigolib/cubeplace/internal/storagewriter"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version information, set during build.
	Version = "dev"
	Commit  = "unknown"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "cubeplace",
	Short: "Distributes chunked 3D scientific array sub-arrays across a storage fleet",
	Long: `cubeplace splits a large 3D multi-variable array into equally-sized
sub-arrays and places each one onto a storage node under a
neighborhood-exclusion coloring constraint, maximizing read
parallelism for spatially contiguous queries.

Commands:
  run             process a timestep range (production placement + dispatch)
  backup          mirror committed production sub-arrays to their backup node
  delete-backups  remove confirmed backup directories`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "cubeplace.yaml", "path to the YAML configuration file")

	rootCmd.AddCommand(runCmd, backupCmd, deleteBackupsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the placement and distribution engine over the configured timestep range",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, runID, recorder, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		log.Info("starting run", zap.String("run_id", runID), zap.String("dataset", cfg.DatasetName))

		if addr := cfg.MetricsAddr; addr != "" {
			go serveMetrics(addr, log)
		}

		orch, err := buildOrchestrator(cfg, log, recorder)
		if err != nil {
			return err
		}

		results, err := orch.RunRange(cmd.Context(), cfg.StartTimestep, cfg.EndTimestep)
		if err != nil {
			return err
		}

		var failed int
		for _, r := range results {
			failed += r.Production.Failed
			if r.Backup != nil {
				failed += r.Backup.Failed
			}
		}

		if failed > 0 {
			return fmt.Errorf("run completed with %d failed jobs", failed)
		}

		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Mirror committed production sub-arrays onto their rotated backup node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, _, recorder, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		if cfg.StorageBackend != config.StorageBackendLocal {
			return fmt.Errorf("backup command currently requires storage_backend=local")
		}

		backend := storage.NewLocalBackend(cfg.LocalRoot)
		nodes := fleet.DefaultScheme().Enumerate()[:cfg.Nodes]

		mirror := backup.New(backend, nodes, cfg.WorkerCount, log, recorder)

		result, err := mirror.Copy(cmd.Context(), cfg.DatasetName)
		if err != nil {
			return err
		}

		log.Info("backup copy complete", zap.Int("succeeded", result.Succeeded), zap.Int("failed", len(result.Failures)))

		if len(result.Failures) > 0 {
			return fmt.Errorf("backup completed with %d failed copies", len(result.Failures))
		}

		return nil
	},
}

var deleteBackupsCmd = &cobra.Command{
	Use:   "delete-backups",
	Short: "Delete confirmed backup directories for the configured dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, _, recorder, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		backend := storage.NewLocalBackend(cfg.LocalRoot)
		nodes := fleet.DefaultScheme().Enumerate()[:cfg.Nodes]

		mirror := backup.New(backend, nodes, cfg.WorkerCount, log, recorder)

		targets, err := mirror.PendingDeletions(cfg.DatasetName)
		if err != nil {
			return err
		}

		if len(targets) == 0 {
			fmt.Println("no backup directories to delete")
			return nil
		}

		fmt.Println("the following backup directories will be deleted:")
		for _, t := range targets {
			fmt.Println(" ", t)
		}

		if !confirm() {
			fmt.Println("aborted: no directories deleted")
			return nil
		}

		result, err := mirror.DeleteConfirmed(cmd.Context(), targets)
		if err != nil {
			return err
		}

		log.Info("backup deletion complete", zap.Int("succeeded", result.Succeeded), zap.Int("failed", len(result.Failures)))

		return nil
	},
}

// confirm prompts the operator for explicit yes/no confirmation before
// an irreversible deletion pass; no deletion happens without it.
func confirm() bool {
	fmt.Print("proceed? [y/N] ")

	var response string
	fmt.Scanln(&response) //nolint:errcheck

	return response == "y" || response == "yes"
}

// bootstrap loads configuration and constructs the run's logger,
// correlation id, and metrics recorder, shared by every subcommand.
// The recorder is registered against prometheus.DefaultRegisterer, the
// same registry serveMetrics exposes on cfg.MetricsAddr.
func bootstrap() (*config.Config, *zap.Logger, string, *metrics.Recorder, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, "", nil, err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return nil, nil, "", nil, fmt.Errorf("constructing logger: %w", err)
	}

	runID := uuid.NewString()
	log = log.With(zap.String("run_id", runID))

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	return cfg, log, runID, recorder, nil
}

// directoryOpener adapts sourceadapter.Directory to orchestrator.SourceOpener:
// Directory.Open returns a concrete *sourceadapter.FileSource, which the
// orchestrator only ever sees through the narrower splitter.Source interface.
type directoryOpener struct {
	dir *sourceadapter.Directory
}

func (o directoryOpener) Open(ctx context.Context, timestep int) (splitter.Source, error) {
	return o.dir.Open(ctx, timestep)
}

// buildOrchestrator wires the configured storage backend, the sub-array
// writer, the timestep source adapter, and the metrics recorder into a
// ready-to-run orchestrator.Orchestrator.
func buildOrchestrator(cfg *config.Config, log *zap.Logger, recorder *metrics.Recorder) (*orchestrator.Orchestrator, error) {
	var backend storage.Backend

	switch cfg.StorageBackend {
	case config.StorageBackendLocal:
		backend = storage.NewLocalBackend(cfg.LocalRoot)
	case config.StorageBackendS3:
		s3Backend, err := storage.NewS3Backend(context.Background(), storage.S3Config{
			Region:   cfg.S3Region,
			Bucket:   cfg.S3Bucket,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("constructing S3 backend: %w", err)
		}
		backend = s3Backend
	default:
		return nil, fmt.Errorf("unknown storage_backend %q", cfg.StorageBackend)
	}

	writer := storagewriter.New(backend)

	sourceRoot := cfg.LocalRoot
	if sourceRoot == "" {
		sourceRoot = "."
	}
	opener := directoryOpener{dir: sourceadapter.NewDirectory(sourceRoot, cfg.DatasetName+"_")}

	nodes := fleet.DefaultScheme().Enumerate()[:cfg.Nodes]

	aliases := splitter.AliasMap(cfg.AliasMap)
	if len(aliases) == 0 {
		aliases = splitter.DefaultAliasMap()
	}

	orchCfg := orchestrator.Config{
		DatasetName:      cfg.DatasetName,
		SubArraySide:     cfg.SubArraySide,
		ChunkSide:        cfg.ChunkSide,
		Nodes:            nodes,
		Parallelism:      cfg.WorkerCount,
		Aliases:          aliases,
		ConcurrentMirror: cfg.WriteMode == config.WriteModeBack,
		Recorder:         recorder,
	}

	return orchestrator.New(opener, writer, orchCfg, log), nil
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("serving metrics", zap.String("addr", addr))

	if err := http.ListenAndServe(addr, mux); err != nil { //nolint:gosec
		log.Error("metrics server stopped", zap.Error(err))
	}
}
