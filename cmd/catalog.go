package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/catalogd/internal/catalog"
	"github.com/ziadkadry99/catalogd/internal/catalogsync"
	"github.com/ziadkadry99/catalogd/internal/config"
	"github.com/ziadkadry99/catalogd/internal/progress"
)

var exportOutput string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Load a catalog export into the configured store",
	Long: `Reads a JSON array of services, as written by export, and loads it.
In server mode each named service is inserted unless a service with the same
id already exists. In local mode the file replaces the local catalog.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		services, err := readCatalogFile(args[0])
		if err != nil {
			return err
		}

		if cfg.Mode == config.ModeLocal {
			announcer, closeFn := newAnnouncer(cfg)
			defer closeFn()
			if err := newLocalStore(cfg, announcer).Write(cmd.Context(), services); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d services to %s\n", len(services), cfg.LocalCatalogPath())
			return nil
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		n, err := importServices(cmd.Context(), catalog.NewStore(database), services,
			progress.NewReporter(cmd.ErrOrStderr(), "Importing"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d services\n", n, len(services))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current catalog as a JSON array",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var services []catalog.Service
		if cfg.Mode == config.ModeLocal {
			services = newLocalStore(cfg, nil).Read(cmd.Context())
		} else {
			database, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer database.Close()
			if services, err = catalog.NewStore(database).List(cmd.Context(), catalog.ListFilter{}); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("creating %s: %w", exportOutput, err)
			}
			defer f.Close()
			out = f
		}
		return writeCatalog(out, services)
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

// importServices inserts the named services into store, reporting progress
// per entry. It returns how many were inserted.
func importServices(ctx context.Context, store *catalog.Store, services []catalog.Service, rep progress.Reporter) (int, error) {
	rep.Start(len(services))
	inserted := 0
	for i, svc := range services {
		if _, ok := catalog.Normalize(svc); !ok {
			rep.Update(i+1, "skipped nameless entry")
			continue
		}
		n, err := store.Seed(ctx, []catalog.Service{svc})
		if err != nil {
			rep.Finish("")
			return inserted, err
		}
		inserted += n
		rep.Update(i+1, svc.Name)
	}
	rep.Finish(fmt.Sprintf("Imported %d services", inserted))
	return inserted, nil
}

func readCatalogFile(path string) ([]catalog.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var services []catalog.Service
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("parsing %s: expected a JSON array of services: %w", path, err)
	}
	return services, nil
}

func writeCatalog(w io.Writer, services []catalog.Service) error {
	if services == nil {
		services = []catalog.Service{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(services)
}

// newAnnouncer returns an announcer that reaches running servers. Only the
// Redis backend crosses process boundaries; with the memory backend the
// servers' reconcilers pick the write up instead.
func newAnnouncer(cfg *config.Config) (catalog.Announcer, func()) {
	if cfg.Sync.Backend != config.SyncRedis {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Sync.RedisAddr,
		Password: cfg.Sync.RedisPassword,
		DB:       cfg.Sync.RedisDB,
	})
	origin := catalogsync.NewOrigin()
	broker := catalogsync.NewRedisBroker(client, cfg.Sync.Channel, origin)
	return catalogsync.NewPublisher(broker, nil, origin), func() { client.Close() }
}
