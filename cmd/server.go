package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/catalogd/internal/audit"
	"github.com/ziadkadry99/catalogd/internal/auth"
	"github.com/ziadkadry99/catalogd/internal/catalog"
	"github.com/ziadkadry99/catalogd/internal/catalogsync"
	"github.com/ziadkadry99/catalogd/internal/config"
	"github.com/ziadkadry99/catalogd/internal/db"
	"github.com/ziadkadry99/catalogd/internal/fetcher"
	"github.com/ziadkadry99/catalogd/internal/maintenance"
	"github.com/ziadkadry99/catalogd/internal/reconciler"
	"github.com/ziadkadry99/catalogd/internal/render"
	"github.com/ziadkadry99/catalogd/internal/server"
	"github.com/ziadkadry99/catalogd/internal/site"
	"github.com/ziadkadry99/catalogd/internal/uploads"
)

// SocketPath is where browsers subscribe to catalog changes.
const SocketPath = "/ws/catalog"

const siteTitle = "Rana Electrical - Our Services"

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the catalog server",
	Long: `Starts the catalog server. In server mode it serves the admin API, the
public services page and the live change socket from a SQLite catalog. In
local mode it serves the services page from the local catalog file, or from
fetcher.remote_url when one is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		flush, err := setupLogging(cfg)
		if err != nil {
			return err
		}
		defer flush()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.close()

		fmt.Fprintf(os.Stderr, "catalogd %s starting on port %d (%s mode)\n", Version, cfg.Server.Port, cfg.Mode)
		return app.run(ctx)
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "HTTP port (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}

// app holds the wired components of one server process.
type app struct {
	cfg     *config.Config
	srv     *server.Server
	hub     *catalogsync.Hub
	site    *site.Site
	watcher *reconciler.Reconciler
	jobs    *maintenance.Jobs
	tasks   []func(ctx context.Context) error
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// run starts every component and blocks until ctx ends or one of them fails.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.srv.Run(ctx) })
	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})
	g.Go(func() error { return a.watcher.Run(ctx) })
	if a.jobs != nil {
		g.Go(func() error { return a.jobs.Run(ctx) })
	}
	for _, task := range a.tasks {
		g.Go(func() error { return task(ctx) })
	}
	return g.Wait()
}

// buildApp wires the components for cfg.Mode. The database and other
// resources are released by app.close.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	origin := catalogsync.NewOrigin()

	broker, start := newBroker(cfg, origin)
	if start != nil {
		a.tasks = append(a.tasks, start)
	}

	a.srv = server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowAll:       cfg.Server.AllowAllOrigins,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	var (
		source    site.Source
		publisher *catalogsync.Publisher
		watched   reconciler.Source
	)
	switch cfg.Mode {
	case config.ModeLocal:
		local := newLocalStore(cfg, nil)
		f := fetcher.New(fetcher.Config{RemoteURL: cfg.Fetcher.RemoteURL, Timeout: cfg.Fetcher.Timeout}, local)
		fs := fetcherSource{f}
		publisher = catalogsync.NewPublisher(broker, fs, origin)
		source = site.SourceFunc(fs.Services)
		watched = fs
	default:
		database, err := openDatabase(cfg)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, func() { database.Close() })

		store := catalog.NewStore(database)
		// The socket is public: it carries available services only. The
		// reconciler still fingerprints the whole table.
		publisher = catalogsync.NewPublisher(broker, catalog.PublicSnapshotter{Store: store}, origin)
		if err := a.wireAdmin(ctx, database, store, publisher); err != nil {
			a.close()
			return nil, err
		}
		source = site.StoreSource(store)
		watched = store
	}

	a.hub = catalogsync.NewHub(broker, publisher.Current,
		catalogsync.WithOrigins(cfg.Server.AllowAllOrigins, cfg.Server.AllowedOrigins))
	a.srv.Router().Handle(SocketPath, a.hub)

	renderer, err := render.New()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating renderer: %w", err)
	}
	a.site, err = site.New(source, renderer, site.Options{Title: siteTitle, SocketPath: SocketPath})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("creating site: %w", err)
	}
	a.closers = append(a.closers, a.site.Close)
	a.site.RegisterRoutes(a.srv.Router())

	// Picks up writes made by other processes, such as `catalogd import` or
	// `catalogd local put`, and changes on the remote catalog.
	a.watcher = reconciler.New(watched, func(ctx context.Context, _ []catalog.Service) {
		if err := publisher.Refresh(ctx); err != nil {
			zap.L().Warn("publishing reconciled catalog", zap.Error(err))
		}
	}, cfg.Sync.PollInterval)

	return a, nil
}

// wireAdmin mounts the admin API, uploads and audit trail of server mode and
// prepares the maintenance jobs.
func (a *app) wireAdmin(ctx context.Context, database *db.DB, store *catalog.Store, publisher *catalogsync.Publisher) error {
	cfg := a.cfg
	seeded, err := store.EnsureDefaults(ctx, cfg.Catalog.SeedOnEmpty, cfg.Catalog.SeedFloor)
	if err != nil {
		return fmt.Errorf("seeding catalog: %w", err)
	}
	if seeded > 0 {
		zap.L().Info("seeded default services", zap.Int("count", seeded))
	}

	images, err := uploads.New(uploads.Config{
		Dir:       cfg.Uploads.Dir,
		URLPrefix: "/uploads/",
		MaxBytes:  cfg.Uploads.MaxBytes,
		Allowed:   cfg.Uploads.Allowed,
	})
	if err != nil {
		return fmt.Errorf("preparing uploads: %w", err)
	}

	auditStore := audit.NewStore(database)
	recorder := audit.NewRecorder(auditStore)

	authSvc := auth.NewService(
		auth.NewAdminStore(database),
		auth.NewSessionStore(database),
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		auth.NewTokenManager(auth.TokenConfig{Secret: cfg.Auth.JWTSecret, TTL: cfg.Auth.TokenTTL}),
		recorder,
	)
	if _, err := authSvc.EnsureDefaultAdmin(ctx, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword, cfg.Auth.AdminName); err != nil {
		return fmt.Errorf("creating default admin: %w", err)
	}

	a.srv.API(func(r chi.Router) {
		requireAdmin := auth.RegisterRoutes(r, authSvc)
		catalog.RegisterRoutes(r, store, images, requireAdmin, publisher, recorder)
		audit.RegisterRoutes(r, auditStore, requireAdmin)
	})
	a.srv.Router().Handle(images.Prefix()+"*", images.Handler())

	a.jobs = maintenance.New(maintenance.Config{
		Schedule:       cfg.Maintenance.Schedule,
		AuditRetention: cfg.Maintenance.AuditRetention,
		OrphanMinAge:   cfg.Maintenance.OrphanMinAge,
	}, auditStore, authSvc, func(ctx context.Context, minAge time.Duration) (int, error) {
		return images.Sweep(ctx, store, minAge)
	})
	return nil
}

// newBroker returns the configured broker plus, for Redis, the task that
// relays signals from other instances.
func newBroker(cfg *config.Config, origin string) (catalogsync.Broker, func(context.Context) error) {
	if cfg.Sync.Backend != config.SyncRedis {
		return catalogsync.NewMemoryBroker(catalogsync.DefaultBuffer), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Sync.RedisAddr,
		Password: cfg.Sync.RedisPassword,
		DB:       cfg.Sync.RedisDB,
	})
	b := catalogsync.NewRedisBroker(client, cfg.Sync.Channel, origin)
	return b, func(ctx context.Context) error {
		defer client.Close()
		return b.Start(ctx)
	}
}

// fetcherSource serves the local-mode page and reconciler from the fetcher.
type fetcherSource struct {
	f *fetcher.Fetcher
}

func (s fetcherSource) Services(ctx context.Context) []catalog.Service {
	return s.f.Fetch(ctx).Services
}

// Snapshot has no change marker; a switch between remote, cache and local
// that yields the same services is not a change.
func (s fetcherSource) Snapshot(ctx context.Context) ([]catalog.Service, string, error) {
	return s.Services(ctx), "", nil
}
