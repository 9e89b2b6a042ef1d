package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/southerniot/dashboard/internal/config"
	"github.com/southerniot/dashboard/internal/domain/activity"
	"github.com/southerniot/dashboard/internal/domain/clients"
	"github.com/southerniot/dashboard/internal/domain/devices"
	"github.com/southerniot/dashboard/internal/domain/documents"
	"github.com/southerniot/dashboard/internal/domain/gateways"
	"github.com/southerniot/dashboard/internal/domain/histousers"
	"github.com/southerniot/dashboard/internal/domain/orders"
	"github.com/southerniot/dashboard/internal/domain/patients"
	"github.com/southerniot/dashboard/internal/domain/reports"
	"github.com/southerniot/dashboard/internal/domain/users"
	"github.com/southerniot/dashboard/internal/platform/auth"
	"github.com/southerniot/dashboard/internal/platform/db"
	"github.com/southerniot/dashboard/internal/platform/metrics"
	"github.com/southerniot/dashboard/internal/platform/middleware"
	"github.com/southerniot/dashboard/internal/platform/render"
	"github.com/southerniot/dashboard/internal/platform/voice"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dashboard-server",
		Short: "Southern IOT operations dashboard API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())
	rootCmd.AddCommand(seedAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// selectDomains parses a comma-separated --domains flag into a validated list
// of domain database names. An empty flag selects every domain.
func selectDomains(flagValue string) ([]string, error) {
	if strings.TrimSpace(flagValue) == "" {
		return db.AllDomains(), nil
	}

	known := make(map[string]bool, len(db.AllDomains()))
	for _, d := range db.AllDomains() {
		known[d] = true
	}

	var domains []string
	for _, part := range strings.Split(flagValue, ",") {
		d := strings.TrimSpace(part)
		if d == "" {
			continue
		}
		if !known[d] {
			return nil, fmt.Errorf("unknown domain database %q (known: %s)", d, strings.Join(db.AllDomains(), ", "))
		}
		domains = append(domains, d)
	}
	if len(domains) == 0 {
		return db.AllDomains(), nil
	}
	return domains, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to the domain databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")
			domainsFlag, _ := cmd.Flags().GetString("domains")

			domains, err := selectDomains(domainsFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			registry, err := db.NewRegistry(ctx, cfg.DatabaseURLs(), cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer registry.Close()

			schema := "tenant_" + tenant
			fmt.Printf("Running migrations on schema: %s\n", schema)

			for _, domain := range domains {
				migrator := db.NewMigrator(registry.Pool(domain), filepath.Join(dir, domain))
				count, err := migrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", domain, err)
				}
				fmt.Printf("%-16s applied %d migration(s)\n", domain, count)
			}
			return nil
		},
	}
	upCmd.Flags().String("tenant", "default", "Tenant whose schema receives the migrations")
	upCmd.Flags().String("dir", "./migrations", "Migrations root (one subdirectory per domain)")
	upCmd.Flags().String("domains", "", "Comma-separated domain list (default: all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status per domain database",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")
			domainsFlag, _ := cmd.Flags().GetString("domains")

			domains, err := selectDomains(domainsFlag)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			registry, err := db.NewRegistry(ctx, cfg.DatabaseURLs(), cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer registry.Close()

			schema := "tenant_" + tenant
			for _, domain := range domains {
				migrator := db.NewMigrator(registry.Pool(domain), filepath.Join(dir, domain))
				statuses, err := migrator.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration status for %s: %w", domain, err)
				}

				fmt.Printf("%s (schema %s)\n", domain, schema)
				fmt.Printf("  %-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("  %-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
			}
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "default", "Tenant whose schema is inspected")
	statusCmd.Flags().String("dir", "./migrations", "Migrations root (one subdirectory per domain)")
	statusCmd.Flags().String("domains", "", "Comma-separated domain list (default: all)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a tenant schema in every domain database",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			registry, err := db.NewRegistry(ctx, cfg.DatabaseURLs(), cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer registry.Close()

			fmt.Printf("Provisioning schema tenant_%s across %d databases\n", name, len(db.AllDomains()))
			if err := db.ProvisionTenant(ctx, registry, name, dir); err != nil {
				return err
			}
			fmt.Println("Tenant created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	createCmd.Flags().String("dir", "./migrations", "Migrations root; empty creates the schemas only")
	cmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List provisioned tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			registry, err := db.NewRegistry(ctx, cfg.DatabaseURLs(), cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer registry.Close()

			tenants, err := db.ListTenants(ctx, registry, db.DomainUsers)
			if err != nil {
				return err
			}
			for _, t := range tenants {
				fmt.Println(t)
			}
			return nil
		},
	}
	cmd.AddCommand(listCmd)

	return cmd
}

// seedAdminCmd bootstraps the first administrator account on either side of
// the system. For the lab it is the CLI counterpart of
// POST /histo/auth/register; the ERP side has no registration endpoint at
// all, so this command is the only way its first admin comes into being.
// Both refuse once any account exists.
func seedAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			fullName, _ := cmd.Flags().GetString("full-name")
			tenant, _ := cmd.Flags().GetString("tenant")
			realm, _ := cmd.Flags().GetString("realm")
			if email == "" || username == "" || password == "" {
				return fmt.Errorf("--email, --username, and --password are required")
			}
			if realm != "erp" && realm != "histo" {
				return fmt.Errorf("--realm must be erp or histo")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			registry, err := db.NewRegistry(ctx, cfg.DatabaseURLs(), cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer registry.Close()

			sessions := db.NewSessions(registry, tenant)
			defer sessions.Release()
			ctx = db.WithSessions(ctx, sessions)

			if realm == "erp" {
				svc := users.NewService(users.NewRepoPG())
				_, total, err := svc.List(ctx, users.ListFilter{Limit: 1})
				if err != nil {
					return err
				}
				if total > 0 {
					return fmt.Errorf("an account already exists; add users through the admin endpoints instead")
				}

				req := users.CreateUserRequest{
					Email:    email,
					Username: username,
					Password: password,
					Role:     users.RoleAdmin,
				}
				if fullName != "" {
					req.FullName = &fullName
				}
				u, err := svc.Create(ctx, req)
				if err != nil {
					return err
				}
				fmt.Printf("Created ERP administrator %s (id %d)\n", u.Username, u.ID)
				return nil
			}

			req := histousers.CreateUserRequest{
				Email:    email,
				Username: username,
				Password: password,
				Role:     histousers.RoleAdmin,
			}
			if fullName != "" {
				req.FullName = &fullName
			}

			svc := histousers.NewService(histousers.NewRepoPG())
			u, err := svc.RegisterFirstAdmin(ctx, req)
			if errors.Is(err, histousers.ErrRegistrationClosed) {
				return fmt.Errorf("an account already exists; add users through the admin endpoints instead")
			}
			if err != nil {
				return err
			}

			fmt.Printf("Created lab administrator %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().String("email", "", "Administrator email")
	cmd.Flags().String("username", "", "Administrator username")
	cmd.Flags().String("password", "", "Administrator password")
	cmd.Flags().String("full-name", "", "Administrator display name")
	cmd.Flags().String("tenant", "default", "Tenant to seed")
	cmd.Flags().String("realm", "histo", "Which side to seed: erp or histo")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// One pool per domain database
	ctx := context.Background()
	registry, err := db.NewRegistry(ctx, cfg.DatabaseURLs(), cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to domain databases")
	}
	defer registry.Close()
	logger.Info().Int("databases", len(db.AllDomains())).Msg("connected to domain databases")

	// Metrics
	collector := metrics.NewCollector("dashboard")
	collector.MustRegister(metrics.NewPoolStatsCollector("dashboard", registry))

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M", "25M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID", "X-Device-Token"},
	}))
	e.Use(collector.Middleware())

	// Staff authenticate with a JWT, hardware with the shared device token;
	// tenant resolution runs after both so it can read the token's claim.
	signingKey := []byte(cfg.JWTSigningKey)
	e.Use(auth.JWTMiddleware(signingKey))
	e.Use(auth.DeviceTokenMiddleware(cfg.DeviceAccessToken))
	e.Use(db.TenantMiddleware(registry, cfg.DefaultTenant))

	if cfg.DeviceAccessToken == "" {
		logger.Warn().Msg("DEVICE_ACCESS_TOKEN not set; telemetry ingest endpoints will answer 503")
	}
	if cfg.RenderServiceURL == "" {
		logger.Warn().Msg("RENDER_SERVICE_URL not set; report PDF endpoints will answer 503")
	}
	if cfg.VoiceServiceURL == "" {
		logger.Info().Msg("VOICE_SERVICE_URL not set; dictation endpoints will answer 503")
	}

	// Infrastructure endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(registry))
	e.GET("/metrics", collector.Handler())

	// API groups. Rate limiting is attached before the histo subgroup is
	// created so the lab routes inherit it.
	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	histo := apiV1.Group("/histo")

	issuer := auth.TokenIssuer{
		SigningKey: signingKey,
		TTL:        time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}

	registerHandlers(apiV1, histo, cfg, collector, issuer)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// registerHandlers wires every domain package into the API groups. The repos
// carry no pool handles of their own; they resolve the per-request session
// from the context, so the wiring is identical for every tenant.
func registerHandlers(apiV1, histo *echo.Group, cfg *config.Config, collector *metrics.Collector, issuer auth.TokenIssuer) {
	// Lab activity trail, written best-effort by the lab handlers.
	activitySvc := activity.NewService(activity.NewRepoPG())
	activitySvc.SetMetrics(collector)

	// -- ERP --

	userSvc := users.NewService(users.NewRepoPG())
	users.NewHandler(userSvc, issuer).RegisterRoutes(apiV1)

	clientSvc := clients.NewService(clients.NewRepoPG())
	clients.NewHandler(clientSvc).RegisterRoutes(apiV1)

	orderSvc := orders.NewService(orders.NewRepoPG())
	orders.NewHandler(orderSvc).RegisterRoutes(apiV1)

	deviceSvc := devices.NewService(devices.NewRepoPG())
	deviceSvc.SetMetrics(collector)
	devices.NewHandler(deviceSvc).RegisterRoutes(apiV1)

	gatewaySvc := gateways.NewService(gateways.NewRepoPG())
	gatewaySvc.SetMetrics(collector)
	gateways.NewHandler(gatewaySvc).RegisterRoutes(apiV1)

	// -- Lab --

	histoUserSvc := histousers.NewService(histousers.NewRepoPG())
	histousers.NewHandler(histoUserSvc, activitySvc, issuer).RegisterRoutes(histo)

	patientSvc := patients.NewService(patients.NewRepoPG(), patients.NewDoctorRepoPG())
	patientSvc.SetMetrics(collector)
	patients.NewHandler(patientSvc, activitySvc).RegisterRoutes(apiV1)

	reportSvc := reports.NewService(reports.NewRepoPG())
	reportSvc.SetMetrics(collector)
	reports.NewHandler(reportSvc, activitySvc).RegisterRoutes(apiV1)

	// Document assembly walks report -> patient -> signing doctor across the
	// three lab databases and ships the combined payload to the renderer.
	renderer := render.NewClient(cfg.RenderServiceURL)
	docSvc := documents.NewService(reportSvc, patientSvc, histoUserSvc, renderer)
	documents.NewHandler(docSvc).RegisterRoutes(apiV1)

	voiceClient := voice.NewClient(cfg.VoiceServiceURL, cfg.VoiceAPIKey)
	reports.NewVoiceHandler(voiceClient).RegisterRoutes(apiV1)
}
