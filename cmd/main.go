package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"santa/internal/config"
	"santa/internal/email"
	"santa/internal/handlers"
	"santa/internal/models"
	"santa/internal/services"
	"santa/internal/sheet"
	"santa/internal/storage/postgres"
)

const cliTenant = "cli"

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "santa",
		Short:         "Secret Santa draw with category exclusions",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			out, closeLog, err := logOutput(cfg)
			if err != nil {
				return err
			}
			logger.Init("santa", cfg.Verbose, false, out)
			cobra.OnFinalize(closeLog)
			return nil
		},
	}
	root.AddCommand(newDrawCmd(), newServeCmd())
	return root
}

// logOutput picks the writer behind logger.Init. With verbose on, the logger
// already mirrors every level to the console, so only LOG_FILE needs a writer;
// otherwise everything goes to stderr.
func logOutput(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return f, func() { f.Close() }, nil
	}
	if cfg.Verbose {
		return io.Discard, func() {}, nil
	}
	return os.Stderr, func() {}, nil
}

func newDrawCmd() *cobra.Command {
	var send bool
	cmd := &cobra.Command{
		Use:   "draw <participants.xlsx|participants.csv>",
		Short: "Draw assignments from a participants file and save them",
		Long: `Load participants (NOM, Prénom, optional Catégorie and Email columns),
draw a giver/receiver assignment where nobody draws themselves or someone of
their own category, and save it to a timestamped workbook.

With --send, every giver is also emailed the name of their receiver.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraw(cmd.Context(), args[0], send)
		},
	}
	cmd.Flags().BoolVar(&send, "send", false, "email each giver their assignment")
	return cmd
}

func runDraw(ctx context.Context, path string, send bool) error {
	participants, err := sheet.Load(path)
	if err != nil {
		return err
	}

	opts := services.Options{Attempts: cfg.DrawAttempts}
	db, err := openStore(ctx, &opts)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	if send {
		notifier, err := newNotifier()
		if err != nil {
			return err
		}
		opts.Notifier = notifier
	}

	service := services.NewSantaService(opts)
	if err := service.SetParticipants(cliTenant, participants); err != nil {
		return err
	}
	result, err := service.Draw(ctx, cliTenant)
	if err != nil {
		return err
	}

	output, err := sheet.SaveResults(cfg.ResultsDir, result.Assignment, time.Now())
	if err != nil {
		return err
	}
	printAssignment(os.Stdout, result.Assignment)

	if !send {
		fmt.Printf("Draw saved to %s (test mode, no email sent).\n", output)
		return nil
	}
	fmt.Printf("Draw saved to %s. Sending emails...\n", output)
	if err := service.Notify(ctx, cliTenant); err != nil {
		return err
	}
	fmt.Println("Emails sent.")
	return nil
}

func printAssignment(w io.Writer, assignment models.Assignment) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Giver", "Receiver"})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	for _, p := range assignment {
		table.Append([]string{p.Giver.Identity().String(), p.Receiver.Identity().String()})
	}
	table.Render()
}

// openStore registers the Postgres sink when DATABASE_URL is set.
func openStore(ctx context.Context, opts *services.Options) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	repo := postgres.NewDrawRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	opts.Sinks = append(opts.Sinks, repo)
	return db, nil
}

func newNotifier() (*services.EmailNotifier, error) {
	mailer, err := email.NewMailer(cfg.MailConfig)
	if err != nil {
		return nil, err
	}
	return services.NewEmailNotifier(mailer, email.NewTemplateRenderer()), nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {

	// 1. Initialize the Santa Service with its sinks and notifier
	opts := services.Options{Attempts: cfg.DrawAttempts}
	db, err := openStore(ctx, &opts)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	notifier, err := newNotifier()
	if err != nil {
		return err
	}
	opts.Notifier = notifier
	santaService := services.NewSantaService(opts)

	// 2. Initialize the HTTP Handler
	httpHandler := handlers.NewHTTPHandler(santaService)

	// 3. Set up the Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	// 4. Register public routes (before middleware)
	httpHandler.RegisterPublicRoutes(r)

	// 5. Group routes that require tenant identification and apply middleware
	tenantRoutes := r.Group("/")
	tenantRoutes.Use(httpHandler.TenantMiddleware())
	httpHandler.RegisterTenantRoutes(tenantRoutes)

	// 6. Start the background janitor to clean up inactive sessions
	go runJanitor(ctx, santaService, 10*time.Minute)

	// 7. Run the server until the context is canceled
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	logger.Infof("Server starting on http://localhost:%s", cfg.Port)
	return serveUntilDone(ctx, srv)
}

func runJanitor(ctx context.Context, service *services.SantaService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.CleanUpInactiveSessions(cfg.SessionTTL)
		}
	}
}

// serveUntilDone runs srv and shuts it down gracefully once ctx is done.
func serveUntilDone(ctx context.Context, srv *http.Server) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("run server: %w", err)
	case <-ctx.Done():
	}

	logger.Infof("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server: %w", err)
	}
	return nil
}
