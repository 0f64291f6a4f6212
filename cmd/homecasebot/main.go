package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/unofficial-homecase/homecasebot/internal/alerting"
	"github.com/unofficial-homecase/homecasebot/internal/api"
	"github.com/unofficial-homecase/homecasebot/internal/auth"
	"github.com/unofficial-homecase/homecasebot/internal/config"
	"github.com/unofficial-homecase/homecasebot/internal/cron"
	"github.com/unofficial-homecase/homecasebot/internal/ingest"
	"github.com/unofficial-homecase/homecasebot/internal/migrate"
	"github.com/unofficial-homecase/homecasebot/internal/notification"
	"github.com/unofficial-homecase/homecasebot/internal/scraper"
	"github.com/unofficial-homecase/homecasebot/internal/storage"
)

// Exit codes of the run command, for schedulers that distinguish "nothing
// new" from failure.
const (
	exitOK    = 0
	exitError = 1
	exitNoNew = 2
)

var rootCmd = &cobra.Command{
	Use:   "homecasebot",
	Short: "Scrapes consumption notices from the HomeCase portal and mails tenant reports",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scrape-parse-notify workflow once",
	Long: `Runs one pass of the workflow: log in to the portal, find consumption
messages, parse and store the new ones, and send a report email per new
message.

Exit codes: 0 on success, 2 when no new messages were found, 1 on error.`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runOnce(cmd.Context()))
	},
}

func runOnce(ctx context.Context) int {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		log.Printf("configuration error: %v", err)
		return exitError
	}

	st, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.StorageDSN})
	if err != nil {
		log.Printf("open storage: %v", err)
		return exitError
	}
	defer st.Close()

	if err := seedEmailConfig(ctx, st, cfg); err != nil {
		log.Printf("seed email config: %v", err)
		return exitError
	}

	sc, err := scraper.FromConfig(cfg)
	if err != nil {
		log.Printf("build scraper: %v", err)
		return exitError
	}

	notifier := notification.NewService(st)
	alerter := alerting.NewAlerter(alerting.DefaultAlertConfig())
	runner := ingest.NewRunner(st, sc, notifier, alerter, cfg.MessageLimit)

	result, err := runner.Run(ctx)
	if err != nil {
		log.Printf("run failed: %v", err)
		return exitError
	}

	switch code := exitCodeFor(result); code {
	case exitError:
		log.Printf("run failed: %d message(s) found, none could be parsed", result.Failed)
		return code
	case exitNoNew:
		log.Printf("no new consumption messages")
		return code
	default:
		log.Printf("run complete: found=%d saved=%d skipped=%d failed=%d",
			result.Found, result.Saved, result.Skipped, result.Failed)
		return code
	}
}

// exitCodeFor maps a run result to the process exit code. A run where
// every candidate failed to parse is an error, not a quiet success.
func exitCodeFor(result *ingest.Result) int {
	switch {
	case result.Failed > 0 && result.Saved == 0:
		return exitError
	case result.NoNewMessages():
		return exitNoNew
	default:
		return exitOK
	}
}

// seedEmailConfig stores an email configuration from environment variables
// on first run, so the one-shot workflow works without touching the API.
func seedEmailConfig(ctx context.Context, st storage.Storage, cfg config.Config) error {
	existing, err := st.GetEmailConfig(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if cfg.SMTPHost == "" || cfg.EmailTo == "" {
		return nil
	}

	log.Printf("seeding email config from environment (host=%s)", cfg.SMTPHost)
	return st.SaveEmailConfig(ctx, storage.EmailConfig{
		Provider:    "smtp",
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		FromAddress: cfg.EmailFrom,
		Recipients:  cfg.EmailTo,
		CC:          cfg.EmailToCC,
		Greeting:    cfg.Greeting,
		Signature:   cfg.Signature,
		Enabled:     true,
	})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and web UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromEnv()

		if boolEnv("AUTO_MIGRATE") {
			if err := migrate.Up(ctx, cfg.StorageDriver, cfg.StorageDSN); err != nil {
				log.Printf("auto-migration failed: %v", err)
			}
		}

		st, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.StorageDSN})
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer st.Close()

		if err := seedEmailConfig(ctx, st, cfg); err != nil {
			return fmt.Errorf("seed email config: %w", err)
		}

		mux, err := api.NewMux(ctx, cfg, st, boolEnv("AUTH_ENABLED"))
		if err != nil {
			return fmt.Errorf("build mux: %w", err)
		}

		log.Printf("homecasebot listening on %s", cfg.ListenAddr)
		return http.ListenAndServe(cfg.ListenAddr, mux)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the periodic scrape worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		if err := cfg.Validate(); err != nil {
			return err
		}
		return cron.Run(cmd.Context(), cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status]",
	Short: "Run database schema migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromEnv()
		ctx := cmd.Context()

		switch args[0] {
		case "up":
			return migrate.Up(ctx, cfg.StorageDriver, cfg.StorageDSN)
		case "down":
			return migrate.Down(ctx, cfg.StorageDriver, cfg.StorageDSN)
		case "status":
			return migrate.Status(ctx, cfg.StorageDriver, cfg.StorageDSN)
		default:
			return fmt.Errorf("unknown migrate action %q", args[0])
		}
	},
}

var (
	userUsername string
	userPassword string
	userRole     string
)

var userCreateCmd = &cobra.Command{
	Use:   "user-create",
	Short: "Create an API user",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromEnv()

		st, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.StorageDSN})
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer st.Close()

		authSvc, err := auth.NewService(st)
		if err != nil {
			return err
		}
		u, err := authSvc.Register(ctx, userUsername, userPassword, userRole)
		if err != nil {
			return err
		}
		fmt.Printf("created user %s (id=%s role=%s)\n", u.Username, u.ID, u.Role)
		return nil
	},
}

var (
	tokenUser    string
	tokenName    string
	tokenRole    string
	tokenExpires string
)

var tokenCreateCmd = &cobra.Command{
	Use:   "token-create",
	Short: "Create an API token; the raw token is printed once",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromEnv()

		st, err := storage.Open(ctx, storage.Config{Driver: cfg.StorageDriver, DSN: cfg.StorageDSN})
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer st.Close()

		authSvc, err := auth.NewService(st)
		if err != nil {
			return err
		}

		expiresAt, err := auth.ParseExpirationDuration(tokenExpires)
		if err != nil {
			return err
		}

		t, raw, err := authSvc.CreateToken(ctx, tokenUser, tokenName, tokenRole, expiresAt)
		if err != nil {
			return err
		}
		fmt.Printf("token %s created (id=%s)\n", t.Name, t.ID)
		fmt.Printf("raw token (store it now, it is not retrievable later):\n%s\n", raw)
		return nil
	},
}

func boolEnv(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func main() {
	userCreateCmd.Flags().StringVar(&userUsername, "username", "", "username of the new user")
	userCreateCmd.Flags().StringVar(&userPassword, "password", "", "password of the new user")
	userCreateCmd.Flags().StringVar(&userRole, "role", "viewer", "role: admin, editor, or viewer")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("password")

	tokenCreateCmd.Flags().StringVar(&tokenUser, "user", "", "user ID the token belongs to")
	tokenCreateCmd.Flags().StringVar(&tokenName, "name", "", "descriptive token name")
	tokenCreateCmd.Flags().StringVar(&tokenRole, "role", "viewer", "role: admin, editor, or viewer")
	tokenCreateCmd.Flags().StringVar(&tokenExpires, "expires", "never", "expiration: never, 30d, 24h, or mm/dd/yyyy")
	tokenCreateCmd.MarkFlagRequired("user")
	tokenCreateCmd.MarkFlagRequired("name")

	rootCmd.AddCommand(runCmd, serveCmd, workerCmd, migrateCmd, userCreateCmd, tokenCreateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}
