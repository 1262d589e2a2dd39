package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/dataverse-devauth/pkg/logger"
	"github.com/stacklok/dataverse-devauth/pkg/proxy"
	"github.com/stacklok/dataverse-devauth/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dev proxy",
	Long: `Start the dev proxy in front of a Dataverse environment.
API requests under the protected prefix are authenticated with the session's
cached token; other requests are forwarded to the application dev server, if
one is configured.`,
	RunE: runServe,
}

const shutdownTimeout = 10 * time.Second

func init() {
	serveCmd.Flags().String("dataverse-url", "", "Base URL of the Dataverse environment (required)")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind the proxy to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("app-url", "", "Upstream application dev server for non-API requests")
	serveCmd.Flags().String("mock-token", "", "Serve canned responses using this token instead of resolving credentials")
	serveCmd.Flags().Duration("token-refresh-interval", 0, "Token refresh cadence (default 30m)")
	serveCmd.Flags().StringSlice("allowed-domain", nil, "Additional allow-listed upstream domains")
	serveCmd.Flags().String("path-prefix", "", "Protected API path prefix (default /api/data)")

	for _, name := range []string{
		"dataverse-url", "host", "port", "app-url",
		"mock-token", "token-refresh-interval", "allowed-domain", "path-prefix",
	} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			logger.Fatalf("Failed to bind %s flag: %v", name, err)
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dataverseURL := viper.GetString("dataverse-url")
	if dataverseURL == "" {
		return fmt.Errorf("dataverse-url flag is required")
	}

	sess, err := session.Setup(ctx, session.Config{
		DataverseURL:         dataverseURL,
		TokenRefreshInterval: viper.GetDuration("token-refresh-interval"),
		EnableConsoleLogging: viper.GetBool("debug"),
		MockToken:            viper.GetString("mock-token"),
		AllowedDomains:       viper.GetStringSlice("allowed-domain"),
		PathPrefix:           viper.GetString("path-prefix"),
	})
	if err != nil {
		return fmt.Errorf("failed to establish session: %w", err)
	}
	defer sess.Close()

	p, err := proxy.New(sess, proxy.Config{
		Host:   viper.GetString("host"),
		Port:   viper.GetInt("port"),
		AppURL: viper.GetString("app-url"),
	})
	if err != nil {
		return fmt.Errorf("failed to build proxy: %w", err)
	}

	if err := p.Start(ctx); err != nil {
		return err
	}

	// Wait for interrupt signal to gracefully shut down.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down dev proxy...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := p.Stop(shutdownCtx); err != nil {
		logger.Errorf("Dev proxy forced to shut down: %v", err)
		return err
	}
	return nil
}
