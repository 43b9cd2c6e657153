package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ngx-workshop/user-metadata-api/internal/auth"
	"github.com/ngx-workshop/user-metadata-api/internal/config"
	"github.com/ngx-workshop/user-metadata-api/internal/database"
	"github.com/ngx-workshop/user-metadata-api/internal/logging"
	"github.com/ngx-workshop/user-metadata-api/internal/rolesync"
	"github.com/ngx-workshop/user-metadata-api/internal/server"
	"github.com/ngx-workshop/user-metadata-api/internal/usermeta"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "usermeta-api",
		Short: "User metadata backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("auth-issuer", defaults.GetString("auth.issuer"), "Expected access token issuer")
	cmd.PersistentFlags().String("auth-cookie-name", defaults.GetString("auth.cookie_name"), "Access token cookie name")
	cmd.PersistentFlags().String("auth-signing-secret", "", "Access token signing secret (overrides env)")
	cmd.PersistentFlags().String("remote-auth-url", defaults.GetString("remote_auth.base_url"), "Remote auth service base URL")
	cmd.PersistentFlags().Int("propagation-timeout-seconds", defaults.GetInt("propagation.timeout_seconds"), "Role propagation timeout in seconds")
	cmd.PersistentFlags().Int("propagation-workers", defaults.GetInt("propagation.workers"), "Role propagation worker count")
	cmd.PersistentFlags().Int("propagation-queue-size", defaults.GetInt("propagation.queue_size"), "Role propagation queue size")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.issuer", "auth-issuer")
	bindFlag(cmd, "auth.cookie_name", "auth-cookie-name")
	bindFlag(cmd, "auth.signing_secret", "auth-signing-secret")
	bindFlag(cmd, "remote_auth.base_url", "remote-auth-url")
	bindFlag(cmd, "propagation.timeout_seconds", "propagation-timeout-seconds")
	bindFlag(cmd, "propagation.workers", "propagation-workers")
	bindFlag(cmd, "propagation.queue_size", "propagation-queue-size")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	validator, err := auth.NewValidator(auth.ValidatorConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		CookieName:    appConfig.AuthCookieName,
	})
	if err != nil {
		return err
	}

	records, err := usermeta.NewService(usermeta.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	authClient, err := rolesync.NewAuthClient(rolesync.ClientConfig{
		BaseURL:    appConfig.RemoteAuthBaseURL,
		CookieName: appConfig.AuthCookieName,
		Timeout:    appConfig.PropagationTimeout,
	})
	if err != nil {
		return err
	}

	dispatcher := rolesync.NewDispatcher(rolesync.DispatcherConfig{
		Workers:   appConfig.PropagationWorkers,
		QueueSize: appConfig.PropagationQueue,
		Logger:    logger,
	})

	synchronizer, err := rolesync.NewSynchronizer(rolesync.SynchronizerConfig{
		Records:    records,
		Client:     authClient,
		Dispatcher: dispatcher,
		Timeout:    appConfig.PropagationTimeout,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Validator: validator,
		Records:   records,
		RoleSync:  synchronizer,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		// Drain queued role propagations before exiting so accepted tasks
		// are executed, not dropped.
		dispatcher.Close()
		return shutdownErr
	case err := <-errCh:
		dispatcher.Close()
		return err
	}
}
