// Package cli implements the command-line entry points for the ingestion
// core: a long-running "serve" command that runs the indexer and job
// processor against a CouchDB/Elasticsearch/Redis backend, plus one-shot
// commands for fetching and crawling RSS feeds.
//
// Configuration is resolved the same way across every command: flags
// override environment variables, which override a config file, which
// falls back to sane local defaults (matching what a docker-compose
// development stack exposes).
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"oasgo.dev/core/index"
	"oasgo.dev/core/jobs"
	"oasgo.dev/core/logging"
	"oasgo.dev/core/orchestrator"
	"oasgo.dev/core/store"
)

var cfgFile string

// RootCmd is the top-level "oas-core" command; its subcommands are
// registered in init() across this package's files.
var RootCmd = &cobra.Command{
	Use:   "oas-core",
	Short: "ingest, index and process audio search records",
	Long: `oas-core watches RSS/Atom feeds for posts and media, keeps an
Elasticsearch index in sync with what's stored in CouchDB, and derives
background transcription and nlp jobs from what it sees change.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.oas-core.yaml)")
	RootCmd.PersistentFlags().String("couchdb-url", "http://localhost:5984", "CouchDB connection URL")
	RootCmd.PersistentFlags().String("couchdb-database", "oas", "CouchDB database name")
	RootCmd.PersistentFlags().StringSlice("elastic-addresses", []string{"http://localhost:9200"}, "Elasticsearch addresses")
	RootCmd.PersistentFlags().String("elastic-index", "oas", "Elasticsearch index name")
	RootCmd.PersistentFlags().String("redis-url", "redis://localhost:6379/0", "Redis connection URL")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("couchdb.url", RootCmd.PersistentFlags().Lookup("couchdb-url"))
	viper.BindPFlag("couchdb.database", RootCmd.PersistentFlags().Lookup("couchdb-database"))
	viper.BindPFlag("elastic.addresses", RootCmd.PersistentFlags().Lookup("elastic-addresses"))
	viper.BindPFlag("elastic.index", RootCmd.PersistentFlags().Lookup("elastic-index"))
	viper.BindPFlag("redis.url", RootCmd.PersistentFlags().Lookup("redis-url"))
	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".oas-core")
	}

	viper.SetEnvPrefix("OAS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}

	logging.Configure(logrus.StandardLogger(), logging.Config{
		Level:   viper.GetString("log.level"),
		Format:  "text",
		Service: "oas-core",
	})
}

// orchestratorConfig builds an orchestrator.Config from the currently
// bound viper values.
func orchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		CouchDB: store.Config{
			URL:    viper.GetString("couchdb.url"),
			DBName: viper.GetString("couchdb.database"),
		},
		Elastic: index.Config{
			Addresses: viper.GetStringSlice("elastic.addresses"),
			Index:     viper.GetString("elastic.index"),
		},
		Jobs: jobs.Config{
			RedisURL: viper.GetString("redis.url"),
		},
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the indexer and job processor, and serve health checks over HTTP",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().String("http-addr", ":8080", "address the health check server listens on")
	viper.BindPFlag("http.addr", serveCmd.Flags().Lookup("http-addr"))
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := orchestrator.New(ctx, orchestratorConfig())
	if err != nil {
		logrus.Fatalf("failed to initialize: %v", err)
	}
	defer state.Close()

	if err := state.WaitForReady(ctx); err != nil {
		logrus.Fatalf("backing services not ready: %v", err)
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- state.Run(ctx) }()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	addr := viper.GetString("http.addr")
	go func() {
		logrus.Infof("health check server listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logrus.Errorf("health check server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		logrus.Info("shutting down")
	case err := <-runErrCh:
		if err != nil {
			logrus.Errorf("processing stopped: %v", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("http server shutdown: %v", err)
	}
}
