// Command entitystored serves a schema-first entity store over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eve.evalgo.org/config"
	"eve.evalgo.org/eventbus"
	"eve.evalgo.org/httpapi"
	"eve.evalgo.org/provider"
	"eve.evalgo.org/schema"
)

var cfgFile string

// StoreConfig selects and configures the durable tier backing the
// provider's otherwise in-memory store.
type StoreConfig struct {
	Backend         string // "memory" (default), "bolt", "postgres", "redis", "couchdb"
	DSN             string
	CouchDBDatabase string
}

var rootCmd = &cobra.Command{
	Use:   "entitystored",
	Short: "an in-process, schema-first entity store served over HTTP",
	Long: `entitystored loads an entity schema, composes the provider
(validation, relations, events, actions, artifacts, retrieval), and
exposes it over an echo-based REST API, optionally warming from and
snapshotting to a configured durable adapter.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.entitystored.yaml)")
	rootCmd.PersistentFlags().Int("port", 8080, "HTTP server port")
	rootCmd.PersistentFlags().String("schema-dir", "", "directory of entity schema YAML files")
	rootCmd.PersistentFlags().String("store-backend", "memory", "durable tier: memory|bolt|postgres|redis|couchdb")
	rootCmd.PersistentFlags().String("store-dsn", "", "connection string / file path for store-backend")
	rootCmd.PersistentFlags().String("couchdb-database", "entitystore", "CouchDB database name, when store-backend=couchdb")
	rootCmd.PersistentFlags().String("admin-jwt-secret", "", "HS256 secret protecting /admin; empty disables admin auth")
	rootCmd.PersistentFlags().Bool("namespace-required", false, "reject requests missing the ns query parameter")

	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("schema_dir", rootCmd.PersistentFlags().Lookup("schema-dir"))
	viper.BindPFlag("store.backend", rootCmd.PersistentFlags().Lookup("store-backend"))
	viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("store-dsn"))
	viper.BindPFlag("store.couchdb_database", rootCmd.PersistentFlags().Lookup("couchdb-database"))
	viper.BindPFlag("admin.jwt_secret", rootCmd.PersistentFlags().Lookup("admin-jwt-secret"))
	viper.BindPFlag("namespace.required", rootCmd.PersistentFlags().Lookup("namespace-required"))
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
		viper.SetConfigName(".entitystored")
	}
	viper.SetEnvPrefix("ENTITYSTORED")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

func runServer(cmd *cobra.Command, args []string) {
	serverCfg := config.LoadServerConfig("ENTITYSTORED")
	if p := viper.GetInt("port"); p != 0 {
		serverCfg.Port = p
	}

	s := schema.NewSchema()
	if dir := viper.GetString("schema_dir"); dir != "" {
		loaded, err := schema.LoadDir(dir)
		if err != nil {
			log.Fatalf("loading schema directory %s: %v", dir, err)
		}
		s = loaded
	}

	provCfg := config.LoadProviderConfig("ENTITYSTORED")
	provOpts := []provider.Option{provider.WithLimiterCapacity(provCfg.LimiterCapacity)}
	if provCfg.MaxEvents > 0 {
		provOpts = append(provOpts, provider.WithBusOptions(eventbus.WithRetention(provCfg.MaxEvents)))
	}
	p := provider.New(s, provOpts...)

	storeCfg := StoreConfig{
		Backend:         viper.GetString("store.backend"),
		DSN:             viper.GetString("store.dsn"),
		CouchDBDatabase: viper.GetString("store.couchdb_database"),
	}
	ctx := context.Background()
	backing, err := openBacking(ctx, storeCfg)
	if err != nil {
		log.Fatalf("opening store backend %s: %v", storeCfg.Backend, err)
	}
	if backing != nil {
		if err := loadSnapshot(ctx, p, backing); err != nil {
			log.Fatalf("loading snapshot: %v", err)
		}
		if closer, ok := backing.(interface{ Close() error }); ok {
			defer closer.Close()
		}
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.NamespaceRequired = viper.GetBool("namespace.required")
	httpCfg.AdminSigningKey = viper.GetString("admin.jwt_secret")
	srv := httpapi.NewServer(p, httpCfg)

	e := echo.New()
	e.HideBanner = true
	srv.RegisterRoutes(e)

	addr := fmt.Sprintf("%s:%d", serverCfg.Host, serverCfg.Port)
	go func() {
		log.Printf("entitystored listening on %s", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	if backing != nil {
		snapshotCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := saveSnapshot(snapshotCtx, p, backing); err != nil {
			log.Printf("final snapshot failed: %v", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
