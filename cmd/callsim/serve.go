package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/ProDevCodePoland/ringrtc/internal/api/router"
	"github.com/ProDevCodePoland/ringrtc/internal/api/server"
	"github.com/ProDevCodePoland/ringrtc/internal/storage"
	"github.com/ProDevCodePoland/ringrtc/internal/storage/factory"
	pkgserver "github.com/ProDevCodePoland/ringrtc/pkg/server"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve written reports and stored run results over HTTP",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (env PORT, default "+server.DefaultPort+")")
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	sCfg, err := server.LoadConfig(servePort)
	if err != nil {
		return err
	}

	health := pkgserver.AllHealthChecker{pkgserver.NewOkHealthChecker()}
	var results storage.Reader

	storageCfg, err := factory.LoadEnv()
	if err != nil {
		return err
	}
	if storageCfg != nil {
		store, err := factory.NewStore(ctx, storageCfg)
		if err != nil {
			return err
		}
		defer store.Close()
		results = store
		health = append(health, store.Health)
	} else {
		slog.Info("STORAGE_TYPE is not set, /runs is disabled")
	}

	s := server.New(sCfg, health).
		SetupMiddlewares().
		SetupErrorHandler().
		SetupHealthChecks("/health")

	s.Echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "callsim report viewer is running")
	})
	router.NewReportRouter(s.Echo, cfg.OutputDir, results).Bind()

	return s.Start()
}
