// Package dashboard serves a read-only HTTP view of the workspace: run
// status histograms and per-job rows straight from the
// system-of-record table, plus Prometheus metrics. It never writes.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantaleap/meshbench/internal/workspace"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	Layout workspace.Layout
	Addr   string
	Out    io.Writer
}

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Layout.Root == "" {
		return fmt.Errorf("dashboard: workspace root is required")
	}
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:8270"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts.Layout)

	srv := &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "dashboard listening on http://%s\n", opts.Addr)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, layout workspace.Layout) {
	router.GET("/healthz", handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/api/runs", handleRuns(layout))
	router.GET("/api/runs/:id/jobs", handleJobs(layout))
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleRuns(layout workspace.Layout) gin.HandlerFunc {
	return func(c *gin.Context) {
		runs, err := runSummaries(layout)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

func handleJobs(layout workspace.Layout) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobs, err := runJobs(layout, c.Param("id"), c.Query("status"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"jobs": jobs})
	}
}
