// Command apiserver exposes World's runs/steps/events/hooks/queue/stream
// operations over HTTP, the "thin front-end the core does not own" spec.md
// §6 describes. Adapted from the reference server's cmd/server/main.go:
// same gin.New()+RunTLS(cert,key) shape, same flat route table, but backed
// by World instead of a pipeline DAO.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ejc3/workflow/internal/authn"
	"github.com/ejc3/workflow/internal/config"
	"github.com/ejc3/workflow/internal/logging"
	"github.com/ejc3/workflow/pkg/queue"
	"github.com/ejc3/workflow/pkg/world"
)

type server struct {
	world  *world.World
	issuer *authn.Issuer
}

func main() {
	cfg := config.LoadServer()
	worldCfg := config.LoadWorld()
	logger := logging.New(cfg.LogPath, cfg.LogLevel)
	defer logger.Sync()

	issuer := authn.NewIssuer(cfg.JWTSecret, time.Hour)

	w, err := world.New(world.Config{
		DatabaseType:     worldCfg.DatabaseType,
		ConnectionString: worldCfg.ConnectionString,
		JobPrefix:        worldCfg.JobPrefix,
		QueueConcurrency: worldCfg.QueueConcurrency,
		Executor:         queue.NewHTTPExecutor(cfg.ExecutorURL+"/dispatch", nil),
		Auth:             issuer,
	}, logger)
	if err != nil {
		logger.Fatal("constructing world", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		logger.Fatal("starting world", zap.Error(err))
	}
	defer w.Stop(context.Background())

	srv := &server{world: w, issuer: issuer}
	r := gin.New()
	r.Use(gin.Recovery())
	srv.routes(r)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("apiserver listening", zap.String("addr", cfg.HTTPAddr))
	var serveErr error
	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
		serveErr = httpSrv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		serveErr = httpSrv.ListenAndServe()
	}
	if serveErr != nil && serveErr != http.ErrServerClosed {
		logger.Fatal("server exited", zap.Error(serveErr))
	}
}

func (s *server) routes(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/")
	api.Use(authn.Middleware(s.issuer))

	api.POST("/runs", s.createRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:runId", s.getRun)
	api.PATCH("/runs/:runId", s.updateRun)
	api.POST("/runs/:runId/cancel", s.cancelRun)
	api.POST("/runs/:runId/pause", s.pauseRun)
	api.POST("/runs/:runId/resume", s.resumeRun)
	api.GET("/runs/:runId/steps", s.listStepsByRun)
	api.GET("/runs/:runId/events", s.listEventsByRun)

	api.POST("/steps", s.createStep)
	api.GET("/steps/:stepId", s.getStep)
	api.PATCH("/steps/:stepId", s.updateStep)

	api.POST("/events", s.createEvent)
	api.GET("/events", s.listEventsByCorrelation)

	api.POST("/hooks", s.createHook)
	api.GET("/hooks/token/:token", s.getHookByToken)
	api.DELETE("/hooks/:hookId", s.disposeHook)

	api.POST("/queue", s.enqueue)
	api.GET("/queue/idempotency/:key", s.getJobByIdempotencyKey)

	api.POST("/streams/:streamId", s.writeStreamChunk)
	api.POST("/streams/:streamId/close", s.closeStream)
	api.GET("/streams/:streamId", s.readStream)
}
