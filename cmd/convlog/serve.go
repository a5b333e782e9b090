package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ashwinyue/convlog/internal/handler"
	"github.com/ashwinyue/convlog/internal/router"
	"github.com/ashwinyue/convlog/internal/service/callback"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, logging setting sync and maintenance scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// 设置 Gin 模式
	gin.SetMode(a.cfg.Server.Mode)

	// 通过 eino 调用的 ChatModel 自动记录对话
	callback.SetupGlobalCallbacks(a.services.Recorder)

	handlers := handler.NewHandlers(a.services)
	r := router.SetupRouter(handlers, a.services.Auth, a.db.Ping)

	srv := &http.Server{
		Addr:         a.cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.services.Gate.Start(gctx)
	})

	if a.cfg.Maintenance.Enabled {
		g.Go(func() error {
			return a.services.Scheduler.Run(gctx)
		})
	} else {
		log.Info("Maintenance scheduler disabled")
	}

	// 等待中断信号或任一任务失败
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server exited")
	return nil
}
