package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"intellidocs/internal/config"
	"intellidocs/internal/handler"
	"intellidocs/internal/pipeline"
	"intellidocs/internal/service"
	"intellidocs/pkg/kafka"
	"intellidocs/pkg/llm"
	"intellidocs/pkg/log"
	"intellidocs/pkg/token"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and in-process workers when ingestion.dispatcher=local)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Conf
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, ctx := errgroup.WithContext(ctx)

	// 1. 派发方式
	var dispatcher pipeline.Dispatcher
	switch cfg.Ingestion.Dispatcher {
	case "local":
		local := pipeline.NewLocalDispatcher(a.processor, cfg.Ingestion.LocalWorkers, cfg.Ingestion.QueueSize)
		g.Go(func() error { return local.Run(ctx) })
		dispatcher = local
	default:
		producer := kafka.NewProducer(cfg.Kafka)
		a.closers = append(a.closers, producer.Close)
		dispatcher = pipeline.NewKafkaDispatcher(producer)
	}

	// 启动时补派上次遗留在 PENDING_PROCESSING 的文档
	if cfg.Ingestion.RedispatchOnStart {
		g.Go(func() error {
			if _, err := pipeline.DispatchPending(ctx, a.docs, dispatcher); err != nil {
				log.Warnf("重新派发待处理文档失败: %v", err)
			}
			return nil
		})
	}

	// 2. Service
	documentService := service.NewDocumentService(a.docs, a.store, dispatcher, a.mirror)
	searchService := service.NewSearchService(a.embedder, a.searcher, cfg.Retrieval)
	answerService := service.NewAnswerService(searchService, llm.NewClient(cfg.LLM), cfg.Retrieval, cfg.LLM)

	// 3. 路由
	router := handler.NewRouter(handler.RouterDeps{
		Mode:        cfg.Server.Mode,
		JWT:         token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours),
		Documents:   documentService,
		Search:      searchService,
		Answer:      answerService,
		DefaultTopK: cfg.Retrieval.DefaultTopK,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	})

	// 等待中断信号以实现优雅停机
	g.Go(func() error {
		<-ctx.Done()
		log.Info("接收到停机信号，正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("服务已优雅关闭")
	return nil
}
