package main

import (
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"intellidocs/internal/config"
	"intellidocs/pkg/kafka"
	"intellidocs/pkg/log"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume document tasks from Kafka and run the ingestion pipeline",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg := config.Conf
	if cfg.Database.Driver == "memory" {
		return errors.New("worker 需要共享数据库, database.driver=memory 时请使用 serve 的本地 worker")
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	workers := cfg.Kafka.Workers
	if workers <= 0 {
		workers = 1
	}
	// 同一个 consumer group 内的多个 reader 分摊分区，共享同一个模型实例
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return kafka.StartConsumer(ctx, cfg.Kafka, a.processor)
		})
	}
	log.Infof("已启动 %d 个 Kafka 消费者", workers)
	return g.Wait()
}
