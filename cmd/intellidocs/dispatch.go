package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"intellidocs/internal/config"
	"intellidocs/internal/pipeline"
	"intellidocs/pkg/kafka"
)

var dispatchPendingCmd = &cobra.Command{
	Use:   "dispatch-pending",
	Short: "Re-dispatch every document still in PENDING_PROCESSING",
	Long: `Finds documents whose processing task was lost (failed enqueue, shutdown with
a non-empty local queue, or a committed Kafka message that never ran) and dispatches
them again. With ingestion.dispatcher=local they are processed before the command returns.`,
	Args: cobra.NoArgs,
	RunE: runDispatchPending,
}

func init() {
	rootCmd.AddCommand(dispatchPendingCmd)
}

func runDispatchPending(cmd *cobra.Command, args []string) error {
	cfg := config.Conf
	if cfg.Database.Driver == "memory" {
		return errors.New("dispatch-pending 需要共享数据库, database.driver=memory 时没有可恢复的文档")
	}
	ctx, stop := signalContext()
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := pipeline.DispatchPending(ctx, a.docs, newCommandDispatcher(cfg, a))
	fmt.Fprintf(cmd.OutOrStdout(), "dispatched %d\n", n)
	return err
}

// newCommandDispatcher 为一次性命令选择派发方式：kafka 交给 worker，否则在当前进程同步处理。
func newCommandDispatcher(cfg config.Config, a *app) pipeline.Dispatcher {
	if cfg.Ingestion.Dispatcher == "kafka" {
		producer := kafka.NewProducer(cfg.Kafka)
		a.closers = append(a.closers, producer.Close)
		return pipeline.NewKafkaDispatcher(producer)
	}
	return pipeline.NewInlineDispatcher(a.processor)
}
