package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/capture"
	"github.com/goliatone/go-state-backup/config"
	"github.com/goliatone/go-state-backup/dlq"
	"github.com/goliatone/go-state-backup/queue"
	"github.com/goliatone/go-state-backup/security"
	"github.com/goliatone/go-state-backup/storage"
	"github.com/goliatone/go-state-backup/tfc"
)

const (
	pollInterval = time.Minute
	batchSize    = 10
)

func main() {
	_, logger := glog.Resolve("dlqd", nil, nil)
	logger = glog.Ensure(logger)

	if err := run(logger); err != nil {
		logger.Fatal("dlqd exited", "error", err.Error())
	}
}

func run(logger glog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewProvider(config.EnvRawLoader{}).Load(ctx, config.DefaultConfig())
	if err != nil {
		return err
	}
	if err := cfg.ValidateReprocessor(); err != nil {
		return err
	}

	var awsOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		awsOpts = append(awsOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return err
	}

	secrets := security.NewSSMSecretSource(ssm.NewFromConfig(awsCfg))
	tokens := security.NewCachedTokenProvider(secrets, cfg.TokenPath)

	states := tfc.NewClient(tokens, cfg.TFCAddress)
	store := storage.NewS3ObjectStore(s3.NewFromConfig(awsCfg), cfg.Bucket)

	service := capture.NewService(states, store)
	service.DryRun = cfg.DryRun

	transport := queue.NewSQSTransport(sqs.NewFromConfig(awsCfg), cfg.QueueURL)
	reprocessor := dlq.NewReprocessor(transport, service, store)

	logger.Info("dead letter reprocessor started",
		"queue_url", cfg.QueueURL, "dry_run", cfg.DryRun, "poll_interval", pollInterval.String())

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		result, err := reprocessor.Run(ctx, batchSize)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("reprocessing pass failed", "error", err.Error())
		} else if result.Processed+result.Skipped+result.Failed > 0 {
			logger.Info("reprocessing pass finished",
				"processed", result.Processed, "skipped", result.Skipped, "failed", result.Failed)
		}

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
