package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/capture"
	"github.com/goliatone/go-state-backup/command"
	"github.com/goliatone/go-state-backup/config"
	"github.com/goliatone/go-state-backup/security"
	"github.com/goliatone/go-state-backup/storage"
	"github.com/goliatone/go-state-backup/tfc"
	"github.com/goliatone/go-state-backup/webhook"
)

const maxBodyBytes = 1 << 20

func main() {
	_, logger := glog.Resolve("webhookd", nil, nil)
	logger = glog.Ensure(logger)

	if err := run(logger); err != nil {
		logger.Fatal("webhookd exited", "error", err.Error())
	}
}

func run(logger glog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewProvider(config.EnvRawLoader{}).Load(ctx, config.DefaultConfig())
	if err != nil {
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

	// The webhook salt is required before the first request can be verified.
	salt, err := secrets.GetSecret(ctx, cfg.SaltPath)
	if err != nil {
		return err
	}

	states := tfc.NewClient(tokens, cfg.TFCAddress)
	reporter := tfc.NewReporter()
	store := storage.NewS3ObjectStore(s3.NewFromConfig(awsCfg), cfg.Bucket)

	service := capture.NewService(states, store)
	service.DryRun = cfg.DryRun

	saveCmd := command.NewSaveStateCommand(service, reporter)
	subscription := command.Subscribe(saveCmd)
	defer subscription.Unsubscribe()

	dispatcher := webhook.NewDispatcher(
		webhook.SchemeVerifier{Secret: salt},
		command.NewDispatcherInvoker(),
		reporter,
	)
	dispatcher.DryRun = cfg.DryRun

	router := chi.NewRouter()
	router.HandleFunc("/", handleWebhook(dispatcher, logger))

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook listener started", "addr", cfg.ListenAddr, "dry_run", cfg.DryRun)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type webhookResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func handleWebhook(dispatcher *webhook.Dispatcher, logger glog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := readBody(w, r)
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}

		result := dispatcher.Dispatch(r.Context(), webhook.Request{
			Method:  r.Method,
			Headers: flattenHeaders(r.Header),
			Body:    body,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(result.StatusCode)
		if err := json.NewEncoder(w).Encode(webhookResponse{
			StatusCode: result.StatusCode,
			Body:       result.Body,
		}); err != nil {
			logger.WithContext(r.Context()).Error("response write failed",
				"delivery_id", result.DeliveryID, "error", err.Error())
		}
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}
	return flat
}
