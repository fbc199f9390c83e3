package tfc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/core"
)

// Reporter posts run-task result updates to per-run callback URLs. Each run
// carries its own short-lived access token; the long-lived API token is
// never used here.
type Reporter struct {
	Client HTTPDoer
	Logger core.Logger
}

// NewReporter wires a callback reporter with sane HTTP timeouts.
func NewReporter() *Reporter {
	_, logger := glog.Resolve("tfc", nil, nil)
	return &Reporter{
		Client: &http.Client{Timeout: 30 * time.Second},
		Logger: glog.Ensure(logger),
	}
}

type taskResultBody struct {
	Data struct {
		Type       string `json:"type"`
		Attributes struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"attributes"`
	} `json:"data"`
}

// Report PATCHes a task-result update. Any callback status above 399 is a
// hard failure: the run is blocked until the control plane accepts a result.
func (r *Reporter) Report(ctx context.Context, callbackURL, accessToken, message string, status core.TaskStatus) error {
	if r == nil {
		return internalError("tfc: reporter is not configured", nil)
	}
	callbackURL = strings.TrimSpace(callbackURL)
	if callbackURL == "" || strings.TrimSpace(accessToken) == "" {
		return core.NewError(
			"tfc: callback url and access token are required",
			goerrors.CategoryValidation,
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}

	var body taskResultBody
	body.Data.Type = "task-result"
	body.Data.Attributes.Status = string(status)
	body.Data.Attributes.Message = message

	payload, err := json.Marshal(body)
	if err != nil {
		return internalError("tfc: encode task result", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return internalError("tfc: build task result request", err)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(accessToken))
	req.Header.Set("Content-Type", "application/vnd.api+json")

	res, err := r.doer().Do(req)
	if err != nil {
		return upstreamError("tfc: task result request failed", err, map[string]any{
			"status": string(status),
		})
	}
	defer res.Body.Close()

	if res.StatusCode > 399 {
		return upstreamError("tfc: task result rejected", nil, map[string]any{
			"status":        string(status),
			"callback_code": res.StatusCode,
		})
	}

	if r.Logger != nil {
		r.Logger.WithContext(ctx).Info("task result reported",
			"status", string(status), "callback_code", res.StatusCode)
	}
	return nil
}

func (r *Reporter) doer() HTTPDoer {
	if r != nil && r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}
