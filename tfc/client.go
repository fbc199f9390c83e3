package tfc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-state-backup/core"
)

// DefaultAddress is the hosted control plane endpoint.
const DefaultAddress = "https://app.terraform.io"

// downloadChunkSize is the copy buffer for state payload streaming.
const downloadChunkSize = 64 * 1024

// HTTPDoer abstracts the HTTP client so transport behavior stays testable.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the control plane's state-version API. Address defaults to
// the hosted endpoint.
type Client struct {
	Client  HTTPDoer
	Address string
	Tokens  core.TokenProvider
	Logger  core.Logger
}

// NewClient wires a control plane client with sane HTTP timeouts.
func NewClient(tokens core.TokenProvider, address string) *Client {
	_, logger := glog.Resolve("tfc", nil, nil)
	return &Client{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Address: address,
		Tokens:  tokens,
		Logger:  glog.Ensure(logger),
	}
}

type stateVersionEnvelope struct {
	Data struct {
		Attributes struct {
			HostedStateDownloadURL string `json:"hosted-state-download-url"`
			CreatedAt              string `json:"created-at"`
		} `json:"attributes"`
	} `json:"data"`
}

// CurrentStateVersion resolves the workspace's current state version record.
func (c *Client) CurrentStateVersion(ctx context.Context, workspaceID string) (core.StateVersion, error) {
	if c == nil || c.Tokens == nil {
		return core.StateVersion{}, internalError("tfc: client is not configured", nil)
	}
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return core.StateVersion{}, core.NewError(
			"tfc: workspace id is required",
			goerrors.CategoryValidation,
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}

	token, err := c.Tokens.Token(ctx)
	if err != nil {
		return core.StateVersion{}, err
	}

	endpoint := fmt.Sprintf("%s/api/v2/workspaces/%s/current-state-version", c.address(), workspaceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.StateVersion{}, internalError("tfc: build state version request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/vnd.api+json")

	res, err := c.doer().Do(req)
	if err != nil {
		return core.StateVersion{}, upstreamError("tfc: state version request failed", err, map[string]any{
			"workspace_id": workspaceID,
		})
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return core.StateVersion{}, upstreamError("tfc: state version request rejected", nil, map[string]any{
			"workspace_id": workspaceID,
			"status":       res.StatusCode,
			"body":         strings.TrimSpace(string(body)),
		})
	}

	var envelope stateVersionEnvelope
	if err := decodeJSON(res.Body, &envelope); err != nil {
		return core.StateVersion{}, upstreamError("tfc: decode state version response", err, map[string]any{
			"workspace_id": workspaceID,
		})
	}

	downloadURL := strings.TrimSpace(envelope.Data.Attributes.HostedStateDownloadURL)
	if downloadURL == "" {
		return core.StateVersion{}, upstreamError("tfc: state version has no download url", nil, map[string]any{
			"workspace_id": workspaceID,
		})
	}
	createdAt, err := core.ParseStateTimestamp(envelope.Data.Attributes.CreatedAt)
	if err != nil {
		return core.StateVersion{}, upstreamError("tfc: state version has unreadable created-at", err, map[string]any{
			"workspace_id": workspaceID,
		})
	}

	if c.Logger != nil {
		c.Logger.WithContext(ctx).Debug("state version resolved",
			"workspace_id", workspaceID,
			"created_at", core.FormatStateTimestamp(createdAt))
	}
	return core.StateVersion{DownloadURL: downloadURL, CreatedAt: createdAt}, nil
}

// DownloadTo streams the archived state payload into w. The download URL is
// pre-signed by the control plane; no bearer token is attached.
func (c *Client) DownloadTo(ctx context.Context, downloadURL string, w io.Writer) error {
	if c == nil {
		return internalError("tfc: client is not configured", nil)
	}
	downloadURL = strings.TrimSpace(downloadURL)
	if downloadURL == "" {
		return core.NewError(
			"tfc: download url is required",
			goerrors.CategoryValidation,
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return internalError("tfc: build state download request", err)
	}

	res, err := c.doer().Do(req)
	if err != nil {
		return upstreamError("tfc: state download failed", err, nil)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return upstreamError("tfc: state download rejected", nil, map[string]any{
			"status": res.StatusCode,
		})
	}

	buf := make([]byte, downloadChunkSize)
	if _, err := io.CopyBuffer(w, res.Body, buf); err != nil {
		return upstreamError("tfc: stream state payload", err, nil)
	}
	return nil
}

func (c *Client) address() string {
	if c != nil && strings.TrimSpace(c.Address) != "" {
		return strings.TrimRight(strings.TrimSpace(c.Address), "/")
	}
	return DefaultAddress
}

func (c *Client) doer() HTTPDoer {
	if c != nil && c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
