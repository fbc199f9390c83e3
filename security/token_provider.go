package security

import (
	"context"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-state-backup/core"
)

// CachedTokenProvider resolves the control-plane API token from a secret
// source once and caches it for the process lifetime. A failed fetch is not
// cached, so a transient parameter-store error heals on the next call.
type CachedTokenProvider struct {
	Source core.SecretSource
	Name   string

	mu    sync.Mutex
	token string
}

// NewCachedTokenProvider builds a provider for the named secret.
func NewCachedTokenProvider(source core.SecretSource, name string) *CachedTokenProvider {
	return &CachedTokenProvider{Source: source, Name: name}
}

// Token returns the cached credential, fetching it on first use.
func (p *CachedTokenProvider) Token(ctx context.Context) (string, error) {
	if p == nil || p.Source == nil {
		return "", core.NewError(
			"security: token provider is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	value, err := p.Source.GetSecret(ctx, p.Name)
	if err != nil {
		return "", err
	}
	p.token = strings.TrimSpace(value)
	if p.token == "" {
		return "", core.NewError(
			"security: resolved token is empty",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			core.BackupErrorUpstreamFailed,
			map[string]any{"parameter": p.Name},
		)
	}
	return p.token, nil
}
