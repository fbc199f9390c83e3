package security

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-state-backup/core"
)

// ParameterAPI is the slice of the SSM client this package needs.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMSecretSource resolves secrets from the parameter store with decryption.
type SSMSecretSource struct {
	Client ParameterAPI
}

// NewSSMSecretSource returns a secret source backed by the given client.
func NewSSMSecretSource(client ParameterAPI) *SSMSecretSource {
	return &SSMSecretSource{Client: client}
}

// GetSecret fetches and decrypts the named parameter.
func (s *SSMSecretSource) GetSecret(ctx context.Context, name string) (string, error) {
	if s == nil || s.Client == nil {
		return "", core.NewError(
			"security: secret source is not configured",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			core.BackupErrorInternal,
			nil,
		)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", core.NewError(
			"security: secret name is required",
			goerrors.CategoryValidation,
			http.StatusUnprocessableEntity,
			core.BackupErrorValidation,
			nil,
		)
	}

	out, err := s.Client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", core.WrapError(
			err,
			goerrors.CategoryExternal,
			"security: fetch parameter",
			http.StatusBadGateway,
			core.BackupErrorUpstreamFailed,
			map[string]any{"parameter": name},
		)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", core.NewError(
			"security: parameter has no value",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			core.BackupErrorUpstreamFailed,
			map[string]any{"parameter": name},
		)
	}
	return *out.Parameter.Value, nil
}
