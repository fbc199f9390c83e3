package security

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type stubParameterAPI struct {
	lastInput *ssm.GetParameterInput
	output    *ssm.GetParameterOutput
	err       error
}

func (s *stubParameterAPI) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	s.lastInput = params
	return s.output, s.err
}

func TestGetSecretDecrypts(t *testing.T) {
	api := &stubParameterAPI{
		output: &ssm.GetParameterOutput{
			Parameter: &types.Parameter{Value: aws.String("hunter2")},
		},
	}
	source := NewSSMSecretSource(api)

	value, err := source.GetSecret(context.Background(), "/tfc/salt")
	if err != nil {
		t.Fatalf("get secret: %v", err)
	}
	if value != "hunter2" {
		t.Fatalf("unexpected value %q", value)
	}
	if api.lastInput == nil || aws.ToString(api.lastInput.Name) != "/tfc/salt" {
		t.Fatalf("unexpected parameter name in request: %+v", api.lastInput)
	}
	if !aws.ToBool(api.lastInput.WithDecryption) {
		t.Fatalf("expected decryption to be requested")
	}
}

func TestGetSecretPropagatesFailure(t *testing.T) {
	api := &stubParameterAPI{err: errors.New("access denied")}
	if _, err := NewSSMSecretSource(api).GetSecret(context.Background(), "/tfc/salt"); err == nil {
		t.Fatalf("expected fetch failure to propagate")
	}
}

func TestGetSecretRejectsEmptyValue(t *testing.T) {
	api := &stubParameterAPI{output: &ssm.GetParameterOutput{Parameter: &types.Parameter{}}}
	if _, err := NewSSMSecretSource(api).GetSecret(context.Background(), "/tfc/salt"); err == nil {
		t.Fatalf("expected empty parameter to fail")
	}
}

func TestGetSecretRequiresName(t *testing.T) {
	if _, err := NewSSMSecretSource(&stubParameterAPI{}).GetSecret(context.Background(), "  "); err == nil {
		t.Fatalf("expected blank name to fail")
	}
}
