package usecase

import (
	"context"

	pkgqueue "SigPull/pkg/queue"
)

// ValidateSymbolType is the queue message type for background validation.
const ValidateSymbolType = "validate_symbol"

// ValidateSymbolPayload is the job payload.
type ValidateSymbolPayload struct {
	Symbol string `json:"symbol"`
}

// ValidateSymbolJob runs exchange validation in the background so the cache
// is warm by the time a signal consumer asks for the verdict.
type ValidateSymbolJob struct {
	validator *AssetValidator
}

func NewValidateSymbolJob(v *AssetValidator) *ValidateSymbolJob {
	return &ValidateSymbolJob{validator: v}
}

func (j *ValidateSymbolJob) Name() string { return "validate-symbol" }

func (j *ValidateSymbolJob) Type() string { return ValidateSymbolType }

func (j *ValidateSymbolJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := pkgqueue.ParsePayload[ValidateSymbolPayload](payload)
	if err != nil {
		return err
	}
	_, err = j.validator.Validate(ctx, p.Symbol)
	return err
}

var _ pkgqueue.Job = (*ValidateSymbolJob)(nil)
