package conversation

import (
	"context"

	"github.com/wolfman30/healthvoice-triage/pkg/logging"
)

// FallbackInferenceClient tries the primary client and, on failure, the
// fallback. A nil fallback makes it a passthrough.
type FallbackInferenceClient struct {
	primary  InferenceClient
	fallback InferenceClient
	logger   *logging.Logger
}

// NewFallbackInferenceClient creates a failover-capable inference client.
func NewFallbackInferenceClient(primary, fallback InferenceClient, logger *logging.Logger) *FallbackInferenceClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackInferenceClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Infer calls the primary client, retrying with the fallback when it fails.
func (c *FallbackInferenceClient) Infer(ctx context.Context, req InferenceRequest) (*InferenceResponse, error) {
	resp, err := c.primary.Infer(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("primary inference failed, attempting fallback",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return nil, err
	}

	fallbackResp, fallbackErr := c.fallback.Infer(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("fallback inference also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return nil, fallbackErr
	}

	c.logger.Info("fallback inference succeeded after primary failure")
	return fallbackResp, nil
}
