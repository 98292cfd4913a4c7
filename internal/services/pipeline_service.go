package services

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "receiptwise_go_backend/internal/errors"
	"receiptwise_go_backend/internal/models"

	"github.com/rs/zerolog/log"
)

// ReceiptResult is the success payload for a processed receipt.
type ReceiptResult struct {
	Receipt        *models.Receipt
	ProcessingTime int64
	Quota          models.QuotaInfo
}

// AssistantResult is the success payload for an assistant answer.
type AssistantResult struct {
	Response       string
	ProcessingTime int64
	Quota          models.QuotaInfo
}

// PipelineService orchestrates a request: validate input, check quota,
// invoke the model, record usage, shape the response. Each stage is
// terminal on its first failure and every failure path is logged.
type PipelineService struct {
	store           UsageStore
	gateway         ModelGateway
	policy          *QuotaPolicy
	maxReceiptChars int
	maxPromptChars  int
}

// NewPipelineService wires the pipeline with its collaborators.
func NewPipelineService(store UsageStore, gateway ModelGateway, policy *QuotaPolicy, maxReceiptChars, maxPromptChars int) *PipelineService {
	return &PipelineService{
		store:           store,
		gateway:         gateway,
		policy:          policy,
		maxReceiptChars: maxReceiptChars,
		maxPromptChars:  maxPromptChars,
	}
}

// ProcessReceipt runs the full extraction pipeline for a receipt text.
func (s *PipelineService) ProcessReceipt(ctx context.Context, userID, endpoint, text string) (*ReceiptResult, error) {
	start := time.Now()

	if strings.TrimSpace(text) == "" {
		return nil, s.fail(ctx, userID, endpoint, start,
			apperrors.New400Error(apperrors.CodeInvalidText, "Receipt text is required"))
	}
	if len(text) > s.maxReceiptChars {
		return nil, s.fail(ctx, userID, endpoint, start,
			apperrors.New400Error(apperrors.CodeTextTooLong, "Receipt text exceeds the maximum length"))
	}

	now := time.Now().UTC()
	storeUnavailable, err := s.checkQuota(ctx, userID, now)
	if err != nil {
		return nil, s.fail(ctx, userID, endpoint, start, err)
	}

	receipt, gwErr := s.gateway.ExtractReceipt(ctx, text)
	if gwErr != nil {
		return nil, s.fail(ctx, userID, endpoint, start,
			mapGatewayError(gwErr, apperrors.CodeProcessingFailed, "Failed to process receipt"))
	}

	s.recordUsage(ctx, userID, now)

	return &ReceiptResult{
		Receipt:        receipt,
		ProcessingTime: time.Since(start).Milliseconds(),
		Quota:          s.refreshQuota(ctx, userID, now, storeUnavailable),
	}, nil
}

// AnswerPrompt runs the assistant pipeline for a free-form prompt.
func (s *PipelineService) AnswerPrompt(ctx context.Context, userID, endpoint, prompt string) (*AssistantResult, error) {
	start := time.Now()

	if strings.TrimSpace(prompt) == "" {
		return nil, s.fail(ctx, userID, endpoint, start,
			apperrors.New400Error(apperrors.CodeInvalidPrompt, "Prompt is required"))
	}
	if len(prompt) > s.maxPromptChars {
		return nil, s.fail(ctx, userID, endpoint, start,
			apperrors.New400Error(apperrors.CodePromptTooLong, "Prompt exceeds the maximum length"))
	}

	now := time.Now().UTC()
	storeUnavailable, err := s.checkQuota(ctx, userID, now)
	if err != nil {
		return nil, s.fail(ctx, userID, endpoint, start, err)
	}

	answer, gwErr := s.gateway.AnswerQuestion(ctx, prompt)
	if gwErr != nil {
		return nil, s.fail(ctx, userID, endpoint, start,
			mapGatewayError(gwErr, apperrors.CodeAIProcessingError, "AI assistant failed to respond"))
	}

	s.recordUsage(ctx, userID, now)

	return &AssistantResult{
		Response:       answer,
		ProcessingTime: time.Since(start).Milliseconds(),
		Quota:          s.refreshQuota(ctx, userID, now, storeUnavailable),
	}, nil
}

// QuotaSummary returns the current quota view for a user.
func (s *PipelineService) QuotaSummary(ctx context.Context, userID string) models.QuotaInfo {
	now := time.Now().UTC()
	usage, err := s.store.GetUsage(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Usage store unreachable during quota summary")
		return s.policy.SummarizeUnavailable()
	}
	return s.policy.Summarize(usage, now)
}

// checkQuota consults the policy. When the usage store is unreachable the
// request is allowed anyway (fail open) and the summary reports it.
func (s *PipelineService) checkQuota(ctx context.Context, userID string, now time.Time) (bool, *apperrors.CustomError) {
	usage, err := s.store.GetUsage(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Usage store unreachable, failing open on quota check")
		return true, nil
	}

	decision := s.policy.Evaluate(usage, now)
	if !decision.Allowed {
		return false, apperrors.New429Error(apperrors.CodeQuotaExceeded, decision.Reason, map[string]interface{}{
			"upgrade": "Upgrade to premium for unlimited receipt scans",
		})
	}

	return false, nil
}

// recordUsage is best-effort: a write failure never invalidates the
// already-computed response.
func (s *PipelineService) recordUsage(ctx context.Context, userID string, now time.Time) {
	if err := s.store.RecordUsage(ctx, userID, now); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to record usage")
	}
}

func (s *PipelineService) refreshQuota(ctx context.Context, userID string, now time.Time, storeUnavailable bool) models.QuotaInfo {
	if storeUnavailable {
		return s.policy.SummarizeUnavailable()
	}
	usage, err := s.store.GetUsage(ctx, userID)
	if err != nil {
		return s.policy.SummarizeUnavailable()
	}
	return s.policy.Summarize(usage, now)
}

func (s *PipelineService) fail(ctx context.Context, userID, endpoint string, start time.Time, err *apperrors.CustomError) error {
	message := err.Message
	if err.Internal != nil {
		message = err.Internal.Error()
	}
	s.store.LogError(ctx, userID, endpoint, message, time.Since(start))
	return err
}

// mapGatewayError collapses gateway failures at the boundary: config
// errors become a generic service-unavailable response, upstream and parse
// errors a generic processing failure. Full detail stays in diagnostics.
func mapGatewayError(err error, code, message string) *apperrors.CustomError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Kind == GatewayErrorConfig {
		return apperrors.New503Error(code, err)
	}
	return apperrors.New500Error(code, err).WithMessage(message)
}
