package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"receiptwise_go_backend/internal/models"
)

// GatewayErrorKind classifies model gateway failures. Configuration and
// parse failures are distinct from upstream HTTP failures so the boundary
// can collapse them differently.
type GatewayErrorKind int

const (
	GatewayErrorConfig GatewayErrorKind = iota
	GatewayErrorUpstream
	GatewayErrorParse
)

// GatewayError carries the failure kind plus upstream status and body when
// the upstream responded at all.
type GatewayError struct {
	Kind       GatewayErrorKind
	StatusCode int
	Body       string
	Message    string
}

func (e *GatewayError) Error() string {
	if e.Kind == GatewayErrorUpstream {
		return fmt.Sprintf("%s: status %d: %s", e.Message, e.StatusCode, e.Body)
	}
	return e.Message
}

const (
	extractionMaxTokens   = 1500
	extractionTemperature = 0.1
	assistantMaxTokens    = 2000
	assistantTemperature  = 0.7
)

const assistantPersona = "You are Wise, a friendly personal finance assistant inside a receipt scanning app. " +
	"You help users understand their spending, suggest budgeting ideas and answer shopping questions. " +
	"Keep answers short, practical and encouraging."

// GatewayService issues one HTTP request per call to an OpenAI-compatible
// chat completions endpoint. All prompt construction and response parsing
// lives here so the rest of the system only deals in typed values.
type GatewayService struct {
	httpClient      *http.Client
	apiKey          string
	baseURL         string
	extractionModel string
	assistantModel  string
}

// NewGatewayService creates a gateway for the configured endpoint.
func NewGatewayService(apiKey, baseURL, extractionModel, assistantModel string) *GatewayService {
	return &GatewayService{
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		apiKey:          apiKey,
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		extractionModel: extractionModel,
		assistantModel:  assistantModel,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ExtractReceipt sends the receipt text to the model with a fixed
// extraction prompt and normalizes the JSON it returns.
func (s *GatewayService) ExtractReceipt(ctx context.Context, text string) (*models.Receipt, error) {
	if err := s.checkCredential(); err != nil {
		return nil, err
	}

	raw, err := s.complete(ctx, s.extractionModel, []chatMessage{
		{Role: "user", Content: buildExtractionPrompt(text)},
	}, extractionMaxTokens, extractionTemperature)
	if err != nil {
		return nil, err
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &parsed); err != nil {
		return nil, &GatewayError{
			Kind:    GatewayErrorParse,
			Message: fmt.Sprintf("model output is not valid JSON: %v", err),
		}
	}

	return NormalizeReceipt(parsed, time.Now().UTC()), nil
}

// AnswerQuestion sends a free-form prompt to the assistant persona.
func (s *GatewayService) AnswerQuestion(ctx context.Context, prompt string) (string, error) {
	if err := s.checkCredential(); err != nil {
		return "", err
	}

	answer, err := s.complete(ctx, s.assistantModel, []chatMessage{
		{Role: "system", Content: assistantPersona},
		{Role: "user", Content: prompt},
	}, assistantMaxTokens, assistantTemperature)
	if err != nil {
		return "", err
	}

	return answer, nil
}

// checkCredential fails fast before any network I/O when the server-held
// key is absent or does not match the provider's format.
func (s *GatewayService) checkCredential() *GatewayError {
	if s.apiKey == "" || !strings.HasPrefix(s.apiKey, "sk-") {
		return &GatewayError{
			Kind:    GatewayErrorConfig,
			Message: "model API key is missing or malformed",
		}
	}
	return nil
}

func (s *GatewayService) complete(ctx context.Context, model string, messages []chatMessage, maxTokens int, temperature float64) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &GatewayError{Kind: GatewayErrorParse, Message: fmt.Sprintf("failed to encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &GatewayError{Kind: GatewayErrorUpstream, Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &GatewayError{Kind: GatewayErrorUpstream, Message: fmt.Sprintf("model request failed: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GatewayError{Kind: GatewayErrorUpstream, Message: fmt.Sprintf("failed to read model response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GatewayError{
			Kind:       GatewayErrorUpstream,
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Message:    "model endpoint returned an error",
		}
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &GatewayError{Kind: GatewayErrorParse, Message: fmt.Sprintf("malformed model response: %v", err)}
	}

	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return "", &GatewayError{Kind: GatewayErrorParse, Message: "model response carried no textual content"}
	}

	return completion.Choices[0].Message.Content, nil
}

func buildExtractionPrompt(text string) string {
	var b strings.Builder

	b.WriteString("Extract the structured receipt data from the text below.\n")
	b.WriteString("Respond with ONLY a JSON object, no prose, matching exactly this shape:\n")
	b.WriteString(`{"storeName": string, "date": "YYYY-MM-DD", "category": string, "items": [{"name": string, "price": number, "quantity": number, "category": string}]}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Allowed categories: " + strings.Join(ReceiptCategories, ", ") + ".\n")
	b.WriteString("- For weight-priced items (e.g. \"$2.99/lb 0.3 lb\"): \"price\" is the per-unit rate and \"quantity\" is the purchased weight, which may be fractional. Never put the line total in \"price\".\n")
	b.WriteString("- For regular items the quantity is 1 unless stated otherwise.\n")
	b.WriteString("- Omit a field rather than guessing when the receipt does not show it.\n")
	b.WriteString("\nReceipt text:\n")
	b.WriteString(text)

	return b.String()
}
