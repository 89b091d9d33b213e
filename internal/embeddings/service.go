package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/plnlabs/vectord/internal/logging"
	"github.com/plnlabs/vectord/internal/textsafety"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure after the
	// degraded path was exhausted.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider converts text into fixed-length vectors. One instance wraps
// exactly one (provider, model) pair and never produces vectors of two
// different lengths.
type Provider interface {
	// EmbedQuery generates an embedding for a single text.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedDocuments generates embeddings for multiple texts. The result
	// is positionally aligned with the input: an item whose embedding
	// cannot be generated even through the degraded path contributes a
	// zero vector, never a shorter result.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the declared vector length for this instance.
	Dimension() int
}

// Service implements Provider over an HTTP embedding API. Supported wire
// formats: TEI ("tei") and OpenAI-compatible ("openai", "gemini").
type Service struct {
	modelID string
	model   ModelConfig
	apiKey  string
	client  *http.Client
	guard   *textsafety.Guard
	logger  *logging.Logger
	metrics *Metrics
}

// NewService creates a provider instance for one model.
func NewService(modelID string, model ModelConfig, guard *textsafety.Guard, logger *logging.Logger, timeout time.Duration) (*Service, error) {
	if model.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required for model %q", ErrInvalidConfig, modelID)
	}
	switch model.Provider {
	case "openai", "gemini", "tei":
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, model.Provider)
	}
	if guard == nil {
		guard = textsafety.NewGuard(nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	var apiKey string
	if model.APIKeyEnv != "" {
		apiKey = os.Getenv(model.APIKeyEnv)
	}

	return &Service{
		modelID: modelID,
		model:   model,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		guard:   guard,
		logger:  logger.Named("embeddings").With(zap.String("model", modelID)),
		metrics: NewMetrics(logger.Underlying()),
	}, nil
}

// Dimension returns the declared vector length for this instance.
func (s *Service) Dimension() int {
	if s.model.Dimension > 0 {
		return s.model.Dimension
	}
	return DefaultDimension
}

// EmbedQuery generates an embedding for a single text. The input is
// sanitized first; on a remote rejection the call is retried once with a
// printable-ASCII rendering of the text before the error is surfaced.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.model.Model, "embed_query", time.Since(start), 1, genErr)
	}()

	clean := s.guard.Sanitize(text)

	vectors, err := s.embed(ctx, []string{clean})
	if err == nil {
		return vectors[0], nil
	}

	// Degraded path: one retry with pure-ASCII input. Some upstream APIs
	// reject multibyte sequences their tokenizer mishandles.
	ascii := textsafety.ASCIIFallback(clean)
	if textsafety.Verify(ascii) != nil {
		ascii = textsafety.Placeholder
	}
	s.logger.Warn(ctx, "embedding call failed, retrying with ascii fallback", zap.Error(err))

	vectors, retryErr := s.embed(ctx, []string{ascii})
	if retryErr != nil {
		genErr = fmt.Errorf("%w: %v (ascii retry: %v)", ErrEmbeddingFailed, err, retryErr)
		return nil, genErr
	}
	return vectors[0], nil
}

// EmbedDocuments generates embeddings for multiple texts. A batch failure
// degrades to per-item calls; a per-item failure contributes a zero vector
// of the already-established batch dimensionality so positional alignment
// with the input is preserved.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.model.Model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	clean := make([]string, len(texts))
	for i, text := range texts {
		clean[i] = s.guard.Sanitize(text)
	}

	vectors, err := s.embed(ctx, clean)
	if err == nil {
		return vectors, nil
	}

	s.logger.Warn(ctx, "batch embedding failed, degrading to per-item calls",
		zap.Int("batch_size", len(clean)),
		zap.Error(err),
	)

	result := make([][]float32, 0, len(clean))
	for i, text := range clean {
		vector, itemErr := s.EmbedQuery(ctx, text)
		if itemErr != nil {
			dim := s.batchDimension(result)
			s.logger.Warn(ctx, "item embedding failed, substituting zero vector",
				zap.Int("item", i),
				zap.Int("dimension", dim),
				zap.Error(itemErr),
			)
			vector = make([]float32, dim)
		}
		result = append(result, vector)
	}
	return result, nil
}

// batchDimension returns the dimensionality established by earlier items in
// the batch, or the instance default when none is known yet.
func (s *Service) batchDimension(done [][]float32) int {
	for _, v := range done {
		if len(v) > 0 {
			return len(v)
		}
	}
	return s.Dimension()
}

// embed issues one embedding request for the given inputs.
func (s *Service) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	switch s.model.Provider {
	case "tei":
		return s.embedTEI(ctx, inputs)
	default:
		return s.embedOpenAI(ctx, inputs)
	}
}

// teiRequest is the request body for the TEI embed endpoint.
type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

func (s *Service) embedTEI(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(teiRequest{Inputs: inputs, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := s.post(ctx, s.model.BaseURL+"/embed", body)
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	if err := json.Unmarshal(respBody, &vectors); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmbeddingFailed, len(vectors), len(inputs))
	}
	return vectors, nil
}

// openAIRequest is the request body for OpenAI-compatible endpoints.
type openAIRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (s *Service) embedOpenAI(ctx context.Context, inputs []string) ([][]float32, error) {
	body, err := json.Marshal(openAIRequest{Model: s.model.Model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	respBody, err := s.post(ctx, s.model.BaseURL+"/embeddings", body)
	if err != nil {
		return nil, err
	}

	var decoded openAIResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingFailed, len(decoded.Data), len(inputs))
	}

	vectors := make([][]float32, len(inputs))
	for _, item := range decoded.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (s *Service) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// Ensure Service implements Provider.
var _ Provider = (*Service)(nil)
