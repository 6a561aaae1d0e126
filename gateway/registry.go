package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

const (
	ModelDeepseek    = "deepseek-r1:70b"
	ModelLlamaVision = "llama3.2-vision"
)

// refresh window for upstream endpoint discovery
const registryRefreshInterval = 10 * time.Second

type ModelNotFoundError struct {
	Model string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q is not supported", e.Model)
}

type UpstreamUnavailableError struct {
	Err error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Err == nil {
		return "secret network upstream unavailable"
	}
	return fmt.Sprintf("secret network upstream unavailable: %s", e.Err.Error())
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

// ModelDescriptor is read-only model metadata, defined at process start.
type ModelDescriptor struct {
	ID                     string   `json:"id"`
	Description            string   `json:"description"`
	Capabilities           []string `json:"capabilities"`
	MaxTokens              int      `json:"max_tokens"`
	RecommendedTemperature float64  `json:"recommended_temperature"`
	Multimodal             bool     `json:"multimodal"`

	// UseModelName, when set, is sent upstream instead of ID.
	UseModelName string `json:"-"`
}

// UpstreamModelName is the identifier the hub should receive.
func (d ModelDescriptor) UpstreamModelName() string {
	if name := strings.TrimSpace(d.UseModelName); name != "" {
		return name
	}
	return d.ID
}

func defaultDescriptors() map[string]ModelDescriptor {
	return map[string]ModelDescriptor{
		ModelDeepseek: {
			ID:                     ModelDeepseek,
			Description:            "Advanced language model for text generation and analysis",
			Capabilities:           []string{"text generation", "code generation", "analysis"},
			MaxTokens:              8192,
			RecommendedTemperature: 0.7,
		},
		ModelLlamaVision: {
			ID:                     ModelLlamaVision,
			Description:            "Multimodal model capable of processing both text and images",
			Capabilities:           []string{"image analysis", "text generation", "visual reasoning"},
			MaxTokens:              4096,
			RecommendedTemperature: 0.8,
			Multimodal:             true,
		},
	}
}

// ModelRegistry maps model identifiers to metadata and resolves which
// upstream endpoint serves them. Candidate endpoints come from config; the
// registry confirms them with a listing probe and caches the winner behind
// a short refresh window.
type ModelRegistry struct {
	mu          sync.Mutex
	descriptors map[string]ModelDescriptor
	candidates  []string
	probeClient *http.Client

	activeEndpoint string
	upstreamModels []string
	lastRefresh    time.Time
}

func NewModelRegistry(endpoints []string) *ModelRegistry {
	candidates := make([]string, 0, len(endpoints))
	seen := map[string]bool{}
	for _, raw := range endpoints {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		raw = strings.TrimSuffix(raw, "/")
		if seen[raw] {
			continue
		}
		seen[raw] = true
		candidates = append(candidates, raw)
	}

	return &ModelRegistry{
		descriptors: defaultDescriptors(),
		candidates:  candidates,
		probeClient: &http.Client{Timeout: 2 * time.Second},
	}
}

// Resolve returns metadata for a known model identifier. Unknown
// identifiers fail before any upstream call is made.
func (r *ModelRegistry) Resolve(modelID string) (ModelDescriptor, error) {
	modelID = strings.TrimSpace(modelID)

	r.mu.Lock()
	defer r.mu.Unlock()

	desc, found := r.descriptors[modelID]
	if !found {
		return ModelDescriptor{}, &ModelNotFoundError{Model: modelID}
	}
	return desc, nil
}

// Descriptors returns the full catalog sorted by id.
func (r *ModelRegistry) Descriptors() []ModelDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ModelDescriptor, 0, len(r.descriptors))
	for _, desc := range r.descriptors {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *ModelRegistry) CatalogIDs() []string {
	descs := r.Descriptors()
	ids := make([]string, 0, len(descs))
	for _, desc := range descs {
		ids = append(ids, desc.ID)
	}
	return ids
}

// ResolveEndpoint returns the confirmed upstream base URL serving modelID.
// Unknown identifiers fail with ModelNotFoundError before any network
// traffic; a confirmed-empty upstream fails with UpstreamUnavailableError.
func (r *ModelRegistry) ResolveEndpoint(ctx context.Context, modelID string) (string, error) {
	if _, err := r.Resolve(modelID); err != nil {
		return "", err
	}

	if err := r.refresh(ctx, false); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeEndpoint == "" {
		return "", &UpstreamUnavailableError{}
	}
	return r.activeEndpoint, nil
}

// AvailableModels returns the model identifiers the upstream currently
// advertises.
func (r *ModelRegistry) AvailableModels(ctx context.Context) ([]string, error) {
	if err := r.refresh(ctx, false); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.upstreamModels...), nil
}

func (r *ModelRegistry) refresh(ctx context.Context, force bool) error {
	r.mu.Lock()
	if !force && r.activeEndpoint != "" && time.Since(r.lastRefresh) < registryRefreshInterval {
		r.mu.Unlock()
		return nil
	}
	candidates := append([]string(nil), r.candidates...)
	r.mu.Unlock()

	if len(candidates) == 0 {
		return &UpstreamUnavailableError{Err: fmt.Errorf("no upstream endpoints configured")}
	}

	var lastErr error
	for _, endpoint := range candidates {
		models, err := r.fetchModels(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if len(models) == 0 {
			lastErr = fmt.Errorf("endpoint %s returned no models", endpoint)
			continue
		}

		r.mu.Lock()
		r.activeEndpoint = endpoint
		r.upstreamModels = models
		r.lastRefresh = time.Now()
		r.mu.Unlock()
		return nil
	}

	return &UpstreamUnavailableError{Err: lastErr}
}

func (r *ModelRegistry) fetchModels(ctx context.Context, endpoint string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/api/v1/models", nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.probeClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("models endpoint status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	models := make([]string, 0)
	for _, item := range gjson.GetBytes(body, "models").Array() {
		name := strings.TrimSpace(item.String())
		if item.IsObject() {
			name = strings.TrimSpace(item.Get("name").String())
		}
		if name != "" {
			models = append(models, name)
		}
	}
	return models, nil
}
