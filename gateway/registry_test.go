package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolveKnownModels(t *testing.T) {
	reg := NewModelRegistry(nil)

	desc, err := reg.Resolve(ModelDeepseek)
	require.NoError(t, err)
	assert.Equal(t, 8192, desc.MaxTokens)
	assert.Equal(t, 0.7, desc.RecommendedTemperature)
	assert.False(t, desc.Multimodal)

	desc, err = reg.Resolve(ModelLlamaVision)
	require.NoError(t, err)
	assert.Equal(t, 4096, desc.MaxTokens)
	assert.Equal(t, 0.8, desc.RecommendedTemperature)
	assert.True(t, desc.Multimodal)
}

func TestRegistryResolveUnknownModel(t *testing.T) {
	reg := NewModelRegistry(nil)

	_, err := reg.Resolve("gpt-12")
	var notFound *ModelNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "gpt-12", notFound.Model)
}

func TestRegistryResolveEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"models":["deepseek-r1:70b","llama3.2-vision"]}`))
	}))
	defer srv.Close()

	reg := NewModelRegistry([]string{srv.URL})

	endpoint, err := reg.ResolveEndpoint(context.Background(), ModelDeepseek)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, endpoint)

	models, err := reg.AvailableModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek-r1:70b", "llama3.2-vision"}, models)
}

func TestRegistryResolveEndpointSkipsDeadCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"deepseek-r1:70b"}]}`))
	}))
	defer srv.Close()

	reg := NewModelRegistry([]string{"http://127.0.0.1:1", srv.URL})

	endpoint, err := reg.ResolveEndpoint(context.Background(), ModelDeepseek)
	require.NoError(t, err)
	assert.Equal(t, srv.URL, endpoint)
}

func TestRegistryUpstreamUnavailable(t *testing.T) {
	reg := NewModelRegistry([]string{"http://127.0.0.1:1"})

	_, err := reg.ResolveEndpoint(context.Background(), ModelDeepseek)
	var unavailable *UpstreamUnavailableError
	assert.ErrorAs(t, err, &unavailable)

	// distinct from the unknown-identifier failure
	var notFound *ModelNotFoundError
	assert.False(t, errors.As(err, &notFound))
}

func TestRegistryUnavailableWhenNoModelsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	reg := NewModelRegistry([]string{srv.URL})

	_, err := reg.ResolveEndpoint(context.Background(), ModelDeepseek)
	var unavailable *UpstreamUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestRegistryUnknownModelFailsBeforeUpstreamCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	reg := NewModelRegistry([]string{srv.URL})

	_, err := reg.ResolveEndpoint(context.Background(), "mystery-model")
	var notFound *ModelNotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.False(t, called)
}
