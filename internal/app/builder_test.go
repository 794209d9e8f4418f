package app

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"

	"explorer/internal/config"
	"explorer/internal/gateway/provider"
	"explorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCompleter struct {
	mu   sync.Mutex
	reqs []provider.ChatRequest
}

func (r *recordingCompleter) Complete(_ context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	r.mu.Unlock()
	return provider.ChatResponse{Content: "idea from " + req.Model, TotalTokens: 3}, nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Backend.APIKey = "sk-test"
	cfg.Backend.RatePerSecond = 0
	cfg.Scraper.Enabled = false
	return cfg
}

func TestBuildPipelineOnly(t *testing.T) {
	comp := &recordingCompleter{}
	a, err := NewApp(testConfig(), WithCompleter(comp), WithoutStores(), WithoutHTTP())
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Driver().Process(context.Background(), types.InputRecord{Kind: types.KindText, Content: "tides"}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Outcomes, a.Catalog().Len())
	assert.Len(t, comp.reqs, a.Catalog().Len())
	for _, req := range comp.reqs {
		assert.LessOrEqual(t, req.MaxTokens, 2000)
		assert.Equal(t, 0.7, req.Temperature)
	}
	assert.Contains(t, res.CombinedText, "# Comprehensive Exploration")

	err = a.Run(context.Background())
	assert.Error(t, err)
}

func TestCredentialFollowsReload(t *testing.T) {
	cfg := testConfig()
	cfg.Backend.APIKey = ""
	cfg.Backend.APIKeyEnv = "EXPLORER_TEST_KEY_UNSET"
	a, err := NewApp(cfg, WithCompleter(&recordingCompleter{}), WithoutStores(), WithoutHTTP())
	require.NoError(t, err)

	_, err = a.Driver().Process(context.Background(), types.InputRecord{Kind: types.KindText, Content: "x"}, nil)
	require.Error(t, err)

	next := testConfig()
	a.Reload(next)
	assert.Same(t, next, a.Config())
	_, err = a.Driver().Process(context.Background(), types.InputRecord{Kind: types.KindText, Content: "x"}, nil)
	assert.NoError(t, err)
}

func TestBuildWithStoresAndHTTP(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Store.HistoryPath = filepath.Join(dir, "history.db")
	cfg.Store.CallLogPath = filepath.Join(dir, "calls.db")
	a, err := NewApp(cfg, WithCompleter(&recordingCompleter{}))
	require.NoError(t, err)
	assert.NotNil(t, a.api)
	assert.NotNil(t, a.history)
	assert.NotNil(t, a.calls)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestBuildRejectsNilConfig(t *testing.T) {
	_, err := NewApp(nil)
	assert.Error(t, err)
}

func TestStartupSummary(t *testing.T) {
	a, err := NewApp(testConfig(), WithCompleter(&recordingCompleter{}), WithoutStores())
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = a.Summary.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "credential: configured")
	assert.Contains(t, out, "[models] 5")
	assert.Contains(t, out, "Kimi K2")
	assert.Contains(t, out, "history: -")
	assert.Contains(t, out, "[http] :9991")
}
