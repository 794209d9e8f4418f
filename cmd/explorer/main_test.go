package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"explorer/internal/app"
	"explorer/internal/gateway/provider"
	"explorer/internal/pipeline"
	"explorer/internal/store/calllog"
	"explorer/internal/store/gormstore"
	"explorer/internal/types"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCmd(t *testing.T, config string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("config", "", "")
	if config != "" {
		require.NoError(t, cmd.Flags().Set("config", config))
	}
	return cmd
}

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv("EXPLORER_CONFIG", "")
	assert.Equal(t, defaultConfigPath, configPath(newFlagCmd(t, "")))

	t.Setenv("EXPLORER_CONFIG", "/etc/explorer.yaml")
	assert.Equal(t, "/etc/explorer.yaml", configPath(newFlagCmd(t, "")))
	assert.Equal(t, "flag.yaml", configPath(newFlagCmd(t, " flag.yaml ")))
}

func TestLoadConfigExplicitMissing(t *testing.T) {
	_, _, err := loadConfig(newFlagCmd(t, filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  http_addr: \":8080\"\n"), 0o644))
	cfg, resolved, err := loadConfig(newFlagCmd(t, path))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, path, resolved)
}

func TestBuildInput(t *testing.T) {
	in := buildInput(" LINK ", "https://go.dev", []string{"lang"}, false)
	assert.Equal(t, types.KindLink, in.Kind)
	assert.Equal(t, "https://go.dev", in.Content)
	assert.Equal(t, []string{"lang"}, in.Tags)
}

func TestWriteResult(t *testing.T) {
	res := types.AggregateResult{
		ID:           "run-1",
		CombinedText: "combined",
		Outcomes: []types.ModelOutcome{
			{DisplayName: "A", TokenCount: 5, LatencyMs: 10},
			{DisplayName: "B", Failed: true, LatencyMs: 20},
		},
		TotalLatencyMs: 25,
	}
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, res, false))
	assert.Contains(t, buf.String(), "combined\n\n- A: ok, 5 tokens, 10ms\n- B: failed, 0 tokens, 20ms\ntotal 25ms, run run-1\n")

	buf.Reset()
	require.NoError(t, writeResult(&buf, res, true))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "combined", decoded["aggregatedResponse"])
}

func TestExitStatus(t *testing.T) {
	assert.Equal(t, 0, exitStatus(nil))
	assert.Equal(t, 2, exitStatus(&pipeline.Error{Kind: pipeline.ErrInvalidInput}))
	assert.Equal(t, 1, exitStatus(&pipeline.Error{Kind: pipeline.ErrMissingCredential}))
}

func TestModelsCommandJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: warn\n"), 0o644))
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"models", "--json", "--config", path})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())

	var body struct {
		Models []types.ModelDescriptor `json:"models"`
		Total  int                     `json:"total_models"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, 5, body.Total)
	assert.Equal(t, "Kimi K2", body.Models[0].DisplayName)
}

type echoCompleter struct{}

func (echoCompleter) Complete(_ context.Context, req provider.ChatRequest) (provider.ChatResponse, error) {
	return provider.ChatResponse{Content: "idea from " + req.Model, TotalTokens: 4}, nil
}

func TestRunPersistWritesStores(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.db")
	callsPath := filepath.Join(dir, "calls.db")
	cfgPath := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`app:
  log_level: warn
backend:
  api_key: sk-test
  rate_per_second: 0
scraper:
  enabled: false
store:
  history_path: %q
  call_log_path: %q
`, historyPath, callsPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))

	runAppOptions = []app.AppBuilderOption{app.WithCompleter(echoCompleter{})}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--persist", "--single", "--config", cfgPath, "tides"})
	t.Cleanup(func() {
		runAppOptions = nil
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		_ = runCmd.Flags().Set("persist", "false")
		_ = runCmd.Flags().Set("single", "false")
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "idea from")

	ctx := context.Background()
	hs, err := gormstore.NewHistoryStore(historyPath)
	require.NoError(t, err)
	defer hs.Close()
	runs, total, err := hs.ListRuns(ctx, gormstore.ListQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "tides", runs[0].Content)

	cl, err := calllog.New(callsPath)
	require.NoError(t, err)
	defer cl.Close()
	entries, err := cl.ForRun(ctx, runs[0].ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
