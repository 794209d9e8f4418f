package models

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"explorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogOrder(t *testing.T) {
	c := DefaultCatalog()
	all := c.ListAll()
	require.Len(t, all, 5)
	assert.Equal(t, "Kimi K2", all[0].DisplayName)
	assert.Equal(t, "Mistral Small 3.1", all[4].DisplayName)
	assert.Equal(t, 3500, all[2].MaxTokens)
}

func TestListAllReturnsCopy(t *testing.T) {
	c := DefaultCatalog()
	all := c.ListAll()
	all[0].DisplayName = "mutated"
	assert.Equal(t, "Kimi K2", c.ListAll()[0].DisplayName)
}

func TestNewCatalogValidation(t *testing.T) {
	_, err := NewCatalog(nil)
	assert.Error(t, err)
	_, err = NewCatalog([]types.ModelDescriptor{{ID: "a", DisplayName: "A", MaxTokens: 0}})
	assert.ErrorContains(t, err, "max_tokens")
	_, err = NewCatalog([]types.ModelDescriptor{{ID: "a", DisplayName: "A", MaxTokens: 1}, {ID: "a", DisplayName: "B", MaxTokens: 1}})
	assert.ErrorContains(t, err, "duplicate")
	_, err = NewCatalog([]types.ModelDescriptor{{ID: " ", DisplayName: "A", MaxTokens: 1}})
	assert.ErrorContains(t, err, "id is required")
}

func TestLookup(t *testing.T) {
	c := DefaultCatalog()
	m, ok := c.Lookup("openai/gpt-oss-120b:free")
	require.True(t, ok)
	assert.Equal(t, "GPT-OSS-120B", m.DisplayName)
	_, ok = c.Lookup("missing")
	assert.False(t, ok)
}

func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  - id: a/one
    name: One
    max_tokens: 100
  - id: b/two
    name: Two
    max_tokens: 200
`), 0o644))
	c, err := LoadCatalogFile(path)
	require.NoError(t, err)
	assert.Equal(t, []types.ModelDescriptor{
		{ID: "a/one", DisplayName: "One", MaxTokens: 100},
		{ID: "b/two", DisplayName: "Two", MaxTokens: 200},
	}, c.ListAll())
}

func TestLoadCatalogFileUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  - id: a\n    name: A\n    max_tokens: 1\n    temperature: 2\n"), 0o644))
	_, err := LoadCatalogFile(path)
	assert.Error(t, err)
}

func TestResolveEmptyPath(t *testing.T) {
	c, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, 5, c.Len())
}

func TestRotation(t *testing.T) {
	c, err := NewCatalog([]types.ModelDescriptor{
		{ID: "a", DisplayName: "A", MaxTokens: 1},
		{ID: "b", DisplayName: "B", MaxTokens: 1},
	})
	require.NoError(t, err)
	r := NewRotation(c)
	got := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		m, ok := r.Next()
		require.True(t, ok)
		got = append(got, m.ID)
	}
	assert.Equal(t, []string{"a", "b", "a", "b", "a"}, got)

	r.Reset()
	m, _ := r.Next()
	assert.Equal(t, "a", m.ID)

	// independent instances do not share a cursor
	other := NewRotation(c)
	m, _ = other.Next()
	assert.Equal(t, "a", m.ID)
}

func TestRotationEmpty(t *testing.T) {
	_, ok := NewRotation(nil).Next()
	assert.False(t, ok)
}

func TestRotationConcurrent(t *testing.T) {
	r := NewRotation(DefaultCatalog())
	var wg sync.WaitGroup
	counts := make([]int, 5)
	var mu sync.Mutex
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, _ := r.Next()
			mu.Lock()
			for j, d := range DefaultCatalog().ListAll() {
				if d.ID == m.ID {
					counts[j]++
				}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, []int{10, 10, 10, 10, 10}, counts)
}
