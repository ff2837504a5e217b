package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoscapeAi/internal/design"
)

func materials() []design.MaterialLineItem {
	return []design.MaterialLineItem{
		{Name: "Lavender", Quantity: "6", Category: design.CategoryPlants},
		{Name: "Labor & Installation", Quantity: "1", Category: design.CategoryLabor},
		{Name: "Gravel delivery", Quantity: "1", Category: design.CategoryOther},
	}
}

func TestEnhanceFiltersNonPlantRows(t *testing.T) {
	var received struct {
		Materials []design.MaterialLineItem `json:"materials"`
	}
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/enhance-with-rag", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{
            "success": true,
            "rag_enhanced": true,
            "plantPalette": [{"common_name": "English Lavender", "botanical_name": "Lavandula angustifolia", "rag_verified": true}]
        }`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	result, err := client.Enhance(t.Context(), materials())
	require.NoError(t, err)

	// Labor and delivery rows never reach the catalog.
	require.Len(t, received.Materials, 1)
	assert.Equal(t, "Lavender", received.Materials[0].Name)

	assert.True(t, result.Success)
	assert.True(t, result.RAGEnhanced)
	require.Len(t, result.PlantPalette, 1)
	assert.Equal(t, "English Lavender", result.PlantPalette[0].CommonName)
	assert.True(t, result.PlantPalette[0].Verified)
	assert.Equal(t, 1, calls)
}

func TestEnhanceNothingEnhanceable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("service must not be called for labor-only lists")
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	result, err := client.Enhance(t.Context(), []design.MaterialLineItem{
		{Name: "Labor & Installation", Category: design.CategoryLabor},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Empty(t, result.PlantPalette)
}

func TestEnhanceCachesByMaterialList(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"success": true, "rag_enhanced": true, "plantPalette": []}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, CacheTTL: time.Minute})

	for range 3 {
		_, err := client.Enhance(t.Context(), materials())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	// A different list misses the cache.
	_, err := client.Enhance(t.Context(), []design.MaterialLineItem{{Name: "Boxwood", Quantity: "3"}})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestEnhanceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Enhance(t.Context(), materials())
	assert.Error(t, err)
}

func TestEnhanceDisabledClient(t *testing.T) {
	client := New(Config{})
	assert.False(t, client.Enabled())
	_, err := client.Enhance(t.Context(), materials())
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	require.NoError(t, client.Health(t.Context()))

	healthy = false
	assert.Error(t, client.Health(t.Context()))
}
