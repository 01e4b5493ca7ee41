package llm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"charm.land/catwalk/pkg/catwalk"
)

var (
	providersCache []catwalk.Provider
	providersMu    sync.RWMutex
	cacheLoaded    bool
)

// GetProviders returns all known providers from the catwalk catalog.
// The result is cached after the first fetch.
func GetProviders(ctx context.Context) ([]catwalk.Provider, error) {
	providersMu.RLock()
	if cacheLoaded {
		defer providersMu.RUnlock()
		return providersCache, nil
	}
	providersMu.RUnlock()

	providersMu.Lock()
	defer providersMu.Unlock()

	// Double-check after acquiring write lock
	if cacheLoaded {
		return providersCache, nil
	}

	client := catwalk.New()
	providers, err := client.GetProviders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch providers from catwalk: %w", err)
	}

	providersCache = providers
	cacheLoaded = true
	return providers, nil
}

// GetModels returns all catalog models for a specific provider.
func GetModels(ctx context.Context, providerID string) ([]catwalk.Model, error) {
	providers, err := GetProviders(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range providers {
		if string(p.ID) == providerID {
			return p.Models, nil
		}
	}

	return nil, fmt.Errorf("provider %q not found", providerID)
}

// GetProviderAPIKey resolves a catalog provider's API key. Catalog
// entries name the key's env var as "$VAR_NAME".
func GetProviderAPIKey(provider catwalk.Provider) string {
	if provider.APIKey != "" && provider.APIKey[0] == '$' {
		envVar := provider.APIKey[1:]
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}
	return ""
}

// ListAllModels returns a flat, provider-sorted list of catalog models.
func ListAllModels(ctx context.Context) ([]ModelInfo, error) {
	providers, err := GetProviders(ctx)
	if err != nil {
		return nil, err
	}

	var models []ModelInfo
	for _, p := range providers {
		for _, m := range p.Models {
			models = append(models, ModelInfo{
				ID:             m.ID,
				Name:           m.Name,
				Provider:       string(p.ID),
				ContextWindow:  m.ContextWindow,
				CostPer1MIn:    m.CostPer1MIn,
				CostPer1MOut:   m.CostPer1MOut,
				CanReason:      m.CanReason,
				SupportsImages: m.SupportsImages,
			})
		}
	}

	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].ID < models[j].ID
	})
	return models, nil
}

// ModelInfo is a simplified model representation for listing.
type ModelInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Provider       string  `json:"provider"`
	ContextWindow  int64   `json:"context_window"`
	CostPer1MIn    float64 `json:"cost_per_1m_in"`
	CostPer1MOut   float64 `json:"cost_per_1m_out"`
	CanReason      bool    `json:"can_reason"`
	SupportsImages bool    `json:"supports_images"`
}
