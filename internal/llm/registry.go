package llm

import (
	"context"
	"fmt"

	"github.com/lgscvb/Brain-sub000/internal/anthropic"
	"github.com/lgscvb/Brain-sub000/internal/config"
	"github.com/lgscvb/Brain-sub000/internal/gemini"
	"github.com/lgscvb/Brain-sub000/internal/openrouter"
	"github.com/lgscvb/Brain-sub000/internal/router"

	"go.uber.org/zap"
)

// Registry holds the configured invokers grouped by tier.
type Registry struct {
	tiers  map[string][]*RateLimitedInvoker
	logger *zap.Logger
}

// NewRegistry constructs provider clients from configuration and groups them
// by tier in config order. The first provider of a tier is its primary; the
// rest are fallbacks.
func NewRegistry(cfgs []config.ProviderConfig, logger *zap.Logger) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}

	tiers := make(map[string][]*RateLimitedInvoker)

	for i, providerCfg := range cfgs {
		var invoker Invoker
		var err error

		switch providerCfg.Type {
		case "anthropic":
			invoker, err = anthropic.NewClient(anthropic.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		case "openrouter":
			invoker, err = openrouter.NewClient(openrouter.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		case "gemini":
			invoker, err = gemini.NewClient(gemini.Config{
				APIKey:     providerCfg.APIKey,
				ModelName:  providerCfg.ModelName,
				MaxRetries: providerCfg.MaxRetries,
				RetryDelay: providerCfg.RetryDelay,
			}, logger)
		default:
			logger.Warn("Unknown provider type, skipping",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i))
			continue
		}

		if err != nil {
			logger.Error("Failed to create provider",
				zap.String("type", providerCfg.Type),
				zap.Int("index", i),
				zap.Error(err))
			continue
		}

		rateLimit := providerCfg.RequestsPerMinute
		if rateLimit == 0 {
			rateLimit = 8
		}

		tier := providerCfg.Tier
		tiers[tier] = append(tiers[tier], NewRateLimitedInvoker(invoker, rateLimit, logger))

		logger.Info("Provider initialized",
			zap.String("type", providerCfg.Type),
			zap.String("model", providerCfg.ModelName),
			zap.String("tier", tier),
			zap.Int("rate_limit", rateLimit))
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("no providers could be initialized")
	}

	return &Registry{tiers: tiers, logger: logger}, nil
}

// Invoker returns the invoker chain for a tier. A tier with no configured
// providers borrows the other tier's chain rather than failing requests.
func (r *Registry) Invoker(tier string) (Invoker, error) {
	chain := r.tiers[tier]
	if len(chain) == 0 {
		other := router.TierSmart
		if tier == router.TierSmart {
			other = router.TierFast
		}
		chain = r.tiers[other]
		if len(chain) == 0 {
			return nil, fmt.Errorf("no providers configured for tier %q", tier)
		}
		r.logger.Warn("Tier has no providers, borrowing",
			zap.String("tier", tier),
			zap.String("borrowed_from", other))
	}
	return &fallbackChain{chain: chain, logger: r.logger}, nil
}

// Primary returns the provider name and model id of a tier's first invoker.
func (r *Registry) Primary(tier string) (provider, model string) {
	inv, err := r.Invoker(tier)
	if err != nil {
		return "", ""
	}
	info := inv.ModelInfo()
	if p, ok := info["provider"].(string); ok {
		provider = p
	}
	if m, ok := info["model"].(string); ok {
		model = m
	}
	return provider, model
}

// Close closes every configured provider.
func (r *Registry) Close() error {
	var lastErr error
	for tier, chain := range r.tiers {
		for i, inv := range chain {
			if err := inv.Close(); err != nil {
				r.logger.Error("Failed to close provider",
					zap.String("tier", tier),
					zap.Int("index", i),
					zap.Error(err))
				lastErr = err
			}
		}
	}
	return lastErr
}

// fallbackChain tries each invoker in order until one succeeds.
type fallbackChain struct {
	chain  []*RateLimitedInvoker
	logger *zap.Logger
}

func (f *fallbackChain) Complete(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	for i, inv := range f.chain {
		text, err := inv.Complete(ctx, system, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		f.logger.Warn("Provider failed, trying next",
			zap.Int("index", i),
			zap.Int("remaining", len(f.chain)-i-1),
			zap.Error(err))
	}
	return "", fmt.Errorf("all providers failed: %w", lastErr)
}

func (f *fallbackChain) Close() error { return nil }

func (f *fallbackChain) ModelInfo() map[string]interface{} {
	return f.chain[0].ModelInfo()
}
