// Package knowledge is the client for the external knowledge-base service.
// Retrieval is an opaque ranked-chunk lookup; promotion writes a candidate
// fact into the external store. Lookups can be cached in redis.
package knowledge

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Chunk is one ranked context snippet returned by the knowledge base.
type Chunk struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// PromoteInput is a candidate fact to promote into the knowledge base.
type PromoteInput struct {
	Content      string `json:"content"`
	Category     string `json:"category"`
	RefinementID *int64 `json:"refinement_id,omitempty"`
}

// PromotedRecord is the knowledge base's acknowledgement of a promotion.
type PromotedRecord struct {
	ID       int64  `json:"id"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Client talks to the knowledge-base service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	cache      *redis.Client
	cacheTTL   time.Duration
}

// CacheConfig enables the redis lookup cache.
type CacheConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewClient creates a knowledge-base client. cache may be disabled.
func NewClient(baseURL string, cache CacheConfig, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		cacheTTL:   cache.TTL,
	}
	if cache.Enabled {
		c.cache = redis.NewClient(&redis.Options{
			Addr:     cache.Addr,
			Password: cache.Password,
			DB:       cache.DB,
		})
		logger.Info("Knowledge lookup cache enabled", zap.String("addr", cache.Addr))
	}
	return c
}

// Search returns the top ranked chunks for a query. A cache hit skips the
// HTTP round trip; cache failures fall through to the live lookup.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Chunk, error) {
	cacheKey := "kb:" + hashQuery(query, limit)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, cacheKey).Result()
		if err == nil {
			var chunks []Chunk
			if err := json.Unmarshal([]byte(cached), &chunks); err == nil {
				return chunks, nil
			}
		} else if err != redis.Nil {
			c.logger.Warn("Knowledge cache read failed", zap.Error(err))
		}
	}

	endpoint := fmt.Sprintf("%s/api/knowledge/search?q=%s&limit=%s",
		c.baseURL, url.QueryEscape(query), strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}

	var result struct {
		Chunks []Chunk `json:"chunks"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal knowledge response: %w", err)
	}

	if c.cache != nil {
		if data, err := json.Marshal(result.Chunks); err == nil {
			if err := c.cache.Set(ctx, cacheKey, data, c.cacheTTL).Err(); err != nil {
				c.logger.Warn("Knowledge cache write failed", zap.Error(err))
			}
		}
	}

	return result.Chunks, nil
}

// Promote writes a candidate fact into the knowledge base.
func (c *Client) Promote(ctx context.Context, in PromoteInput) (*PromotedRecord, error) {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/knowledge", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge promote request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("Knowledge promote failed",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return nil, fmt.Errorf("knowledge service returned status %d", resp.StatusCode)
	}

	var record PromotedRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal promote response: %w", err)
	}

	return &record, nil
}

// Close releases the cache connection, if any.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

func hashQuery(query string, limit int) string {
	h := sha1.Sum([]byte(strconv.Itoa(limit) + ":" + query))
	return hex.EncodeToString(h[:])
}
