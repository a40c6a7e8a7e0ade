package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"formbot-backend/models"

	goredis "github.com/redis/go-redis/v9"
)

// ErrUnavailable means the cache could not be reached within the liveness
// window. Callers must treat it as a first-class outcome (503), never as a
// cache miss.
var ErrUnavailable = errors.New("cache unavailable")

const (
	mappingKeyPrefix   = "fieldmap:"
	usageKeyPrefix     = "fieldmap:usage:"
	writeCountPrefix   = "fieldmap:writes:"
	mappingTTL         = 365 * 24 * time.Hour
	writeCountWindow   = 24 * time.Hour
	livenessTimeout    = 2 * time.Second
	dialTimeout        = 5 * time.Second
)

// Client wraps the shared Redis connection for the field-mapping cache
type Client struct {
	rdb *goredis.Client
}

// NewClientFromEnv builds the cache client from REDIS_ADDR / REDIS_PASSWORD.
// Construction does not require the server to be reachable; liveness is
// checked per acquisition.
func NewClientFromEnv() (*Client, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, errors.New("REDIS_ADDR environment variable is required")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    os.Getenv("REDIS_PASSWORD"),
		DialTimeout: dialTimeout,
	})

	return &Client{rdb: rdb}, nil
}

// Acquire health-checks the connection with a bounded liveness probe and
// returns a handle for cache operations, or ErrUnavailable.
func (c *Client) Acquire(ctx context.Context) (*Handle, error) {
	pingCtx, cancel := context.WithTimeout(ctx, livenessTimeout)
	defer cancel()

	if err := c.rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &Handle{rdb: c.rdb}, nil
}

// Close releases the underlying connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Handle is a live capability on the cache, valid for one request
type Handle struct {
	rdb *goredis.Client
}

// GetMapping returns the stored field mapping for a signature, or (nil, nil)
// on a miss. The usage counter is read from its companion key.
func (h *Handle) GetMapping(ctx context.Context, signature string) (*models.FieldMapping, error) {
	raw, err := h.rdb.Get(ctx, mappingKeyPrefix+signature).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	mapping := &models.FieldMapping{}
	if err := json.Unmarshal([]byte(raw), mapping); err != nil {
		// A corrupt entry is treated as a miss; it will be rewritten.
		return nil, nil
	}

	usage, err := h.rdb.Get(ctx, usageKeyPrefix+signature).Int64()
	if err == nil {
		mapping.UsageCount = usage
	}
	return mapping, nil
}

// PutMapping stores a field mapping under its signature with the fixed
// expiry. The usage counter key is left alone so existing counts survive
// rewrites.
func (h *Handle) PutMapping(ctx context.Context, mapping *models.FieldMapping) error {
	raw, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	if err := h.rdb.Set(ctx, mappingKeyPrefix+mapping.Signature, raw, mappingTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IncrementUsage bumps the signature's usage counter and refreshes the
// expiry on both the counter and the entry, so active mappings never age out
func (h *Handle) IncrementUsage(ctx context.Context, signature string) (int64, error) {
	count, err := h.rdb.Incr(ctx, usageKeyPrefix+signature).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	h.rdb.Expire(ctx, usageKeyPrefix+signature, mappingTTL)
	h.rdb.Expire(ctx, mappingKeyPrefix+signature, mappingTTL)
	return count, nil
}

// IncrementWriteCount bumps the caller's daily field-mapping write counter.
// The counter expires 24 hours after its first increment.
func (h *Handle) IncrementWriteCount(ctx context.Context, clientIP string) (int64, error) {
	key := writeCountPrefix + clientIP
	count, err := h.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		h.rdb.Expire(ctx, key, writeCountWindow)
	}
	return count, nil
}
