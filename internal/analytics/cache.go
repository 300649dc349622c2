package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/cropyield-backend/internal/domain/dataset"
	"github.com/yungbote/cropyield-backend/internal/platform/logger"
)

// Result is one analysis of a dataset. Images marshal to base64 in JSON.
type Result struct {
	Summary Summary           `json:"summary"`
	Images  map[string][]byte `json:"images"`
}

// Cache stores analysis results keyed by dataset fingerprint.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool)
	Set(ctx context.Context, key string, res *Result)
	Close() error
}

// Fingerprint hashes the content of every record in order. Any insert, delete
// or option change produces a different key.
func Fingerprint(records []*dataset.CropRecord, opts Options) string {
	h := sha256.New()
	fmt.Fprintf(h, "opts:%s\n", opts.ProductionCrop)
	for _, r := range records {
		h.Write([]byte(r.Crop))
		for _, col := range dataset.CanonicalColumns {
			h.Write([]byte{0x1f})
			if dataset.IsNumeric(col) {
				if v, ok := r.Numeric(col); ok {
					h.Write([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
				}
				continue
			}
			if col == dataset.ColCrop {
				continue
			}
			if v, ok := r.Category(col); ok {
				h.Write([]byte(v))
			}
		}
		h.Write([]byte{0x1f})
		h.Write(r.Extra)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// memoryCache keeps only the latest result; the dataset it describes is the
// only one that can be asked for again.
type memoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	key     string
	res     *Result
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) Cache {
	return &memoryCache{ttl: ttl}
}

func (c *memoryCache) Get(_ context.Context, key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.res == nil || c.key != key {
		return nil, false
	}
	if c.ttl > 0 && time.Now().After(c.expires) {
		c.res = nil
		return nil, false
	}
	return c.res, true
}

func (c *memoryCache) Set(_ context.Context, key string, res *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key, c.res = key, res
	c.expires = time.Now().Add(c.ttl)
}

func (c *memoryCache) Close() error { return nil }

type redisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to addr and fails fast when Redis is unreachable.
func NewRedisCache(addr string, ttl time.Duration, log *logger.Logger) (Cache, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisCache{
		log:    log.With("service", "RedisAnalyticsCache"),
		rdb:    rdb,
		ttl:    ttl,
		prefix: "cropyield:analyze:",
	}, nil
}

func (c *redisCache) Get(ctx context.Context, key string) (*Result, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("analytics cache get failed", "error", err)
		}
		return nil, false
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn("bad analytics cache payload", "error", err)
		return nil, false
	}
	return &res, true
}

func (c *redisCache) Set(ctx context.Context, key string, res *Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		c.log.Warn("analytics cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("analytics cache set failed", "error", err)
	}
}

func (c *redisCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
