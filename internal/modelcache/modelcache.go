// Package modelcache persists trained models and per-language training
// settings in a store, with an in-memory hot tier in front of it.
package modelcache

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/JuniperAlign/core/cache"
	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/store"
)

// Settings is the per-language-pair blob persisted with each model.
type Settings struct {
	MaxComplexity int `json:"maxComplexity"`
}

// Cache loads and saves models. It is safe for concurrent use.
type Cache struct {
	store  store.Store
	hot    *cache.BlobCache
	loader model.Loader
	loads  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithHotTier puts an in-memory blob cache in front of the store.
func WithHotTier(hot *cache.BlobCache) Option {
	return func(c *Cache) { c.hot = hot }
}

// New returns a cache over s that restores models with loader.
func New(s store.Store, loader model.Loader, opts ...Option) *Cache {
	c := &Cache{store: s, loader: loader}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fetch returns the decoded payload for key, deduplicating concurrent
// reads of the same key.
func (c *Cache) fetch(ctx context.Context, key string) ([]byte, error) {
	v, err, _ := c.loads.Do(key, func() (any, error) {
		if c.hot != nil {
			if payload, ok := c.hot.Get(key); ok {
				return payload, nil
			}
		}
		if !c.store.IsReady() {
			return nil, &apperrors.CacheMissError{Key: key}
		}
		blob, ok, err := c.store.GetItem(ctx, key)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &apperrors.CacheMissError{Key: key}
		}
		payload, err := Decode(blob)
		if err != nil {
			return nil, err
		}
		if c.hot != nil {
			c.hot.Put(key, payload)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// LoadModel restores the model stored under key. A missing key yields a
// CacheMissError; a corrupt entry a ParseError.
func (c *Cache) LoadModel(ctx context.Context, key string) (model.Trainable, error) {
	payload, err := c.fetch(ctx, key)
	if err != nil {
		logging.CacheEvent("model_miss", key, "error", err)
		return nil, err
	}
	m, err := c.loader(payload)
	if err != nil {
		logging.CacheEvent("model_corrupt", key, "error", err)
		return nil, err
	}
	logging.CacheEvent("model_loaded", key, "bytes", len(payload))
	return m, nil
}

// SaveModel serializes and stores m under key.
func (c *Cache) SaveModel(ctx context.Context, key string, m model.Trainable) error {
	payload, err := m.Save()
	if err != nil {
		return apperrors.Wrap(err, "failed to serialize model")
	}
	return c.SavePayload(ctx, key, payload)
}

// SavePayload stores an already serialized model under key.
func (c *Cache) SavePayload(ctx context.Context, key string, payload []byte) error {
	blob, err := Encode(payload)
	if err != nil {
		return err
	}
	if err := c.store.SetItem(ctx, key, blob); err != nil {
		return err
	}
	if c.hot != nil {
		c.hot.Put(key, payload)
	}
	logging.CacheEvent("model_saved", key, "bytes", len(payload), "compressed", len(blob))
	return nil
}

// LoadSettings returns the settings stored under key.
func (c *Cache) LoadSettings(ctx context.Context, key string) (Settings, error) {
	var s Settings
	if !c.store.IsReady() {
		return s, &apperrors.CacheMissError{Key: key}
	}
	data, ok, err := c.store.GetItem(ctx, key)
	if err != nil {
		return s, err
	}
	if !ok {
		return s, &apperrors.CacheMissError{Key: key}
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, &apperrors.ParseError{Format: "settings", Message: err.Error(), Err: err}
	}
	return s, nil
}

// SaveSettings stores s under key.
func (c *Cache) SaveSettings(ctx context.Context, key string, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.store.SetItem(ctx, key, data)
}
