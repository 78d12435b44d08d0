package statepath

import lru "github.com/hashicorp/golang-lru/v2"

// DefaultProgramCacheSize bounds the default evaluator program cache.
const DefaultProgramCacheSize = 256

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// NewLRUProgramCache returns a ProgramCache that keeps the size most recently
// used programs. A non-positive size falls back to DefaultProgramCacheSize.
func NewLRUProgramCache(size int) ProgramCache {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	cache, err := lru.New[string, any](size)
	if err != nil {
		panic(err)
	}
	return lruProgramCache{cache: cache}
}

type lruProgramCache struct {
	cache *lru.Cache[string, any]
}

func (c lruProgramCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c lruProgramCache) Set(key string, value any) {
	c.cache.Add(key, value)
}

// WithProgramCache registers the program cache handed to the default
// evaluators.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *engineConfig) {
		cfg.programCache = cache
	}
}
