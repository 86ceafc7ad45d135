package translate

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/enjarify-go/enjarify/internal/config"
)

// ClassCache memoizes already-translated classfiles keyed by (dex
// checksum, class name, option set), so re-translating the same dex
// input under the same options skips IR building and optimization
// entirely. A long-lived object shared across translation runs,
// independent of any single dex file's lifetime, wrapping
// golang-lru/v2 since there is no file-backed persistence requirement
// here: the cache is in-memory only.
type ClassCache struct {
	lru *lru.Cache[string, []byte]
}

// NewClassCache returns a cache holding up to size translated classfiles.
// A size <= 0 disables caching: Get always misses and Put is a no-op.
func NewClassCache(size int) (*ClassCache, error) {
	if size <= 0 {
		return &ClassCache{}, nil
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("translate: building class cache: %w", err)
	}
	return &ClassCache{lru: c}, nil
}

func cacheKey(checksum uint32, className []byte, opts config.Options) string {
	return fmt.Sprintf("%08x|%s|%d", checksum, className, opts)
}

// Get returns a previously cached classfile for (checksum, className,
// opts), if any.
func (c *ClassCache) Get(checksum uint32, className []byte, opts config.Options) ([]byte, bool) {
	if c == nil || c.lru == nil {
		return nil, false
	}
	return c.lru.Get(cacheKey(checksum, className, opts))
}

// Put records a freshly translated classfile for (checksum, className,
// opts).
func (c *ClassCache) Put(checksum uint32, className []byte, opts config.Options, data []byte) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(cacheKey(checksum, className, opts), data)
}

// Len reports how many entries are currently cached.
func (c *ClassCache) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
