package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionStateKey returns the cache key holding a UI session's state
func (r *CacheKeyStruct) SessionStateKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

var CacheKey = NewCacheKeyStruct()
