package domain

// CacheStats reports the sizes of the embedding and search caches
type CacheStats struct {
	EmbeddingCacheSize int `json:"embedding_cache_size"`
	SearchCacheSize    int `json:"search_cache_size"`
	MaxCacheSize       int `json:"max_cache_size"`
	// CacheTTL is in seconds
	CacheTTL int `json:"cache_ttl"`
}
