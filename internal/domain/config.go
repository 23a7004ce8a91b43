package domain

// KeyPrefix namespaces every key docrag writes to a shared key-value backend.
// Overridden once at startup from storage.key_prefix.
var KeyPrefix = "docrag:"

// DefaultDimensions matches text-embedding-3-small.
const DefaultDimensions = 1536

// Default chunking parameters, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)
