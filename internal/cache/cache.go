package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

// Cache defines the interface for the fetch payload cache
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// PayloadKey generates a cache key for one (RunID, sourceKind) payload
func PayloadKey(runID string, kind model.SourceKind) string {
	hash := sha256.Sum256([]byte(runID + "|" + string(kind)))
	return "coalesce:v1:" + hex.EncodeToString(hash[:])
}
