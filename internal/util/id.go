package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewTimeID returns "<prefix>_<unix millis>". Two calls in the same millisecond collide.
func NewTimeID(prefix string, now time.Time) string {
	return fmt.Sprintf("%s_%d", prefix, now.UnixMilli())
}

func NewRandomID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
