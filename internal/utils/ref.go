package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewRef produces a human-facing reference code such as "CMP-1A2B3C4D".
// References are exposed in API payloads instead of raw auto-increment IDs
// being the only identifier; the prefix tells entities apart in logs.
func NewRef(prefix string) string {
	id := uuid.New()
	return prefix + "-" + strings.ToUpper(id.String()[:8])
}
