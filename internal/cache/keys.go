package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// SummaryKey identifies a cached summary computed for a window preset.
// Explicit from/to windows are never cached.
func SummaryKey(preset string, brandID, funnelID *uuid.UUID, includeInProgress bool) string {
	return fmt.Sprintf("summary:%s:%s:%s:%t", preset, idOrAll(brandID), idOrAll(funnelID), includeInProgress)
}

func idOrAll(id *uuid.UUID) string {
	if id == nil {
		return "all"
	}
	return id.String()
}
