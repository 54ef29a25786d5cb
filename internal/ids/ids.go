package ids

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewReportCode returns a human-readable report identifier derived from the
// creation time, with a short random suffix so two reports generated within
// the same second stay distinct.
func NewReportCode(now time.Time) string {
	return fmt.Sprintf("R%s-%s", now.Format("20060102-150405"), uuid.NewString()[:8])
}

// NewAssetID returns a fresh asset identifier. Stable once assigned.
func NewAssetID() string {
	return uuid.NewString()
}
