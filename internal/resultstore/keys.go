package resultstore

import (
	"fmt"
	"time"

	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// AnomalyKey names one persisted detection result by its event timestamp and
// originating detector.
func AnomalyKey(ts time.Time, source models.Source) string {
	return fmt.Sprintf("anomaly:%s:%s", ts.Format(time.RFC3339), source)
}

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}
