package deps

import (
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/bookmark"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
)

// BreakerState reports the extractor circuit breaker state ("closed", "open", "half-open").
type BreakerState interface {
	State() string
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time  // for testing, defaults to time.Now
	AllowedCIDRS []string          // IPs allowed to access readyz, infra and metrics
	TrustProxy   bool              // true if running behind a trusted reverse proxy (e.g., cloudflared)
	ClientURLs   []string          // CORS origins
	Storage      string            // "redis" | "memory"
	Bookmarks    *bookmark.Service // bookmark use cases
	Auth         *auth.Manager     // bearer token verification
	Metrics      *metrics.Metrics  // nil disables /metrics
	Extractor    BreakerState      // nil when the extractor is not guarded
	MaxBodyBytes int64             // JSON and import request body cap
}
