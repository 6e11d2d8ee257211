// Package shiai reads the result pages exported by the JudoShiai timing
// software: the index page (availability probe), the next-matches board, and
// the per-competitor card files.
//
// The formats are owned by third-party software, so all parsing is
// best-effort: any fetch or parse failure folds into "no data" for the
// caller, never a hard error.
package shiai

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tbialecki/judowatch/internal/fetch"
)

const (
	indexResource = "index.html"
	boardResource = "nextmatches.html"

	// The board always lists ten upcoming rounds per tatami.
	roundsPerTatami = 10
)

// Scraper fetches and parses JudoShiai result resources. The competitor
// card cache is shared across goroutines and bounded by TTL.
type Scraper struct {
	client *fetch.Client
	logger *slog.Logger

	cardTTL time.Duration
	mu      sync.Mutex
	cards   map[string]cardEntry
}

// NewScraper creates a Scraper. cardTTL bounds how long competitor card
// lookups are served from memory.
func NewScraper(client *fetch.Client, cardTTL time.Duration, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		client:  client,
		logger:  logger,
		cardTTL: cardTTL,
		cards:   make(map[string]cardEntry),
	}
}
