package shiai

import (
	"context"
	"strings"
	"time"

	"github.com/tbialecki/judowatch/internal/fetch"
)

// Card is the resolved identity of a competitor from the c-<id>.txt export:
// name on lines 1-2, club on line 5, category on line 8.
type Card struct {
	Name     string
	Club     string
	Category string
}

type cardEntry struct {
	card      Card
	fetchedAt time.Time
}

// CompetitorCard resolves a competitor's card, serving repeated lookups from
// the TTL cache keyed by the constructed resource URL. Returns false when
// the card cannot be fetched or parsed.
func (s *Scraper) CompetitorCard(ctx context.Context, baseURL, competitorID string) (Card, bool) {
	fullURL := baseURL + "c-" + competitorID + ".txt"

	s.mu.Lock()
	if e, ok := s.cards[fullURL]; ok && time.Since(e.fetchedAt) < s.cardTTL {
		s.mu.Unlock()
		return e.card, true
	}
	s.mu.Unlock()

	body, err := s.client.Get(ctx, fullURL, fetch.PolicyDisabled)
	if err != nil {
		s.logger.Debug("competitor card fetch failed", "url", fullURL, "error", err)
		return Card{}, false
	}

	card, ok := parseCard(string(body))
	if !ok {
		s.logger.Debug("competitor card malformed", "url", fullURL)
		return Card{}, false
	}

	s.mu.Lock()
	s.cards[fullURL] = cardEntry{card: card, fetchedAt: time.Now()}
	s.mu.Unlock()

	return card, true
}

func parseCard(text string) (Card, bool) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if len(lines) < 8 {
		return Card{}, false
	}

	name := strings.TrimSpace(lines[0] + " " + lines[1])
	if name == "" {
		return Card{}, false
	}

	return Card{
		Name:     name,
		Club:     strings.TrimSpace(lines[4]),
		Category: strings.TrimSpace(lines[7]),
	}, true
}
