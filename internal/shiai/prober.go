package shiai

import (
	"context"
	"regexp"

	"github.com/tbialecki/judowatch/internal/fetch"
)

// JudoShiai exports stamp every page with a keywords meta tag. Whitespace
// inside the tag varies between export versions.
var shiaiMarker = regexp.MustCompile(`<meta\s+name="keywords"\s+content="JudoShiai-[^"]*"\s*/?>`)

// Analyze fetches the index resource under baseURL with the given proxy
// policy and reports whether it is a live JudoShiai results page. Every
// failure mode (network, non-2xx, missing marker) folds into false.
func (s *Scraper) Analyze(ctx context.Context, baseURL string, policy fetch.Policy) bool {
	fullURL := baseURL + indexResource

	body, err := s.client.Get(ctx, fullURL, policy)
	if err != nil {
		s.logger.Debug("index probe failed", "url", fullURL, "error", err)
		return false
	}

	return shiaiMarker.Match(body)
}

// AnalyzeURL probes baseURL with the default retry policy (direct first,
// proxy on failure).
func (s *Scraper) AnalyzeURL(ctx context.Context, baseURL string) bool {
	return s.Analyze(ctx, baseURL, fetch.PolicyRetry)
}
