package shiai

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tbialecki/judowatch/internal/fetch"
)

// Match is one scheduled bout on the next-matches board.
type Match struct {
	Category string `json:"category"`
	LName    string `json:"l_name"`
	LClub    string `json:"l_club"`
	RName    string `json:"r_name"`
	RClub    string `json:"r_club"`
}

var (
	brSplit  = regexp.MustCompile(`<br\s*/?>`)
	tagStrip = regexp.MustCompile(`<[^>]*>`)
)

// NextMatches fetches and parses the board under baseURL into a
// [tatami][round] grid. Cells are listed row-major across tatamis, one
// left/right name+club pair per bout, with an aligned category label.
func (s *Scraper) NextMatches(ctx context.Context, baseURL string) ([][]Match, error) {
	fullURL := baseURL + boardResource

	body, err := s.client.Get(ctx, fullURL, fetch.PolicyDisabled)
	if err != nil {
		return nil, fmt.Errorf("fetch board: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse board html: %w", err)
	}

	left := doc.Find("table.nextmatches tbody tr td.cdl1, table.nextmatches tbody tr td.cdl2")
	right := doc.Find("table.nextmatches tbody tr td.cdr1, table.nextmatches tbody tr td.cdr2")
	cats := doc.Find("table.nextmatches tbody tr td.cdcat1, table.nextmatches tbody tr td.cdcat2")

	if left.Length() == 0 || left.Length() != right.Length() {
		return nil, fmt.Errorf("malformed board: %d left cells, %d right cells", left.Length(), right.Length())
	}

	tatamiCount := left.Length() / roundsPerTatami
	if tatamiCount == 0 {
		return nil, fmt.Errorf("malformed board: %d cells for %d rounds", left.Length(), roundsPerTatami)
	}

	grid := make([][]Match, tatamiCount)
	for t := range grid {
		grid[t] = make([]Match, roundsPerTatami)
	}

	for i := 0; i < left.Length(); i++ {
		round := i / tatamiCount
		tatami := i % tatamiCount
		if round >= roundsPerTatami {
			break
		}

		lName, lClub := splitCell(left.Eq(i))
		rName, rClub := splitCell(right.Eq(i))

		category := ""
		if i < cats.Length() {
			category = strings.TrimSpace(cats.Eq(i).Text())
		}

		grid[tatami][round] = Match{
			Category: category,
			LName:    lName,
			LClub:    lClub,
			RName:    rName,
			RClub:    rClub,
		}
	}

	return grid, nil
}

// splitCell extracts the <br>-joined name and club sub-fields of a board
// cell.
func splitCell(sel *goquery.Selection) (name, club string) {
	raw, err := sel.Html()
	if err != nil {
		return "", ""
	}

	parts := brSplit.Split(raw, -1)
	if len(parts) > 0 {
		name = cleanCellPart(parts[0])
	}
	if len(parts) > 1 {
		club = cleanCellPart(parts[1])
	}
	return name, club
}

func cleanCellPart(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagStrip.ReplaceAllString(s, "")))
}
