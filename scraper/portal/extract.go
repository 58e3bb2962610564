package portal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"clubscan/models"
	"clubscan/utils"
)

var (
	// dateRangeRegexp captures "January 2 - January 9, 2026" from the results
	// summary bar.
	dateRangeRegexp = regexp.MustCompile(
		`(January|February|March|April|May|June|July|August|September|October|November|December)` +
			`\s+(\d{1,2})\s*-\s*` +
			`(January|February|March|April|May|June|July|August|September|October|November|December)` +
			`\s+(\d{1,2}),\s*(\d{4})`)

	// pointsRegexp captures "129,000 points" style availability values.
	pointsRegexp = regexp.MustCompile(`(?i)([\d,]+)\s*points`)

	whitespaceRegexp = regexp.MustCompile(`\s+`)
)

// Extractor maps the rendered results container into structured records.
// It works on a captured HTML snapshot of the container, never the live page,
// so extraction is restartable per page and free of side effects.
type Extractor struct {
	res    *Resolver
	logger *utils.Logger
}

// NewExtractor creates an Extractor using the given resolver's strategy tables.
func NewExtractor(res *Resolver, logger *utils.Logger) *Extractor {
	return &Extractor{res: res, logger: logger}
}

// ExtractPage parses one results page. It returns the accepted records in
// document order plus the number of rows rejected for missing required fields.
func (e *Extractor) ExtractPage(html string, criteria *models.SearchCriteria) ([]*models.AvailabilityRecord, int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, 0, fmt.Errorf("extract: parse results html: %w", err)
	}

	checkIn, checkOut, ok := e.sharedDateRange(doc.Selection)
	if !ok {
		// The summary bar stating the searched range is missing; fall back to
		// the requested dates so rows remain attributable.
		e.logger.Warn("[extract] Results date range not found, using requested dates")
		checkIn, checkOut = criteria.CheckIn, criteria.CheckOut
	}
	nights := int(checkOut.Sub(checkIn).Hours() / 24)

	rows, err := e.res.ResolveAllIn(doc.Selection, RoleResultsRow)
	if err != nil {
		e.logger.Warn("[extract] No result rows on page: %v", err)
		return nil, 0, nil
	}

	var records []*models.AvailabilityRecord
	rejected := 0

	rows.Each(func(i int, row *goquery.Selection) {
		rec := &models.AvailabilityRecord{
			Resort:              e.fieldText(row, RoleResultResort),
			Location:            e.fieldText(row, RoleResultLocation),
			UnitType:            e.fieldText(row, RoleResultUnit),
			CheckIn:             checkIn,
			CheckOut:            checkOut,
			Nights:              nights,
			AvailabilityOrPrice: parsePoints(row.Text()),
		}

		if !rec.Complete() {
			rejected++
			e.logger.Warn("[extract] Rejecting row %d (resort=%q unit=%q): missing required field",
				i+1, rec.Resort, rec.UnitType)
			return
		}
		records = append(records, rec)
	})

	e.logger.Debug("[extract] Page parsed: %d accepted, %d rejected", len(records), rejected)
	return records, rejected, nil
}

// fieldText resolves one semantic field scoped to a row. Structurally absent
// or ambiguous fields come back empty and fail the completeness check.
func (e *Extractor) fieldText(row *goquery.Selection, role string) string {
	sel, err := e.res.ResolveIn(row, role)
	if err != nil {
		return ""
	}
	return normalizeText(sel.Text())
}

// sharedDateRange parses the "Showing availability for January 2 - January 9,
// 2026" summary the portal renders above the result cards.
func (e *Extractor) sharedDateRange(doc *goquery.Selection) (time.Time, time.Time, bool) {
	sel, err := e.res.ResolveIn(doc, RoleResultDateRange)
	text := ""
	if err == nil {
		text = sel.Text()
	} else {
		// The bar may render outside any known wrapper; scan the whole page.
		text = doc.Text()
	}

	m := dateRangeRegexp.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, time.Time{}, false
	}

	year := atoi(m[5])
	start := time.Date(year, monthByName(m[1]), atoi(m[2]), 0, 0, 0, 0, time.UTC)
	end := time.Date(year, monthByName(m[3]), atoi(m[4]), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		// Range wraps a year boundary, e.g. "December 28 - January 4, 2026".
		start = start.AddDate(-1, 0, 0)
	}
	return start, end, true
}

func parsePoints(text string) string {
	m := pointsRegexp.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], ",", "")
}

func normalizeText(s string) string {
	return whitespaceRegexp.ReplaceAllString(strings.TrimSpace(s), " ")
}

func monthByName(name string) time.Month {
	t, err := time.Parse("January", name)
	if err != nil {
		return time.January
	}
	return t.Month()
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
