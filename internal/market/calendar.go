package market

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"gemex-ace/internal/api"
	"gemex-ace/internal/interfaces"
	"gemex-ace/internal/logger"
	"gemex-ace/internal/types"
)

// Calendar scrapes the ForexFactory economic calendar page.
type Calendar struct {
	url        string
	currencies []string
	timeout    time.Duration
}

var _ interfaces.CalendarSource = (*Calendar)(nil)

func NewCalendar(pageURL string, currencies []string, timeout time.Duration) *Calendar {
	return &Calendar{url: pageURL, currencies: currencies, timeout: timeout}
}

// Events returns the day's high-impact events for the configured currencies.
func (c *Calendar) Events(ctx context.Context, day time.Time) ([]types.CalendarEvent, error) {
	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	events, err := ParseCalendar(bytes.NewReader(body), day, c.currencies)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Economic calendar parsed", "date", types.FormatDate(day), "high_impact_events", len(events))
	return events, nil
}

func (c *Calendar) fetch(ctx context.Context) ([]byte, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("calendar url: %w", err)
	}

	headers := api.BrowserHeaders()
	col := colly.NewCollector(
		colly.AllowedDomains(u.Hostname()),
		colly.MaxDepth(1),
		colly.Async(false),
		colly.UserAgent(headers["User-Agent"]),
	)
	col.SetRequestTimeout(c.timeout)
	col.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
		for k, v := range headers {
			r.Headers.Set(k, v)
		}
	})

	var body []byte
	var fetchErr error
	col.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	col.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("calendar fetch (status %d): %w", r.StatusCode, err)
	})

	if err := col.Visit(c.url); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return body, nil
}

// ParseCalendar reads a ForexFactory calendar table. Day-breaker rows carry the
// date for the rows that follow, and blank time cells repeat the previous time.
// Only high-impact events on day for the given currencies are returned.
func ParseCalendar(r io.Reader, day time.Time, currencies []string) ([]types.CalendarEvent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse calendar html: %w", err)
	}
	table := doc.Find("table.calendar__table")
	if table.Length() == 0 {
		return nil, fmt.Errorf("calendar table not found")
	}

	want := compact(day.Format("Mon Jan 2"))
	currentDate := ""
	lastTime := ""
	events := []types.CalendarEvent{}

	table.Find("tr.calendar__row").Each(func(_ int, row *goquery.Selection) {
		if row.HasClass("calendar__row--day-breaker") {
			currentDate = compact(row.Find("td").First().Text())
			lastTime = ""
			return
		}
		if dateCell := compact(row.Find("td.calendar__date").Text()); dateCell != "" {
			currentDate = dateCell
			lastTime = ""
		}

		currency := strings.TrimSpace(row.Find("td.calendar__currency").Text())
		if currency == "" {
			return
		}
		if t := strings.TrimSpace(row.Find("td.calendar__time").Text()); t != "" {
			lastTime = t
		}
		if currentDate != want || !slices.Contains(currencies, currency) {
			return
		}
		if impactOf(row.Find("td.calendar__impact")) != "High" {
			return
		}

		events = append(events, types.CalendarEvent{
			EventName: strings.TrimSpace(row.Find("td.calendar__event").Text()),
			TimeUTC:   lastTime,
			Currency:  currency,
			Impact:    "High",
			Forecast:  strings.TrimSpace(row.Find("td.calendar__forecast").Text()),
			Previous:  strings.TrimSpace(row.Find("td.calendar__previous").Text()),
		})
	})
	return events, nil
}

func impactOf(cell *goquery.Selection) string {
	span := cell.Find("span").First()
	title, _ := span.Attr("title")
	class, _ := span.Attr("class")
	switch {
	case strings.HasPrefix(title, "High"), strings.Contains(class, "ff-impact-red"):
		return "High"
	case strings.HasPrefix(title, "Medium"), strings.Contains(class, "ff-impact-ora"):
		return "Medium"
	case strings.HasPrefix(title, "Low"), strings.Contains(class, "ff-impact-yel"):
		return "Low"
	}
	return "None"
}

// compact drops all whitespace so "Mon\nJan 6" and "MonJan 6" compare equal.
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}
