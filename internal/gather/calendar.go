package gather

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"edgelab/internal/util"
)

// Calendar reports the most recent trading day whose session has finished.
// The returned time is midnight UTC of that date.
type Calendar interface {
	LatestFinishedTradingDay(ctx context.Context) (time.Time, error)
}

// sessionSettled is the local time after which a day's bars are final,
// leaving room for extended hours to settle.
const (
	settleHour   = 20
	settleMinute = 5
)

type calendarClient interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// AlpacaCalendar asks the Alpaca trading calendar which days were sessions.
type AlpacaCalendar struct {
	client calendarClient
	loc    *time.Location
	now    func() time.Time
}

var _ Calendar = (*AlpacaCalendar)(nil)

// NewAlpacaCalendar creates a calendar using the trading API at baseURL.
func NewAlpacaCalendar(apiKey, apiSecret, baseURL string) (*AlpacaCalendar, error) {
	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("loading ET timezone: %w", err)
	}
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpacaCalendar(client, et, time.Now), nil
}

func newAlpacaCalendar(c calendarClient, loc *time.Location, now func() time.Time) *AlpacaCalendar {
	return &AlpacaCalendar{client: c, loc: loc, now: now}
}

// LatestFinishedTradingDay implements Calendar. Today counts only once the
// session has settled.
func (c *AlpacaCalendar) LatestFinishedTradingDay(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	now := c.now().In(c.loc)
	days, err := c.client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("GetCalendar: %w", err)
	}
	return latestFinished(days, now)
}

func latestFinished(days []alpaca.CalendarDay, now time.Time) (time.Time, error) {
	today := now.Format(time.DateOnly)
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), settleHour, settleMinute, 0, 0, now.Location())

	for i := len(days) - 1; i >= 0; i-- {
		d, err := time.Parse(time.DateOnly, days[i].Date)
		if err != nil {
			continue
		}
		switch {
		case days[i].Date == today:
			if now.After(cutoff) {
				return d, nil
			}
		case days[i].Date < today:
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no finished trading day in %d calendar days", len(days))
}

// WeekdayCalendar treats every weekday before today as a finished session.
// It needs no API access and ignores exchange holidays.
type WeekdayCalendar struct {
	Now func() time.Time
}

// LatestFinishedTradingDay implements Calendar.
func (c WeekdayCalendar) LatestFinishedTradingDay(_ context.Context) (time.Time, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return util.PreviousWeekday(now()), nil
}
