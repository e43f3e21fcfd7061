package sportsbook

import (
	"time"

	"github.com/shopspring/decimal"
)

// APIOutcome is one priced selection inside a bookmaker market.
type APIOutcome struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// APIMarket is one market offered by a bookmaker; only "h2h" is consumed.
type APIMarket struct {
	Key      string       `json:"key"`
	Outcomes []APIOutcome `json:"outcomes"`
}

// APIBookmaker is one bookmaker's set of markets on an event.
type APIBookmaker struct {
	Key     string      `json:"key"`
	Title   string      `json:"title"`
	Markets []APIMarket `json:"markets"`
}

// APIEvent is one event in the odds feed.
type APIEvent struct {
	ID           string         `json:"id"`
	SportKey     string         `json:"sport_key"`
	CommenceTime time.Time      `json:"commence_time"`
	HomeTeam     string         `json:"home_team"`
	AwayTeam     string         `json:"away_team"`
	Bookmakers   []APIBookmaker `json:"bookmakers"`
}

// Event is one priced event: both head-to-head prices from the first
// bookmaker that offers them. Team names are the feed's own, not normalized.
type Event struct {
	ID           string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
	Bookmaker    string
	HomeOdds     *decimal.Decimal
	AwayOdds     *decimal.Decimal
}

// ToEvent extracts the first bookmaker's head-to-head prices. An event where
// no bookmaker prices both sides returns false.
func (a APIEvent) ToEvent() (Event, bool) {
	ev := Event{
		ID:           a.ID,
		HomeTeam:     a.HomeTeam,
		AwayTeam:     a.AwayTeam,
		CommenceTime: a.CommenceTime.UTC(),
	}

	for _, bm := range a.Bookmakers {
		for _, market := range bm.Markets {
			if market.Key != "h2h" {
				continue
			}
			var home, away *decimal.Decimal
			for i := range market.Outcomes {
				o := market.Outcomes[i]
				switch o.Name {
				case a.HomeTeam:
					price := o.Price
					home = &price
				case a.AwayTeam:
					price := o.Price
					away = &price
				}
			}
			if home != nil && away != nil {
				ev.Bookmaker = bm.Key
				ev.HomeOdds = home
				ev.AwayOdds = away
				return ev, true
			}
		}
	}

	return Event{}, false
}
