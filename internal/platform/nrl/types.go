package nrl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FeedStatus is a fixture's state as reported by the draw feed, before it is
// mapped onto a stored match.
type FeedStatus string

const (
	FeedFinished  FeedStatus = "Finished"
	FeedLive      FeedStatus = "Live"
	FeedScheduled FeedStatus = "Scheduled"
	FeedPostponed FeedStatus = "Postponed"
	FeedCancelled FeedStatus = "Cancelled"
	FeedUnknown   FeedStatus = "Unknown"
)

// ParseFeedStatus translates the feed's matchMode/matchState pair to a
// FeedStatus. Anything unrecognised maps to Unknown, which callers treat as
// "do nothing".
func ParseFeedStatus(matchMode, matchState string) FeedStatus {
	mode := strings.ToLower(matchMode)
	state := strings.ToLower(matchState)

	switch {
	case mode == "post" || state == "fulltime":
		return FeedFinished
	case mode == "live" || state == "live":
		return FeedLive
	case mode == "pre" && state == "upcoming":
		return FeedScheduled
	case state == "postponed":
		return FeedPostponed
	case state == "cancelled" || state == "abandoned":
		return FeedCancelled
	default:
		return FeedUnknown
	}
}

// flexOdds unmarshals decimal odds sent as either a JSON number or a string.
// Null, empty, or unparseable values leave the pointer nil, matching how the
// feed omits prices for unpriced fixtures.
type flexOdds struct {
	Value *decimal.Decimal
}

func (f *flexOdds) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f.Value = &d
	return nil
}

// flexInt unmarshals an int sent as either a JSON number or a numeric string.
// Null or unparseable values leave the pointer nil.
type flexInt struct {
	Value *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	f.Value = &n
	return nil
}

// drawResponse is the JSON document behind the draw page.
type drawResponse struct {
	Fixtures []APIFixture `json:"fixtures"`
}

// APITeam is one side of a fixture as the feed reports it.
type APITeam struct {
	NickName string   `json:"nickName"`
	Score    flexInt  `json:"score"`
	Odds     flexOdds `json:"odds"`
}

// APIClock carries the fixture's kickoff timestamp.
type APIClock struct {
	KickOffTimeLong string `json:"kickOffTimeLong"`
}

// APIFixture is one entry of the draw feed. Entries with Type other than
// "Match" are round furniture (byes, headers) and are skipped.
type APIFixture struct {
	Type           string   `json:"type"`
	RoundTitle     string   `json:"roundTitle"`
	MatchMode      string   `json:"matchMode"`
	MatchState     string   `json:"matchState"`
	Venue          string   `json:"venue"`
	VenueCity      string   `json:"venueCity"`
	MatchCentreURL string   `json:"matchCentreUrl"`
	HomeTeam       APITeam  `json:"homeTeam"`
	AwayTeam       APITeam  `json:"awayTeam"`
	Clock          APIClock `json:"clock"`
}

// Fixture is one parsed draw entry, ready for the sync and results jobs.
type Fixture struct {
	RoundNumber int
	HomeTeam    string
	AwayTeam    string
	KickOff     time.Time
	Venue       string
	VenueCity   string
	ExternalRef string
	Status      FeedStatus
	HomeScore   *int
	AwayScore   *int
	HomeOdds    *decimal.Decimal
	AwayOdds    *decimal.Decimal
}

// ToFixture maps an API fixture to the parsed form. It returns false for
// non-match entries and for matches missing a team name. A Finished fixture
// missing either score is demoted to Unknown so nothing downstream settles on
// incomplete data. An absent or unparseable kickoff leaves KickOff zero; the
// fixture can still be matched by names for results.
func (a APIFixture) ToFixture(season, requestedRound int) (Fixture, bool) {
	if a.Type != "Match" {
		return Fixture{}, false
	}

	home := NormalizeTeamName(a.HomeTeam.NickName)
	away := NormalizeTeamName(a.AwayTeam.NickName)
	if home == "" || away == "" {
		return Fixture{}, false
	}

	var kickOff time.Time
	if t, err := time.Parse(time.RFC3339, a.Clock.KickOffTimeLong); err == nil {
		kickOff = t.UTC()
	}

	status := ParseFeedStatus(a.MatchMode, a.MatchState)
	if status == FeedFinished && (a.HomeTeam.Score.Value == nil || a.AwayTeam.Score.Value == nil) {
		status = FeedUnknown
	}

	round := requestedRound
	if n, ok := parseRoundTitle(a.RoundTitle); ok {
		round = n
	}

	ref := strings.TrimSpace(a.MatchCentreURL)
	if ref == "" {
		ref = syntheticRef(season, round, home, away)
	}

	return Fixture{
		RoundNumber: round,
		HomeTeam:    home,
		AwayTeam:    away,
		KickOff:     kickOff,
		Venue:       strings.TrimSpace(a.Venue),
		VenueCity:   strings.TrimSpace(a.VenueCity),
		ExternalRef: ref,
		Status:      status,
		HomeScore:   a.HomeTeam.Score.Value,
		AwayScore:   a.AwayTeam.Score.Value,
		HomeOdds:    a.HomeTeam.Odds.Value,
		AwayOdds:    a.AwayTeam.Odds.Value,
	}, true
}

// parseRoundTitle extracts the round number from titles like "Round 18".
// Finals rounds carry titles this cannot parse; those return false.
func parseRoundTitle(title string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(title), "Round ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// syntheticRef builds a stable external reference for fixtures the feed ships
// without a match centre URL, so repeated syncs update rather than duplicate.
func syntheticRef(season, round int, home, away string) string {
	slug := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), " ", "-")
	}
	return fmt.Sprintf("%d/round-%d/%s-v-%s", season, round, slug(home), slug(away))
}

// matchWindow is how far a stored kickoff may drift from the feed's before
// two fixtures are considered different games.
const matchWindow = 12 * time.Hour

// FindFixture locates the fixture for a stored match by team names and
// kickoff proximity. Kickoff must land within twelve hours of the stored
// start time; a fixture with no kickoff recorded matches on names alone.
func FindFixture(fixtures []Fixture, homeTeam, awayTeam string, startTime time.Time) (Fixture, bool) {
	home := NormalizeTeamName(homeTeam)
	away := NormalizeTeamName(awayTeam)

	for _, f := range fixtures {
		if !strings.EqualFold(f.HomeTeam, home) || !strings.EqualFold(f.AwayTeam, away) {
			continue
		}
		if f.KickOff.IsZero() {
			return f, true
		}
		diff := f.KickOff.Sub(startTime)
		if diff < 0 {
			diff = -diff
		}
		if diff < matchWindow {
			return f, true
		}
	}
	return Fixture{}, false
}
