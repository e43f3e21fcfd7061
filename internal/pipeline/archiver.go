package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

// archiveWatermark is the redis key remembering the last fully exported day.
const archiveWatermark = "archive:last_day"

// dayLayout formats the day both in the watermark and in object keys.
const dayLayout = "2006-01-02"

// maxDaysPerRun bounds how many days one run may export when catching up
// after downtime.
const maxDaysPerRun = 30

// Archiver drives the daily cold-storage export: every run it exports each
// day that has aged past the retention window and has not been exported yet,
// then advances the watermark. Nothing is deleted from the database.
type Archiver struct {
	blob          domain.Archiver
	marks         domain.Watermarks
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver exporting days older than retentionDays.
func NewArchiver(blob domain.Archiver, marks domain.Watermarks, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:          blob,
		marks:         marks,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("job", "archive")),
	}
}

// Run executes one export pass. The newest exportable day is the one that
// just aged out of the retention window; the watermark says where the last
// pass stopped. Without a watermark (first run, or redis lost it) the pass
// starts at the newest exportable day and trusts the Exported check to avoid
// re-uploading work a previous life already did.
func (a *Archiver) Run(ctx context.Context, now time.Time) error {
	cutoff := startOfDay(now.AddDate(0, 0, -a.retentionDays))

	start := cutoff
	fresh := true
	mark, err := a.marks.Get(ctx, archiveWatermark)
	if err != nil {
		a.logger.WarnContext(ctx, "read archive watermark failed",
			slog.String("error", err.Error()),
		)
	} else if mark != "" {
		if t, err := time.Parse(dayLayout, mark); err == nil {
			start = t.AddDate(0, 0, 1)
			fresh = false
		}
	}

	if start.After(cutoff) {
		return nil
	}

	days := 0
	for day := start; !day.After(cutoff) && days < maxDaysPerRun; day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return err
		}

		if fresh {
			if done, err := a.blob.Exported(ctx, day); err == nil && done {
				a.logger.InfoContext(ctx, "archive day already exported",
					slog.String("day", day.Format(dayLayout)),
				)
				a.advance(ctx, day)
				days++
				continue
			}
		}

		bets, err := a.blob.ExportBets(ctx, day)
		if err != nil {
			return fmt.Errorf("archive: export bets for %s: %w", day.Format(dayLayout), err)
		}
		entries, err := a.blob.ExportLedger(ctx, day)
		if err != nil {
			return fmt.Errorf("archive: export ledger for %s: %w", day.Format(dayLayout), err)
		}

		if bets > 0 || entries > 0 {
			a.logger.InfoContext(ctx, "archived day",
				slog.String("day", day.Format(dayLayout)),
				slog.Int64("bets", bets),
				slog.Int64("ledger_entries", entries),
			)
		}
		a.advance(ctx, day)
		days++
	}
	return nil
}

// advance moves the watermark. Failing to write it only means the next run
// redoes a day, which both the Exported check and overwriting uploads absorb.
func (a *Archiver) advance(ctx context.Context, day time.Time) {
	if err := a.marks.Set(ctx, archiveWatermark, day.Format(dayLayout)); err != nil {
		a.logger.WarnContext(ctx, "advance archive watermark failed",
			slog.String("day", day.Format(dayLayout)),
			slog.String("error", err.Error()),
		)
	}
}

// cronField represents a parsed cron field that can match against a value.
type cronField struct {
	wildcard bool
	values   []int
}

// matches returns true if the given value matches this cron field.
func (f cronField) matches(val int) bool {
	if f.wildcard {
		return true
	}
	for _, v := range f.values {
		if v == val {
			return true
		}
	}
	return false
}

// parseCronField parses a single cron field (e.g. "0", "*", "1,15").
func parseCronField(field string) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	parts := strings.Split(field, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.Atoi(p)
		if err != nil {
			return cronField{}, fmt.Errorf("invalid cron field value %q: %w", p, err)
		}
		values = append(values, v)
	}
	return cronField{values: values}, nil
}

// parsedCron holds five parsed cron fields.
type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

// matchesTime returns true if the given time matches all five cron fields.
func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses a 5-field cron expression into a parsedCron struct.
func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	minute, err := parseCronField(fields[0])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing minute field: %w", err)
	}
	hour, err := parseCronField(fields[1])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing hour field: %w", err)
	}
	dayOfMonth, err := parseCronField(fields[2])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-month field: %w", err)
	}
	month, err := parseCronField(fields[3])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing month field: %w", err)
	}
	dayOfWeek, err := parseCronField(fields[4])
	if err != nil {
		return parsedCron{}, fmt.Errorf("parsing day-of-week field: %w", err)
	}

	return parsedCron{
		minute:     minute,
		hour:       hour,
		dayOfMonth: dayOfMonth,
		month:      month,
		dayOfWeek:  dayOfWeek,
	}, nil
}

// nextCronTime calculates the next time after 'after' that matches the given
// cron expression. It searches minute-by-minute up to one year ahead.
func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}

	// Start from the next minute boundary.
	candidate := after.Truncate(time.Minute).Add(time.Minute)

	// Search up to one year ahead to avoid infinite loops.
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if cron.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("no matching cron time found within one year for %q", cronExpr)
}
