package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/jakeharveyy/tipengine/internal/domain"
)

type exportCall struct {
	table string
	day   string
}

// fakeBlob records export calls per table and day.
type fakeBlob struct {
	exports  []exportCall
	exported map[string]bool
	errs     map[string]error
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		exported: make(map[string]bool),
		errs:     make(map[string]error),
	}
}

func (f *fakeBlob) ExportBets(_ context.Context, day time.Time) (int64, error) {
	d := day.Format(dayLayout)
	if err := f.errs[d]; err != nil {
		return 0, err
	}
	f.exports = append(f.exports, exportCall{table: "bets", day: d})
	return 2, nil
}

func (f *fakeBlob) ExportLedger(_ context.Context, day time.Time) (int64, error) {
	d := day.Format(dayLayout)
	if err := f.errs[d]; err != nil {
		return 0, err
	}
	f.exports = append(f.exports, exportCall{table: "ledger", day: d})
	return 5, nil
}

func (f *fakeBlob) Exported(_ context.Context, day time.Time) (bool, error) {
	return f.exported[day.Format(dayLayout)], nil
}

var _ domain.Archiver = (*fakeBlob)(nil)

type fakeMarks struct {
	values map[string]string
	getErr error
}

func newFakeMarks() *fakeMarks {
	return &fakeMarks{values: make(map[string]string)}
}

func (f *fakeMarks) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.values[key], nil
}

func (f *fakeMarks) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

var _ domain.Watermarks = (*fakeMarks)(nil)

// With testNow at June 10 and 30 days of retention, May 11 is the newest
// exportable day.

func TestArchiverFirstRunExportsCutoffDay(t *testing.T) {
	blob := newFakeBlob()
	marks := newFakeMarks()

	if err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []exportCall{{"bets", "2026-05-11"}, {"ledger", "2026-05-11"}}
	if !reflect.DeepEqual(blob.exports, want) {
		t.Errorf("exports = %v, want %v", blob.exports, want)
	}
	if got := marks.values[archiveWatermark]; got != "2026-05-11" {
		t.Errorf("watermark = %q, want 2026-05-11", got)
	}
}

func TestArchiverResumesFromWatermark(t *testing.T) {
	blob := newFakeBlob()
	marks := newFakeMarks()
	marks.values[archiveWatermark] = "2026-05-08"
	// With a watermark the Exported probe is skipped; the mark is trusted.
	blob.exported["2026-05-09"] = true

	if err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []exportCall{
		{"bets", "2026-05-09"}, {"ledger", "2026-05-09"},
		{"bets", "2026-05-10"}, {"ledger", "2026-05-10"},
		{"bets", "2026-05-11"}, {"ledger", "2026-05-11"},
	}
	if !reflect.DeepEqual(blob.exports, want) {
		t.Errorf("exports = %v, want %v", blob.exports, want)
	}
	if got := marks.values[archiveWatermark]; got != "2026-05-11" {
		t.Errorf("watermark = %q, want 2026-05-11", got)
	}
}

func TestArchiverUpToDate(t *testing.T) {
	blob := newFakeBlob()
	marks := newFakeMarks()
	marks.values[archiveWatermark] = "2026-05-11"

	if err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(blob.exports) != 0 {
		t.Errorf("exports = %v, want none", blob.exports)
	}
	if got := marks.values[archiveWatermark]; got != "2026-05-11" {
		t.Errorf("watermark = %q, want unchanged 2026-05-11", got)
	}
}

// A lost watermark must not re-upload work a previous life already did.
func TestArchiverFreshRunSkipsExportedDays(t *testing.T) {
	blob := newFakeBlob()
	blob.exported["2026-05-11"] = true
	marks := newFakeMarks()

	if err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(blob.exports) != 0 {
		t.Errorf("exports = %v, want none", blob.exports)
	}
	if got := marks.values[archiveWatermark]; got != "2026-05-11" {
		t.Errorf("watermark = %q, want 2026-05-11", got)
	}
}

func TestArchiverExportErrorStopsBeforeAdvancing(t *testing.T) {
	blob := newFakeBlob()
	errBoom := errors.New("bucket unreachable")
	blob.errs["2026-05-10"] = errBoom
	marks := newFakeMarks()
	marks.values[archiveWatermark] = "2026-05-09"

	err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want wrapped export error", err)
	}
	if got := marks.values[archiveWatermark]; got != "2026-05-09" {
		t.Errorf("watermark = %q, want unchanged 2026-05-09", got)
	}
}

func TestArchiverWatermarkReadFailure(t *testing.T) {
	blob := newFakeBlob()
	marks := newFakeMarks()
	marks.getErr = errors.New("cache down")

	if err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// Falls back to the newest exportable day.
	want := []exportCall{{"bets", "2026-05-11"}, {"ledger", "2026-05-11"}}
	if !reflect.DeepEqual(blob.exports, want) {
		t.Errorf("exports = %v, want %v", blob.exports, want)
	}
}

func TestArchiverCatchUpIsBounded(t *testing.T) {
	blob := newFakeBlob()
	marks := newFakeMarks()
	marks.values[archiveWatermark] = "2026-03-01"

	if err := NewArchiver(blob, marks, 30, discardLogger()).Run(context.Background(), testNow); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(blob.exports); got != 2*maxDaysPerRun {
		t.Errorf("export calls = %d, want %d", got, 2*maxDaysPerRun)
	}
	if got := marks.values[archiveWatermark]; got != "2026-03-31" {
		t.Errorf("watermark = %q, want 2026-03-31", got)
	}
}

func TestNextCronTime(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		after time.Time
		want  time.Time
	}{
		{
			name:  "later the same day",
			expr:  "0 3 * * *",
			after: time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, time.January, 5, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "exactly at the trigger rolls to tomorrow",
			expr:  "0 3 * * *",
			after: time.Date(2026, time.January, 5, 3, 0, 0, 0, time.UTC),
			want:  time.Date(2026, time.January, 6, 3, 0, 0, 0, time.UTC),
		},
		{
			name:  "minute field",
			expr:  "30 14 * * *",
			after: time.Date(2026, time.January, 5, 14, 29, 0, 0, time.UTC),
			want:  time.Date(2026, time.January, 5, 14, 30, 0, 0, time.UTC),
		},
		{
			name:  "comma list picks the next entry",
			expr:  "0 3,15 * * *",
			after: time.Date(2026, time.January, 5, 4, 0, 0, 0, time.UTC),
			want:  time.Date(2026, time.January, 5, 15, 0, 0, 0, time.UTC),
		},
		{
			name:  "day of week",
			expr:  "0 9 * * 1",
			after: time.Date(2026, time.January, 3, 10, 0, 0, 0, time.UTC), // Saturday
			want:  time.Date(2026, time.January, 5, 9, 0, 0, 0, time.UTC),  // Monday
		},
		{
			name:  "day of month",
			expr:  "0 0 1 * *",
			after: time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC),
			want:  time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, tt.after)
			if err != nil {
				t.Fatalf("nextCronTime(%q) error = %v", tt.expr, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("nextCronTime(%q, %v) = %v, want %v", tt.expr, tt.after, got, tt.want)
			}
		})
	}
}

func TestNextCronTimeInvalid(t *testing.T) {
	for _, expr := range []string{"", "0 3 * *", "0 3 * * * *", "x 3 * * *"} {
		if _, err := nextCronTime(expr, testNow); err == nil {
			t.Errorf("nextCronTime(%q) error = nil, want parse error", expr)
		}
	}
}
