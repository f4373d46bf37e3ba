package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/marketplace/internal/domain"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "calendar date", input: "2012-01-01", want: "2012-01-01"},
		{name: "time of day rejected", input: "2012-01-01T10:00:00Z", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ParseDate(tt.input)
			if tt.wantErr {
				var vErr *domain.ValidationError
				if !errors.As(err, &vErr) || vErr.Field != "date" {
					t.Fatalf("ParseDate(%q) error = %v, want ValidationError on date", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestDateFromTime_RejectsTimeOfDay(t *testing.T) {
	t.Parallel()

	if _, err := domain.DateFromTime(time.Date(2012, 1, 1, 23, 59, 59, 0, time.UTC)); err == nil {
		t.Error("DateFromTime() with a time of day returned nil error")
	}

	d, err := domain.DateFromTime(time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("DateFromTime() error = %v", err)
	}
	if d.String() != "2012-01-01" {
		t.Errorf("DateFromTime() = %s, want 2012-01-01", d)
	}
}

func TestDate_NextIsExclusiveUpperBound(t *testing.T) {
	t.Parallel()

	d := domain.NewDate(2012, time.January, 1)
	next := d.Next()

	lastSecond := time.Date(2012, 1, 1, 23, 59, 59, 0, time.UTC)
	midnight := time.Date(2012, 1, 2, 0, 0, 0, 0, time.UTC)

	inRange := func(ts time.Time) bool {
		return !ts.Before(d.Time()) && ts.Before(next.Time())
	}
	if !inRange(lastSecond) {
		t.Error("2012-01-01 23:59:59 should fall inside the day")
	}
	if inRange(midnight) {
		t.Error("2012-01-02 00:00:00 should fall outside the day")
	}
	if next.String() != "2012-01-02" {
		t.Errorf("Next() = %s, want 2012-01-02", next)
	}
	if got := domain.NewDate(2012, time.December, 31).Next().String(); got != "2013-01-01" {
		t.Errorf("Next() across years = %s, want 2013-01-01", got)
	}
}

func TestDate_JSONAndScan(t *testing.T) {
	t.Parallel()

	d := domain.NewDate(2013, time.March, 9)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `"2013-03-09"` {
		t.Errorf("Marshal() = %s, want \"2013-03-09\"", b)
	}

	var back domain.Date
	if err = json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("Unmarshal() = %s, want %s", back, d)
	}

	var scanned domain.Date
	if err = scanned.Scan([]byte("2013-03-09")); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if !scanned.Equal(d) {
		t.Errorf("Scan() = %s, want %s", scanned, d)
	}
}
