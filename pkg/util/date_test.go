package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	at := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-10-10T10:10:10Z", at, true},
		{"2024-10-10T10:10:10.000000001Z", at.Add(time.Nanosecond), true},
		{"2024-04-15", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), true},
		{strconv.FormatInt(at.Unix(), 10), at, true},
		{strconv.FormatInt(at.UnixMilli(), 10), at, true},
		{"", time.Time{}, false},
		{"-5", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tc := range cases {
		got, ok := ParseTime(tc.in)
		if ok != tc.ok || !got.Equal(tc.want) {
			t.Fatalf("%q: got %v %v want %v %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	if got := ParseTimeDefault("nope", def); !got.Equal(def) {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestWithinWindow(t *testing.T) {
	ref := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !WithinWindow(ref.Add(-23*time.Hour), ref, 24*time.Hour) {
		t.Fatalf("expected within")
	}
	if WithinWindow(ref.Add(25*time.Hour), ref, 24*time.Hour) {
		t.Fatalf("expected outside")
	}
}

func TestSplitCSV(t *testing.T) {
	got := SplitCSV(" price, ,volume ,")
	if len(got) != 2 || got[0] != "price" || got[1] != "volume" {
		t.Fatalf("got %q", got)
	}
}
