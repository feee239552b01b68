package tle

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"

	starlinkName  = "STARLINK-1007"
	starlinkLine1 = "1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995"
	starlinkLine2 = "2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05"
)

func threeLine(name, l1, l2 string) string {
	return name + "\n" + l1 + "\n" + l2 + "\n"
}

func TestParse(t *testing.T) {
	input := threeLine(issName, issLine1, issLine2) + "\r\n" + threeLine("0 "+starlinkName, starlinkLine1, starlinkLine2)

	entries, err := Parse(strings.NewReader(input), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	iss := entries[0]
	if iss.NORADID != 25544 || iss.Name != issName {
		t.Errorf("entry 0 = %d %q", iss.NORADID, iss.Name)
	}
	wantEpoch := time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC) // day 100.5 of a leap year
	if !iss.Epoch.Equal(wantEpoch) {
		t.Errorf("epoch = %v, want %v", iss.Epoch, wantEpoch)
	}
	if entries[1].Name != starlinkName {
		t.Errorf("name prefix not stripped: %q", entries[1].Name)
	}
}

func TestParseSkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		"GARBAGE HEADER",
		threeLine(issName, issLine1, issLine2),
		threeLine("SHORT", issLine1[:60], issLine2),
		threeLine("MISMATCH", issLine1, starlinkLine2),
		threeLine(starlinkName, starlinkLine1, starlinkLine2),
	}, "")

	entries, err := Parse(strings.NewReader(input), testLogger)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].NORADID != 25544 || entries[1].NORADID != 44713 {
		t.Errorf("unexpected entries %d, %d", entries[0].NORADID, entries[1].NORADID)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name     string
		l1, l2   string
		wantErr  bool
		resync   bool
		wantName string
	}{
		{name: "0 " + issName, l1: issLine1, l2: issLine2, wantName: issName},
		{name: "swapped", l1: issLine2, l2: issLine1, wantErr: true, resync: true},
		{name: "short", l1: issLine1[:60], l2: issLine2, wantErr: true},
		{name: "mismatch", l1: issLine1, l2: starlinkLine2, wantErr: true},
		{name: "bad id", l1: "1 ABCDEU" + issLine1[8:], l2: issLine2, wantErr: true},
		{name: "bad epoch", l1: issLine1[:18] + "24X00.50000000" + issLine1[32:], l2: issLine2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := parseEntry(tt.name, tt.l1, tt.l2)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := errors.Is(err, errNotElementSet); got != tt.resync {
				t.Errorf("resync = %v, want %v", got, tt.resync)
			}
			if !tt.wantErr && (e.Name != tt.wantName || e.NORADID != 25544) {
				t.Errorf("entry = %+v", e)
			}
		})
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"25045.00000000", time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), false},
		{"99001.50000000", time.Date(1999, 1, 1, 12, 0, 0, 0, time.UTC), false},
		{"57001.00000000", time.Date(1957, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"56365.00000000", time.Date(2056, 12, 30, 0, 0, 0, 0, time.UTC), false},
		{"2x045.0", time.Time{}, true},
		{"25000.5", time.Time{}, true},
		{"25", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseEpoch(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseEpoch(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseEpoch(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewDatasetEpochRange(t *testing.T) {
	a := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := a.Add(48 * time.Hour)
	ds := NewDataset("test", a, []Entry{{NORADID: 1, Epoch: b}, {NORADID: 2, Epoch: a}})
	if !ds.EpochRange.Min.Equal(a) || !ds.EpochRange.Max.Equal(b) {
		t.Errorf("epoch range = %+v", ds.EpochRange)
	}
}

func TestStoreAge(t *testing.T) {
	s := NewStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if s.Get() != nil || s.Age(now) != -1 {
		t.Error("empty store should have no dataset")
	}
	s.Set(NewDataset("x", now.Add(-time.Hour), nil))
	if s.Age(now) != time.Hour {
		t.Errorf("Age() = %v, want 1h", s.Age(now))
	}
}
