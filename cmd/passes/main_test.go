package main

import (
	"testing"

	"github.com/star/sattrack/internal/catalog"
)

func TestSelectSatellites(t *testing.T) {
	cat := catalog.Mock()

	tests := []struct {
		ids, category string
		want          int
		wantErr       bool
	}{
		{"25544", "", 1, false},
		{"25544, 33591", "", 2, false},
		{"all", "", 10, false},
		{"all", "starlink", 3, false},
		{"all", "bogus", 0, true},
		{"abc", "", 0, true},
		{"99999", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.ids+"/"+tt.category, func(t *testing.T) {
			sats, err := selectSatellites(cat, tt.ids, tt.category)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(sats) != tt.want {
				t.Errorf("got %d satellites, want %d", len(sats), tt.want)
			}
		})
	}
}
