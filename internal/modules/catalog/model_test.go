package catalog

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 31, hour, minute, 0, 0, time.Local)
}

func TestOpenAt(t *testing.T) {
	day := &Restaurant{OpensAt: 9 * 60, ClosesAt: 22 * 60}
	if !day.OpenAt(at(12, 0)) {
		t.Errorf("expected open at noon")
	}
	if day.OpenAt(at(8, 59)) {
		t.Errorf("expected closed before opening")
	}
	if day.OpenAt(at(22, 0)) {
		t.Errorf("expected closed at closing minute")
	}

	overnight := &Restaurant{OpensAt: 18 * 60, ClosesAt: 2 * 60}
	if !overnight.OpenAt(at(23, 30)) {
		t.Errorf("expected open before midnight")
	}
	if !overnight.OpenAt(at(1, 0)) {
		t.Errorf("expected open after midnight")
	}
	if overnight.OpenAt(at(12, 0)) {
		t.Errorf("expected closed at noon")
	}

	always := &Restaurant{OpensAt: 0, ClosesAt: 0}
	if !always.OpenAt(at(4, 0)) {
		t.Errorf("expected 24h restaurant open")
	}
}
