package models

import (
	"testing"
	"time"
)

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		exp  time.Time
		want int
	}{
		{"Same instant", now, 0},
		{"Half day ago", now.Add(-12 * time.Hour), 0},
		{"One day ago", now.Add(-24 * time.Hour), -1},
		{"Thirty hours ago", now.Add(-30 * time.Hour), -1},
		{"One hour ahead", now.Add(time.Hour), 1},
		{"Exactly two days", now.Add(48 * time.Hour), 2},
		{"Just over two days", now.Add(48*time.Hour + time.Second), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(tt.exp, now); got != tt.want {
				t.Errorf("DaysUntil() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExpirationAlert_Stage(t *testing.T) {
	tests := []struct {
		name         string
		acknowledged bool
		resolved     bool
		want         AlertStage
	}{
		{"New", false, false, AlertStageNew},
		{"Acknowledged", true, false, AlertStageAcknowledged},
		{"Resolved", true, true, AlertStageResolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &ExpirationAlert{Acknowledged: tt.acknowledged, Resolved: tt.resolved}
			if got := a.Stage(); got != tt.want {
				t.Errorf("Stage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpirationAlert_Refresh(t *testing.T) {
	exp := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	a := &ExpirationAlert{ExpirationDate: exp, AlertType: AlertTypeExpiringSoon}
	a.Refresh(time.Date(2026, 5, 22, 9, 0, 0, 0, time.UTC))
	if a.AlertType != AlertTypeExpired {
		t.Errorf("expected EXPIRED after the date passed, got %s", a.AlertType)
	}
	if a.DaysUntilExpiry != -2 {
		t.Errorf("expected -2 days, got %d", a.DaysUntilExpiry)
	}

	used := ResolutionUsed
	resolved := &ExpirationAlert{
		ExpirationDate: exp,
		AlertType:      AlertTypeExpiringSoon,
		Acknowledged:   true,
		Resolved:       true,
		ResolutionType: &used,
	}
	resolved.Refresh(time.Date(2026, 5, 22, 9, 0, 0, 0, time.UTC))
	if resolved.AlertType != AlertTypeExpiringSoon {
		t.Errorf("resolved alert type changed to %s", resolved.AlertType)
	}
	if resolved.DaysUntilExpiry != -2 {
		t.Errorf("expected day count to move, got %d", resolved.DaysUntilExpiry)
	}
}

func TestExpirationAlert_Validate(t *testing.T) {
	used := ResolutionUsed
	discarded := ResolutionDiscarded
	cleared := ResolutionCleared
	discardID := DiscardID("d-1")

	tests := []struct {
		name    string
		alert   ExpirationAlert
		wantErr bool
	}{
		{
			name:  "Open alert",
			alert: ExpirationAlert{AlertType: AlertTypeExpired},
		},
		{
			name:  "Resolved as used",
			alert: ExpirationAlert{AlertType: AlertTypeExpired, Acknowledged: true, Resolved: true, ResolutionType: &used},
		},
		{
			name:  "Cleared by the scanner",
			alert: ExpirationAlert{AlertType: AlertTypeExpiringSoon, Acknowledged: true, Resolved: true, ResolutionType: &cleared},
		},
		{
			name:  "Resolved by discard",
			alert: ExpirationAlert{AlertType: AlertTypeExpired, Acknowledged: true, Resolved: true, ResolutionType: &discarded, LinkedDiscardID: &discardID},
		},
		{
			name:    "Unknown type",
			alert:   ExpirationAlert{AlertType: "STALE"},
			wantErr: true,
		},
		{
			name:    "Resolved without acknowledgement",
			alert:   ExpirationAlert{AlertType: AlertTypeExpired, Resolved: true, ResolutionType: &used},
			wantErr: true,
		},
		{
			name:    "Resolved without type",
			alert:   ExpirationAlert{AlertType: AlertTypeExpired, Acknowledged: true, Resolved: true},
			wantErr: true,
		},
		{
			name:    "Discarded without link",
			alert:   ExpirationAlert{AlertType: AlertTypeExpired, Acknowledged: true, Resolved: true, ResolutionType: &discarded},
			wantErr: true,
		},
		{
			name:    "Used with link",
			alert:   ExpirationAlert{AlertType: AlertTypeExpired, Acknowledged: true, Resolved: true, ResolutionType: &used, LinkedDiscardID: &discardID},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.alert.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	if SeverityExpired.Rank() >= SeverityCritical.Rank() {
		t.Error("expired should outrank critical")
	}
	if SeverityWarning.Rank() >= SeverityOK.Rank() {
		t.Error("warning should outrank ok")
	}
	if got := Severity("UNKNOWN").Rank(); got != len(AllSeverities()) {
		t.Errorf("unknown severity rank = %d", got)
	}
}

func TestLotKey(t *testing.T) {
	padded := "  LOT-7 "
	if got := LotKey(&padded); got != "LOT-7" {
		t.Errorf("LotKey() = %q", got)
	}
	if got := LotKey(nil); got != "" {
		t.Errorf("LotKey(nil) = %q", got)
	}
}

func TestParseExpiration(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	tests := []struct {
		name    string
		in      string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{"Date in UTC", "2026-05-20", nil, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), false},
		{"Date in facility zone", "2026-05-20", chicago, time.Date(2026, 5, 20, 0, 0, 0, 0, chicago), false},
		{"RFC3339", "2026-05-20T08:30:00Z", nil, time.Date(2026, 5, 20, 8, 30, 0, 0, time.UTC), false},
		{"Surrounding space", " 2026-05-20 ", nil, time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC), false},
		{"Garbage", "next tuesday", nil, time.Time{}, true},
		{"Month first", "05/20/2026", nil, time.Time{}, true},
		{"Impossible date", "2026-02-30", nil, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpiration(tt.in, tt.loc)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseExpiration() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !got.Equal(tt.want) {
				t.Errorf("ParseExpiration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInventoryLot_ExpiresAt(t *testing.T) {
	lot := &InventoryLot{}
	if _, err := lot.ExpiresAt(time.UTC); err != ErrNoExpiration {
		t.Errorf("expected ErrNoExpiration, got %v", err)
	}
}
