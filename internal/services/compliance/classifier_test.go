package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medequip/compliance/internal/models"
)

func TestClassify(t *testing.T) {
	now := testNow
	day := 24 * time.Hour

	tests := []struct {
		name     string
		exp      time.Time
		horizon  int
		wantType models.AlertType
		wantDays int
		wantOK   bool
	}{
		{"one day past", now.Add(-day), 30, models.AlertTypeExpired, -1, true},
		{"half day past rounds to today", now.Add(-12 * time.Hour), 30, models.AlertTypeExpiringSoon, 0, true},
		{"exactly now", now, 30, models.AlertTypeExpiringSoon, 0, true},
		{"later today", now.Add(time.Hour), 30, models.AlertTypeExpiringSoon, 1, true},
		{"at horizon", now.Add(30 * day), 30, models.AlertTypeExpiringSoon, 30, true},
		{"just past horizon", now.Add(30*day + time.Minute), 30, "", 31, false},
		{"zero horizon keeps today", now, 0, models.AlertTypeExpiringSoon, 0, true},
		{"long expired", now.Add(-400 * day), 30, models.AlertTypeExpired, -400, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotDays, ok := Classify(tt.exp, now, tt.horizon)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantDays, gotDays)
			require.Equal(t, tt.wantType, gotType)
		})
	}
}

func TestClassifyDateOnlyBoundaries(t *testing.T) {
	// Date-only expirations are midnight; now is noon.
	parse := func(s string) time.Time {
		exp, err := models.ParseExpiration(s, time.UTC)
		require.NoError(t, err)
		return exp
	}

	typ, days, ok := Classify(parse("2026-05-14"), testNow, 30)
	require.True(t, ok)
	require.Equal(t, models.AlertTypeExpired, typ)
	require.Equal(t, -1, days)

	typ, days, ok = Classify(parse("2026-05-15"), testNow, 30)
	require.True(t, ok)
	require.Equal(t, models.AlertTypeExpiringSoon, typ)
	require.Equal(t, 0, days)

	_, days, ok = Classify(parse("2026-06-14"), testNow, 30)
	require.True(t, ok)
	require.Equal(t, 30, days)

	_, days, ok = Classify(parse("2026-06-15"), testNow, 30)
	require.False(t, ok)
	require.Equal(t, 31, days)
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		days int
		want models.Severity
	}{
		{-5, models.SeverityExpired},
		{-1, models.SeverityExpired},
		{0, models.SeverityCritical},
		{7, models.SeverityCritical},
		{8, models.SeverityWarning},
		{30, models.SeverityWarning},
		{31, models.SeverityOK},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SeverityOf(tt.days), "days=%d", tt.days)
	}

	custom := Thresholds{Critical: 3, Warning: 14}
	require.Equal(t, models.SeverityWarning, custom.SeverityOf(4))
	require.Equal(t, models.SeverityOK, custom.SeverityOf(15))
}

func TestSeverityOfCoversEverySeverity(t *testing.T) {
	seen := make(map[models.Severity]bool)
	for days := -2; days <= 40; days++ {
		seen[SeverityOf(days)] = true
	}
	for _, sev := range models.AllSeverities() {
		require.True(t, seen[sev], "severity %s never produced", sev)
	}
}

func TestHumanDays(t *testing.T) {
	tests := map[int]string{
		-3: "3 days ago",
		-1: "1 days ago",
		0:  "Today",
		1:  "Tomorrow",
		2:  "2 days",
		45: "45 days",
	}
	for days, want := range tests {
		require.Equal(t, want, HumanDays(days))
	}
}
