package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyShare(t *testing.T) {
	tests := []struct {
		name   string
		annual Cents
		want   Cents
	}{
		{"divides evenly", 12000, 1000},
		{"rounds half up", 12006, 1001},
		{"rounds down below half", 12005, 1000},
		{"zero annual", 0, 0},
		{"negative annual", -100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MonthlyShare(tt.annual))
		})
	}
}

func TestCentsString(t *testing.T) {
	assert.Equal(t, "120.50", Cents(12050).String())
	assert.Equal(t, "-0.05", Cents(-5).String())
	assert.Equal(t, "0.00", Cents(0).String())
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2026-03")
	require.NoError(t, err)
	assert.Equal(t, 2026, p.Year)
	assert.Equal(t, time.March, p.Month)
	assert.Equal(t, "2026-03", p.String())

	for _, bad := range []string{"2026-13", "march", "", "2026-03-01"} {
		_, err := ParsePeriod(bad)
		assert.Error(t, err, bad)
	}
}

func TestPeriodNextWrapsYear(t *testing.T) {
	dec := Period{Year: 2026, Month: time.December}
	assert.Equal(t, Period{Year: 2027, Month: time.January}, dec.Next())
	assert.True(t, dec.Before(dec.Next()))
}

func TestRoleAtLeast(t *testing.T) {
	assert.True(t, RoleGlobalAdmin.AtLeast(RoleUnitAdmin))
	assert.True(t, RoleUnitAdmin.AtLeast(RoleUnitAdmin))
	assert.False(t, RoleContributor.AtLeast(RoleUnitAdmin))

	_, err := ParseRole("superuser")
	assert.Error(t, err)
}

func TestIDRoundTrip(t *testing.T) {
	accountID := NewAccountID()
	parsed, err := ParseAccountID(accountID.String())
	require.NoError(t, err)
	assert.Equal(t, accountID, parsed)

	_, err = ParseAccountID("not-a-uuid")
	assert.Error(t, err)
}
