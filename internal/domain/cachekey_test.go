package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntriesKey_CaseNormalizesMember(t *testing.T) {
	assert.Equal(t, "entries::ana::2024-05-01", EntriesKey("Ana", "2024-05-01"))
	assert.Equal(t, EntriesKey("ANA ", "2024-05-01"), EntriesKey("ana", "2024-05-01"))
	assert.NotEqual(t, EntriesKey("ana", "2024-05-01"), EntriesKey("ana", "2024-05-02"))
}

func TestTeamWeekKey(t *testing.T) {
	assert.Equal(t, "team-week::2024-04-25::2024-05-01", TeamWeekKey("2024-04-25", "2024-05-01"))
}

func TestTeamDayKey(t *testing.T) {
	assert.Equal(t, "team::2024-05-01", TeamDayKey("2024-05-01"))
}
