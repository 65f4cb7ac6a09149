package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyLogPayloadRoundTrip(t *testing.T) {
	arrival := "07:15"
	payloads := []DailyLogPayload{
		PresenceData{Status: AttendanceHadir, ArrivalTime: &arrival},
		WorshipData{SholatDhuha: true, DoaHarian: true, AdditionalActivities: []string{"infaq"}},
		QuranProgressData{IqroLevel: 2, PageNumber: 14, Quality: "lancar"},
	}

	for _, p := range payloads {
		logType, raw, err := EncodeDailyLogPayload(p)
		require.NoError(t, err)
		assert.Equal(t, p.LogType(), logType)

		decoded, err := DecodeDailyLogPayload(logType, raw)
		require.NoError(t, err)
		assert.Equal(t, p, decoded)
	}
}

func TestDecodeDailyLogPayloadRejectsUnknownType(t *testing.T) {
	_, err := DecodeDailyLogPayload("snack", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown daily log type")
}

func TestEncodeDailyLogPayloadNil(t *testing.T) {
	_, _, err := EncodeDailyLogPayload(nil)
	require.Error(t, err)
}
