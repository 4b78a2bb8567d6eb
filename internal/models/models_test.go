package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewportStateQuantisesAndRoundTrips(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("BST", 3600))
	data, err := EncodeViewportState(Viewport{CenterLat: 51.5054321, CenterLng: -0.0912345, Zoom: 12.25}, at)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 51.50543, raw["lat"])
	assert.Equal(t, -0.09123, raw["lng"])
	assert.Equal(t, "2024-05-01T11:00:00Z", raw["timestamp"])

	vp, err := DecodeViewportState(data, 5, 17)
	require.NoError(t, err)
	assert.Equal(t, Viewport{CenterLat: 51.50543, CenterLng: -0.09123, Zoom: 12.25}, vp)
}

func TestDecodeViewportStateClampsZoom(t *testing.T) {
	vp, err := DecodeViewportState([]byte(`{"lat":1,"lng":2,"zoom":25,"timestamp":"2024-05-01T12:00:00Z"}`), 5, 17)
	require.NoError(t, err)
	assert.Equal(t, 17.0, vp.Zoom)

	vp, err = DecodeViewportState([]byte(`{"lat":1,"lng":2,"zoom":0,"timestamp":"2024-05-01T12:00:00Z"}`), 5, 17)
	require.NoError(t, err)
	assert.Equal(t, 5.0, vp.Zoom)
}

func TestDecodeViewportStateRejectsMalformed(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":         ``,
		"array":         `[1,2,3]`,
		"string zoom":   `{"lat":1,"lng":2,"zoom":"12","timestamp":"2024-05-01T12:00:00Z"}`,
		"null lng":      `{"lat":1,"lng":null,"zoom":12,"timestamp":"2024-05-01T12:00:00Z"}`,
		"no timestamp":  `{"lat":1,"lng":2,"zoom":12}`,
		"lat too large": `{"lat":91,"lng":2,"zoom":12,"timestamp":"2024-05-01T12:00:00Z"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeViewportState([]byte(raw), 5, 17)
			assert.Error(t, err)
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Suspected ")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspected, s)

	_, err = ParseStatus("resolved")
	assert.Error(t, err)
}

func TestSeverityOrder(t *testing.T) {
	for i := 1; i < len(Statuses); i++ {
		assert.Less(t, Statuses[i-1].Severity(), Statuses[i].Severity())
	}
	assert.False(t, Status("other").Valid())
}

func TestNotificationsOmitUnsetFields(t *testing.T) {
	data, err := json.Marshal(MarkerClicked("m1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"marker_clicked","markerId":"m1"}`, string(data))

	data, err = json.Marshal(ViewportChanged(Viewport{CenterLat: 1, CenterLng: 2, Zoom: 3}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"viewport_changed","lat":1,"lng":2,"zoom":3}`, string(data))
}
