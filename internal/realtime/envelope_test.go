package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeShapes(t *testing.T) {
	tests := []struct {
		name     string
		envelope Envelope
		wantType string
		action   string
	}{
		{"event created", NewEventCreated(7, nil), TypeEventCreated, ActionCreate},
		{"event updated", NewEventUpdated(7, nil), TypeEventUpdated, ActionUpdate},
		{"event deleted", NewEventDeleted(7, "cancelled"), TypeEventDeleted, ActionDelete},
		{"registration created", NewRegistrationCreated(42, 7, nil), TypeRegistrationCreated, ActionCreate},
		{"registration updated", NewRegistrationUpdated(42, 7, nil), TypeRegistrationUpdated, ActionUpdate},
		{"registration cancelled", NewRegistrationCancelled(42, 7, "sick"), TypeRegistrationCancelled, ActionDelete},
		{"check-in created", NewCheckInCreated(7, nil), TypeCheckInCreated, ActionCreate},
		{"notification created", NewNotificationCreated(nil), TypeNotificationCreated, ActionCreate},
		{"notification read", NewNotificationRead(3), TypeNotificationRead, ActionUpdate},
		{"statistics updated", NewStatisticsUpdated(nil), TypeStatisticsUpdated, ActionUpdate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantType, tc.envelope.Type)
			assert.Equal(t, tc.action, tc.envelope.Action)
			assert.False(t, tc.envelope.Timestamp.IsZero())
		})
	}
}

func TestEnvelopeWireFormat(t *testing.T) {
	env := NewRegistrationCreated(42, 7, map[string]string{"name": "Alice"})
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))

	assert.Equal(t, "registration_created", fields["type"])
	assert.Equal(t, "create", fields["action"])
	assert.EqualValues(t, 42, fields["registrationId"])
	assert.EqualValues(t, 7, fields["eventId"])
	assert.Contains(t, fields, "data")
	assert.Contains(t, fields, "timestamp")

	// Unset entity ids stay off the wire entirely.
	raw, err = json.Marshal(NewPong())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "eventId")
	assert.NotContains(t, string(raw), "registrationId")
	assert.NotContains(t, string(raw), "action")
}

func TestNotificationEnvelope(t *testing.T) {
	env := NewNotification("check_in", "New check-in", "Alice has checked in", map[string]interface{}{"eventId": 7})
	assert.Equal(t, TypeNotification, env.Type)
	assert.Equal(t, "check_in", env.NotificationType)
	assert.Equal(t, "New check-in", env.Title)
	assert.Equal(t, "Alice has checked in", env.Body)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"notificationType":"check_in"`)
}
