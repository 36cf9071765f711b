package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactsSyncedPayload struct {
	TenantID string `json:"tenant_id"`
	Inserted int    `json:"inserted"`
	Updated  int    `json:"updated"`
}

func TestNewEvent_PopulatesEnvelope(t *testing.T) {
	payload := contactsSyncedPayload{TenantID: "loc-1", Inserted: 10, Updated: 2}

	event, err := NewEvent("crm.contacts.synced", "loc-1", "tenant", "crm-sync", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "crm.contacts.synced", event.EventType)
	assert.Equal(t, "loc-1", event.AggregateID)
	assert.Equal(t, "tenant", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.Equal(t, "crm-sync", event.Source)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 5*time.Second)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	e1, err := NewEvent("t", "a", "tenant", "crm-sync", nil)
	require.NoError(t, err)
	e2, err := NewEvent("t", "a", "tenant", "crm-sync", nil)
	require.NoError(t, err)
	assert.NotEqual(t, e1.EventID, e2.EventID)
}

func TestEvent_MarshalRoundTrip(t *testing.T) {
	payload := contactsSyncedPayload{TenantID: "loc-2", Inserted: 5}
	event, err := NewEvent("crm.opportunities.synced", "loc-2", "tenant", "crm-sync", payload)
	require.NoError(t, err)
	event.WithCorrelationID("corr-1").WithMetadata("trigger", "scheduled")

	data, err := event.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.Equal(t, "scheduled", decoded.Metadata["trigger"])

	var out contactsSyncedPayload
	require.NoError(t, decoded.UnmarshalData(&out))
	assert.Equal(t, "loc-2", out.TenantID)
	assert.Equal(t, 5, out.Inserted)
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte("{not json"))
	assert.Error(t, err)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "crm.contacts.synced", Topic("contacts", "synced"))
	assert.Equal(t, "crm.opportunities.synced", Topic("opportunities", "synced"))
	assert.Equal(t, "crm.contacts.aggregated", Topic("contacts", "aggregated"))
}
