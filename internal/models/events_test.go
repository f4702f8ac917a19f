package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeIdentity(t *testing.T, raw string) *IdentityEvent {
	t.Helper()
	var e IdentityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	return &e
}

func TestCreateProfileDefaults(t *testing.T) {
	e := decodeIdentity(t, `{"event_id":"e1","event_type":"user.created","data":{"id":"user_1","email_addresses":[]}}`)

	p := e.CreateProfile()

	assert.Equal(t, "user_1", p.ProviderID)
	assert.Equal(t, "", *p.Email)
	assert.Equal(t, DefaultUserName, *p.Name)
	assert.Nil(t, p.ImageURL)
}

func TestCreateProfileUsesFirstEmailAndJoinedName(t *testing.T) {
	e := decodeIdentity(t, `{"data":{"id":"user_1",
		"email_addresses":[{"email_address":"a@example.com"},{"email_address":"b@example.com"}],
		"first_name":"Ada","last_name":null,"image_url":"https://img/a.png"}}`)

	p := e.CreateProfile()

	assert.Equal(t, "a@example.com", *p.Email)
	assert.Equal(t, "Ada", *p.Name)
	require.NotNil(t, p.ImageURL)
	assert.Equal(t, "https://img/a.png", *p.ImageURL)
}

func TestUpdateProfileOnlyCarriesPresentFields(t *testing.T) {
	e := decodeIdentity(t, `{"data":{"id":"user_1","email_addresses":[],"first_name":"Grace","last_name":"Hopper"}}`)

	p := e.UpdateProfile()

	assert.Nil(t, p.Email)
	assert.Equal(t, "Grace Hopper", *p.Name)
	assert.False(t, p.ImageURLSet)
	assert.False(t, p.Empty())
}

func TestUpdateProfileExplicitNullImageClears(t *testing.T) {
	e := decodeIdentity(t, `{"data":{"id":"user_1","image_url":null}}`)

	p := e.UpdateProfile()

	assert.True(t, p.ImageURLSet)
	assert.Nil(t, p.ImageURL)
	assert.False(t, p.Empty())
}

func TestUpdateProfileEmpty(t *testing.T) {
	e := decodeIdentity(t, `{"data":{"id":"user_1","email_addresses":[],"first_name":"  "}}`)

	assert.True(t, e.UpdateProfile().Empty())
}

func TestJSONValueRoundTripsRawDocument(t *testing.T) {
	var order struct {
		Payment JSONValue `json:"payment"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"payment":{"id":"pi_1","status":"succeeded"}}`), &order))

	out, err := json.Marshal(order)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payment":{"id":"pi_1","status":"succeeded"}}`, string(out))

	v, err := JSONValue(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStatusRankAndCategory(t *testing.T) {
	assert.Less(t, StatusRank(OrderStatusPending), StatusRank(OrderStatusShipped))
	assert.Less(t, StatusRank(OrderStatusShipped), StatusRank(OrderStatusDelivered))
	assert.Equal(t, -1, StatusRank("Cancelled"))

	assert.True(t, CategoryHomeDecor.Valid())
	assert.False(t, Category("Garden").Valid())
}
