package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

func identityEvent(eventType, providerID string) *models.IdentityEvent {
	first := "Ada"
	return &models.IdentityEvent{
		BaseEvent: models.BaseEvent{
			EventID:   "evt-1",
			EventType: eventType,
			Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Data: models.IdentityData{
			ProviderID:     providerID,
			EmailAddresses: []models.EmailAddress{{EmailAddress: "ada@example.com"}},
			FirstName:      &first,
		},
	}
}

func TestHandleEventRejectsMissingProviderID(t *testing.T) {
	st := &mockIdentityStore{}
	svc := NewIdentityService(st, nil, testRunner(), time.Hour, "")

	err := svc.HandleEvent(context.Background(), identityEvent(models.EventTypeUserCreated, "  "))

	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	st.AssertNotCalled(t, "CreateUserIfAbsent", mock.Anything, mock.Anything)
}

func TestHandleEventRejectsUnknownType(t *testing.T) {
	svc := NewIdentityService(&mockIdentityStore{}, nil, testRunner(), time.Hour, "")

	err := svc.HandleEvent(context.Background(), identityEvent("user.renamed", "u1"))

	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestHandleEventCreated(t *testing.T) {
	st := &mockIdentityStore{}
	st.On("CreateUserIfAbsent", mock.Anything, mock.MatchedBy(func(p models.IdentityProfile) bool {
		return p.ProviderID == "u1" && *p.Email == "ada@example.com" && *p.Name == "Ada"
	})).Return(true, nil)

	svc := NewIdentityService(st, nil, testRunner(), time.Hour, "")
	require.NoError(t, svc.HandleEvent(context.Background(), identityEvent(models.EventTypeUserCreated, "u1")))
	st.AssertExpectations(t)
}

func TestHandleEventUpdatedWithoutFieldsIsNoop(t *testing.T) {
	st := &mockIdentityStore{}
	ev := identityEvent(models.EventTypeUserUpdated, "u1")
	ev.Data.EmailAddresses = nil
	ev.Data.FirstName = nil

	svc := NewIdentityService(st, nil, testRunner(), time.Hour, "")
	require.NoError(t, svc.HandleEvent(context.Background(), ev))
	st.AssertNotCalled(t, "UpsertUserProfile", mock.Anything, mock.Anything)
}

func TestHandleEventStampsMissingTimestamp(t *testing.T) {
	st := &mockIdentityStore{}
	st.On("DeleteUserByProviderID", mock.Anything, "u1", mock.MatchedBy(func(at time.Time) bool {
		return !at.IsZero() && time.Since(at) < time.Minute
	})).Return(true, nil)

	ev := identityEvent(models.EventTypeUserDeleted, "u1")
	ev.Timestamp = time.Time{}

	svc := NewIdentityService(st, nil, testRunner(), time.Hour, "")
	require.NoError(t, svc.HandleEvent(context.Background(), ev))
	st.AssertExpectations(t)
	assert.True(t, ev.Timestamp.IsZero(), "caller's event is left untouched")
}

func TestHandleEventSkipsDuplicates(t *testing.T) {
	st := &mockIdentityStore{}
	dedupe := &mockDeduper{}
	dedupe.On("MarkEventSeen", mock.Anything, "evt-1", time.Hour).Return(false, nil)

	svc := NewIdentityService(st, dedupe, testRunner(), time.Hour, "")
	require.NoError(t, svc.HandleEvent(context.Background(), identityEvent(models.EventTypeUserCreated, "u1")))
	st.AssertNotCalled(t, "CreateUserIfAbsent", mock.Anything, mock.Anything)
}

func TestHandleEventForgetsFailedEvent(t *testing.T) {
	st := &mockIdentityStore{}
	dedupe := &mockDeduper{}
	dedupe.On("MarkEventSeen", mock.Anything, "evt-1", time.Hour).Return(true, nil)
	dedupe.On("ForgetEvent", mock.Anything, "evt-1").Return(nil)
	st.On("UpsertUserProfile", mock.Anything, mock.Anything).Return(false, apperr.ErrUnavailable)

	svc := NewIdentityService(st, dedupe, testRunner(), time.Hour, "")
	err := svc.HandleEvent(context.Background(), identityEvent(models.EventTypeUserUpdated, "u1"))

	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	st.AssertNumberOfCalls(t, "UpsertUserProfile", 3)
	dedupe.AssertCalled(t, "ForgetEvent", mock.Anything, "evt-1")
}

func TestHandleEventAppliesWhenDedupeUnavailable(t *testing.T) {
	st := &mockIdentityStore{}
	dedupe := &mockDeduper{}
	dedupe.On("MarkEventSeen", mock.Anything, "evt-1", time.Hour).Return(false, errors.New("redis down"))
	st.On("CreateUserIfAbsent", mock.Anything, mock.Anything).Return(false, nil)

	svc := NewIdentityService(st, dedupe, testRunner(), time.Hour, "")
	require.NoError(t, svc.HandleEvent(context.Background(), identityEvent(models.EventTypeUserCreated, "u1")))
	st.AssertExpectations(t)
}

func TestEnsureUserAndAdmin(t *testing.T) {
	st := &mockIdentityStore{}
	user := &models.User{ID: 1, ProviderID: "u1", Email: "Owner@Shop.test"}
	st.On("EnsureUser", mock.Anything, "u1").Return(user, nil)

	svc := NewIdentityService(st, nil, testRunner(), time.Hour, " owner@shop.test ")

	got, err := svc.EnsureUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, svc.IsAdmin(got))
	assert.False(t, svc.IsAdmin(&models.User{Email: "someone@shop.test"}))

	_, err = svc.EnsureUser(context.Background(), "")
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))

	noAdmin := NewIdentityService(st, nil, testRunner(), time.Hour, "")
	assert.False(t, noAdmin.IsAdmin(&models.User{Email: ""}))
}
