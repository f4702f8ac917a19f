package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"
)

// IdentityService keeps local user records in step with the identity provider
type IdentityService struct {
	store      IdentityStore
	dedupe     EventDeduper
	runner     *Runner
	seenTTL    time.Duration
	adminEmail string
	logger     *zap.Logger
}

// NewIdentityService creates a new identity service. dedupe may be nil.
func NewIdentityService(store IdentityStore, dedupe EventDeduper, runner *Runner, seenTTL time.Duration, adminEmail string) *IdentityService {
	return &IdentityService{
		store:      store,
		dedupe:     dedupe,
		runner:     runner,
		seenTTL:    seenTTL,
		adminEmail: strings.TrimSpace(adminEmail),
		logger:     util.GetLogger(),
	}
}

// HandleEvent applies one identity event. Redeliveries, duplicates and
// out-of-order arrivals converge on the provider's latest state.
func (s *IdentityService) HandleEvent(ctx context.Context, event *models.IdentityEvent) error {
	ctx, span := util.StartSpan(ctx, "IdentityService.HandleEvent")
	defer span.End()

	if event == nil || strings.TrimSpace(event.Data.ProviderID) == "" {
		return apperr.ErrInvalidInput.WithMessage("Identity event has no user id")
	}
	switch event.EventType {
	case models.EventTypeUserCreated, models.EventTypeUserUpdated, models.EventTypeUserDeleted:
	default:
		return apperr.ErrInvalidInput.WithMessage("Unknown identity event type %q", event.EventType)
	}

	ev := *event
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	log := util.LoggerFromContext(ctx).With(
		zap.String("event_id", ev.EventID),
		zap.String("type", ev.EventType),
		zap.String("provider_id", ev.Data.ProviderID))

	marked := false
	if s.dedupe != nil && ev.EventID != "" {
		first, err := s.dedupe.MarkEventSeen(ctx, ev.EventID, s.seenTTL)
		if err != nil {
			log.Warn("Event dedupe unavailable, applying anyway", zap.Error(err))
		} else if !first {
			util.IdentityEventsTotal.WithLabelValues(ev.EventType, "duplicate").Inc()
			log.Debug("Skipping already handled event")
			return nil
		} else {
			marked = true
		}
	}

	var applied bool
	err := s.runner.Do(ctx, "identity_"+ev.EventType, func(ctx context.Context) error {
		var err error
		applied, err = s.apply(ctx, &ev)
		return err
	})
	if err != nil {
		util.IdentityEventsTotal.WithLabelValues(ev.EventType, "failed").Inc()
		if marked {
			if ferr := s.dedupe.ForgetEvent(ctx, ev.EventID); ferr != nil {
				log.Warn("Failed to forget event after failure", zap.Error(ferr))
			}
		}
		log.Error("Failed to apply identity event", zap.Error(err))
		return err
	}

	outcome := "applied"
	if !applied {
		outcome = "skipped"
	}
	util.IdentityEventsTotal.WithLabelValues(ev.EventType, outcome).Inc()
	log.Info("Identity event handled", zap.String("outcome", outcome))
	return nil
}

func (s *IdentityService) apply(ctx context.Context, ev *models.IdentityEvent) (bool, error) {
	switch ev.EventType {
	case models.EventTypeUserCreated:
		return s.store.CreateUserIfAbsent(ctx, ev.CreateProfile())
	case models.EventTypeUserUpdated:
		p := ev.UpdateProfile()
		if p.Empty() {
			return false, nil
		}
		return s.store.UpsertUserProfile(ctx, p)
	default:
		return s.store.DeleteUserByProviderID(ctx, ev.Data.ProviderID, ev.Timestamp)
	}
}

// EnsureUser returns the local user for an authenticated caller, creating a
// placeholder record when the Created event has not arrived yet.
func (s *IdentityService) EnsureUser(ctx context.Context, providerID string) (*models.User, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, apperr.ErrInvalidInput.WithMessage("User id is required")
	}

	var user *models.User
	err := s.runner.Do(ctx, "ensure_user", func(ctx context.Context) error {
		var err error
		user, err = s.store.EnsureUser(ctx, providerID)
		return err
	})
	return user, err
}

// IsAdmin reports whether user holds the administrator role
func (s *IdentityService) IsAdmin(user *models.User) bool {
	return user != nil && s.adminEmail != "" && strings.EqualFold(strings.TrimSpace(user.Email), s.adminEmail)
}
