package service

import (
	"context"
	"time"

	"rfsentry/internal/config"
	"rfsentry/internal/engine"
	"rfsentry/internal/logger"
	"rfsentry/internal/models"
	"rfsentry/internal/repository"

	"github.com/google/uuid"
)

// engineControl is the slice of the engine the sentry service drives;
// narrowed for testability.
type engineControl interface {
	Arm()
	Disarm()
	Armed() bool
	TriggerTest(deviceID string) error
	Policy() models.PolicyConfig
	OnConfigUpdate(models.PolicyConfig)
}

var _ engineControl = (*engine.Engine)(nil)

// SentryService implements operator control with an audit trail: every
// arm/disarm/test lands in the event log.
type SentryService struct {
	engine    engineControl
	eventRepo repository.EventRepo
	log       *logger.Logger
}

func NewSentryService(eng engineControl, eventRepo repository.EventRepo, log *logger.Logger) *SentryService {
	return &SentryService{engine: eng, eventRepo: eventRepo, log: log}
}

// Arm enables alerting and records the action.
func (s *SentryService) Arm(ctx context.Context) error {
	s.engine.Arm()
	return s.audit(ctx, models.EventArmed, "Sentry armed")
}

// Disarm suppresses alerting (clearing any active alert) and records it.
func (s *SentryService) Disarm(ctx context.Context) error {
	s.engine.Disarm()
	return s.audit(ctx, models.EventDisarmed, "Sentry disarmed")
}

// TriggerTest injects a synthetic approach for the given device (or the
// built-in test device) and records the action.
func (s *SentryService) TriggerTest(ctx context.Context, deviceID string) error {
	if deviceID != "" {
		if models.NormalizeDeviceID(deviceID) == "" {
			return engine.ErrMalformedSighting
		}
	}
	if err := s.engine.TriggerTest(deviceID); err != nil {
		return err
	}
	target := deviceID
	if target == "" {
		target = engine.TestDeviceID
	}
	return s.audit(ctx, models.EventTest, "Simulated approach injected for "+target)
}

// Policy returns the live policy snapshot.
func (s *SentryService) Policy(_ context.Context) models.PolicyConfig {
	return s.engine.Policy()
}

// UpdatePolicy validates and hot-swaps the detection policy. An invalid
// policy is rejected whole; the running one stays authoritative.
func (s *SentryService) UpdatePolicy(ctx context.Context, p models.PolicyConfig) error {
	if err := config.ValidatePolicy(p); err != nil {
		return err
	}
	normalized := make(map[string]string, len(p.Whitelist))
	for addr, name := range p.Whitelist {
		normalized[models.NormalizeDeviceID(addr)] = name
	}
	p.Whitelist = normalized
	s.engine.OnConfigUpdate(p)
	return s.audit(ctx, models.EventPolicyUpdated, "Policy updated", map[string]any{
		"approach_delta":       p.ApproachDelta,
		"rssi_alert_threshold": p.RSSIAlertThreshold,
		"allowlist_size":       len(p.Whitelist),
	})
}

// audit appends an operator action to the event log; a storage failure
// is logged but never fails the action itself.
func (s *SentryService) audit(ctx context.Context, typ, desc string, meta ...any) error {
	ev := models.SentryEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        typ,
		Description: desc,
	}
	if len(meta) > 0 {
		ev.Metadata = meta[0]
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Errorw("audit_append_failed", "type", typ, "err", err)
	}
	return nil
}
