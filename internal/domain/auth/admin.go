package auth

import (
	"context"
	"time"

	"tms-server/internal/domain/eventbus"
	apperrors "tms-server/internal/platform/errors"
)

// Session is a freshly issued admin session.
type Session struct {
	Token     string
	TTL       time.Duration
	ExpiresAt time.Time
}

type AdminConfig struct {
	SessionTTL  time.Duration
	RememberTTL time.Duration
}

// AdminService turns the admin password into a session token.
type AdminService struct {
	verifier *CredentialVerifier
	codec    *TokenCodec
	cfg      AdminConfig
	bus      *eventbus.Bus
	logger   Logger
}

func NewAdminService(verifier *CredentialVerifier, codec *TokenCodec, cfg AdminConfig, bus *eventbus.Bus, logger Logger) *AdminService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.RememberTTL <= 0 {
		cfg.RememberTTL = 30 * 24 * time.Hour
	}
	return &AdminService{
		verifier: verifier,
		codec:    codec,
		cfg:      cfg,
		bus:      bus,
		logger:   loggerOrNop(logger),
	}
}

// Login verifies password and issues a session, long-lived when remember is set.
func (s *AdminService) Login(ctx context.Context, password string, remember bool) (Session, error) {
	const op = "admin.login"
	if password == "" {
		return Session{}, apperrors.New(apperrors.KindValidation, op, "Password required")
	}
	if !s.verifier.VerifyAdmin(password) {
		publish(ctx, s.bus, eventbus.EventAdminLogin, eventbus.OutcomeFailure, AdminSubject, "invalid password")
		return Session{}, apperrors.New(apperrors.KindAuthentication, op, "Invalid password")
	}

	ttl := s.cfg.SessionTTL
	if remember {
		ttl = s.cfg.RememberTTL
	}
	token, payload, err := s.codec.Issue(AdminSubject, ttl)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.KindUnknown, op, "failed to issue session", err)
	}

	publish(ctx, s.bus, eventbus.EventAdminLogin, eventbus.OutcomeSuccess, AdminSubject, "")
	s.logger.Debug("admin session issued, remember=%v expires=%s", remember, payload.ExpiresAt.Format(time.RFC3339))
	return Session{Token: token, TTL: ttl, ExpiresAt: payload.ExpiresAt}, nil
}

type clientKey struct{}

// WithClient attaches the caller's network address for audit events.
func WithClient(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientKey{}, addr)
}

// ClientFrom returns the address stored by WithClient.
func ClientFrom(ctx context.Context) string {
	addr, _ := ctx.Value(clientKey{}).(string)
	return addr
}

func publish(ctx context.Context, bus *eventbus.Bus, topic, outcome, subject, reason string) {
	bus.PublishAsync(topic, eventbus.AuthEvent{
		Topic:   topic,
		Outcome: outcome,
		Client:  ClientFrom(ctx),
		Subject: subject,
		Reason:  reason,
		At:      time.Now(),
	})
}
