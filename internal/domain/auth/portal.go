package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"tms-server/internal/domain/eventbus"
	"tms-server/internal/domain/rowstore"
	apperrors "tms-server/internal/platform/errors"
	"tms-server/internal/platform/observability"
)

// Column layout of the portal range: email, password, key, username.
const (
	colEmail = iota
	colPassword
	colKey
	colUsername
)

type PortalConfig struct {
	Range             string
	IdentityMarker    string
	MinPasswordLength int
}

// Identity is returned to a portal user after login or set-password.
type Identity struct {
	Username string
	Key      string
}

// EmailStatus answers check-email.
type EmailStatus struct {
	Exists      bool
	HasPassword bool
	Username    string
}

type portalUser struct {
	rowNumber int
	email     string
	stored    string
	key       string
	username  string
}

// PortalService runs portal login and password management over the row store.
type PortalService struct {
	rows     rowstore.Store
	verifier *CredentialVerifier
	cfg      PortalConfig
	rng      rowstore.Range
	bus      *eventbus.Bus
	logger   Logger
	upgrades singleflight.Group
}

func NewPortalService(rows rowstore.Store, verifier *CredentialVerifier, cfg PortalConfig, bus *eventbus.Bus, logger Logger) (*PortalService, error) {
	if cfg.Range == "" {
		cfg.Range = "portal!A:D"
	}
	if cfg.IdentityMarker == "" {
		cfg.IdentityMarker = "TMSP"
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = 8
	}
	rng, err := rowstore.ParseRange(cfg.Range)
	if err != nil {
		return nil, err
	}
	if rng.EndCol-rng.StartCol < colUsername {
		return nil, fmt.Errorf("portal range %s must span at least 4 columns", cfg.Range)
	}
	return &PortalService{
		rows:     rows,
		verifier: verifier,
		cfg:      cfg,
		rng:      rng,
		bus:      bus,
		logger:   loggerOrNop(logger),
	}, nil
}

// lookup finds the first row whose email matches case-insensitively.
// A nil user with nil error means no such email.
func (s *PortalService) lookup(ctx context.Context, email string) (*portalUser, error) {
	spanCtx, end := observability.StartSpan(ctx, "rowstore", "get_rows")
	rows, err := s.rows.GetRows(spanCtx, s.cfg.Range)
	end(err)
	if err != nil {
		return nil, err
	}
	want := strings.TrimSpace(email)
	if want == "" {
		return nil, nil
	}
	for i, row := range rows {
		cell := strings.TrimSpace(rowstore.Cell(row, colEmail))
		if cell == "" || !strings.EqualFold(cell, want) {
			continue
		}
		first := s.rng.StartRow
		if first == 0 {
			first = 1
		}
		return &portalUser{
			rowNumber: first + i,
			email:     rowstore.Cell(row, colEmail),
			stored:    rowstore.Cell(row, colPassword),
			key:       rowstore.Cell(row, colKey),
			username:  rowstore.Cell(row, colUsername),
		}, nil
	}
	return nil, nil
}

func (s *PortalService) writePassword(ctx context.Context, rowNumber int, hashed string) error {
	col := s.rng.StartCol + colPassword
	ctx, end := observability.StartSpan(ctx, "rowstore", "update_row")
	err := s.rows.UpdateRow(ctx, rowstore.RowRange(s.rng.Sheet, col, col, rowNumber), []string{hashed})
	end(err)
	return err
}

// CheckEmail reports whether an account exists and has a password set.
func (s *PortalService) CheckEmail(ctx context.Context, email string) (EmailStatus, error) {
	const op = "portal.check_email"
	email = strings.TrimSpace(email)
	if email == "" {
		return EmailStatus{}, apperrors.New(apperrors.KindValidation, op, "Email required")
	}
	user, err := s.lookup(ctx, email)
	if err != nil {
		return EmailStatus{}, apperrors.Wrap(apperrors.KindUpstream, op, "row store read failed", err)
	}
	if user == nil {
		return EmailStatus{}, nil
	}
	return EmailStatus{Exists: true, HasPassword: user.stored != "", Username: user.username}, nil
}

// Login checks the identity gate before any password work, verifies the
// password and, for a matching legacy plaintext, replaces it with a hash.
func (s *PortalService) Login(ctx context.Context, email, password string) (Identity, error) {
	const op = "portal.login"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Identity{}, apperrors.New(apperrors.KindValidation, op, "Email and password required")
	}

	user, err := s.lookup(ctx, email)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.KindUpstream, op, "row store read failed", err)
	}
	if user == nil || user.stored == "" {
		publish(ctx, s.bus, eventbus.EventPortalLogin, eventbus.OutcomeFailure, email, "invalid credentials")
		return Identity{}, apperrors.New(apperrors.KindAuthentication, op, "Invalid credentials")
	}
	if user.username != s.cfg.IdentityMarker {
		publish(ctx, s.bus, eventbus.EventPortalLogin, eventbus.OutcomeDenied, email, "identity gate")
		return Identity{}, apperrors.New(apperrors.KindAuthorization, op, "Access denied")
	}

	verdict, err := s.verifier.VerifyPortal(ctx, password, user.stored)
	if err != nil {
		if !errors.Is(err, ErrMalformedHash) {
			return Identity{}, apperrors.Wrap(apperrors.KindUpstream, op, "password verification aborted", err)
		}
		s.logger.Warn("portal row %d has a malformed password hash: %v", user.rowNumber, err)
	}
	if !verdict.OK {
		publish(ctx, s.bus, eventbus.EventPortalLogin, eventbus.OutcomeFailure, email, "invalid credentials")
		return Identity{}, apperrors.New(apperrors.KindAuthentication, op, "Invalid credentials")
	}

	if verdict.NeedsUpgrade {
		s.upgrade(ctx, user, password)
	}

	publish(ctx, s.bus, eventbus.EventPortalLogin, eventbus.OutcomeSuccess, email, "")
	return Identity{Username: user.username, Key: user.key}, nil
}

// upgrade replaces a legacy plaintext password with a hash. Concurrent
// upgrades of one account collapse into a single write, and the write is
// skipped if the stored value changed since it was verified. Failures are
// logged only; the login has already succeeded.
func (s *PortalService) upgrade(ctx context.Context, user *portalUser, password string) {
	ctx = context.WithoutCancel(ctx)
	key := strings.ToLower(strings.TrimSpace(user.email))

	_, err, _ := s.upgrades.Do(key, func() (interface{}, error) {
		current, err := s.lookup(ctx, user.email)
		if err != nil {
			return nil, err
		}
		if current == nil || current.stored != user.stored {
			return nil, nil
		}
		hashed, err := s.verifier.HashPassword(ctx, password)
		if err != nil {
			return nil, err
		}
		if err := s.writePassword(ctx, current.rowNumber, hashed); err != nil {
			return nil, err
		}
		publish(ctx, s.bus, eventbus.EventPasswordUpgraded, eventbus.OutcomeSuccess, user.email, "")
		s.logger.Info("portal password upgraded to hash for row %d", current.rowNumber)
		return nil, nil
	})
	if err != nil {
		publish(ctx, s.bus, eventbus.EventPasswordUpgraded, eventbus.OutcomeError, user.email, err.Error())
		s.logger.Error("portal password upgrade failed for row %d: %v", user.rowNumber, err)
	}
}

// SetPassword stores a new hashed password for an existing, gated account.
func (s *PortalService) SetPassword(ctx context.Context, email, password string) (Identity, error) {
	const op = "portal.set_password"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Identity{}, apperrors.New(apperrors.KindValidation, op, "Email and password required")
	}
	if utf8.RuneCountInString(password) < s.cfg.MinPasswordLength {
		return Identity{}, apperrors.New(apperrors.KindValidation, op, "Weak password")
	}

	user, err := s.lookup(ctx, email)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.KindUpstream, op, "row store read failed", err)
	}
	if user == nil {
		return Identity{}, apperrors.New(apperrors.KindNotFound, op, "Email not found")
	}
	if user.username != s.cfg.IdentityMarker {
		publish(ctx, s.bus, eventbus.EventPasswordSet, eventbus.OutcomeDenied, email, "identity gate")
		return Identity{}, apperrors.New(apperrors.KindAuthorization, op, "Access denied")
	}

	hashed, err := s.verifier.HashPassword(ctx, password)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.KindUpstream, op, "hashing failed", err)
	}
	if err := s.writePassword(ctx, user.rowNumber, hashed); err != nil {
		publish(ctx, s.bus, eventbus.EventPasswordSet, eventbus.OutcomeError, email, "row store write failed")
		return Identity{}, apperrors.Wrap(apperrors.KindUpstream, op, "row store write failed", err)
	}

	publish(ctx, s.bus, eventbus.EventPasswordSet, eventbus.OutcomeSuccess, email, "")
	return Identity{Username: user.username, Key: user.key}, nil
}
