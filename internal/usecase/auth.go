package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aidarbekov/walletd/internal/bus"
	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/email"
	"github.com/aidarbekov/walletd/internal/metrics"
	"github.com/aidarbekov/walletd/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultLinkTTL = 15 * time.Minute
	defaultJWTTTL  = 24 * time.Hour
)

type AuthUsecase struct {
	links    repository.MagicLinkRepository
	session  repository.SessionRepository
	bus      *bus.Bus
	email    email.Sender
	jwtKey   []byte
	linkTTL  time.Duration
	jwtTTL   time.Duration
	baseURL  string
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAuthUsecase(
	links repository.MagicLinkRepository,
	session repository.SessionRepository,
	eventBus *bus.Bus,
	emailSender email.Sender,
	jwtKey []byte,
	baseURL string,
	logger *slog.Logger,
) *AuthUsecase {
	return &AuthUsecase{
		links:    links,
		session:  session,
		bus:      eventBus,
		email:    emailSender,
		jwtKey:   jwtKey,
		linkTTL:  defaultLinkTTL,
		jwtTTL:   defaultJWTTTL,
		baseURL:  baseURL,
		validate: validator.New(),
		logger:   logger.With("component", "auth"),
	}
}

type IssueResult struct {
	Token string
	Link  string
}

// RequestLink generates a single-use sign-in token, stores its hash
// with a 15-minute expiry, and emails the verify link. The raw token
// never touches disk.
//
// A failing entropy source is a configuration error and propagates; it
// is never substituted with a weaker generator.
func (u *AuthUsecase) RequestLink(ctx context.Context, emailAddr string) (*IssueResult, error) {
	if err := u.validate.Var(emailAddr, "required,email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}

	raw := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, fmt.Errorf("secure random source unavailable: %w", err)
	}
	rawToken := hex.EncodeToString(raw)

	now := time.Now().UTC()
	link := &domain.MagicLink{
		TokenHash: hashToken(rawToken),
		Email:     emailAddr,
		ExpiresAt: now.Add(u.linkTTL),
		CreatedAt: now,
	}
	if err := u.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("store magic link: %w", err)
	}

	verifyURL := u.baseURL + "/auth/verify?token=" + rawToken
	subject := "Your sign-in link"
	body := fmt.Sprintf(
		`<p>Click the link below to sign in (expires in 15 minutes):</p><p><a href="%s">%s</a></p>`,
		verifyURL, verifyURL,
	)
	if err := u.email.Send(ctx, emailAddr, subject, body); err != nil {
		return nil, fmt.Errorf("send magic link: %w", err)
	}

	metrics.MagicLinksIssuedTotal.Inc()
	return &IssueResult{Token: rawToken, Link: verifyURL}, nil
}

type VerifyResult struct {
	User *domain.User
	JWT  string
}

// Verify redeems a raw token. Redemption is terminal: a link verifies
// successfully at most once, and an expired attempt does not consume
// the link.
func (u *AuthUsecase) Verify(ctx context.Context, rawToken string) (*VerifyResult, error) {
	tokenHash := hashToken(rawToken)

	link, err := u.links.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, domain.ErrLinkNotFound) {
			metrics.MagicLinkVerifiesTotal.WithLabelValues("not_found").Inc()
			return nil, domain.ErrLinkNotFound
		}
		return nil, fmt.Errorf("load magic link: %w", err)
	}
	if link.UsedAt != nil {
		metrics.MagicLinkVerifiesTotal.WithLabelValues("used").Inc()
		return nil, domain.ErrLinkUsed
	}
	now := time.Now().UTC()
	if !now.Before(link.ExpiresAt) {
		metrics.MagicLinkVerifiesTotal.WithLabelValues("expired").Inc()
		return nil, domain.ErrLinkExpired
	}

	if err := u.links.MarkUsed(ctx, tokenHash, now); err != nil {
		return nil, fmt.Errorf("claim magic link: %w", err)
	}

	user := &domain.User{
		Email:      link.Email,
		AuthMethod: domain.AuthMethodMagicLink,
		LastLogin:  now,
	}
	if err := u.session.Put(ctx, user); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	// Persist first, then notify: a listener observing login.changed may
	// rely on the session already being durable.
	u.bus.Emit(ctx, domain.EventLoginChanged, domain.LoginChange{User: user, Action: domain.LoginActionLogin})

	signed, err := u.signJWT(user, now)
	if err != nil {
		return nil, fmt.Errorf("sign jwt: %w", err)
	}

	metrics.MagicLinkVerifiesTotal.WithLabelValues("ok").Inc()
	return &VerifyResult{User: user, JWT: signed}, nil
}

// RestoreSession rehydrates the persisted user at startup. It never
// fails: read errors are logged and treated as "no session".
func (u *AuthUsecase) RestoreSession(ctx context.Context) *domain.User {
	user, err := u.session.Get(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			u.logger.WarnContext(ctx, "restore session", "error", err)
		}
		return nil
	}

	u.bus.Emit(ctx, domain.EventLoginChanged, domain.LoginChange{User: user, Action: domain.LoginActionRestore})
	return user
}

// Logout clears the current session. Without one it is a no-op.
func (u *AuthUsecase) Logout(ctx context.Context) error {
	_, err := u.session.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	if err := u.session.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}

	u.bus.Emit(ctx, domain.EventLoginChanged, domain.LoginChange{Action: domain.LoginActionLogout})
	return nil
}

// CurrentUser returns the persisted session, or domain.ErrNoSession.
func (u *AuthUsecase) CurrentUser(ctx context.Context) (*domain.User, error) {
	return u.session.Get(ctx)
}

func (u *AuthUsecase) signJWT(user *domain.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":   user.Email,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(u.jwtTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(u.jwtKey)
}

func hashToken(rawToken string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))
}
