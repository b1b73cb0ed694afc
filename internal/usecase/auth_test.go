package usecase_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aidarbekov/walletd/internal/bus"
	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/usecase"
	"github.com/golang-jwt/jwt/v5"
)

// ---- fakes ----

type fakeLinkRepo struct {
	create      func(ctx context.Context, link *domain.MagicLink) error
	getByHash   func(ctx context.Context, tokenHash string) (*domain.MagicLink, error)
	markUsed    func(ctx context.Context, tokenHash string, usedAt time.Time) error
	deleteStale func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (r *fakeLinkRepo) Create(ctx context.Context, link *domain.MagicLink) error {
	return r.create(ctx, link)
}

func (r *fakeLinkRepo) GetByHash(ctx context.Context, tokenHash string) (*domain.MagicLink, error) {
	return r.getByHash(ctx, tokenHash)
}

func (r *fakeLinkRepo) MarkUsed(ctx context.Context, tokenHash string, usedAt time.Time) error {
	return r.markUsed(ctx, tokenHash, usedAt)
}

func (r *fakeLinkRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteStale(ctx, cutoff)
}

// fakeSessionRepo is an in-memory session slot.
type fakeSessionRepo struct {
	user   *domain.User
	getErr error
	putErr error
}

func (r *fakeSessionRepo) Get(_ context.Context) (*domain.User, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	if r.user == nil {
		return nil, domain.ErrNoSession
	}
	return r.user, nil
}

func (r *fakeSessionRepo) Put(_ context.Context, user *domain.User) error {
	if r.putErr != nil {
		return r.putErr
	}
	r.user = user
	return nil
}

func (r *fakeSessionRepo) Clear(_ context.Context) error {
	r.user = nil
	return nil
}

type fakeEmailSender struct {
	send func(ctx context.Context, to, subject, body string) error
}

func (s *fakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if s.send == nil {
		return nil
	}
	return s.send(ctx, to, subject, body)
}

// ---- helpers ----

const (
	testJWTKey  = "test-jwt-secret-at-least-32-chars!!"
	testBaseURL = "http://localhost:8080"
	testEmail   = "a@b.com"
)

func newAuth(links *fakeLinkRepo, session *fakeSessionRepo, sender *fakeEmailSender, eventBus *bus.Bus) *usecase.AuthUsecase {
	if eventBus == nil {
		eventBus = bus.New(slog.Default())
	}
	return usecase.NewAuthUsecase(links, session, eventBus, sender, []byte(testJWTKey), testBaseURL, slog.Default())
}

func hashOf(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// ---- RequestLink ----

func TestRequestLink_InvalidEmail_NothingPersisted(t *testing.T) {
	created := false
	links := &fakeLinkRepo{
		create: func(_ context.Context, _ *domain.MagicLink) error {
			created = true
			return nil
		},
	}

	_, err := newAuth(links, &fakeSessionRepo{}, &fakeEmailSender{}, nil).
		RequestLink(context.Background(), "not-an-email")

	if !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("want ErrInvalidEmail, got %v", err)
	}
	if created {
		t.Fatal("link was persisted for an invalid email")
	}
}

func TestRequestLink_StoresHashOfReturnedToken(t *testing.T) {
	var captured *domain.MagicLink
	links := &fakeLinkRepo{
		create: func(_ context.Context, link *domain.MagicLink) error {
			captured = link
			return nil
		},
	}

	res, err := newAuth(links, &fakeSessionRepo{}, &fakeEmailSender{}, nil).
		RequestLink(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(res.Token) != 64 || strings.ToLower(res.Token) != res.Token {
		t.Errorf("token %q is not 64 lowercase hex chars", res.Token)
	}
	if captured.TokenHash != hashOf(res.Token) {
		t.Errorf("stored hash %q != SHA-256 of returned token", captured.TokenHash)
	}
	if captured.Email != testEmail {
		t.Errorf("email = %q, want %q", captured.Email, testEmail)
	}
	if captured.UsedAt != nil {
		t.Error("new link already marked used")
	}
	if !strings.Contains(res.Link, "/auth/verify?token="+res.Token) {
		t.Errorf("link %q does not embed the raw token", res.Link)
	}

	ttl := time.Until(captured.ExpiresAt)
	if ttl < 14*time.Minute || ttl > 16*time.Minute {
		t.Errorf("expiry %v from now, want about 15m", ttl)
	}
}

func TestRequestLink_EmailError_Propagates(t *testing.T) {
	sendErr := errors.New("smtp unavailable")
	links := &fakeLinkRepo{
		create: func(_ context.Context, _ *domain.MagicLink) error { return nil },
	}
	sender := &fakeEmailSender{
		send: func(_ context.Context, _, _, _ string) error { return sendErr },
	}

	_, err := newAuth(links, &fakeSessionRepo{}, sender, nil).RequestLink(context.Background(), testEmail)
	if !errors.Is(err, sendErr) {
		t.Fatalf("want wrapped sendErr, got %v", err)
	}
}

// ---- Verify ----

// memLinkRepo gives Verify real single-use semantics.
type memLinkRepo struct {
	links map[string]*domain.MagicLink
}

func newMemLinkRepo() *memLinkRepo {
	return &memLinkRepo{links: make(map[string]*domain.MagicLink)}
}

func (r *memLinkRepo) Create(_ context.Context, link *domain.MagicLink) error {
	cp := *link
	r.links[link.TokenHash] = &cp
	return nil
}

func (r *memLinkRepo) GetByHash(_ context.Context, tokenHash string) (*domain.MagicLink, error) {
	l, ok := r.links[tokenHash]
	if !ok {
		return nil, domain.ErrLinkNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *memLinkRepo) MarkUsed(_ context.Context, tokenHash string, usedAt time.Time) error {
	l, ok := r.links[tokenHash]
	if !ok {
		return domain.ErrLinkNotFound
	}
	if l.UsedAt != nil {
		return domain.ErrLinkUsed
	}
	l.UsedAt = &usedAt
	return nil
}

func (r *memLinkRepo) DeleteStale(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func newAuthWithMemLinks(session *fakeSessionRepo, eventBus *bus.Bus) (*usecase.AuthUsecase, *memLinkRepo) {
	links := newMemLinkRepo()
	if eventBus == nil {
		eventBus = bus.New(slog.Default())
	}
	auth := usecase.NewAuthUsecase(links, session, eventBus, &fakeEmailSender{}, []byte(testJWTKey), testBaseURL, slog.Default())
	return auth, links
}

func TestVerify_SucceedsExactlyOnce(t *testing.T) {
	session := &fakeSessionRepo{}
	auth, _ := newAuthWithMemLinks(session, nil)
	ctx := context.Background()

	res, err := auth.RequestLink(ctx, testEmail)
	if err != nil {
		t.Fatalf("request link: %v", err)
	}

	verified, err := auth.Verify(ctx, res.Token)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if verified.User.Email != testEmail {
		t.Errorf("email = %q, want %q", verified.User.Email, testEmail)
	}
	if verified.User.AuthMethod != domain.AuthMethodMagicLink {
		t.Errorf("authMethod = %q, want %q", verified.User.AuthMethod, domain.AuthMethodMagicLink)
	}
	if session.user == nil {
		t.Fatal("session not persisted")
	}

	_, err = auth.Verify(ctx, res.Token)
	if !errors.Is(err, domain.ErrLinkUsed) {
		t.Fatalf("second verify: want ErrLinkUsed, got %v", err)
	}
}

func TestVerify_UnknownToken(t *testing.T) {
	auth, _ := newAuthWithMemLinks(&fakeSessionRepo{}, nil)

	_, err := auth.Verify(context.Background(), strings.Repeat("ab", 32))
	if !errors.Is(err, domain.ErrLinkNotFound) {
		t.Fatalf("want ErrLinkNotFound, got %v", err)
	}
}

func TestVerify_Expired_NotMarkedUsed(t *testing.T) {
	auth, links := newAuthWithMemLinks(&fakeSessionRepo{}, nil)
	ctx := context.Background()

	const raw = "deadbeef"
	links.Create(ctx, &domain.MagicLink{
		TokenHash: hashOf(raw),
		Email:     testEmail,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-16 * time.Minute),
	})

	_, err := auth.Verify(ctx, raw)
	if !errors.Is(err, domain.ErrLinkExpired) {
		t.Fatalf("want ErrLinkExpired, got %v", err)
	}

	stored, _ := links.GetByHash(ctx, hashOf(raw))
	if stored.UsedAt != nil {
		t.Fatal("expired link was marked used by the failed attempt")
	}
}

func TestVerify_EmitsLoginChangedAfterPersist(t *testing.T) {
	session := &fakeSessionRepo{}
	eventBus := bus.New(slog.Default())
	auth, _ := newAuthWithMemLinks(session, eventBus)
	ctx := context.Background()

	var change domain.LoginChange
	var persistedAtEmit bool
	eventBus.Subscribe(domain.EventLoginChanged, func(_ context.Context, payload any) error {
		change = payload.(domain.LoginChange)
		persistedAtEmit = session.user != nil
		return nil
	})

	res, _ := auth.RequestLink(ctx, testEmail)
	if _, err := auth.Verify(ctx, res.Token); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if change.Action != domain.LoginActionLogin {
		t.Errorf("action = %q, want login", change.Action)
	}
	if change.User == nil || change.User.Email != testEmail {
		t.Errorf("event user = %+v, want %s", change.User, testEmail)
	}
	if !persistedAtEmit {
		t.Error("login.changed observed before the session was persisted")
	}
}

func TestVerify_ReturnsValidJWT(t *testing.T) {
	auth, _ := newAuthWithMemLinks(&fakeSessionRepo{}, nil)
	ctx := context.Background()

	res, _ := auth.RequestLink(ctx, testEmail)
	verified, err := auth.Verify(ctx, res.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	token, parseErr := jwt.Parse(verified.JWT, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected method")
		}
		return []byte(testJWTKey), nil
	})
	if parseErr != nil || !token.Valid {
		t.Fatalf("returned JWT is invalid: %v", parseErr)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["email"] != testEmail {
		t.Errorf("email claim = %v, want %q", claims["email"], testEmail)
	}
}

// ---- RestoreSession / Logout ----

func TestRestoreSession_NoSession_NoEvent(t *testing.T) {
	eventBus := bus.New(slog.Default())
	var emitted bool
	eventBus.Subscribe(domain.EventLoginChanged, func(_ context.Context, _ any) error {
		emitted = true
		return nil
	})

	auth, _ := newAuthWithMemLinks(&fakeSessionRepo{}, eventBus)
	if user := auth.RestoreSession(context.Background()); user != nil {
		t.Fatalf("user = %+v, want nil", user)
	}
	if emitted {
		t.Fatal("login.changed emitted with no session")
	}
}

func TestRestoreSession_StorageError_Swallowed(t *testing.T) {
	session := &fakeSessionRepo{getErr: errors.New("disk gone")}
	auth, _ := newAuthWithMemLinks(session, nil)

	if user := auth.RestoreSession(context.Background()); user != nil {
		t.Fatalf("user = %+v, want nil", user)
	}
}

func TestRestoreSession_EmitsRestore(t *testing.T) {
	session := &fakeSessionRepo{user: &domain.User{Email: testEmail, AuthMethod: domain.AuthMethodMagicLink}}
	eventBus := bus.New(slog.Default())
	var change domain.LoginChange
	eventBus.Subscribe(domain.EventLoginChanged, func(_ context.Context, payload any) error {
		change = payload.(domain.LoginChange)
		return nil
	})

	auth, _ := newAuthWithMemLinks(session, eventBus)
	user := auth.RestoreSession(context.Background())

	if user == nil || user.Email != testEmail {
		t.Fatalf("user = %+v, want %s", user, testEmail)
	}
	if change.Action != domain.LoginActionRestore {
		t.Errorf("action = %q, want restore", change.Action)
	}
}

func TestLogout_NoSession_Noop(t *testing.T) {
	eventBus := bus.New(slog.Default())
	var emitted bool
	eventBus.Subscribe(domain.EventLoginChanged, func(_ context.Context, _ any) error {
		emitted = true
		return nil
	})

	auth, _ := newAuthWithMemLinks(&fakeSessionRepo{}, eventBus)
	if err := auth.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if emitted {
		t.Fatal("login.changed emitted for a no-op logout")
	}
}

func TestLogout_ClearsSessionAndEmits(t *testing.T) {
	session := &fakeSessionRepo{user: &domain.User{Email: testEmail}}
	eventBus := bus.New(slog.Default())
	var change domain.LoginChange
	eventBus.Subscribe(domain.EventLoginChanged, func(_ context.Context, payload any) error {
		change = payload.(domain.LoginChange)
		return nil
	})

	auth, _ := newAuthWithMemLinks(session, eventBus)
	if err := auth.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if session.user != nil {
		t.Fatal("session not cleared")
	}
	if change.Action != domain.LoginActionLogout {
		t.Errorf("action = %q, want logout", change.Action)
	}
	if change.User != nil {
		t.Errorf("logout event carries user %+v", change.User)
	}
}
