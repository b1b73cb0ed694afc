package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aidarbekov/walletd/internal/broadcast"
	"github.com/aidarbekov/walletd/internal/bus"
	"github.com/aidarbekov/walletd/internal/domain"
	"github.com/aidarbekov/walletd/internal/metrics"
	"github.com/aidarbekov/walletd/internal/repository"
	"github.com/google/uuid"
)

// WalletUsecase gates token writes behind the current session and
// emits a domain event after every persisted mutation.
type WalletUsecase struct {
	tokens  repository.TokenRepository
	session repository.SessionRepository
	syncLog repository.SyncLogRepository
	bus     *bus.Bus
	logger  *slog.Logger
}

func NewWalletUsecase(
	tokens repository.TokenRepository,
	session repository.SessionRepository,
	syncLog repository.SyncLogRepository,
	eventBus *bus.Bus,
	logger *slog.Logger,
) *WalletUsecase {
	return &WalletUsecase{
		tokens:  tokens,
		session: session,
		syncLog: syncLog,
		bus:     eventBus,
		logger:  logger.With("component", "wallet"),
	}
}

type CreateTokenInput struct {
	Hash     string // generated when empty
	Value    string
	Balance  float64
	Metadata map[string]any
}

func (u *WalletUsecase) CreateToken(ctx context.Context, input CreateTokenInput) (*domain.Token, error) {
	if _, err := u.requireSession(ctx); err != nil {
		return nil, err
	}

	if input.Hash == "" {
		input.Hash = uuid.NewString()
	}

	now := time.Now().UTC()
	token := &domain.Token{
		Hash:      input.Hash,
		Value:     input.Value,
		Balance:   input.Balance,
		Metadata:  input.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.tokens.Insert(ctx, token); err != nil {
		return nil, fmt.Errorf("create token: %w", err)
	}

	metrics.TokenOpsTotal.WithLabelValues("create").Inc()
	u.bus.Emit(ctx, domain.EventTokenCreated, token.Clone())
	return token.Clone(), nil
}

// GetTokens degrades to an empty list on storage read errors: failing a
// display read is worse than showing empty state.
func (u *WalletUsecase) GetTokens(ctx context.Context) []domain.Token {
	tokens, err := u.tokens.GetAll(ctx)
	if err != nil {
		u.logger.ErrorContext(ctx, "get tokens", "error", err)
		return []domain.Token{}
	}
	if tokens == nil {
		tokens = []domain.Token{}
	}
	return tokens
}

func (u *WalletUsecase) GetToken(ctx context.Context, hash string) (*domain.Token, error) {
	token, err := u.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		// Read path: degrade to "not found" rather than surfacing I/O.
		u.logger.ErrorContext(ctx, "get token", "hash", hash, "error", err)
		return nil, domain.ErrTokenNotFound
	}
	return token, nil
}

func (u *WalletUsecase) UpdateToken(ctx context.Context, hash string, patch domain.TokenPatch) (*domain.Token, error) {
	if _, err := u.requireSession(ctx); err != nil {
		return nil, err
	}

	token, err := u.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	if patch.Value != nil {
		token.Value = *patch.Value
	}
	if patch.Balance != nil {
		// No lower bound: a patch may drive the balance negative.
		token.Balance = *patch.Balance
	}
	if patch.Metadata != nil {
		if token.Metadata == nil {
			token.Metadata = make(map[string]any, len(patch.Metadata))
		}
		for k, v := range patch.Metadata {
			token.Metadata[k] = v
		}
	}

	now := time.Now().UTC()
	if !now.After(token.UpdatedAt) {
		// Coarse clocks can tick twice in one instant; updatedAt must
		// still strictly increase.
		now = token.UpdatedAt.Add(time.Nanosecond)
	}
	token.UpdatedAt = now

	if err := u.tokens.Save(ctx, token); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}

	metrics.TokenOpsTotal.WithLabelValues("update").Inc()
	u.bus.Emit(ctx, domain.EventTokenUpdated, token.Clone())
	return token.Clone(), nil
}

// DeleteToken is idempotent: removing a missing hash is not an error
// and emits no event.
func (u *WalletUsecase) DeleteToken(ctx context.Context, hash string) error {
	if _, err := u.requireSession(ctx); err != nil {
		return err
	}

	removed, err := u.tokens.Delete(ctx, hash)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if removed {
		metrics.TokenOpsTotal.WithLabelValues("delete").Inc()
		u.bus.Emit(ctx, domain.EventTokenDeleted, domain.TokenDeleted{Hash: hash})
	}
	return nil
}

func (u *WalletUsecase) ClearTokens(ctx context.Context) error {
	if _, err := u.requireSession(ctx); err != nil {
		return err
	}

	if err := u.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}

	metrics.TokenOpsTotal.WithLabelValues("clear").Inc()
	u.bus.Emit(ctx, domain.EventTokensCleared, nil)
	return nil
}

type Summary struct {
	User         *domain.User
	TokenCount   int
	TotalBalance float64
}

// Summary recomputes the aggregate on every call; nothing is cached.
// User is nil when no one is signed in.
func (u *WalletUsecase) Summary(ctx context.Context) Summary {
	var user *domain.User
	if cur, err := u.session.Get(ctx); err == nil {
		user = cur
	}

	tokens := u.GetTokens(ctx)
	var total float64
	for i := range tokens {
		total += tokens[i].Balance
	}
	return Summary{
		User:         user,
		TokenCount:   len(tokens),
		TotalBalance: total,
	}
}

// GetTotalBalance sums all token balances.
func (u *WalletUsecase) GetTotalBalance(ctx context.Context) float64 {
	return u.Summary(ctx).TotalBalance
}

// RecentEvents returns the audit log, newest first. Read errors degrade
// to an empty log.
func (u *WalletUsecase) RecentEvents(ctx context.Context) []domain.SyncEvent {
	events, err := u.syncLog.Recent(ctx, broadcast.LogLimit)
	if err != nil {
		u.logger.ErrorContext(ctx, "recent sync events", "error", err)
		return []domain.SyncEvent{}
	}
	if events == nil {
		events = []domain.SyncEvent{}
	}
	return events
}

func (u *WalletUsecase) requireSession(ctx context.Context) (*domain.User, error) {
	user, err := u.session.Get(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoSession) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return user, nil
}
