package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rashinkp/byway-sub005/domain"
	"github.com/rashinkp/byway-sub005/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Entry describes the ledger transaction paired with a balance
// mutation. The ledger is the source of truth for balance; transactions
// are the audit trail.
type Entry struct {
	OrderID   *uuid.UUID
	CourseID  *string
	Type      domain.TransactionType
	Gateway   *domain.Gateway
	Reference *string
}

type Service struct {
	wallets repository.WalletRepository
	txns    repository.TransactionRepository
	cache   BalanceCache
	sfg     singleflight.Group // prevents cache stampede
	logger  zerolog.Logger
}

func NewService(wallets repository.WalletRepository, txns repository.TransactionRepository, cache BalanceCache, logger zerolog.Logger) *Service {
	return &Service{
		wallets: wallets,
		txns:    txns,
		cache:   cache,
		logger:  logger,
	}
}

// Debit atomically decrements the balance; repository.ErrInsufficientBalance
// when the wallet cannot cover the amount. Exactly one transaction row
// is written per successful mutation.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal, entry Entry) (*domain.Wallet, error) {
	wallet, err := s.DebitTx(ctx, s.wallets, s.txns, userID, amount, entry)
	if err != nil {
		return nil, err
	}
	s.InvalidateBalance(userID)
	return wallet, nil
}

func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, entry Entry) (*domain.Wallet, error) {
	wallet, err := s.CreditTx(ctx, s.wallets, s.txns, userID, amount, entry)
	if err != nil {
		return nil, err
	}
	s.InvalidateBalance(userID)
	return wallet, nil
}

// DebitTx runs the debit and its ledger entry against the supplied
// repositories, normally a transactional store view. The caller must
// call InvalidateBalance after the surrounding transaction commits.
func (s *Service) DebitTx(ctx context.Context, wallets repository.WalletRepository, txns repository.TransactionRepository, userID string, amount decimal.Decimal, entry Entry) (*domain.Wallet, error) {
	wallet, err := wallets.DebitWallet(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := recordTransaction(ctx, txns, userID, amount, entry); err != nil {
		return nil, err
	}
	return wallet, nil
}

func (s *Service) CreditTx(ctx context.Context, wallets repository.WalletRepository, txns repository.TransactionRepository, userID string, amount decimal.Decimal, entry Entry) (*domain.Wallet, error) {
	wallet, err := wallets.CreditWallet(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	if err := recordTransaction(ctx, txns, userID, amount, entry); err != nil {
		return nil, err
	}
	return wallet, nil
}

// GetBalance serves the read side through the cache; a miss falls back
// to the repository and repopulates. A user with no wallet yet reads as
// a zero balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (*domain.Wallet, error) {
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return walletFromCache(userID, cached)
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("wallet cache get failed")
		}

		wallet, errGet := s.wallets.GetWalletByUserID(ctx, userID)
		if errors.Is(errGet, repository.ErrWalletNotFound) {
			return &domain.Wallet{
				UserID:   userID,
				Balance:  decimal.Zero,
				Currency: "USD",
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			errSet := s.cache.Set(context.Background(), userID, &cachedBalance{
				Balance:  wallet.Balance.String(),
				Currency: wallet.Currency,
			})
			if errSet != nil {
				s.logger.Warn().Err(errSet).Str("user_id", userID).Msg("wallet cache set failed")
			}
		}()

		return wallet, nil
	})

	if err != nil {
		return nil, err
	}
	return v.(*domain.Wallet), nil
}

func (s *Service) ListTransactions(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	return s.txns.ListTransactionsByUserID(ctx, userID)
}

func recordTransaction(ctx context.Context, txns repository.TransactionRepository, userID string, amount decimal.Decimal, entry Entry) error {
	return txns.CreateTransaction(ctx, &domain.Transaction{
		ID:             uuid.New(),
		OrderID:        entry.OrderID,
		UserID:         userID,
		CourseID:       entry.CourseID,
		Amount:         amount,
		Type:           entry.Type,
		Status:         domain.TransactionStatusCompleted,
		PaymentGateway: entry.Gateway,
		TransactionID:  entry.Reference,
	})
}

// InvalidateBalance evicts the cached balance after a mutation that
// bypassed Debit/Credit, such as a transactional credit, commits.
func (s *Service) InvalidateBalance(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("wallet cache invalidate failed")
	}
}

func walletFromCache(userID string, cached *cachedBalance) (*domain.Wallet, error) {
	balance, err := decimal.NewFromString(cached.Balance)
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{
		UserID:   userID,
		Balance:  balance,
		Currency: cached.Currency,
	}, nil
}
