package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/jewel_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// CheckoutRepository journals checkout attempts in Postgres.
type CheckoutRepository struct {
	db *sql.DB
}

func NewCheckoutRepository(cred *Credentials) (*CheckoutRepository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &CheckoutRepository{db: db}, nil
}

func (r *CheckoutRepository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *CheckoutRepository) CreateCheckoutSession(ctx context.Context, s *domain.CheckoutSession) error {
	itemsJSON, err := json.Marshal(s.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal checkout items: %w", err)
	}

	query := `INSERT INTO checkout_sessions (id, session_id, status, amount, currency, items, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`
	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.SessionID,
		s.Status,
		s.Amount,
		s.Currency,
		itemsJSON)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (r *CheckoutRepository) UpdateCheckoutStatus(ctx context.Context, checkoutID string, status domain.CheckoutStatus, reason string) error {
	query := `UPDATE checkout_sessions SET status = $2, fail_reason = NULLIF($3, ''), updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, "update checkout status", query, checkoutID, status, reason)
}

func (r *CheckoutRepository) SetPayment(ctx context.Context, checkoutID, ref, token string) error {
	query := `UPDATE checkout_sessions
	          SET payment_ref = $2, payment_token = $3, status = $4, updated_at = NOW()
	          WHERE id = $1`
	return r.exec(ctx, "set payment", query, checkoutID, ref, token, domain.CheckoutStatusOrderSubmission)
}

func (r *CheckoutRepository) CompleteCheckout(ctx context.Context, checkoutID, orderID string) error {
	query := `UPDATE checkout_sessions SET order_id = $2, status = $3, fail_reason = NULL, updated_at = NOW() WHERE id = $1`
	return r.exec(ctx, "complete checkout", query, checkoutID, orderID, domain.CheckoutStatusSuccess)
}

func (r *CheckoutRepository) GetCheckoutSession(ctx context.Context, checkoutID string) (*domain.CheckoutSession, error) {
	query := `SELECT id, session_id, status, amount, currency, items,
	                 COALESCE(payment_ref, ''), COALESCE(payment_token, ''), COALESCE(order_id, ''), COALESCE(fail_reason, ''),
	                 created_at, updated_at
	          FROM checkout_sessions WHERE id = $1`

	var (
		s         domain.CheckoutSession
		itemsJSON []byte
	)
	err := r.db.QueryRowContext(ctx, query, checkoutID).Scan(
		&s.ID,
		&s.SessionID,
		&s.Status,
		&s.Amount,
		&s.Currency,
		&itemsJSON,
		&s.PaymentRef,
		&s.PaymentToken,
		&s.OrderID,
		&s.FailReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query checkout session: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &s.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkout items: %w", err)
	}
	return &s, nil
}

func (r *CheckoutRepository) Close() error {
	return r.db.Close()
}

func (r *CheckoutRepository) exec(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrCheckoutNotFound
	}
	return nil
}
