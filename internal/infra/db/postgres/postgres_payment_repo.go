package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/model"
	"psychic-credits/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, customer_email, customer_name, amount::text, currency, plan_name,
credits_purchased, payment_method, external_payment_id, status, credits_added,
redirect_url, webhook_url, checkout_url, description, COALESCE(metadata::text, ''),
paid_at, created_at, updated_at`

func scanPayment(row rowScanner) (*model.PaymentRecord, error) {
	p := &model.PaymentRecord{}
	var (
		amount, status, meta string
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.CustomerEmail, &p.CustomerName, &amount, &p.Currency, &p.PlanName,
		&p.CreditsPurchased, &p.PaymentMethod, &p.ExternalPaymentID, &status, &p.CreditsAdded,
		&p.RedirectURL, &p.WebhookURL, &p.CheckoutURL, &p.Description, &meta,
		&p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if mapped := mapErr(err); errors.Is(mapped, domain.ErrNotFound) {
			return nil, mapped
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", domain.ErrReadDatabaseRow, amount, err)
	}
	p.Status = model.PaymentStatus(status)
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &p.Metadata); err != nil {
			return nil, fmt.Errorf("%w: metadata: %v", domain.ErrReadDatabaseRow, err)
		}
	}
	return p, nil
}

func encodeMetadata(m map[string]interface{}) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", domain.ErrInvalidArgument, err)
	}
	return string(b), nil
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	if p == nil || p.ID == "" || p.ExternalPaymentID == "" {
		return domain.ErrInvalidArgument
	}
	meta, err := encodeMetadata(p.Metadata)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payment_records (
  id, user_id, customer_email, customer_name, amount, currency, plan_name,
  credits_purchased, payment_method, external_payment_id, status, credits_added,
  redirect_url, webhook_url, checkout_url, description, metadata,
  paid_at, created_at, updated_at
) VALUES (
  $1, $2, $3, $4, $5::numeric, $6, $7,
  $8, $9, $10, $11, $12,
  $13, $14, $15, $16, $17::jsonb,
  $18, $19, $20
);`
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.CustomerEmail, p.CustomerName, p.Amount.StringFixed(2), p.Currency, p.PlanName,
		p.CreditsPurchased, p.PaymentMethod, p.ExternalPaymentID, string(p.Status), p.CreditsAdded,
		p.RedirectURL, p.WebhookURL, p.CheckoutURL, p.Description, meta,
		p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicatePayment
	}
	return mapErr(err)
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, column, value string) (*model.PaymentRecord, error) {
	q := `SELECT ` + paymentColumns + ` FROM payment_records WHERE ` + column + `=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, value)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, tx, "id", id)
}

func (r *paymentRepo) FindByExternalID(ctx context.Context, tx repository.Tx, externalID string) (*model.PaymentRecord, error) {
	return r.findOne(ctx, tx, "external_payment_id", externalID)
}

func (r *paymentRepo) List(ctx context.Context, tx repository.Tx, f model.PaymentFilter) ([]*model.PaymentRecord, int, error) {
	f.Normalize()

	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(plan_name ILIKE $%[1]d OR external_payment_id ILIKE $%[1]d OR user_id ILIKE $%[1]d OR customer_email ILIKE $%[1]d OR customer_name ILIKE $%[1]d)", n))
	}
	cond := ""
	if len(where) > 0 {
		cond = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM payment_records`+cond+`;`, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := row.Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	args = append(args, f.Limit, f.Offset)
	q := fmt.Sprintf(`SELECT %s FROM payment_records%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d;`,
		paymentColumns, cond, len(args)-1, len(args))
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]*model.PaymentRecord, 0, f.Limit)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapErr(err)
	}
	return out, total, nil
}

func (r *paymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + paymentColumns + `
  FROM payment_records
 WHERE status = 'pending' AND created_at < $1
 ORDER BY created_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *paymentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, id string, next model.PaymentStatus, paidAt *time.Time) (bool, error) {
	if _, ok := model.ParsePaymentStatus(string(next)); !ok {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payment_records
   SET status = $2, paid_at = COALESCE($3, paid_at), updated_at = NOW()
 WHERE id = $1 AND status <> $2 AND (status = 'pending' OR $2 = 'paid');`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(next), paidAt)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCreditsAdded flips credits_added from 0 to the purchased amount in one statement.
// It reports false when another caller already did it.
func (r *paymentRepo) MarkCreditsAdded(ctx context.Context, tx repository.Tx, id string, credits int64) (bool, error) {
	if credits <= 0 {
		return false, domain.ErrInvalidArgument
	}
	const q = `
UPDATE payment_records
   SET credits_added = $2, updated_at = NOW()
 WHERE id = $1 AND credits_added = 0 AND credits_purchased = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, credits)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *paymentRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM payment_records WHERE id=$1;`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
