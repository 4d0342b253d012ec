// Package postgres is a PostgreSQL store built on pgx, with its schema
// managed by goose migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/tuition"
	"github.com/xraph/tuition/history"
	"github.com/xraph/tuition/id"
	"github.com/xraph/tuition/scheduler"
	"github.com/xraph/tuition/sequence"
	tuitionstore "github.com/xraph/tuition/store"
	"github.com/xraph/tuition/subscription"
)

// compile-time interface check
var _ tuitionstore.Store = (*Store)(nil)

// PostgreSQL error codes the store translates.
const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Store implements store.Store using PostgreSQL via pgx.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New connects to dsn and returns a store owning the pool.
func New(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("tuition/postgres: connect: %w", err)
	}
	return NewFromPool(pool, opts...), nil
}

// NewFromPool wraps an existing pool. Close closes the pool.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{pool: pool, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO tuition_subscriptions (`+subscriptionColumns+`) VALUES (`+placeholders(26)+`)`,
			m.args()...)
		if err != nil {
			return translate(err, fmt.Sprintf("subscription %s", sub.ID))
		}
		if err := writeLines(ctx, tx, sub); err != nil {
			return err
		}
		return writeLinks(ctx, tx, sub)
	})
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	subs, err := s.selectSubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM tuition_subscriptions WHERE id = $1`, subID.String())
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, tuition.ErrSubscriptionNotFound
	}
	return subs[0], nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var (
		where []string
		args  []any
	)
	if opts.State != "" {
		args = append(args, string(opts.State))
		where = append(where, fmt.Sprintf("state = $%d", len(args)))
	}
	if !opts.SubscriptorID.IsNil() {
		args = append(args, opts.SubscriptorID.String())
		where = append(where, fmt.Sprintf("subscriptor_id = $%d", len(args)))
	}

	q := `SELECT ` + subscriptionColumns + ` FROM tuition_subscriptions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at ASC, id ASC`
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return s.selectSubscriptions(ctx, q, args...)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	m.UpdatedAt = now()
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE tuition_subscriptions SET
    code = $2, description = $3, date = $4, company_id = $5, subscriptor_id = $6, student_id = $7,
    invoice_method = $8, state = $9, currency = $10, price_list_id = $11, payment_term_id = $12,
    media_contact = $13, salesman_id = $14, user_id = $15, request_user_id = $16,
    interval_number = $17, interval_type = $18, next_call = $19, number_calls = $20,
    model_source = $21, job_id = $22, total = $23, active = $24, updated_at = $25
WHERE id = $1`, updateArgs(m.args())...)
		if err != nil {
			return translate(err, fmt.Sprintf("subscription %s", sub.ID))
		}
		if tag.RowsAffected() == 0 {
			return tuition.ErrSubscriptionNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM tuition_subscription_lines WHERE subscription_id = $1`, m.ID); err != nil {
			return err
		}
		if err := writeLines(ctx, tx, sub); err != nil {
			return err
		}
		return writeLinks(ctx, tx, sub)
	})
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.SubscriptionID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tuition_subscriptions WHERE id = $1`, subID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tuition.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) CountLinesBySession(ctx context.Context, sessionID id.SessionID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tuition_subscription_lines WHERE session_id = $1`,
		sessionID.String()).Scan(&n)
	return n, err
}

func (s *Store) IsDocumentReferenced(ctx context.Context, docID id.AnyID) (bool, error) {
	var found bool
	err := s.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM tuition_subscription_sales WHERE sale_id = $1)
    OR EXISTS (SELECT 1 FROM tuition_subscription_invoices WHERE invoice_id = $1)
    OR EXISTS (SELECT 1 FROM tuition_subscriptions WHERE model_source LIKE '%,' || $1)`,
		docID.String()).Scan(&found)
	return found, err
}

// selectSubscriptions runs a header query and loads every child collection
// of the returned subscriptions in one query per table.
func (s *Store) selectSubscriptions(ctx context.Context, q string, args ...any) ([]*subscription.Subscription, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[subscriptionModel])
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	byID := make(map[string]*subscription.Subscription, len(models))
	keys := make([]string, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
		byID[models[i].ID] = sub
		keys[i] = models[i].ID
	}
	if len(keys) == 0 {
		return result, nil
	}
	if err := loadLines(ctx, s.pool, keys, byID); err != nil {
		return nil, err
	}
	if err := loadLinks(ctx, s.pool, keys, byID); err != nil {
		return nil, err
	}
	return result, nil
}

func loadLines(ctx context.Context, q querier, keys []string, byID map[string]*subscription.Subscription) error {
	rows, err := q.Query(ctx,
		`SELECT `+lineColumns+` FROM tuition_subscription_lines
		 WHERE subscription_id = ANY($1) ORDER BY subscription_id, position`, keys)
	if err != nil {
		return err
	}
	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[lineModel])
	if err != nil {
		return err
	}
	for i := range models {
		l, err := fromLineModel(&models[i])
		if err != nil {
			return err
		}
		sub := byID[models[i].SubscriptionID]
		sub.Lines = append(sub.Lines, l)
	}
	return nil
}

func loadLinks(ctx context.Context, q querier, keys []string, byID map[string]*subscription.Subscription) error {
	rows, err := q.Query(ctx,
		`SELECT subscription_id, sale_id FROM tuition_subscription_sales
		 WHERE subscription_id = ANY($1) ORDER BY seq`, keys)
	if err != nil {
		return err
	}
	var subKey, docKey string
	_, err = pgx.ForEachRow(rows, []any{&subKey, &docKey}, func() error {
		saleID, err := id.ParseSaleID(docKey)
		if err != nil {
			return err
		}
		byID[subKey].AddSale(saleID)
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = q.Query(ctx,
		`SELECT subscription_id, invoice_id FROM tuition_subscription_invoices
		 WHERE subscription_id = ANY($1) ORDER BY seq`, keys)
	if err != nil {
		return err
	}
	_, err = pgx.ForEachRow(rows, []any{&subKey, &docKey}, func() error {
		invID, err := id.ParseInvoiceID(docKey)
		if err != nil {
			return err
		}
		byID[subKey].AddInvoice(invID)
		return nil
	})
	return err
}

func writeLines(ctx context.Context, q querier, sub *subscription.Subscription) error {
	for i, l := range sub.Lines {
		m := toLineModel(sub.ID, i, l)
		_, err := q.Exec(ctx,
			`INSERT INTO tuition_subscription_lines (`+lineColumns+`) VALUES (`+placeholders(10)+`)`,
			m.ID, m.SubscriptionID, m.Position, m.SessionID, m.Quantity, m.UnitPrice, m.UOM, m.NumberCalls, m.Amount, m.Notes)
		if err != nil {
			return translate(err, fmt.Sprintf("line %s", l.ID))
		}
	}
	return nil
}

// writeLinks adds the sale and invoice links. Links already stored are kept.
func writeLinks(ctx context.Context, q querier, sub *subscription.Subscription) error {
	for _, saleID := range sub.SaleIDs {
		if _, err := q.Exec(ctx,
			`INSERT INTO tuition_subscription_sales (subscription_id, sale_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, sub.ID.String(), saleID.String()); err != nil {
			return err
		}
	}
	for _, invID := range sub.InvoiceIDs {
		if _, err := q.Exec(ctx,
			`INSERT INTO tuition_subscription_invoices (subscription_id, invoice_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, sub.ID.String(), invID.String()); err != nil {
			return err
		}
	}
	return nil
}

// ==================== History Store ====================

func (s *Store) CreateHistory(ctx context.Context, e *history.Entry) error {
	m := toHistoryModel(e)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tuition_history (id, subscription_id, date, log, document) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.SubscriptionID, m.Date, m.Log, m.Document)
	return translate(err, fmt.Sprintf("history %s", e.ID))
}

func (s *Store) ListHistory(ctx context.Context, subID id.SubscriptionID, opts history.ListOpts) ([]*history.Entry, error) {
	q := `SELECT id, subscription_id, date, log, document FROM tuition_history
	      WHERE subscription_id = $1 ORDER BY seq ASC`
	if opts.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		q += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	rows, err := s.pool.Query(ctx, q, subID.String())
	if err != nil {
		return nil, err
	}
	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[historyModel])
	if err != nil {
		return nil, err
	}

	result := make([]*history.Entry, len(models))
	for i := range models {
		e, err := fromHistoryModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Sequence Store ====================

func (s *Store) CreateSequence(ctx context.Context, seq *sequence.Sequence) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tuition_sequences (`+sequenceColumns+`) VALUES (`+placeholders(10)+`)`,
		seq.ID.String(), seq.Name, seq.Code, seq.Prefix, seq.Suffix, seq.Padding,
		seq.Increment, seq.NumberNext, seq.CreatedAt, seq.UpdatedAt)
	return translate(err, fmt.Sprintf("sequence code %q", seq.Code))
}

func (s *Store) GetSequence(ctx context.Context, seqID id.SequenceID) (*sequence.Sequence, error) {
	return s.selectSequence(ctx, `SELECT `+sequenceColumns+` FROM tuition_sequences WHERE id = $1`, seqID.String())
}

func (s *Store) GetSequenceByCode(ctx context.Context, code string) (*sequence.Sequence, error) {
	return s.selectSequence(ctx, `SELECT `+sequenceColumns+` FROM tuition_sequences WHERE code = $1`, code)
}

func (s *Store) selectSequence(ctx context.Context, q string, arg any) (*sequence.Sequence, error) {
	rows, err := s.pool.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	m, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[sequenceModel])
	if err != nil {
		if isNoRows(err) {
			return nil, tuition.ErrSequenceNotFound
		}
		return nil, err
	}
	return fromSequenceModel(&m)
}

// NextSequenceNumber advances the counter in a single statement, so
// concurrent callers never receive the same number.
func (s *Store) NextSequenceNumber(ctx context.Context, seqID id.SequenceID) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
UPDATE tuition_sequences
SET number_next = number_next + GREATEST(increment_by, 1),
    updated_at = NOW()
WHERE id = $1
RETURNING number_next - GREATEST(increment_by, 1)`, seqID.String()).Scan(&n)
	if isNoRows(err) {
		return 0, tuition.ErrSequenceNotFound
	}
	return n, err
}

// ==================== Job Store ====================

func (s *Store) InsertJob(ctx context.Context, j *scheduler.Job) error {
	m := toJobModel(j)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tuition_jobs (`+jobColumns+`) VALUES (`+placeholders(15)+`)`,
		m.args()...)
	return translate(err, fmt.Sprintf("job %s", j.ID))
}

func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*scheduler.Job, error) {
	jobs, err := s.selectJobs(ctx, `SELECT `+jobColumns+` FROM tuition_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, tuition.ErrJobNotFound
	}
	return jobs[0], nil
}

func (s *Store) UpdateJob(ctx context.Context, j *scheduler.Job) error {
	m := toJobModel(j)
	tag, err := s.pool.Exec(ctx, `
UPDATE tuition_jobs SET
    model = $2, name = $3, user_id = $4, request_user_id = $5, interval_number = $6,
    interval_type = $7, number_calls = $8, next_call = $9, function = $10, args = $11,
    active = $12, repeat_missed = $13, updated_at = $14
WHERE id = $1`, updateArgs(m.args())...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tuition.ErrJobNotFound
	}
	return nil
}

func (s *Store) FindJobByName(ctx context.Context, model, name string, active bool) (*scheduler.Job, error) {
	jobs, err := s.selectJobs(ctx, `SELECT `+jobColumns+` FROM tuition_jobs
		WHERE model = $1 AND name = $2 AND active = $3
		ORDER BY created_at ASC LIMIT 1`, model, name, active)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, tuition.ErrJobNotFound
	}
	return jobs[0], nil
}

func (s *Store) ListDueJobs(ctx context.Context, at time.Time) ([]*scheduler.Job, error) {
	return s.selectJobs(ctx, `SELECT `+jobColumns+` FROM tuition_jobs
		WHERE active AND number_calls <> 0 AND next_call <= $1
		ORDER BY next_call ASC`, at)
}

func (s *Store) selectJobs(ctx context.Context, q string, args ...any) ([]*scheduler.Job, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[jobModel])
	if err != nil {
		return nil, err
	}
	result := make([]*scheduler.Job, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = j
	}
	return result, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", i)
	}
	return b.String()
}

// updateArgs drops created_at, the second to last column, from an insert
// argument list so it can feed an UPDATE.
func updateArgs(args []any) []any {
	n := len(args)
	out := make([]any, 0, n-1)
	out = append(out, args[:n-2]...)
	return append(out, args[n-1])
}

// isNoRows checks for the pgx no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// translate maps constraint violations to tuition sentinels.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", tuition.ErrAlreadyExists, what)
		case foreignKeyViolation:
			return fmt.Errorf("%w: %s", tuition.ErrSubscriptionNotFound, what)
		}
	}
	return err
}
