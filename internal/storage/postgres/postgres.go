// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	db *pgxpool.Pool
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

// Update runs fn inside a read-committed transaction that first takes the
// user's advisory lock, so read-modify-write sequences for one user never
// interleave.
func (s *Storage) Update(ctx context.Context, user domain.UserID, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(user)); err != nil {
		return classify("lock user", err)
	}

	if err := fn(&pgTx{tx: tx, user: user}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// View runs fn in a read-only repeatable-read snapshot.
func (s *Storage) View(ctx context.Context, user domain.UserID, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return classify("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx, user: user}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("commit tx", err)
	}
	return nil
}

// classify maps driver errors onto the domain error taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%s: %w: %s", op, domain.ErrConcurrentModification, pgErr.Message)
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: already exists", op, domain.ErrInvalidInput)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w: %s", op, domain.ErrNotFound, pgErr.ConstraintName)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w: %s", op, domain.ErrInvalidInput, pgErr.ConstraintName)
		}
	}
	slog.Error("postgres failure", "op", op, "error", err)
	return fmt.Errorf("%s: %w: %v", op, domain.ErrPersistence, err)
}

type pgTx struct {
	tx   pgx.Tx
	user domain.UserID
}

// === Categories ===

const categoryColumns = `id, user_id, name, kind, icon, is_default, created_at`

func scanCategory(row pgx.Row) (domain.Category, error) {
	var c domain.Category
	err := row.Scan(&c.ID, (*int64)(&c.UserID), &c.Name, (*string)(&c.Kind), &c.Icon, &c.IsDefault, &c.CreatedAt)
	return c, err
}

func (t *pgTx) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	c, err := scanCategory(t.tx.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1 AND user_id = $2`, id, int64(t.user)))
	if err != nil {
		return c, classify(fmt.Sprintf("get category %d", id), err)
	}
	return c, nil
}

func (t *pgTx) ListCategories(ctx context.Context, kind domain.Kind) ([]domain.Category, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = $1 AND ($2 = '' OR kind = $2)
		ORDER BY is_default ASC, name, id
	`, int64(t.user), string(kind))
	if err != nil {
		return nil, classify("list categories", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, classify("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list categories", err)
	}
	return out, nil
}

func (t *pgTx) UpsertCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	var err error
	if c.ID == 0 {
		c, err = scanCategory(t.tx.QueryRow(ctx, `
			INSERT INTO categories (user_id, name, kind, icon, is_default)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+categoryColumns,
			int64(t.user), c.Name, string(c.Kind), c.Icon, c.IsDefault))
	} else {
		c, err = scanCategory(t.tx.QueryRow(ctx, `
			UPDATE categories SET name = $3, kind = $4, icon = $5, is_default = $6
			WHERE id = $1 AND user_id = $2
			RETURNING `+categoryColumns,
			c.ID, int64(t.user), c.Name, string(c.Kind), c.Icon, c.IsDefault))
	}
	if err != nil {
		return c, classify("upsert category", err)
	}
	return c, nil
}

func (t *pgTx) DeleteCategory(ctx context.Context, id int64) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, int64(t.user))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("delete category %d: %w", id, domain.ErrCategoryInUse)
		}
		return classify("delete category", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) CountTransactions(ctx context.Context, categoryID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx,
		`SELECT count(*) FROM transactions WHERE user_id = $1 AND category_id = $2`,
		int64(t.user), categoryID).Scan(&n)
	if err != nil {
		return 0, classify("count transactions", err)
	}
	return n, nil
}

func (t *pgTx) ReassignTransactions(ctx context.Context, from, to int64) (int, error) {
	result, err := t.tx.Exec(ctx,
		`UPDATE transactions SET category_id = $3 WHERE user_id = $1 AND category_id = $2`,
		int64(t.user), from, to)
	if err != nil {
		return 0, classify("reassign transactions", err)
	}
	return int(result.RowsAffected()), nil
}

// === Transactions ===

const transactionColumns = `id, user_id, kind, amount::text, category_id, payment_method, occurred_on, description, notes, created_at`

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var tr domain.Transaction
	err := row.Scan(&tr.ID, (*int64)(&tr.UserID), (*string)(&tr.Kind), &tr.Amount, &tr.CategoryID,
		&tr.PaymentMethod, &tr.OccurredOn, &tr.Description, &tr.Notes, &tr.CreatedAt)
	return tr, err
}

func (t *pgTx) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 AND user_id = $2`, id, int64(t.user)))
	if err != nil {
		return tr, classify(fmt.Sprintf("get transaction %d", id), err)
	}
	return tr, nil
}

func (t *pgTx) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]domain.Transaction, error) {
	where := []string{"user_id = $1"}
	args := []any{int64(t.user)}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_on >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_on < $%d", f.To)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.CategoryID != 0 {
		add("category_id = $%d", f.CategoryID)
	}
	if f.PaymentMethod != "" {
		add("payment_method ILIKE $%d", f.PaymentMethod)
	}
	if f.After != nil {
		args = append(args, f.After.OccurredOn, f.After.ID)
		where = append(where, fmt.Sprintf("(occurred_on, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY occurred_on DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, classify("scan transaction", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list transactions", err)
	}
	return out, nil
}

func (t *pgTx) UpsertTransaction(ctx context.Context, tr domain.Transaction) (domain.Transaction, error) {
	var (
		out domain.Transaction
		err error
	)
	if tr.ID == 0 {
		out, err = scanTransaction(t.tx.QueryRow(ctx, `
			INSERT INTO transactions (user_id, kind, amount, category_id, payment_method, occurred_on, description, notes)
			VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)
			RETURNING `+transactionColumns,
			int64(t.user), string(tr.Kind), tr.Amount.String(), tr.CategoryID,
			tr.PaymentMethod, tr.OccurredOn, tr.Description, tr.Notes))
	} else {
		out, err = scanTransaction(t.tx.QueryRow(ctx, `
			UPDATE transactions
			SET kind = $3, amount = $4::numeric, category_id = $5, payment_method = $6,
			    occurred_on = $7, description = $8, notes = $9
			WHERE id = $1 AND user_id = $2
			RETURNING `+transactionColumns,
			tr.ID, int64(t.user), string(tr.Kind), tr.Amount.String(), tr.CategoryID,
			tr.PaymentMethod, tr.OccurredOn, tr.Description, tr.Notes))
	}
	if err != nil {
		return tr, classify("upsert transaction", err)
	}
	return out, nil
}

func (t *pgTx) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1 AND user_id = $2`, id, int64(t.user))
	if err != nil {
		return classify("delete transaction", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// === Positions ===

const positionColumns = `user_id, ticker, asset_type, quantity::text, average_cost::text, cost_basis::text, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	err := row.Scan((*int64)(&p.UserID), &p.Ticker, (*string)(&p.AssetType),
		&p.Quantity, &p.AverageCost, &p.CostBasis, &p.UpdatedAt)
	return p, err
}

func (t *pgTx) GetPosition(ctx context.Context, ticker string) (domain.Position, error) {
	p, err := scanPosition(t.tx.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 AND ticker = $2`, int64(t.user), ticker))
	if err != nil {
		return p, classify("get position "+ticker, err)
	}
	return p, nil
}

func (t *pgTx) ListPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE user_id = $1 ORDER BY ticker`, int64(t.user))
	if err != nil {
		return nil, classify("list positions", err)
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, classify("scan position", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list positions", err)
	}
	return out, nil
}

func (t *pgTx) UpsertPosition(ctx context.Context, p domain.Position) (domain.Position, error) {
	out, err := scanPosition(t.tx.QueryRow(ctx, `
		INSERT INTO positions (user_id, ticker, asset_type, quantity, average_cost, cost_basis, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, now())
		ON CONFLICT (user_id, ticker) DO UPDATE SET
			asset_type = EXCLUDED.asset_type,
			quantity = EXCLUDED.quantity,
			average_cost = EXCLUDED.average_cost,
			cost_basis = EXCLUDED.cost_basis,
			updated_at = EXCLUDED.updated_at
		RETURNING `+positionColumns,
		int64(t.user), p.Ticker, string(p.AssetType),
		p.Quantity.String(), p.AverageCost.String(), p.CostBasis.String()))
	if err != nil {
		return p, classify("upsert position", err)
	}
	return out, nil
}

const lotColumns = `id, user_id, ticker, side, quantity::text, unit_price::text, realized_gain::text, occurred_on`

func scanLot(row pgx.Row) (domain.LotEvent, error) {
	var e domain.LotEvent
	err := row.Scan(&e.ID, (*int64)(&e.UserID), &e.Ticker, (*string)(&e.Side),
		&e.Quantity, &e.UnitPrice, &e.RealizedGain, &e.OccurredOn)
	return e, err
}

func (t *pgTx) AppendLot(ctx context.Context, e domain.LotEvent) (domain.LotEvent, error) {
	out, err := scanLot(t.tx.QueryRow(ctx, `
		INSERT INTO lot_events (user_id, ticker, side, quantity, unit_price, realized_gain, occurred_on)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)
		RETURNING `+lotColumns,
		int64(t.user), e.Ticker, string(e.Side),
		e.Quantity.String(), e.UnitPrice.String(), e.RealizedGain.String(), e.OccurredOn))
	if err != nil {
		return e, classify("append lot", err)
	}
	return out, nil
}

func (t *pgTx) ListLots(ctx context.Context, ticker string) ([]domain.LotEvent, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+lotColumns+`
		FROM lot_events
		WHERE user_id = $1 AND ($2 = '' OR ticker = $2)
		ORDER BY occurred_on, id
	`, int64(t.user), ticker)
	if err != nil {
		return nil, classify("list lots", err)
	}
	defer rows.Close()

	var out []domain.LotEvent
	for rows.Next() {
		e, err := scanLot(rows)
		if err != nil {
			return nil, classify("scan lot", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list lots", err)
	}
	return out, nil
}

// === User data ===

// DeleteAll removes the user's rows, child tables first, so the category
// foreign key never blocks.
func (t *pgTx) DeleteAll(ctx context.Context) (storage.Purged, error) {
	var p storage.Purged
	for _, step := range []struct {
		table string
		count *int
	}{
		{"lot_events", &p.Lots},
		{"positions", &p.Positions},
		{"transactions", &p.Transactions},
		{"categories", &p.Categories},
	} {
		result, err := t.tx.Exec(ctx, `DELETE FROM `+step.table+` WHERE user_id = $1`, int64(t.user))
		if err != nil {
			return storage.Purged{}, classify("delete "+step.table, err)
		}
		*step.count = int(result.RowsAffected())
	}
	return p, nil
}
