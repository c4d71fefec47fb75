package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AnTengye/rollingquote/model"
)

const ordersTable = "orders"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// OrderRepo stores orders as JSONB documents. Lookup columns (tenant, status,
// checkout_session_id) are kept alongside for indexing.
type OrderRepo struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewOrderRepo(pool *pgxpool.Pool) *OrderRepo {
	return &OrderRepo{pool: pool, tx: NewTxManager(pool)}
}

// Close releases the pool.
func (r *OrderRepo) Close() error {
	r.pool.Close()
	return nil
}

// Get returns an order by id. Returns model.ErrNotFound if it does not exist.
func (r *OrderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	return r.selectOne(ctx, sq.Eq{"id": id}, "order", id, false)
}

// FindBySession returns the order bound to a checkout session.
func (r *OrderRepo) FindBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	return r.selectOne(ctx, sq.Eq{"checkout_session_id": sessionID}, "session", sessionID, false)
}

// Mutate locks the order row for the duration of fn. A missing row is
// inserted first when create is set so concurrent creators serialise on the
// same lock.
func (r *OrderRepo) Mutate(ctx context.Context, id string, create bool, fn func(*model.Order) error) (*model.Order, error) {
	var result *model.Order
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		q := QuerierFromCtx(ctx, r.pool)

		fresh := false
		if create {
			inserted, err := r.insertDraft(ctx, q, id)
			if err != nil {
				return err
			}
			fresh = inserted
		}

		var work *model.Order
		if fresh {
			work = &model.Order{ID: id, Status: model.StatusQuoted}
		} else {
			current, err := r.selectOne(ctx, sq.Eq{"id": id}, "order", id, true)
			if err != nil {
				return err
			}
			work = current
		}

		if err := fn(work); err != nil {
			return err
		}

		if err := r.update(ctx, q, work); err != nil {
			return err
		}
		result = work
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// insertDraft reports whether a new placeholder row was created.
func (r *OrderRepo) insertDraft(ctx context.Context, q Querier, id string) (bool, error) {
	draft := model.Order{ID: id, Status: model.StatusQuoted}
	data, err := json.Marshal(draft)
	if err != nil {
		return false, fmt.Errorf("encode order %s: %w", id, err)
	}

	query, args, err := psql.Insert(ordersTable).
		Columns("id", "tenant", "status", "data", "created_at", "updated_at").
		Values(id, "", string(draft.Status), data, sq.Expr("now()"), sq.Expr("now()")).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return false, mapError(err, "order", id)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OrderRepo) update(ctx context.Context, q Querier, o *model.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}

	var session any
	if o.CheckoutSessionID != "" {
		session = o.CheckoutSessionID
	}

	query, args, err := psql.Update(ordersTable).
		Set("tenant", o.Tenant).
		Set("status", string(o.Status)).
		Set("checkout_session_id", session).
		Set("data", data).
		Set("created_at", o.CreatedAt).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "order", o.ID)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, model.ErrNotFound)
	}
	return nil
}

func (r *OrderRepo) selectOne(ctx context.Context, where sq.Eq, entity, key string, forUpdate bool) (*model.Order, error) {
	b := psql.Select("data").From(ordersTable).Where(where)
	if forUpdate {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var data []byte
	if err := QuerierFromCtx(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&data); err != nil {
		return nil, mapError(err, entity, key)
	}

	var o model.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", entity, key, err)
	}
	return &o, nil
}
