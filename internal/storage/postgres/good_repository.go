package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/eshop/internal/domain"
	"github.com/vladislavdragonenkov/eshop/internal/query"
)

const goodColumns = `id, title, price, description, quantity, created_by, updated_at`

type goodRepository struct {
	db *sql.DB
}

// NewGoodRepository создаёт PostgreSQL-реализацию GoodRepository.
func NewGoodRepository(store *Store) domain.GoodRepository {
	return &goodRepository{db: store.DB()}
}

func (r *goodRepository) List() ([]domain.Good, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+goodColumns+` FROM goods ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list goods: %w", err)
	}
	return collectRows(rows, "goods", scanGood)
}

func (r *goodRepository) Get(id int64) (domain.Good, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	good, err := scanGood(r.db.QueryRowContext(ctx, `SELECT `+goodColumns+` FROM goods WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Good{}, domain.ErrGoodNotFound
	}
	return good, err
}

func (r *goodRepository) FindByTitleAndPrice(title string, price decimal.Decimal) (domain.Good, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	good, err := scanGood(r.db.QueryRowContext(ctx, `
		SELECT `+goodColumns+`
		FROM goods
		WHERE title = $1 AND price = $2
		ORDER BY id
		LIMIT 1
	`, title, price))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Good{}, domain.ErrProductNotFound
	}
	return good, err
}

// Search фильтрует каталог теми же правилами, что и административный список.
func (r *goodRepository) Search(field domain.GoodSearchField, text string) ([]domain.Good, error) {
	goods, err := r.List()
	if err != nil {
		return nil, err
	}
	return query.SearchGoods(goods, field, text), nil
}

func (r *goodRepository) Create(good domain.Good) (domain.Good, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	good.UpdatedAt = time.Now().UTC()
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO goods (title, price, description, quantity, created_by, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id
	`, good.Title, good.Price, good.Description, good.Quantity, good.CreatedBy, good.UpdatedAt).Scan(&good.ID)
	if err != nil {
		return domain.Good{}, fmt.Errorf("insert good: %w", err)
	}
	return good, nil
}

func (r *goodRepository) Update(good domain.Good) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE goods
		SET title = $2,
		    price = $3,
		    description = $4,
		    quantity = $5,
		    created_by = $6,
		    updated_at = $7
		WHERE id = $1
	`, good.ID, good.Title, good.Price, good.Description, good.Quantity, good.CreatedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update good: %w", err)
	}
	return requireAffected(res, domain.ErrGoodNotFound)
}

// AdjustQuantity меняет остаток одним условным UPDATE, поэтому остаток
// не уходит в минус и при нескольких экземплярах сервиса.
func (r *goodRepository) AdjustQuantity(id int64, delta int64) (domain.Good, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	good, err := scanGood(r.db.QueryRowContext(ctx, `
		UPDATE goods
		SET quantity = quantity + $2,
		    updated_at = $3
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+goodColumns,
		id, delta, time.Now().UTC()))
	if err == nil {
		return good, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Good{}, err
	}

	current, getErr := r.Get(id)
	if getErr != nil {
		return domain.Good{}, getErr
	}
	return current, fmt.Errorf("%w: good %d has %d", domain.ErrOutOfStock, id, current.Quantity)
}

func (r *goodRepository) SetQuantity(id int64, qty int64) (domain.Good, error) {
	if qty < 0 {
		return domain.Good{}, domain.ErrQuantityNegative
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	good, err := scanGood(r.db.QueryRowContext(ctx, `
		UPDATE goods
		SET quantity = $2,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+goodColumns,
		id, qty, time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Good{}, domain.ErrGoodNotFound
	}
	return good, err
}

func (r *goodRepository) Delete(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM goods WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete good: %w", err)
	}
	return requireAffected(res, domain.ErrGoodNotFound)
}

func (r *goodRepository) Count() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM goods`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count goods: %w", err)
	}
	return count, nil
}

func scanGood(row rowScanner) (domain.Good, error) {
	var good domain.Good
	err := row.Scan(
		&good.ID,
		&good.Title,
		&good.Price,
		&good.Description,
		&good.Quantity,
		&good.CreatedBy,
		&good.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Good{}, err
		}
		return domain.Good{}, fmt.Errorf("scan good: %w", err)
	}
	good.UpdatedAt = good.UpdatedAt.UTC()
	return good, nil
}

var _ domain.GoodRepository = (*goodRepository)(nil)
