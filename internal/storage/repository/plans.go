package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/content-subscriptions/internal/models"
)

const planColumns = `id, name, external_price_ref, level`

func scanPlan(row rowScanner) (*models.Plan, error) {
	var p models.Plan
	var ref sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &ref, &p.Level); err != nil {
		return nil, err
	}
	if ref.Valid {
		p.ExternalPriceRef = &ref.String
	}
	return &p, nil
}

type nullablePlan struct {
	id    sql.NullInt64
	name  sql.NullString
	ref   sql.NullString
	level sql.NullInt64
}

func (n *nullablePlan) dest() []any {
	return []any{&n.id, &n.name, &n.ref, &n.level}
}

func (n *nullablePlan) plan() *models.Plan {
	if !n.id.Valid {
		return nil
	}
	p := &models.Plan{ID: n.id.Int64, Name: n.name.String, Level: int(n.level.Int64)}
	if n.ref.Valid {
		ref := n.ref.String
		p.ExternalPriceRef = &ref
	}
	return p
}

// ListPlans возвращает все планы по возрастанию уровня.
func (s *Storage) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	const op = "storage.ListPlans"
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM plans ORDER BY level, id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) findPlan(ctx context.Context, op, where string, arg any) (*models.Plan, error) {
	if err := ctxErr(ctx, op); err != nil {
		return nil, err
	}
	row := s.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE `+where+` ORDER BY id LIMIT 1`, arg)
	p, err := scanPlan(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err))
	}
	return p, nil
}

// GetPlan возвращает план по id.
func (s *Storage) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	return s.findPlan(ctx, "storage.GetPlan", `id = $1`, id)
}

// FindPlanByPriceRef ищет план с точным совпадением ссылки на цену или продукт.
func (s *Storage) FindPlanByPriceRef(ctx context.Context, ref string) (*models.Plan, error) {
	return s.findPlan(ctx, "storage.FindPlanByPriceRef", `external_price_ref = $1`, ref)
}

// FindPlanByName ищет план по названию без учёта регистра.
func (s *Storage) FindPlanByName(ctx context.Context, name string) (*models.Plan, error) {
	return s.findPlan(ctx, "storage.FindPlanByName", `lower(name) = lower($1)`, name)
}

// FindPlanByLevel возвращает первый план заданного уровня.
func (s *Storage) FindPlanByLevel(ctx context.Context, level int) (*models.Plan, error) {
	return s.findPlan(ctx, "storage.FindPlanByLevel", `level = $1`, level)
}
