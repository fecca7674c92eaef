package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// PostgresPositionRepo はPostgreSQLを使用した組織図ポストリポジトリ。
type PostgresPositionRepo struct {
	db *sql.DB
}

// NewPostgresPositionRepo はPostgresPositionRepoを生成する。
func NewPostgresPositionRepo(db *sql.DB) *PostgresPositionRepo {
	return &PostgresPositionRepo{db: db}
}

// CreateAll は会社の全ポストを同一トランザクションで作成する。
// 登録フローから21件まとめて呼ばれ、途中で失敗した場合は全件ロールバックされる。
func (r *PostgresPositionRepo) CreateAll(ctx context.Context, positions []*model.Position) error {
	if len(positions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO positions (
		    company_id, position_number, position_name,
		    department_number, division_number, assigned_user_id,
		    is_founder, is_ceo
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`)
	if err != nil {
		return fmt.Errorf("failed to prepare position insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		err := stmt.QueryRowContext(ctx,
			p.CompanyID, p.PositionNumber, p.PositionName,
			p.DepartmentNumber, p.DivisionNumber, p.AssignedUserID,
			p.IsFounder, p.IsCEO,
		).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("failed to create position %d: %w", p.PositionNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit positions: %w", err)
	}
	return nil
}

// ListByCompanyID は会社の全ポストをposition_number順で返す。
func (r *PostgresPositionRepo) ListByCompanyID(ctx context.Context, companyID string) ([]*model.Position, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, position_number, position_name,
		        department_number, division_number, assigned_user_id,
		        is_founder, is_ceo
		 FROM positions
		 WHERE company_id = $1
		 ORDER BY position_number`,
		companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	defer rows.Close()

	var positions []*model.Position
	for rows.Next() {
		p := &model.Position{}
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.PositionNumber, &p.PositionName,
			&p.DepartmentNumber, &p.DivisionNumber, &p.AssignedUserID,
			&p.IsFounder, &p.IsCEO); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate positions: %w", err)
	}
	return positions, nil
}

// compile-time interface check
var _ PositionRepository = (*PostgresPositionRepo)(nil)
