package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// PostgresCompanyRepo はPostgreSQLを使用した会社リポジトリ。
type PostgresCompanyRepo struct {
	db *sql.DB
}

// NewPostgresCompanyRepo はPostgresCompanyRepoを生成する。
func NewPostgresCompanyRepo(db *sql.DB) *PostgresCompanyRepo {
	return &PostgresCompanyRepo{db: db}
}

// FindByID は指定IDの会社を取得する。見つからない場合はnilを返す。
func (r *PostgresCompanyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	company := &model.Company{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM companies WHERE id = $1`,
		id,
	).Scan(&company.ID, &company.Name, &company.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find company: %w", err)
	}
	return company, nil
}

// Create は会社を作成する。成功時はIDとcreated_atをストアの値で埋める。
func (r *PostgresCompanyRepo) Create(ctx context.Context, company *model.Company) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO companies (name) VALUES ($1) RETURNING id, created_at`,
		company.Name,
	).Scan(&company.ID, &company.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CompanyRepository = (*PostgresCompanyRepo)(nil)
