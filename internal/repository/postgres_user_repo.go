package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByUserKey はチャット側識別子でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByUserKey(ctx context.Context, userKey string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_key, COALESCE(username, ''), COALESCE(full_name, ''),
		        company_id, language, timezone, created_at, updated_at
		 FROM users
		 WHERE user_key = $1`,
		userKey,
	).Scan(&user.ID, &user.UserKey, &user.Username, &user.FullName,
		&user.CompanyID, &user.Language, &user.Timezone, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。成功時はIDとタイムスタンプをストアの値で埋める。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.Language == "" {
		user.Language = "ru"
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (user_key, username, full_name, company_id, language, timezone)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		user.UserKey, user.Username, user.FullName, user.CompanyID, user.Language, user.Timezone,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
