package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
// セッションの真実のソース（source of truth）。キャッシュ層はこのリポジトリの
// 内容の控えに過ぎず、常にこちらが優先される。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Upsert はuser_keyをキーにセッションを作成または全置換する。
// 同一キーへの同時作成はON CONFLICTにより行レベルで冪等。
func (r *PostgresSessionRepo) Upsert(ctx context.Context, session *model.Session) error {
	dataJSON, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (user_key, user_id, company_id, state, data, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_key) DO UPDATE
		 SET user_id = EXCLUDED.user_id,
		     company_id = EXCLUDED.company_id,
		     state = EXCLUDED.state,
		     data = EXCLUDED.data,
		     expires_at = EXCLUDED.expires_at,
		     created_at = now(),
		     updated_at = now()
		 RETURNING id, created_at, updated_at`,
		session.UserKey, session.UserID, session.CompanyID,
		string(session.State), dataJSON, session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// FindByUserKey は有効期限内のセッションを取得する。
// 期限切れの行は物理的に残っていても不在として扱い、nilを返す。
func (r *PostgresSessionRepo) FindByUserKey(ctx context.Context, userKey string) (*model.Session, error) {
	session := &model.Session{}
	var state string
	var dataJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_key, user_id, company_id, state, data, expires_at, created_at, updated_at
		 FROM sessions
		 WHERE user_key = $1 AND expires_at > now()`,
		userKey,
	).Scan(&session.ID, &session.UserKey, &session.UserID, &session.CompanyID,
		&state, &dataJSON, &session.ExpiresAt, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	session.State = model.SessionState(state)
	if err := json.Unmarshal(dataJSON, &session.Data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if session.Data == nil {
		session.Data = model.SessionData{}
	}

	return session, nil
}

// Update は指定フィールドのみをSET句に組み立てて部分更新する。
// expires_atとupdated_atは毎回更新される（スライディング有効期限）。
func (r *PostgresSessionRepo) Update(ctx context.Context, userKey string, upd *model.SessionUpdate, expiresAt time.Time) error {
	sets := []string{}
	args := []any{userKey}
	idx := 2

	if upd.State != nil {
		sets = append(sets, fmt.Sprintf("state = $%d", idx))
		args = append(args, string(*upd.State))
		idx++
	}
	if upd.Data != nil {
		dataJSON, err := json.Marshal(*upd.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal session data: %w", err)
		}
		sets = append(sets, fmt.Sprintf("data = $%d", idx))
		args = append(args, dataJSON)
		idx++
	}
	if upd.UserID != nil {
		sets = append(sets, fmt.Sprintf("user_id = $%d", idx))
		args = append(args, *upd.UserID)
		idx++
	}
	if upd.CompanyID != nil {
		sets = append(sets, fmt.Sprintf("company_id = $%d", idx))
		args = append(args, *upd.CompanyID)
		idx++
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, fmt.Sprintf("expires_at = $%d", idx))
	args = append(args, expiresAt)
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE sessions SET %s WHERE user_key = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteByUserKey はセッションを削除する。対象が存在しなくてもエラーにしない。
func (r *PostgresSessionRepo) DeleteByUserKey(ctx context.Context, userKey string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_key = $1`, userKey,
	); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired はexpires_atが過去の行を一括削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
