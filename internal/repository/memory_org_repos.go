package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assistchatbot-debug/DrAive/internal/model"
)

// MemoryUserRepo はインメモリのユーザーリポジトリ。
// DATABASE_URL未設定時のフォールバック。開発・デモ用途専用。
type MemoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[string]*model.User)}
}

// FindByUserKey はチャット側識別子でユーザーを検索する。
func (r *MemoryUserRepo) FindByUserKey(ctx context.Context, userKey string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userKey]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

// Create はユーザーを作成する。
func (r *MemoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	user.ID = uuid.New().String()
	if user.Language == "" {
		user.Language = "ru"
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	cp := *user
	r.users[user.UserKey] = &cp
	return nil
}

// MemoryCompanyRepo はインメモリの会社リポジトリ。
type MemoryCompanyRepo struct {
	mu        sync.Mutex
	companies map[string]*model.Company
}

// NewMemoryCompanyRepo はMemoryCompanyRepoを生成する。
func NewMemoryCompanyRepo() *MemoryCompanyRepo {
	return &MemoryCompanyRepo{companies: make(map[string]*model.Company)}
}

// FindByID は指定IDの会社を取得する。
func (r *MemoryCompanyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Create は会社を作成する。
func (r *MemoryCompanyRepo) Create(ctx context.Context, company *model.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	company.ID = uuid.New().String()
	company.CreatedAt = time.Now()
	cp := *company
	r.companies[company.ID] = &cp
	return nil
}

// MemoryPositionRepo はインメモリの組織図ポストリポジトリ。
type MemoryPositionRepo struct {
	mu        sync.Mutex
	positions []*model.Position
}

// NewMemoryPositionRepo はMemoryPositionRepoを生成する。
func NewMemoryPositionRepo() *MemoryPositionRepo {
	return &MemoryPositionRepo{}
}

// CreateAll は会社の全ポストを作成する。
func (r *MemoryPositionRepo) CreateAll(ctx context.Context, positions []*model.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range positions {
		p.ID = uuid.New().String()
		cp := *p
		r.positions = append(r.positions, &cp)
	}
	return nil
}

// ListByCompanyID は会社の全ポストをposition_number順で返す。
func (r *MemoryPositionRepo) ListByCompanyID(ctx context.Context, companyID string) ([]*model.Position, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*model.Position
	for _, p := range r.positions {
		if p.CompanyID == companyID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PositionNumber < result[j].PositionNumber
	})
	return result, nil
}

var (
	_ UserRepository     = (*MemoryUserRepo)(nil)
	_ CompanyRepository  = (*MemoryCompanyRepo)(nil)
	_ PositionRepository = (*MemoryPositionRepo)(nil)
)
