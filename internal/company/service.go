package company

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/assistchatbot-debug/DrAive/internal/model"
	"github.com/assistchatbot-debug/DrAive/internal/repository"
)

// maxCompanyNameLength は会社名の最大文字数。
const maxCompanyNameLength = 200

// Service は会社登録のサービス層。
// 会社の作成、創業者ユーザーの作成、21ポストのシードをまとめて行う。
type Service struct {
	companyRepo  repository.CompanyRepository
	userRepo     repository.UserRepository
	positionRepo repository.PositionRepository
	logger       *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	positionRepo repository.PositionRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		companyRepo:  companyRepo,
		userRepo:     userRepo,
		positionRepo: positionRepo,
		logger:       logger,
	}
}

// RegistrationInput は会社登録の入力。
type RegistrationInput struct {
	UserKey     string // チャット側の安定識別子
	CompanyName string
	Username    string
	FullName    string
	Language    string
}

// RegistrationResult は会社登録の結果。
type RegistrationResult struct {
	Company *model.Company
	User    *model.User
}

// Register は会社を登録する。
// 会社作成、創業者ユーザー作成、21ポストのシードを順に実行し、
// 創業者はポスト21（創業者席）を含む全ポストに初期割り当てされる。
func (s *Service) Register(ctx context.Context, input RegistrationInput) (*RegistrationResult, error) {
	name := strings.TrimSpace(input.CompanyName)
	if name == "" {
		return nil, model.NewEmptyCompanyNameError()
	}
	if len([]rune(name)) > maxCompanyNameLength {
		name = string([]rune(name)[:maxCompanyNameLength])
	}

	comp := &model.Company{Name: name}
	if err := s.companyRepo.Create(ctx, comp); err != nil {
		return nil, fmt.Errorf("会社の作成に失敗しました: %w", err)
	}

	lang := input.Language
	if lang == "" {
		lang = "ru"
	}
	user := &model.User{
		UserKey:   input.UserKey,
		Username:  input.Username,
		FullName:  input.FullName,
		CompanyID: &comp.ID,
		Language:  lang,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("創業者ユーザーの作成に失敗しました: %w", err)
	}

	positions := seedPositions(comp.ID, user.ID)
	if err := s.positionRepo.CreateAll(ctx, positions); err != nil {
		return nil, fmt.Errorf("組織図ポストのシードに失敗しました: %w", err)
	}

	s.logger.Info("会社を登録しました",
		slog.String("company_id", comp.ID),
		slog.String("user_key", input.UserKey),
		slog.Int("position_count", len(positions)),
	)
	return &RegistrationResult{Company: comp, User: user}, nil
}

// OrgChart は会社の組織図を整形済みテキストで返す。
// 会社が存在しない場合はCOMPANY_NOT_FOUNDエラーを返す。
func (s *Service) OrgChart(ctx context.Context, companyID, lang string) (string, error) {
	comp, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		return "", fmt.Errorf("会社の取得に失敗しました: %w", err)
	}
	if comp == nil {
		return "", model.NewCompanyNotFoundError(companyID)
	}

	positions, err := s.positionRepo.ListByCompanyID(ctx, companyID)
	if err != nil {
		return "", fmt.Errorf("組織図ポストの取得に失敗しました: %w", err)
	}
	return FormatOrgChart(positions, lang), nil
}
