// Package user はユーザー設定とロール管理のドメインロジックを提供する。
// ロールの変更はここを経由する管理者操作だけで行い、認証パイプラインからは変更しない。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/grantdesk/internal/model"
)

// Repository はユーザー設定の更新に必要な永続化インターフェース。
// repository.UserRepositoryが実装する。
type Repository interface {
	UpdateLanguage(ctx context.Context, id int64, lang model.Language) error
	UpdateRole(ctx context.Context, id int64, role model.Role) (bool, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	users  Repository
	logger *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, logger: logger}
}

// UpdateLanguage はユーザーの表示言語を更新する。
// 対応外の言語の場合はINVALID_LANGUAGEのAPIErrorを返す。
func (s *Service) UpdateLanguage(ctx context.Context, userID int64, lang model.Language) error {
	if !lang.Valid() {
		return model.NewInvalidLanguageError(string(lang))
	}
	if err := s.users.UpdateLanguage(ctx, userID, lang); err != nil {
		return fmt.Errorf("failed to update language: %w", err)
	}
	return nil
}

// ChangeRole は管理者actorIDが対象ユーザーのロールを変更する。
// 管理者は自分自身を降格できない。対象が存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) ChangeRole(ctx context.Context, actorID, targetID int64, role model.Role) error {
	if !role.Valid() {
		return model.NewInvalidRoleError(string(role))
	}
	if actorID == targetID && role != model.RoleAdmin {
		return model.NewInvalidRequestError("administrators cannot demote themselves")
	}

	found, err := s.users.UpdateRole(ctx, targetID, role)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if !found {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("user role changed",
		slog.Int64("actor_id", actorID),
		slog.Int64("user_id", targetID),
		slog.String("role", string(role)),
	)
	return nil
}
