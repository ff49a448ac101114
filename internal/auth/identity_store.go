package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
)

// IdentityStore は外部subject IDとローカルユーザーの対応を管理する。
// 基盤のDBに到達できない場合はErrStoreUnavailable、値や制約に起因する失敗は
// ErrIdentityRejectedをラップしたエラーを返す。
type IdentityStore struct {
	users   repository.UserRepository
	timeout time.Duration
	now     func() time.Time
}

// NewIdentityStore はIdentityStoreを生成する。
// timeoutは1回のストア呼び出しに許す最大時間。
func NewIdentityStore(users repository.UserRepository, timeout time.Duration) *IdentityStore {
	return &IdentityStore{
		users:   users,
		timeout: timeout,
		now:     time.Now,
	}
}

// FindByExternalID は外部subject IDでユーザーを取得する。見つからない場合はnilを返す。
func (s *IdentityStore) FindByExternalID(ctx context.Context, subjectID string) (*model.User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.FindByExternalID(ctx, subjectID)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	return user, nil
}

// ResolveOrCreate は検証済みの外部IDに対応するローカルユーザーを返す。
// 未登録であればrole=user、言語=デフォルトで作成し、登録済みであれば最終ログイン日時を更新する。
// 戻り値のboolは新規作成されたかを表す。roleは外部IDの内容に関わらず変更しない。
func (s *IdentityStore) ResolveOrCreate(ctx context.Context, identity *model.ExternalIdentity) (*model.User, bool, error) {
	if identity == nil || identity.Subject == "" {
		return nil, false, errors.New("identity subject is required")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	profile := repository.ProfileFields{
		Name:        identity.Name,
		Email:       identity.Email,
		LoginMethod: identity.Provider,
	}
	user, created, err := s.users.ResolveOrCreate(ctx, identity.Subject, profile, s.now())
	if err != nil {
		return nil, false, classifyStoreError(err)
	}
	if user == nil {
		return nil, false, fmt.Errorf("%w: store returned no user", ErrStoreUnavailable)
	}
	return user, created, nil
}

// classifyStoreError はリポジトリのエラーをストア障害とデータ起因の拒否に分ける。
func classifyStoreError(err error) error {
	if repository.IsDataError(err) {
		return fmt.Errorf("%w: %v", ErrIdentityRejected, err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (s *IdentityStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
