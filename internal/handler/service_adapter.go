package handler

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/grantdesk/internal/drive"
	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/report"
)

// DriveServiceAdapter は drive.Service を DriveServiceInterface に適合させるアダプタ。
// driveパッケージのエラーをAPIErrorに変換する。
type DriveServiceAdapter struct {
	svc *drive.Service
}

// NewDriveServiceAdapter はDriveServiceAdapterを生成する。
func NewDriveServiceAdapter(svc *drive.Service) *DriveServiceAdapter {
	return &DriveServiceAdapter{svc: svc}
}

// AuthURL は同意画面のURLを返す。
func (a *DriveServiceAdapter) AuthURL(ctx context.Context, userID int64) (string, error) {
	u, err := a.svc.AuthURL(ctx, userID)
	return u, translateDriveError(err)
}

// HandleCallback は認可コードを交換して連携を完了する。
func (a *DriveServiceAdapter) HandleCallback(ctx context.Context, userID int64, state, code string) error {
	return translateDriveError(a.svc.HandleCallback(ctx, userID, state, code))
}

// Status は連携済みかを返す。
func (a *DriveServiceAdapter) Status(ctx context.Context, userID int64) (bool, error) {
	ok, err := a.svc.Status(ctx, userID)
	return ok, translateDriveError(err)
}

// Disconnect は連携を解除する。
func (a *DriveServiceAdapter) Disconnect(ctx context.Context, userID int64) error {
	return translateDriveError(a.svc.Disconnect(ctx, userID))
}

// ListFiles はDrive上のファイル一覧を返す。
func (a *DriveServiceAdapter) ListFiles(ctx context.Context, userID int64, query, pageToken string) (*drive.FileList, error) {
	list, err := a.svc.ListFiles(ctx, userID, query, pageToken)
	return list, translateDriveError(err)
}

// Import はDrive上のファイルを文書として取り込む。
func (a *DriveServiceAdapter) Import(ctx context.Context, userID int64, req drive.ImportRequest) (*model.Document, error) {
	doc, err := a.svc.Import(ctx, userID, req)
	if errors.Is(err, drive.ErrApplicationNotFound) {
		return nil, model.NewApplicationNotFoundError(*req.ApplicationID)
	}
	return doc, translateDriveError(err)
}

func translateDriveError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *drive.APIError
	var retrieveErr *oauth2.RetrieveError
	switch {
	case errors.Is(err, drive.ErrNotConfigured):
		return model.NewServiceUnavailableError("Google Drive")
	case errors.Is(err, drive.ErrNotConnected):
		return model.NewDriveNotConnectedError()
	case errors.Is(err, drive.ErrInvalidState):
		return model.NewInvalidOAuthStateError()
	case errors.Is(err, drive.ErrFileTooLarge):
		return model.NewFileTooLargeError()
	case errors.As(err, &retrieveErr):
		// 認可コードの拒否と、リフレッシュトークンの失効
		return model.NewDriveNotConnectedError()
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusNotFound:
			return model.NewDriveFileNotFoundError()
		case http.StatusUnauthorized:
			return model.NewDriveNotConnectedError()
		}
		return model.NewServiceUnavailableError("Google Drive")
	}
	return err
}

// ReportServiceAdapter は report.Service を ReportServiceInterface に適合させるアダプタ。
type ReportServiceAdapter struct {
	svc *report.Service
}

// NewReportServiceAdapter はReportServiceAdapterを生成する。
func NewReportServiceAdapter(svc *report.Service) *ReportServiceAdapter {
	return &ReportServiceAdapter{svc: svc}
}

// Generate はインパクトレポートを生成して保存する。
func (a *ReportServiceAdapter) Generate(ctx context.Context, user *model.User, req report.GenerateRequest) (*model.ImpactReport, error) {
	r, err := a.svc.Generate(ctx, user, req)
	if err == nil {
		return r, nil
	}
	switch {
	case errors.Is(err, report.ErrInvalidRequest):
		return nil, model.NewInvalidRequestError(err.Error())
	case errors.Is(err, report.ErrApplicationNotFound):
		return nil, model.NewApplicationNotFoundError(req.ApplicationID)
	case errors.Is(err, report.ErrLLMNotConfigured):
		return nil, model.NewServiceUnavailableError("AI report generation")
	case errors.Is(err, report.ErrGenerationFailed):
		return nil, model.NewReportGenerationFailedError()
	}
	return nil, err
}

// List はユーザーが作成したレポートを返す。
func (a *ReportServiceAdapter) List(ctx context.Context, userID int64) ([]*model.ImpactReport, error) {
	return a.svc.List(ctx, userID)
}
