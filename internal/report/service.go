package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/grantdesk/internal/model"
	"github.com/hitoshi/grantdesk/internal/repository"
	"github.com/hitoshi/grantdesk/internal/security"
)

var (
	// ErrApplicationNotFound は対象の申請が存在しない場合を表す。
	ErrApplicationNotFound = errors.New("application not found")
	// ErrInvalidRequest は生成条件が不正な場合を表す。
	ErrInvalidRequest = errors.New("invalid report request")
	// ErrGenerationFailed はLLMからレポートを得られなかった場合を表す。
	ErrGenerationFailed = errors.New("report generation failed")
)

const maxDocuments = 20

var reportTypes = map[string]bool{
	"annual":    true,
	"quarterly": true,
	"project":   true,
	"donor":     true,
	"custom":    true,
}

var languageNames = map[model.Language]string{
	model.LanguageEnglish: "English",
	model.LanguageSpanish: "Spanish",
	model.LanguageCatalan: "Catalan",
	model.LanguageBasque:  "Basque",
}

// GenerateRequest はレポート生成の条件。
type GenerateRequest struct {
	ApplicationID int64     `json:"application_id"`
	Title         string    `json:"title"`
	ReportType    string    `json:"report_type"`
	PeriodStart   string    `json:"reporting_period_start"`
	PeriodEnd     string    `json:"reporting_period_end"`
	FocusAreas    []string  `json:"focus_areas"`
	DocumentIDs   []int64   `json:"document_ids"`

	periodStart time.Time
	periodEnd   time.Time
}

// Service はインパクトレポートを生成して保存する。
type Service struct {
	applications repository.ApplicationRepository
	grants       repository.GrantRepository
	documents    repository.DocumentRepository
	reports      repository.ReportRepository
	llm          LLMClient
	sanitizer    security.HTMLSanitizer
}

// NewService はServiceを生成する。
func NewService(
	applications repository.ApplicationRepository,
	grants repository.GrantRepository,
	documents repository.DocumentRepository,
	reports repository.ReportRepository,
	llm LLMClient,
	sanitizer security.HTMLSanitizer,
) *Service {
	return &Service{
		applications: applications,
		grants:       grants,
		documents:    documents,
		reports:      reports,
		llm:          llm,
		sanitizer:    sanitizer,
	}
}

// Generate は申請と公募、添付文書の情報からプロンプトを組み立ててレポートを生成する。
// 生成されたHTMLは無害化してから下書きとして保存する。
func (s *Service) Generate(ctx context.Context, user *model.User, req GenerateRequest) (*model.ImpactReport, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	app, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	grant, err := s.grants.FindByID(ctx, app.GrantOpportunityID)
	if err != nil {
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}

	docs := make([]*model.Document, 0, len(req.DocumentIDs))
	for _, id := range req.DocumentIDs {
		doc, err := s.documents.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to find document: %w", err)
		}
		if doc == nil {
			return nil, fmt.Errorf("%w: document %d not found", ErrInvalidRequest, id)
		}
		docs = append(docs, doc)
	}

	system := systemPrompt(req, user.PreferredLanguage)
	prompt := userPrompt(app, grant, docs)

	start := time.Now()
	raw, err := s.llm.Complete(ctx, system, prompt)
	if errors.Is(err, ErrLLMNotConfigured) {
		return nil, err
	}
	if err != nil {
		slog.Error("report generation failed",
			slog.Int64("user_id", user.ID),
			slog.Int64("application_id", app.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	content := s.sanitizer.Sanitize(stripCodeFence(raw))
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: empty content after sanitizing", ErrGenerationFailed)
	}

	title := strings.TrimSpace(security.StripTags(req.Title))
	if title == "" {
		title = fmt.Sprintf("%s impact report: %s", strings.ToUpper(req.ReportType[:1])+req.ReportType[1:], app.ProjectTitle)
	}

	report := &model.ImpactReport{
		ApplicationID:   app.ID,
		Title:           title,
		ReportType:      req.ReportType,
		Content:         content,
		Status:          model.ImpactReportDraft,
		CreatedByUserID: user.ID,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}

	slog.Info("impact report generated",
		slog.Int64("user_id", user.ID),
		slog.Int64("report_id", report.ID),
		slog.Int("documents", len(docs)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// List はユーザーが作成したレポートを返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.ImpactReport, error) {
	reports, err := s.reports.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

func validate(req *GenerateRequest) error {
	if req.ApplicationID <= 0 {
		return fmt.Errorf("%w: application_id is required", ErrInvalidRequest)
	}
	if req.ReportType == "" {
		req.ReportType = "project"
	}
	if !reportTypes[req.ReportType] {
		return fmt.Errorf("%w: unknown report_type %q", ErrInvalidRequest, req.ReportType)
	}
	if len(req.DocumentIDs) > maxDocuments {
		return fmt.Errorf("%w: at most %d documents", ErrInvalidRequest, maxDocuments)
	}

	var err error
	if req.PeriodStart != "" {
		if req.periodStart, err = time.Parse(time.DateOnly, req.PeriodStart); err != nil {
			return fmt.Errorf("%w: reporting_period_start must be YYYY-MM-DD", ErrInvalidRequest)
		}
	}
	if req.PeriodEnd != "" {
		if req.periodEnd, err = time.Parse(time.DateOnly, req.PeriodEnd); err != nil {
			return fmt.Errorf("%w: reporting_period_end must be YYYY-MM-DD", ErrInvalidRequest)
		}
	}
	if !req.periodStart.IsZero() && !req.periodEnd.IsZero() && req.periodEnd.Before(req.periodStart) {
		return fmt.Errorf("%w: reporting period ends before it starts", ErrInvalidRequest)
	}
	return nil
}

func systemPrompt(req GenerateRequest, lang model.Language) string {
	language, ok := languageNames[lang]
	if !ok {
		language = languageNames[model.DefaultLanguage]
	}

	var b strings.Builder
	b.WriteString("You are an expert impact report analyst for NGOs. Write an impact report based strictly on the information provided.\n\n")
	b.WriteString("Requirements:\n")
	b.WriteString("1. Use only facts present in the provided material. Do not invent figures.\n")
	b.WriteString("2. Cite the source of every data point as [Doc: name].\n")
	b.WriteString("3. When information is missing, say that it is not available in the provided documents.\n")
	b.WriteString("4. Respond with an HTML fragment using only h2, h3, p, ul, ol, li, strong, em and table elements.\n\n")
	fmt.Fprintf(&b, "Report type: %s\n", req.ReportType)
	if req.PeriodStart != "" || req.PeriodEnd != "" {
		fmt.Fprintf(&b, "Reporting period: %s to %s\n", orDash(req.PeriodStart), orDash(req.PeriodEnd))
	}
	if len(req.FocusAreas) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s\n", strings.Join(req.FocusAreas, ", "))
	}
	fmt.Fprintf(&b, "Language: %s\n", language)
	return b.String()
}

func userPrompt(app *model.Application, grant *model.GrantOpportunity, docs []*model.Document) string {
	var b strings.Builder
	b.WriteString("Generate an impact report for the following project.\n\n")
	fmt.Fprintf(&b, "Project: %s\n", app.ProjectTitle)
	fmt.Fprintf(&b, "Application status: %s\n", app.Status)
	if app.TargetBeneficiaries != "" {
		fmt.Fprintf(&b, "Target beneficiaries: %s\n", app.TargetBeneficiaries)
	}
	if app.RequestedAmount != nil {
		fmt.Fprintf(&b, "Requested amount: %d EUR\n", *app.RequestedAmount)
	}
	if app.ProjectStartDate != nil && app.ProjectEndDate != nil {
		fmt.Fprintf(&b, "Project period: %s to %s\n", app.ProjectStartDate.Format(time.DateOnly), app.ProjectEndDate.Format(time.DateOnly))
	}
	if grant != nil {
		fmt.Fprintf(&b, "Funding source: %s (%s)\n", grant.FundingSource, grant.ProgramTitle)
		if grant.ThematicArea != "" {
			fmt.Fprintf(&b, "Thematic area: %s\n", grant.ThematicArea)
		}
	}

	if len(docs) > 0 {
		b.WriteString("\nSupporting documents:\n")
		for i, d := range docs {
			fmt.Fprintf(&b, "Document %d: %s (%s)", i+1, d.DocumentName, d.DocumentType)
			if d.Notes != "" {
				fmt.Fprintf(&b, ". Notes: %s", d.Notes)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nSections: Executive Summary, Activities Implemented, Beneficiaries Reached, Quantitative Impact Metrics, Qualitative Outcomes, Challenges and Lessons Learned, Conclusions and Recommendations.\n")
	return b.String()
}

// stripCodeFence はモデルが返すことのある ```html ... ``` の囲みを外す。
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
