package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer は信頼できないHTMLを許可リストに従って無害化する。
type HTMLSanitizer interface {
	Sanitize(rawHTML string) string
}

// ReportSanitizer はLLMが生成したインパクトレポートのHTMLを無害化する。
// 見出し、段落、リスト、表、強調、httpsとmailtoのリンクのみを残す。
// 画像やフォーム、スクリプト、スタイル属性は除去する。
type ReportSanitizer struct {
	policy *bluemonday.Policy
}

// NewReportSanitizer はReportSanitizerを生成する。
func NewReportSanitizer() *ReportSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4",
		"p", "br", "hr",
		"ul", "ol", "li",
		"strong", "em", "blockquote",
		"table", "thead", "tbody", "tr",
	)
	p.AllowAttrs("scope").Matching(regexp.MustCompile(`^(row|col)$`)).OnElements("th")
	p.AllowAttrs("colspan", "rowspan").Matching(regexp.MustCompile(`^[1-9][0-9]?$`)).OnElements("td", "th")
	p.AllowElements("th", "td")

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &ReportSanitizer{policy: p}
}

// Sanitize はHTMLを無害化して返す。同じ入力には常に同じ出力を返す。
func (s *ReportSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var strictPolicy = bluemonday.StrictPolicy()

// StripTags はすべてのタグを除去したテキストを返す。レポートのタイトルなどに使う。
func StripTags(s string) string {
	return strictPolicy.Sanitize(s)
}
