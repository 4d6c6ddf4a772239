package seeder

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/tracuu-benhly/lookup/internal/textutil"
)

// DefaultCatalog is the minimal catalog every installation starts with.
var DefaultCatalog = []string{
	"Viêm phổi cấp",
	"Sốt xuất huyết",
	"Tiểu đường",
	"Cao huyết áp",
}

const (
	minTitleRunes = 2
	maxTitleRunes = 120
)

// CatalogProcessor turns harvested link texts into catalog entries.
type CatalogProcessor struct {
	htmlTags   *regexp.Regexp
	references *regexp.Regexp
	leadingNum *regexp.Regexp
	skip       map[string]struct{}
}

func NewCatalogProcessor() *CatalogProcessor {
	return &CatalogProcessor{
		htmlTags:   regexp.MustCompile(`<[^>]*>`),
		references: regexp.MustCompile(`\[[^\]]*\]`),
		leadingNum: regexp.MustCompile(`^\d+[.)]\s*`),
		skip: map[string]struct{}{
			"xem thêm":   {},
			"trang chủ":  {},
			"tiếp theo":  {},
			"quay lại":   {},
			"đọc thêm":   {},
			"chi tiết":   {},
			"liên hệ":    {},
			"đăng nhập":  {},
			"tìm kiếm":   {},
			"read more":  {},
			"next":       {},
			"previous":   {},
		},
	}
}

// CleanTitle strips markup, citation marks and list numbering, then
// normalizes spacing and composition.
func (cp *CatalogProcessor) CleanTitle(raw string) string {
	s := cp.htmlTags.ReplaceAllString(raw, " ")
	s = cp.references.ReplaceAllString(s, "")
	s = textutil.Normalize(s)
	s = cp.leadingNum.ReplaceAllString(s, "")
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != ')' && r != '('
	})
	return strings.TrimSpace(s)
}

// IsUsable rejects navigation links, numbers and overlong blurbs.
func (cp *CatalogProcessor) IsUsable(title string) bool {
	n := len([]rune(title))
	if n < minTitleRunes || n > maxTitleRunes {
		return false
	}
	if _, ok := cp.skip[textutil.Fold(title)]; ok {
		return false
	}
	for _, r := range title {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Process cleans, filters and case-insensitively deduplicates raw titles,
// keeping the first spelling seen.
func (cp *CatalogProcessor) Process(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		title := cp.CleanTitle(r)
		if !cp.IsUsable(title) {
			continue
		}
		key := textutil.Fold(title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, title)
	}
	return out
}
