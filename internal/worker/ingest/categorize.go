package ingest

import (
	"strings"

	"github.com/hitoshi/newsman/internal/model"
)

// categoryRules はカテゴリ判定のキーワード。上から順に評価し、最初に一致したものを採用する。
var categoryRules = []struct {
	category string
	keywords []string
}{
	{model.CategoryTechnology, []string{"technology", "tech"}},
	{model.CategoryBusiness, []string{"business", "finance"}},
	{model.CategorySports, []string{"sports", "game"}},
	{model.CategoryHealth, []string{"health", "medical"}},
	{model.CategoryScience, []string{"science", "research"}},
	{model.CategoryEntertainment, []string{"entertainment", "celebrity"}},
}

// Categorize はタイトルと概要に含まれるキーワードから記事のカテゴリを決定する。
// どの規則にも一致しない場合はgeneralを返す。部分一致で判定する。
func Categorize(title, description string) string {
	text := strings.ToLower(title + " " + description)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.category
			}
		}
	}
	return model.CategoryGeneral
}
