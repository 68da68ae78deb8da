// Package recommend はユーザーごとの記事レコメンドを提供する。
//
// スコアは好みのカテゴリと既読記事タイトルのキーワードから算出し、
// スコア降順、公開日時の降順、ID昇順で並べる。同じ入力には常に同じ結果を返す。
package recommend

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/newsman/internal/metrics"
	"github.com/hitoshi/newsman/internal/model"
	"github.com/hitoshi/newsman/internal/repository"
)

// preferredCategoryScore は好みのカテゴリに一致した場合の加点。
const preferredCategoryScore = 2

// Scored はスコア付きの候補記事。
type Scored struct {
	model.ArticleCandidate
	Score int
}

// Engine はレコメンドを算出する。状態を持たず、並行に呼び出してよい。
type Engine struct {
	articles repository.ArticleReader
	profiles repository.ProfileRepository
	metrics  metrics.RecommendRecorder
}

// NewEngine はEngineを生成する。recがnilの場合はメトリクスを記録しない。
func NewEngine(articles repository.ArticleReader, profiles repository.ProfileRepository, rec metrics.RecommendRecorder) *Engine {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Engine{articles: articles, profiles: profiles, metrics: rec}
}

// Recommend はユーザーの未読記事をスコア順に並べた1ページ分を返す。
func (e *Engine) Recommend(ctx context.Context, userID string, page, limit int) (*model.RecommendationResult, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewInvalidArgumentError("userID はUUID形式で指定してください")
	}
	if err := model.ValidatePaging(page, limit, 0); err != nil {
		return nil, err
	}

	start := time.Now()

	profile, err := e.profiles.FindProfile(ctx, userID)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}
	if profile == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	keywords, err := e.keywords(ctx, profile.ReadArticleIDs)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	candidates, err := e.articles.ListCandidates(ctx, model.ArticleFilter{ExcludeIDs: profile.ReadArticleIDs})
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	ranked := Rank(candidates, profile.PreferredCategories, keywords)
	total := len(ranked)

	pageIDs := pageOf(ranked, model.Offset(page, limit), limit)
	articles, err := e.fetchInOrder(ctx, pageIDs)
	if err != nil {
		return nil, model.NewStoreUnavailableError(err)
	}

	e.metrics.RecordRecommendation(time.Since(start), total)
	slog.Debug("レコメンドを算出しました",
		slog.String("user_id", userID),
		slog.Int("candidates", total),
		slog.Int("keywords", len(keywords)),
	)

	return &model.RecommendationResult{
		Recommendations:      articles,
		CurrentPage:          page,
		TotalPages:           model.TotalPages(total, limit),
		TotalRecommendations: total,
	}, nil
}

// keywords は既読記事のタイトルからキーワードを抽出する。
func (e *Engine) keywords(ctx context.Context, readIDs []string) ([]string, error) {
	if len(readIDs) == 0 {
		return nil, nil
	}
	read, err := e.articles.FindByIDs(ctx, readIDs)
	if err != nil {
		return nil, err
	}
	titles := make([]string, len(read))
	for i, a := range read {
		titles[i] = a.Title
	}
	return ExtractKeywords(titles), nil
}

// fetchInOrder はIDの順序を保ったまま記事本体を取得する。
// スコアリング後に削除された記事は結果から除かれる。
func (e *Engine) fetchInOrder(ctx context.Context, ids []string) ([]model.Article, error) {
	if len(ids) == 0 {
		return []model.Article{}, nil
	}
	found, err := e.articles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]model.Article, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	out := make([]model.Article, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Rank は候補記事にスコアを付けて並べ替える。入力のスライスは変更しない。
func Rank(candidates []model.ArticleCandidate, preferred []string, keywords []string) []Scored {
	pref := make(map[string]struct{}, len(preferred))
	for _, c := range preferred {
		pref[c] = struct{}{}
	}
	kw := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		kw[k] = struct{}{}
	}

	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		s := 0
		if _, ok := pref[c.Category]; ok {
			s += preferredCategoryScore
		}
		s += matchKeywords(c.Title, kw)
		scored[i] = Scored{ArticleCandidate: c, Score: s}
	}

	slices.SortFunc(scored, compareScored)
	return scored
}

// compareScored はスコア降順、公開日時降順、ID昇順の全順序を与える。
func compareScored(a, b Scored) int {
	if a.Score != b.Score {
		return b.Score - a.Score
	}
	if c := b.PublishedAt.Compare(a.PublishedAt); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func pageOf(ranked []Scored, skip, limit int) []string {
	if skip >= len(ranked) {
		return nil
	}
	end := min(skip+limit, len(ranked))
	ids := make([]string, 0, end-skip)
	for _, s := range ranked[skip:end] {
		ids = append(ids, s.ID)
	}
	return ids
}
