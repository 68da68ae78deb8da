package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hitoshi/newsman/internal/model"
)

// --- モック定義 ---

// mockArticleReader はメモリ上の記事でArticleReaderを実装する。
// listCandidatesFn が設定されている場合はそちらを優先する。
type mockArticleReader struct {
	articles         []model.Article
	listCandidatesFn func(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleCandidate, error)
	findByIDsErr     error
}

func (m *mockArticleReader) FindByID(_ context.Context, id string) (*model.Article, error) {
	for _, a := range m.articles {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *mockArticleReader) FindByIDs(_ context.Context, ids []string) ([]model.Article, error) {
	if m.findByIDsErr != nil {
		return nil, m.findByIDsErr
	}
	var out []model.Article
	for _, a := range m.articles {
		if slices.Contains(ids, a.ID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockArticleReader) Find(context.Context, model.ArticleFilter, int, int) ([]model.Article, error) {
	return nil, errors.New("not used")
}

func (m *mockArticleReader) Count(context.Context, model.ArticleFilter) (int, error) {
	return 0, errors.New("not used")
}

func (m *mockArticleReader) ListCandidates(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleCandidate, error) {
	if m.listCandidatesFn != nil {
		return m.listCandidatesFn(ctx, filter)
	}
	var out []model.ArticleCandidate
	for _, a := range m.articles {
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if slices.Contains(filter.ExcludeIDs, a.ID) {
			continue
		}
		out = append(out, model.ArticleCandidate{ID: a.ID, Title: a.Title, Category: a.Category, PublishedAt: a.PublishedAt})
	}
	return out, nil
}

func (m *mockArticleReader) TextSearch(context.Context, string, int, int) ([]model.Article, error) {
	return nil, errors.New("not used")
}

func (m *mockArticleReader) CountTextSearch(context.Context, string) (int, error) {
	return 0, errors.New("not used")
}

type mockProfileRepo struct {
	findProfileFn func(ctx context.Context, userID string) (*model.UserProfile, error)
}

func (m *mockProfileRepo) FindProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	return m.findProfileFn(ctx, userID)
}

func (m *mockProfileRepo) AddReadArticle(context.Context, string, string) error {
	return nil
}

func (m *mockProfileRepo) UpdatePreferences(context.Context, string, []string) (bool, error) {
	return true, nil
}

// --- ヘルパー ---

const testUserID = "5b1f6c2e-8a43-4b7e-9d1e-2f3a4b5c6d7e"

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func article(id, title, category string, hoursAgo int) model.Article {
	return model.Article{
		ID:          id,
		Title:       title,
		Category:    category,
		PublishedAt: baseTime.Add(-time.Duration(hoursAgo) * time.Hour),
	}
}

func profileOf(preferred []string, read []string) *mockProfileRepo {
	return &mockProfileRepo{
		findProfileFn: func(_ context.Context, userID string) (*model.UserProfile, error) {
			return &model.UserProfile{ID: userID, PreferredCategories: preferred, ReadArticleIDs: read}, nil
		},
	}
}

func ids(articles []model.Article) []string {
	out := make([]string, len(articles))
	for i, a := range articles {
		out[i] = a.ID
	}
	return out
}

// --- テスト ---

// TestRecommend_PreferredCategoryScenario は好みのカテゴリが優先され、
// 件数はページ抽出前の全候補から算出されることを検証する。
func TestRecommend_PreferredCategoryScenario(t *testing.T) {
	store := &mockArticleReader{articles: []model.Article{
		article("t1", "Chips", model.CategoryTechnology, 5),
		article("t2", "Cloud", model.CategoryTechnology, 1),
		article("t3", "Robots", model.CategoryTechnology, 3),
		article("g1", "Weather", model.CategoryGeneral, 0),
		article("g2", "Traffic", model.CategoryGeneral, 2),
	}}
	e := NewEngine(store, profileOf([]string{model.CategoryTechnology}, nil), nil)

	got, err := e.Recommend(context.Background(), testUserID, 1, 2)
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}

	if diff := cmp.Diff([]string{"t2", "t3"}, ids(got.Recommendations)); diff != "" {
		t.Errorf("page 1 mismatch (-want +got):\n%s", diff)
	}
	if got.TotalRecommendations != 5 {
		t.Errorf("TotalRecommendations = %d, want 5", got.TotalRecommendations)
	}
	if got.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", got.TotalPages)
	}
	if got.CurrentPage != 1 {
		t.Errorf("CurrentPage = %d, want 1", got.CurrentPage)
	}
}

// TestRecommend_ExcludesReadArticles は既読記事が結果に含まれないことを検証する。
func TestRecommend_ExcludesReadArticles(t *testing.T) {
	store := &mockArticleReader{articles: []model.Article{
		article("a1", "Golang release notes", model.CategoryTechnology, 1),
		article("a2", "Golang generics deep dive", model.CategoryTechnology, 2),
		article("a3", "Football finals", model.CategorySports, 3),
	}}
	e := NewEngine(store, profileOf(nil, []string{"a1"}), nil)

	got, err := e.Recommend(context.Background(), testUserID, 1, 10)
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	for _, a := range got.Recommendations {
		if a.ID == "a1" {
			t.Fatal("read article must not be recommended")
		}
	}
	if got.TotalRecommendations != 2 {
		t.Errorf("TotalRecommendations = %d, want 2", got.TotalRecommendations)
	}
	// "golang" は既読タイトルのキーワードなので a2 が先頭になる
	if got.Recommendations[0].ID != "a2" {
		t.Errorf("first = %s, want a2", got.Recommendations[0].ID)
	}
}

// TestRecommend_ColdStartOrdersByRecency は好みも既読もない場合に新しい順になることを検証する。
func TestRecommend_ColdStartOrdersByRecency(t *testing.T) {
	store := &mockArticleReader{articles: []model.Article{
		article("old", "Old", model.CategoryGeneral, 10),
		article("new", "New", model.CategorySports, 0),
		article("mid", "Mid", model.CategoryBusiness, 5),
	}}
	e := NewEngine(store, profileOf(nil, nil), nil)

	got, err := e.Recommend(context.Background(), testUserID, 1, 10)
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if diff := cmp.Diff([]string{"new", "mid", "old"}, ids(got.Recommendations)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

// TestRecommend_PaginationConsistency は全ページを連結すると重複なく総件数と一致することを検証する。
func TestRecommend_PaginationConsistency(t *testing.T) {
	var articles []model.Article
	for i := 0; i < 23; i++ {
		cat := model.CategoryGeneral
		if i%3 == 0 {
			cat = model.CategoryScience
		}
		// 同じ公開日時を複数作り、ID による決定的な並びも検証する
		articles = append(articles, article(fmt.Sprintf("id-%02d", i), "Title", cat, i/4))
	}
	store := &mockArticleReader{articles: articles}
	e := NewEngine(store, profileOf([]string{model.CategoryScience}, nil), nil)

	const limit = 5
	first, err := e.Recommend(context.Background(), testUserID, 1, limit)
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if first.TotalPages != (first.TotalRecommendations+limit-1)/limit {
		t.Errorf("TotalPages = %d inconsistent with total %d", first.TotalPages, first.TotalRecommendations)
	}

	seen := make(map[string]bool)
	var all []string
	for p := 1; p <= first.TotalPages; p++ {
		res, err := e.Recommend(context.Background(), testUserID, p, limit)
		if err != nil {
			t.Fatalf("page %d error: %v", p, err)
		}
		for _, id := range ids(res.Recommendations) {
			if seen[id] {
				t.Errorf("duplicate id %s on page %d", id, p)
			}
			seen[id] = true
			all = append(all, id)
		}
	}
	if len(all) != first.TotalRecommendations {
		t.Errorf("concatenated pages = %d, want %d", len(all), first.TotalRecommendations)
	}

	beyond, err := e.Recommend(context.Background(), testUserID, first.TotalPages+1, limit)
	if err != nil {
		t.Fatalf("beyond last page error: %v", err)
	}
	if len(beyond.Recommendations) != 0 {
		t.Errorf("beyond last page returned %d articles", len(beyond.Recommendations))
	}
}

// TestRecommend_Deterministic は候補の返却順が変わっても結果が同じであることを検証する。
func TestRecommend_Deterministic(t *testing.T) {
	articles := []model.Article{
		article("b", "Same", model.CategoryGeneral, 1),
		article("a", "Same", model.CategoryGeneral, 1),
		article("c", "Same", model.CategoryGeneral, 1),
	}
	store := &mockArticleReader{articles: articles}
	e := NewEngine(store, profileOf(nil, nil), nil)

	first, _ := e.Recommend(context.Background(), testUserID, 1, 10)

	slices.Reverse(store.articles)
	second, _ := e.Recommend(context.Background(), testUserID, 1, 10)

	if diff := cmp.Diff(ids(first.Recommendations), ids(second.Recommendations)); diff != "" {
		t.Errorf("results differ between calls (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(first.Recommendations)); diff != "" {
		t.Errorf("tie-break mismatch (-want +got):\n%s", diff)
	}
}

func TestRecommend_Errors(t *testing.T) {
	storeErr := errors.New("connection refused")

	tests := []struct {
		name     string
		userID   string
		page     int
		limit    int
		profiles *mockProfileRepo
		store    *mockArticleReader
		wantCode string
	}{
		{
			name:     "不正なユーザーID",
			userID:   "not-a-uuid",
			page:     1,
			limit:    10,
			profiles: profileOf(nil, nil),
			store:    &mockArticleReader{},
			wantCode: model.ErrCodeInvalidArgument,
		},
		{
			name:     "page が0",
			userID:   testUserID,
			page:     0,
			limit:    10,
			profiles: profileOf(nil, nil),
			store:    &mockArticleReader{},
			wantCode: model.ErrCodeInvalidArgument,
		},
		{
			name:     "limit が0",
			userID:   testUserID,
			page:     1,
			limit:    0,
			profiles: profileOf(nil, nil),
			store:    &mockArticleReader{},
			wantCode: model.ErrCodeInvalidArgument,
		},
		{
			name:   "ユーザーが存在しない",
			userID: testUserID,
			page:   1,
			limit:  10,
			profiles: &mockProfileRepo{findProfileFn: func(context.Context, string) (*model.UserProfile, error) {
				return nil, nil
			}},
			store:    &mockArticleReader{},
			wantCode: model.ErrCodeUserNotFound,
		},
		{
			name:   "プロファイル取得失敗",
			userID: testUserID,
			page:   1,
			limit:  10,
			profiles: &mockProfileRepo{findProfileFn: func(context.Context, string) (*model.UserProfile, error) {
				return nil, storeErr
			}},
			store:    &mockArticleReader{},
			wantCode: model.ErrCodeStoreUnavailable,
		},
		{
			name:     "候補取得失敗",
			userID:   testUserID,
			page:     1,
			limit:    10,
			profiles: profileOf(nil, nil),
			store: &mockArticleReader{listCandidatesFn: func(context.Context, model.ArticleFilter) ([]model.ArticleCandidate, error) {
				return nil, storeErr
			}},
			wantCode: model.ErrCodeStoreUnavailable,
		},
		{
			name:     "既読記事取得失敗",
			userID:   testUserID,
			page:     1,
			limit:    10,
			profiles: profileOf(nil, []string{"x"}),
			store:    &mockArticleReader{findByIDsErr: storeErr},
			wantCode: model.ErrCodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.store, tt.profiles, nil)
			_, err := e.Recommend(context.Background(), tt.userID, tt.page, tt.limit)
			if !model.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

// TestRecommend_SkipsArticlesDeletedAfterScoring はスコアリング後に消えた記事を返さないことを検証する。
func TestRecommend_SkipsArticlesDeletedAfterScoring(t *testing.T) {
	store := &mockArticleReader{articles: []model.Article{
		article("keep", "Keep", model.CategoryGeneral, 1),
	}}
	store.listCandidatesFn = func(context.Context, model.ArticleFilter) ([]model.ArticleCandidate, error) {
		return []model.ArticleCandidate{
			{ID: "gone", Title: "Gone", Category: model.CategoryGeneral, PublishedAt: baseTime},
			{ID: "keep", Title: "Keep", Category: model.CategoryGeneral, PublishedAt: baseTime.Add(-time.Hour)},
		}, nil
	}
	e := NewEngine(store, profileOf(nil, nil), nil)

	got, err := e.Recommend(context.Background(), testUserID, 1, 10)
	if err != nil {
		t.Fatalf("Recommend error: %v", err)
	}
	if diff := cmp.Diff([]string{"keep"}, ids(got.Recommendations)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
