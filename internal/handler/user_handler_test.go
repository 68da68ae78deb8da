package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/newsman/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getPreferencesFn    func(ctx context.Context, userID string) ([]string, error)
	updatePreferencesFn func(ctx context.Context, userID string, categories []string) ([]string, error)
	listSavedFn         func(ctx context.Context, userID string) ([]model.SavedArticle, error)
	saveArticleFn       func(ctx context.Context, userID, articleID string) (*model.SavedArticle, error)
	unsaveArticleFn     func(ctx context.Context, userID, savedID string) error
}

func (m *mockUserService) GetPreferences(ctx context.Context, userID string) ([]string, error) {
	if m.getPreferencesFn != nil {
		return m.getPreferencesFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) UpdatePreferences(ctx context.Context, userID string, categories []string) ([]string, error) {
	if m.updatePreferencesFn != nil {
		return m.updatePreferencesFn(ctx, userID, categories)
	}
	return categories, nil
}

func (m *mockUserService) ListSaved(ctx context.Context, userID string) ([]model.SavedArticle, error) {
	if m.listSavedFn != nil {
		return m.listSavedFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserService) SaveArticle(ctx context.Context, userID, articleID string) (*model.SavedArticle, error) {
	if m.saveArticleFn != nil {
		return m.saveArticleFn(ctx, userID, articleID)
	}
	return &model.SavedArticle{ID: "saved-1", UserID: userID, ArticleID: articleID}, nil
}

func (m *mockUserService) UnsaveArticle(ctx context.Context, userID, savedID string) error {
	if m.unsaveArticleFn != nil {
		return m.unsaveArticleFn(ctx, userID, savedID)
	}
	return nil
}

// --- /api/users/preferences テスト ---

func TestUserHandler_GetPreferences_EmptyIsArray(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/preferences", nil), testUserID)
	w := httptest.NewRecorder()
	h.GetPreferences(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "{\"categories\":[]}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestUserHandler_GetPreferences_UserNotFound(t *testing.T) {
	svc := &mockUserService{
		getPreferencesFn: func(ctx context.Context, userID string) ([]string, error) {
			return nil, model.NewUserNotFoundError(userID)
		},
	}
	h := NewUserHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/preferences", nil), testUserID)
	w := httptest.NewRecorder()
	h.GetPreferences(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUserHandler_UpdatePreferences(t *testing.T) {
	var gotCategories []string
	svc := &mockUserService{
		updatePreferencesFn: func(ctx context.Context, userID string, categories []string) ([]string, error) {
			gotCategories = categories
			return []string{"technology", "science"}, nil
		},
	}
	h := NewUserHandler(svc)

	body := `{"categories": ["technology", "science", "technology"]}`
	req := withUserID(httptest.NewRequest(http.MethodPut, "/api/users/preferences", bytes.NewBufferString(body)), testUserID)
	w := httptest.NewRecorder()
	h.UpdatePreferences(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if diff := cmp.Diff([]string{"technology", "science", "technology"}, gotCategories); diff != "" {
		t.Errorf("categories passed mismatch (-want +got):\n%s", diff)
	}
	var resp preferencesBody
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if diff := cmp.Diff([]string{"technology", "science"}, resp.Categories); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestUserHandler_UpdatePreferences_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"不正なJSON", `{"categories": `, nil, http.StatusBadRequest, model.ErrCodeInvalidArgument},
		{"未知のカテゴリ", `{"categories": ["weather"]}`, model.NewInvalidCategoryError("weather"), http.StatusBadRequest, model.ErrCodeInvalidCategory},
		{"ユーザーなし", `{"categories": []}`, model.NewUserNotFoundError(testUserID), http.StatusNotFound, model.ErrCodeUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				updatePreferencesFn: func(ctx context.Context, userID string, categories []string) ([]string, error) {
					return nil, tt.svcErr
				},
			}
			h := NewUserHandler(svc)

			req := withUserID(httptest.NewRequest(http.MethodPut, "/api/users/preferences", bytes.NewBufferString(tt.body)), testUserID)
			w := httptest.NewRecorder()
			h.UpdatePreferences(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

// --- /api/users/saved-articles テスト ---

func TestUserHandler_ListSaved(t *testing.T) {
	svc := &mockUserService{
		listSavedFn: func(ctx context.Context, userID string) ([]model.SavedArticle, error) {
			return []model.SavedArticle{{ID: "s1", UserID: userID, ArticleID: testArticleID, Title: "saved"}}, nil
		},
	}
	h := NewUserHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/users/saved-articles", nil), testUserID)
	w := httptest.NewRecorder()
	h.ListSaved(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp savedArticlesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.SavedArticles) != 1 || resp.SavedArticles[0].Title != "saved" {
		t.Errorf("saved_articles = %+v", resp.SavedArticles)
	}
}

func TestUserHandler_SaveArticle(t *testing.T) {
	var gotArticle string
	svc := &mockUserService{
		saveArticleFn: func(ctx context.Context, userID, articleID string) (*model.SavedArticle, error) {
			gotArticle = articleID
			return &model.SavedArticle{ID: "s1", UserID: userID, ArticleID: articleID}, nil
		},
	}
	h := NewUserHandler(svc)

	body := `{"article_id": "` + testArticleID + `"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/users/saved-articles", bytes.NewBufferString(body)), testUserID)
	w := httptest.NewRecorder()
	h.SaveArticle(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if gotArticle != testArticleID {
		t.Errorf("articleID = %q, want %q", gotArticle, testArticleID)
	}
}

func TestUserHandler_SaveArticle_MissingArticleID(t *testing.T) {
	svc := &mockUserService{
		saveArticleFn: func(ctx context.Context, userID, articleID string) (*model.SavedArticle, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	h := NewUserHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/users/saved-articles", bytes.NewBufferString(`{}`)), testUserID)
	w := httptest.NewRecorder()
	h.SaveArticle(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUserHandler_SaveArticle_ArticleNotFound(t *testing.T) {
	svc := &mockUserService{
		saveArticleFn: func(ctx context.Context, userID, articleID string) (*model.SavedArticle, error) {
			return nil, model.NewArticleNotFoundError(articleID)
		},
	}
	h := NewUserHandler(svc)

	body := `{"article_id": "` + testArticleID + `"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/users/saved-articles", bytes.NewBufferString(body)), testUserID)
	w := httptest.NewRecorder()
	h.SaveArticle(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUserHandler_UnsaveArticle(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		wantStatus int
	}{
		{"削除成功", nil, http.StatusNoContent},
		{"見つからない", model.NewSavedArticleNotFoundError("s1"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockUserService{
				unsaveArticleFn: func(ctx context.Context, userID, savedID string) error {
					if savedID != "s1" {
						t.Errorf("savedID = %q, want s1", savedID)
					}
					return tt.svcErr
				},
			}
			h := NewUserHandler(svc)

			req := httptest.NewRequest(http.MethodDelete, "/api/users/saved-articles/s1", nil)
			req = withUserID(withChiURLParam(req, "id", "s1"), testUserID)
			w := httptest.NewRecorder()
			h.UnsaveArticle(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestUserHandler_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	handlers := map[string]http.HandlerFunc{
		"GetPreferences":    h.GetPreferences,
		"UpdatePreferences": h.UpdatePreferences,
		"ListSaved":         h.ListSaved,
		"SaveArticle":       h.SaveArticle,
		"UnsaveArticle":     h.UnsaveArticle,
	}
	for name, fn := range handlers {
		w := httptest.NewRecorder()
		fn(w, httptest.NewRequest(http.MethodGet, "/api/users/preferences", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want %d", name, w.Code, http.StatusUnauthorized)
		}
	}
}
