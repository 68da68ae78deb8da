package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/hitoshi/newsman/internal/model"
)

// PostgresSavedArticleRepo はPostgreSQLを使用した保存済み記事リポジトリ。
type PostgresSavedArticleRepo struct {
	db *sql.DB
}

// NewPostgresSavedArticleRepo はPostgresSavedArticleRepoを生成する。
func NewPostgresSavedArticleRepo(db *sql.DB) *PostgresSavedArticleRepo {
	return &PostgresSavedArticleRepo{db: db}
}

const savedArticleColumns = `id, user_id, article_id, title, description, image_url, url,
	source, category, published_at, created_at`

func scanSavedArticle(s rowScanner) (*model.SavedArticle, error) {
	sa := &model.SavedArticle{}
	var description, imageURL, source sql.NullString
	if err := s.Scan(
		&sa.ID, &sa.UserID, &sa.ArticleID, &sa.Title, &description, &imageURL, &sa.URL,
		&source, &sa.Category, &sa.PublishedAt, &sa.CreatedAt,
	); err != nil {
		return nil, err
	}
	sa.Description = nullStringValue(description)
	sa.ImageURL = nullStringValue(imageURL)
	sa.Source = nullStringValue(source)
	return sa, nil
}

// ListByUser はユーザーの保存済み記事を保存日時の降順で返す。
func (r *PostgresSavedArticleRepo) ListByUser(ctx context.Context, userID string) ([]model.SavedArticle, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+savedArticleColumns+` FROM saved_articles
		 WHERE user_id = $1 ORDER BY created_at DESC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("保存済み記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	saved := []model.SavedArticle{}
	for rows.Next() {
		sa, err := scanSavedArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("保存済み記事の読み取りに失敗しました: %w", err)
		}
		saved = append(saved, *sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("保存済み記事一覧の走査に失敗しました: %w", err)
	}
	return saved, nil
}

// Save は記事のスナップショットを保存する。
// UNIQUE(user_id, article_id)に衝突した場合は既存の行を返す。
func (r *PostgresSavedArticleRepo) Save(ctx context.Context, userID string, article *model.Article) (*model.SavedArticle, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saved_articles (id, user_id, article_id, title, description, image_url, url,
		                             source, category, published_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		 ON CONFLICT (user_id, article_id) DO NOTHING`,
		uuid.New().String(), userID, article.ID, article.Title, nullString(article.Description),
		nullString(article.ImageURL), article.URL, nullString(article.Source),
		article.Category, article.PublishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("記事の保存に失敗しました: %w", err)
	}

	sa, err := scanSavedArticle(r.db.QueryRowContext(ctx,
		`SELECT `+savedArticleColumns+` FROM saved_articles WHERE user_id = $1 AND article_id = $2`,
		userID, article.ID,
	))
	if err != nil {
		return nil, fmt.Errorf("保存済み記事の取得に失敗しました: %w", err)
	}
	return sa, nil
}

// DeleteByUserAndID はユーザーの保存済み記事を削除する。
func (r *PostgresSavedArticleRepo) DeleteByUserAndID(ctx context.Context, userID, savedID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_articles WHERE id = $1 AND user_id = $2`,
		savedID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("保存済み記事の削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// compile-time interface check
var _ SavedArticleRepository = (*PostgresSavedArticleRepo)(nil)
