package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsman/internal/model"
	"github.com/lib/pq"
)

// PostgresProfileRepo はPostgreSQLを使用したユーザープロファイルリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindProfile は好みのカテゴリと既読記事IDをまとめて取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	profile := &model.UserProfile{ID: userID}
	var preferred pq.StringArray
	err := r.db.QueryRowContext(ctx,
		`SELECT preferred_categories FROM users WHERE id = $1`,
		userID,
	).Scan(&preferred)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	profile.PreferredCategories = []string(preferred)
	if profile.PreferredCategories == nil {
		profile.PreferredCategories = []string{}
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT article_id FROM user_read_articles WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("既読履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	profile.ReadArticleIDs = []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("既読履歴の読み取りに失敗しました: %w", err)
		}
		profile.ReadArticleIDs = append(profile.ReadArticleIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("既読履歴の走査に失敗しました: %w", err)
	}
	return profile, nil
}

// AddReadArticle は既読履歴に記事を追加する。
// PRIMARY KEY(user_id, article_id)によりON CONFLICT DO NOTHINGで冪等になる。
func (r *PostgresProfileRepo) AddReadArticle(ctx context.Context, userID, articleID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_read_articles (user_id, article_id, read_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id, article_id) DO NOTHING`,
		userID, articleID,
	)
	if err != nil {
		return fmt.Errorf("既読履歴の追加に失敗しました: %w", err)
	}
	return nil
}

// UpdatePreferences は好みのカテゴリを置き換える。
func (r *PostgresProfileRepo) UpdatePreferences(ctx context.Context, userID string, categories []string) (bool, error) {
	if categories == nil {
		categories = []string{}
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET preferred_categories = $2, updated_at = now() WHERE id = $1`,
		userID, pq.Array(categories),
	)
	if err != nil {
		return false, fmt.Errorf("好みのカテゴリの更新に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return affected > 0, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
