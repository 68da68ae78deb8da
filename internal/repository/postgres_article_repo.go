package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/newsman/internal/model"
	"github.com/lib/pq"
)

// articleColumns は記事取得時のSELECT列。scanArticleと順序を合わせる。
const articleColumns = `a.id, a.title, a.description, a.content, a.url, a.image_url, a.source,
	a.published_at, a.category, a.author, a.created_at, a.updated_at`

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(s rowScanner) (*model.Article, error) {
	a := &model.Article{}
	var description, content, imageURL, source, author sql.NullString
	if err := s.Scan(
		&a.ID, &a.Title, &description, &content, &a.URL, &imageURL, &source,
		&a.PublishedAt, &a.Category, &author, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	a.Description = nullStringValue(description)
	a.Content = nullStringValue(content)
	a.ImageURL = nullStringValue(imageURL)
	a.Source = nullStringValue(source)
	a.Author = nullStringValue(author)
	return a, nil
}

func scanArticles(rows *sql.Rows) ([]model.Article, error) {
	articles := []model.Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		articles = append(articles, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}
	return articles, nil
}

// buildArticleWhere はArticleFilterからWHERE句と引数を組み立てる。
// startIdxはプレースホルダの開始番号。条件がない場合は空文字を返す。
func buildArticleWhere(filter model.ArticleFilter, startIdx int) (string, []any) {
	var conds []string
	var args []any
	idx := startIdx

	if filter.Category != "" {
		conds = append(conds, fmt.Sprintf("a.category = $%d", idx))
		args = append(args, filter.Category)
		idx++
	}
	if len(filter.ExcludeIDs) > 0 {
		conds = append(conds, fmt.Sprintf("NOT (a.id = ANY($%d::uuid[]))", idx))
		args = append(args, pq.Array(filter.ExcludeIDs))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles a WHERE a.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	return a, nil
}

// FindByIDs は指定IDの記事をまとめて取得する。
func (r *PostgresArticleRepo) FindByIDs(ctx context.Context, ids []string) ([]model.Article, error) {
	if len(ids) == 0 {
		return []model.Article{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles a WHERE a.id = ANY($1::uuid[])`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("記事の一括取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// Find はpublished_at降順、id昇順で記事を取得する。
func (r *PostgresArticleRepo) Find(ctx context.Context, filter model.ArticleFilter, skip, limit int) ([]model.Article, error) {
	where, args := buildArticleWhere(filter, 1)
	n := len(args)
	query := `SELECT ` + articleColumns + ` FROM articles a` + where +
		fmt.Sprintf(" ORDER BY a.published_at DESC, a.id ASC OFFSET $%d LIMIT $%d", n+1, n+2)
	args = append(args, skip, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// Count はFindと同じ条件に一致する記事の件数を返す。
func (r *PostgresArticleRepo) Count(ctx context.Context, filter model.ArticleFilter) (int, error) {
	where, args := buildArticleWhere(filter, 1)
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles a`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("記事件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListCandidates はスコアリング用に条件に一致する全記事の最小情報を返す。
func (r *PostgresArticleRepo) ListCandidates(ctx context.Context, filter model.ArticleFilter) ([]model.ArticleCandidate, error) {
	where, args := buildArticleWhere(filter, 1)
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.title, a.category, a.published_at FROM articles a`+where,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("レコメンド候補の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	candidates := []model.ArticleCandidate{}
	for rows.Next() {
		var c model.ArticleCandidate
		if err := rows.Scan(&c.ID, &c.Title, &c.Category, &c.PublishedAt); err != nil {
			return nil, fmt.Errorf("レコメンド候補の読み取りに失敗しました: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("レコメンド候補の走査に失敗しました: %w", err)
	}
	return candidates, nil
}

// TextSearch はsearch_vectorに対する全文検索を行う。
// ts_rank降順、同順位はpublished_at降順、id昇順で並べる。
func (r *PostgresArticleRepo) TextSearch(ctx context.Context, query string, skip, limit int) ([]model.Article, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+articleColumns+`
		 FROM articles a, websearch_to_tsquery('english', $1) q
		 WHERE a.search_vector @@ q
		 ORDER BY ts_rank(a.search_vector, q) DESC, a.published_at DESC, a.id ASC
		 OFFSET $2 LIMIT $3`,
		query, skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("記事の検索に失敗しました: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// CountTextSearch はTextSearchと同じ条件に一致する記事の件数を返す。
func (r *PostgresArticleRepo) CountTextSearch(ctx context.Context, query string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM articles a WHERE a.search_vector @@ websearch_to_tsquery('english', $1)`,
		query,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("検索件数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// UpsertByURL はURLをキーに記事を作成または上書きする。
// xmax = 0 の場合は新規挿入された行である。
func (r *PostgresArticleRepo) UpsertByURL(ctx context.Context, article *model.Article) (string, bool, error) {
	now := time.Now().UTC()
	var id string
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO articles (id, title, description, content, url, image_url, source,
		                       published_at, category, author, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 ON CONFLICT (url) DO UPDATE SET
		    title = EXCLUDED.title, description = EXCLUDED.description,
		    content = EXCLUDED.content, image_url = EXCLUDED.image_url,
		    source = EXCLUDED.source, published_at = EXCLUDED.published_at,
		    category = EXCLUDED.category, author = EXCLUDED.author,
		    updated_at = EXCLUDED.updated_at
		 RETURNING id, (xmax = 0)`,
		uuid.New().String(), article.Title, nullString(article.Description),
		nullString(article.Content), article.URL, nullString(article.ImageURL),
		nullString(article.Source), article.PublishedAt, article.Category,
		nullString(article.Author), now,
	).Scan(&id, &inserted)
	if err != nil {
		return "", false, fmt.Errorf("記事のUPSERTに失敗しました: %w", err)
	}
	return id, inserted, nil
}

// DeleteByID は指定IDの記事を削除する。
// 保存済み記事と既読履歴はスナップショットを含むため明示的に削除する。
func (r *PostgresArticleRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM saved_articles WHERE article_id = $1`, id); err != nil {
		return false, fmt.Errorf("保存済み記事の削除に失敗しました: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_read_articles WHERE article_id = $1`, id); err != nil {
		return false, fmt.Errorf("既読履歴の削除に失敗しました: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("記事の削除に失敗しました: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return affected > 0, nil
}

// DeleteOlderThan はcutoffより前に公開された記事を削除し、削除した記事IDを返す。
// 関連する既読履歴、保存済み記事は外部キーのCASCADEで削除される。
func (r *PostgresArticleRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM articles WHERE published_at < $1 RETURNING id`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("古い記事の削除に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("削除した記事IDの読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("削除した記事IDの走査に失敗しました: %w", err)
	}
	return ids, nil
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
