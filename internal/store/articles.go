// Package store persists articles, bookmarks, and research-run audit rows
// in SQLite. The primary database uses modernc.org/sqlite (FTS5 without
// cgo); the research-history database uses mattn/go-sqlite3.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an article id does not exist.
var ErrNotFound = errors.New("article not found")

// Article is one stored news/research item.
type Article struct {
	ID           int64      `json:"id"`
	Source       string     `json:"source"`
	SourceID     string     `json:"source_id"`
	Title        string     `json:"title"`
	Authors      []string   `json:"authors"`
	Abstract     string     `json:"abstract"`
	Content      string     `json:"content"`
	Summary      string     `json:"summary"`
	URL          string     `json:"url"`
	PDFURL       string     `json:"pdf_url"`
	Categories   []string   `json:"categories"`
	PublishedAt  *time.Time `json:"published_at"`
	FetchedAt    time.Time  `json:"fetched_at"`
	IsBookmarked bool       `json:"is_bookmarked"`
}

// CategoryCount pairs a category name with how many articles carry it.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ListFilter narrows ListArticles. Limit is clamped into [1,200] with a
// default of 50; Days keeps articles published within the last N days.
type ListFilter struct {
	Source     string
	Category   string
	Days       int
	Bookmarked *bool
	Limit      int
	Offset     int
}

// Store is the primary article database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

var articleSchema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		authors TEXT NOT NULL DEFAULT '[]',
		abstract TEXT,
		content TEXT,
		summary TEXT,
		url TEXT NOT NULL,
		pdf_url TEXT,
		categories TEXT NOT NULL DEFAULT '[]',
		published_at TIMESTAMP,
		fetched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		is_bookmarked INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_bookmarked ON articles(is_bookmarked)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at)`,
	`CREATE TABLE IF NOT EXISTS bookmarks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		article_id INTEGER NOT NULL UNIQUE REFERENCES articles(id) ON DELETE CASCADE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS articles_fts USING fts5(
		title, abstract, summary, content,
		content='articles',
		content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS articles_ai AFTER INSERT ON articles BEGIN
		INSERT INTO articles_fts(rowid, title, abstract, summary, content)
		VALUES (new.id, new.title, new.abstract, new.summary, new.content);
	END`,
	`CREATE TRIGGER IF NOT EXISTS articles_ad AFTER DELETE ON articles BEGIN
		INSERT INTO articles_fts(articles_fts, rowid, title, abstract, summary, content)
		VALUES ('delete', old.id, old.title, old.abstract, old.summary, old.content);
	END`,
	`CREATE TRIGGER IF NOT EXISTS articles_au AFTER UPDATE ON articles BEGIN
		INSERT INTO articles_fts(articles_fts, rowid, title, abstract, summary, content)
		VALUES ('delete', old.id, old.title, old.abstract, old.summary, old.content);
		INSERT INTO articles_fts(rowid, title, abstract, summary, content)
		VALUES (new.id, new.title, new.abstract, new.summary, new.content);
	END`,
}

// Open creates or opens the article database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway and this keeps
	// the FTS triggers and transactions simple.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	for _, stmt := range articleSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const articleColumns = `id, source, source_id, title, authors, abstract, content, summary,
	url, pdf_url, categories, published_at, fetched_at, is_bookmarked`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var (
		a          Article
		authors    string
		categories string
		abstract   sql.NullString
		content    sql.NullString
		summary    sql.NullString
		pdfURL     sql.NullString
		published  sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Source, &a.SourceID, &a.Title, &authors, &abstract,
		&content, &summary, &a.URL, &pdfURL, &categories, &published,
		&a.FetchedAt, &a.IsBookmarked)
	if err != nil {
		return Article{}, err
	}

	a.Abstract = abstract.String
	a.Content = content.String
	a.Summary = summary.String
	a.PDFURL = pdfURL.String
	if published.Valid {
		t := published.Time
		a.PublishedAt = &t
	}
	if err := json.Unmarshal([]byte(authors), &a.Authors); err != nil {
		a.Authors = []string{}
	}
	if err := json.Unmarshal([]byte(categories), &a.Categories); err != nil {
		a.Categories = []string{}
	}
	return a, nil
}

func marshalList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// SaveArticles inserts articles that are not already present (matched by
// source_id) and returns how many were saved. Callers are expected to have
// categorized and deduplicated the batch already.
func (s *Store) SaveArticles(ctx context.Context, articles []Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO articles
		(source, source_id, title, authors, abstract, content, summary,
		 url, pdf_url, categories, published_at, fetched_at, is_bookmarked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	saved := 0
	now := time.Now().UTC()
	for _, a := range articles {
		var published any
		if a.PublishedAt != nil {
			published = a.PublishedAt.UTC()
		}
		fetched := a.FetchedAt
		if fetched.IsZero() {
			fetched = now
		}

		res, err := stmt.ExecContext(ctx, a.Source, a.SourceID, a.Title,
			marshalList(a.Authors), nullable(a.Abstract), nullable(a.Content),
			nullable(a.Summary), a.URL, nullable(a.PDFURL),
			marshalList(a.Categories), published, fetched)
		if err != nil {
			return 0, fmt.Errorf("failed to insert article %s: %w", a.SourceID, err)
		}
		n, _ := res.RowsAffected()
		saved += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return saved, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ListArticles returns articles matching the filter, newest first.
func (s *Store) ListArticles(ctx context.Context, f ListFilter) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + articleColumns + ` FROM articles`
	var conds []string
	var args []any

	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.Bookmarked != nil {
		conds = append(conds, "is_bookmarked = ?")
		args = append(args, *f.Bookmarked)
	}
	if f.Days > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -f.Days)
		conds = append(conds, "published_at >= ?")
		args = append(args, cutoff)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY published_at DESC, fetched_at DESC LIMIT ? OFFSET ?"

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list articles: %w", err)
	}
	defer rows.Close()

	articles := make([]Article, 0, limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			s.logger.Warn("failed to scan article row", zap.Error(err))
			continue
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read article rows: %w", err)
	}

	// The category filter runs here: categories live in a JSON column.
	if f.Category != "" {
		filtered := articles[:0]
		for _, a := range articles {
			for _, c := range a.Categories {
				if c == f.Category {
					filtered = append(filtered, a)
					break
				}
			}
		}
		articles = filtered
	}
	return articles, nil
}

// GetArticle returns one article by id, or ErrNotFound.
func (s *Store) GetArticle(ctx context.Context, id int64) (*Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getArticle(ctx, id)
}

func (s *Store) getArticle(ctx context.Context, id int64) (*Article, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article %d: %w", id, err)
	}
	return &a, nil
}

// SearchArticles runs an FTS5 MATCH ordered by rank, falling back to LIKE
// when the query uses syntax FTS5 rejects (unbalanced quotes, operators).
func (s *Store) SearchArticles(ctx context.Context, q string, limit int) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+qualifiedArticleColumns+`
		FROM articles
		JOIN articles_fts ON articles.id = articles_fts.rowid
		WHERE articles_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, q, limit)
	if err != nil {
		s.logger.Debug("fts query failed, falling back to like",
			zap.String("query", q), zap.Error(err))
		return s.searchLike(ctx, q, limit)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			s.logger.Warn("failed to scan article row", zap.Error(err))
			continue
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}
	if articles == nil {
		articles = []Article{}
	}
	return articles, nil
}

var qualifiedArticleColumns = func() string {
	cols := strings.Split(articleColumns, ",")
	for i, c := range cols {
		cols[i] = "articles." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}()

func (s *Store) searchLike(ctx context.Context, q string, limit int) ([]Article, error) {
	pattern := "%" + q + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles
		WHERE title LIKE ? OR abstract LIKE ? OR summary LIKE ? OR content LIKE ?
		ORDER BY published_at DESC, fetched_at DESC
		LIMIT ?`, pattern, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			s.logger.Warn("failed to scan article row", zap.Error(err))
			continue
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search rows: %w", err)
	}
	return articles, nil
}

// SetSummary stores a generated summary on the article row.
func (s *Store) SetSummary(ctx context.Context, id int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Bookmark marks an article bookmarked, inserting the bookmarks row and the
// article flag in one transaction. The bool reports whether anything changed.
func (s *Store) Bookmark(ctx context.Context, id int64) (*Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, err := s.getArticle(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if article.IsBookmarked {
		return article, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE articles SET is_bookmarked = 1 WHERE id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("failed to flag article: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO bookmarks (article_id, created_at) VALUES (?, ?)`,
		id, time.Now().UTC()); err != nil {
		return nil, false, fmt.Errorf("failed to insert bookmark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	article.IsBookmarked = true
	return article, true, nil
}

// Unbookmark removes the bookmark flag and row. The bool reports whether
// anything changed.
func (s *Store) Unbookmark(ctx context.Context, id int64) (*Article, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	article, err := s.getArticle(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !article.IsBookmarked {
		return article, false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE articles SET is_bookmarked = 0 WHERE id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("failed to unflag article: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM bookmarks WHERE article_id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("failed to delete bookmark: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}

	article.IsBookmarked = false
	return article, true, nil
}

// ListBookmarks returns bookmarked articles, most recently fetched first.
func (s *Store) ListBookmarks(ctx context.Context) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles
		WHERE is_bookmarked = 1
		ORDER BY fetched_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			s.logger.Warn("failed to scan article row", zap.Error(err))
			continue
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bookmark rows: %w", err)
	}
	return articles, nil
}

// CategoryCounts aggregates category usage across all articles, most used
// first.
func (s *Store) CategoryCounts(ctx context.Context) ([]CategoryCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT categories FROM articles`)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			continue
		}
		var cats []string
		if err := json.Unmarshal([]byte(raw), &cats); err != nil {
			continue
		}
		for _, c := range cats {
			counts[c]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read category rows: %w", err)
	}

	result := make([]CategoryCount, 0, len(counts))
	for name, count := range counts {
		result = append(result, CategoryCount{Name: name, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}
