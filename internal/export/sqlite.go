// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

// FormatSQLite writes a single-table SQLite database. It is only available
// for files, never for stdout.
const FormatSQLite Format = "sqlite"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS papers (
		seq INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		authors TEXT NOT NULL,
		year INTEGER NOT NULL,
		venue TEXT NOT NULL,
		doi TEXT,
		type TEXT,
		ee TEXT,
		pdf_url TEXT,
		abstract TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_papers_doi ON papers(doi)`,
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return db, nil
}

// WriteSQLite replaces the papers table at path with papers, keeping their
// order. Authors are stored as a JSON array.
func WriteSQLite(ctx context.Context, path string, papers []*types.Paper) error {
	db, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM papers`); err != nil {
		return fmt.Errorf("clearing papers: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO papers
		(seq, title, authors, year, venue, doi, type, ee, pdf_url, abstract)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range papers {
		authors := p.Authors
		if authors == nil {
			authors = []string{}
		}
		authorsJSON, err := json.Marshal(authors)
		if err != nil {
			return fmt.Errorf("encoding authors of %q: %w", p.Title, err)
		}
		if _, err := stmt.ExecContext(ctx, i, p.Title, string(authorsJSON), p.Year, p.Venue,
			nullable(p.DOI), nullable(p.Type), nullable(p.EE), nullable(p.PDFURL), nullable(p.Abstract)); err != nil {
			return fmt.Errorf("inserting %q: %w", p.Title, err)
		}
	}
	return tx.Commit()
}

// ReadSQLite loads the papers table written by WriteSQLite.
func ReadSQLite(ctx context.Context, path string) ([]*types.Paper, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT title, authors, year, venue,
		COALESCE(doi, ''), COALESCE(type, ''), COALESCE(ee, ''),
		COALESCE(pdf_url, ''), COALESCE(abstract, '')
		FROM papers ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	papers := []*types.Paper{}
	for rows.Next() {
		var (
			p       types.Paper
			authors string
		)
		if err := rows.Scan(&p.Title, &authors, &p.Year, &p.Venue, &p.DOI, &p.Type, &p.EE, &p.PDFURL, &p.Abstract); err != nil {
			return nil, fmt.Errorf("scanning paper: %w", err)
		}
		if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
			return nil, fmt.Errorf("decoding authors of %q: %w", p.Title, err)
		}
		papers = append(papers, &p)
	}
	return papers, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
