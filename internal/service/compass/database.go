package compass

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	// keywordMinCoverage is the share of query terms a chunk must contain
	// when search falls back to keyword matching.
	keywordMinCoverage = 0.3
	embedBatchSize     = 50
)

// DatabaseConfig configures the knowledge database.
type DatabaseConfig struct {
	// DocsDir holds the crawled .txt/.md/.json files to index.
	DocsDir string
	// Path is the SQLite file; ":memory:" keeps everything in process.
	Path string
	// MinScore is the cosine similarity a chunk must exceed to match.
	MinScore float64
	// Reindex drops every stored chunk before indexing.
	Reindex bool
	// Embedder enables semantic search; nil keeps keyword search only.
	Embedder embedding.Embedder
	// EmbeddingModel names the embedder's model. Chunks embedded by another
	// model are embedded again.
	EmbeddingModel string
}

// Chunk is one searchable piece of crawled text.
type Chunk struct {
	Source string
	URL    string
	Text   string
	Metadata
}

// Match is a search hit.
type Match struct {
	Chunk
	Score float64
}

// Database stores crawled pages as chunks and answers searches over them.
// The chunk set is loaded once at open and is read-only afterwards.
type Database struct {
	db         *sql.DB
	chunks     []Chunk
	terms      []map[string]struct{}
	vectors    [][]float32
	embedded   int
	minScore   float64
	embedder   embedding.Embedder
	embedModel string
}

// OpenDatabase opens the SQLite store, indexes new or changed documents from
// the docs directory, embeds chunks that lack a vector and loads all chunks
// for searching.
func OpenDatabase(ctx context.Context, cfg DatabaseConfig) (*Database, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases intact across calls.
	db.SetMaxOpenConns(1)

	d := &Database{
		db:         db,
		minScore:   cfg.MinScore,
		embedder:   cfg.Embedder,
		embedModel: cfg.EmbeddingModel,
	}

	if err := d.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := d.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.Reindex {
		if err := d.clear(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := d.indexDocs(ctx, cfg.DocsDir); err != nil {
		db.Close()
		return nil, err
	}

	if d.embedder != nil {
		if err := d.embedMissing(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to embed chunks, unembedded chunks are searched by keyword")
		}
	}

	if err := d.load(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Info().
		Int("chunks", len(d.chunks)).
		Int("embedded", d.embedded).
		Str("path", cfg.Path).
		Msg("knowledge database ready")
	return d, nil
}

// Close releases the underlying database.
func (d *Database) Close() error {
	return d.db.Close()
}

// Len returns the number of searchable chunks.
func (d *Database) Len() int {
	return len(d.chunks)
}

func (d *Database) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS indexed_files (
			path       TEXT PRIMARY KEY,
			hash       TEXT NOT NULL,
			indexed_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			source       TEXT NOT NULL,
			url          TEXT NOT NULL DEFAULT '',
			position     INTEGER NOT NULL,
			text         TEXT NOT NULL,
			school       TEXT NOT NULL DEFAULT '',
			department   TEXT NOT NULL DEFAULT '',
			level        TEXT NOT NULL DEFAULT '',
			content_type TEXT NOT NULL DEFAULT '',
			degrees      TEXT NOT NULL DEFAULT '',
			embedding    BLOB,
			embed_model  TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// runMigrations adds columns missing from databases created before chunks
// carried metadata and vectors. SQLite has no ADD COLUMN IF NOT EXISTS.
func (d *Database) runMigrations(ctx context.Context) error {
	columns := []struct {
		name string
		def  string
	}{
		{"school", "TEXT NOT NULL DEFAULT ''"},
		{"department", "TEXT NOT NULL DEFAULT ''"},
		{"level", "TEXT NOT NULL DEFAULT ''"},
		{"content_type", "TEXT NOT NULL DEFAULT ''"},
		{"degrees", "TEXT NOT NULL DEFAULT ''"},
		{"embedding", "BLOB"},
		{"embed_model", "TEXT NOT NULL DEFAULT ''"},
	}

	for _, c := range columns {
		var exists int
		err := d.db.QueryRowContext(ctx, `SELECT 1 FROM pragma_table_info('chunks') WHERE name = ?`, c.name).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking column %s: %w", c.name, err)
		}
		if _, err := d.db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE chunks ADD COLUMN %s %s`, c.name, c.def)); err != nil {
			return fmt.Errorf("adding %s column to chunks: %w", c.name, err)
		}
		log.Info().Str("column", c.name).Str("table", "chunks").Msg("applied migration")
	}
	return nil
}

func (d *Database) clear(ctx context.Context) error {
	log.Warn().Msg("reindex requested, deleting stored chunks")
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chunks; DELETE FROM indexed_files;`); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	return nil
}

// indexDocs re-chunks every document whose content hash differs from the
// recorded one. A missing directory is not an error.
func (d *Database) indexDocs(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("dir", dir).Msg("docs directory not found, using stored chunks only")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading docs directory: %w", err)
	}

	indexed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" && ext != ".json" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		changed, err := d.indexFile(ctx, path)
		if err != nil {
			return err
		}
		if changed {
			indexed++
		}
	}

	if indexed == 0 {
		log.Debug().Str("dir", dir).Msg("no new documents to index")
	}
	return nil
}

func (d *Database) indexFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	var stored string
	err = d.db.QueryRowContext(ctx, `SELECT hash FROM indexed_files WHERE path = ?`, path).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("looking up %s: %w", path, err)
	}
	if stored == hash {
		return false, nil
	}

	var chunks []Chunk
	if strings.EqualFold(filepath.Ext(path), ".json") {
		chunks, err = SplitJSON(path, data)
		if err != nil {
			// left unrecorded so a fixed file is picked up next start
			log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("skipping json document")
			return false, nil
		}
	} else {
		chunks = SplitDocument(path, string(data))
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, path); err != nil {
		return false, fmt.Errorf("deleting old chunks for %s: %w", path, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (source, url, position, text, school, department, level, content_type, degrees)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		_, err := stmt.ExecContext(ctx, c.Source, c.URL, i, c.Text,
			c.School, c.Department, c.Level, c.ContentType, strings.Join(c.Degrees, ","))
		if err != nil {
			return false, fmt.Errorf("inserting chunk %d of %s: %w", i, path, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO indexed_files (path, hash, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, indexed_at = excluded.indexed_at
	`, path, hash, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("recording %s: %w", path, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing %s: %w", path, err)
	}

	log.Info().Str("file", filepath.Base(path)).Int("chunks", len(chunks)).Msg("indexed document")
	return true, nil
}

// embedMissing stores vectors for chunks with none or with one from another
// model.
func (d *Database) embedMissing(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, text FROM chunks WHERE embedding IS NULL OR embed_model != ? ORDER BY id`, d.embedModel)
	if err != nil {
		return fmt.Errorf("selecting chunks to embed: %w", err)
	}

	var (
		ids   []int64
		texts []string
	)
	for rows.Next() {
		var (
			id   int64
			text string
		)
		if err := rows.Scan(&id, &text); err != nil {
			rows.Close()
			return fmt.Errorf("scanning chunk to embed: %w", err)
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	// the single connection must be free before updating
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("selecting chunks to embed: %w", err)
	}

	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))

		vectors, err := d.embedder.EmbedStrings(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("embedding chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != end-start {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), end-start)
		}

		if err := d.storeVectors(ctx, ids[start:end], vectors); err != nil {
			return err
		}
		log.Debug().Int("done", end).Int("total", len(texts)).Msg("embedded chunks")
	}
	return nil
}

func (d *Database) storeVectors(ctx context.Context, ids []int64, vectors [][]float64) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE chunks SET embedding = ?, embed_model = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing embedding update: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, encodeVector(vectors[i]), d.embedModel, id); err != nil {
			return fmt.Errorf("storing embedding for chunk %d: %w", id, err)
		}
	}
	return tx.Commit()
}

func (d *Database) load(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, `
		SELECT source, url, text, school, department, level, content_type, degrees, embedding, embed_model
		FROM chunks ORDER BY source, position
	`)
	if err != nil {
		return fmt.Errorf("loading chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			c          Chunk
			degrees    string
			blob       []byte
			embedModel string
		)
		err := rows.Scan(&c.Source, &c.URL, &c.Text,
			&c.School, &c.Department, &c.Level, &c.ContentType, &degrees, &blob, &embedModel)
		if err != nil {
			return fmt.Errorf("scanning chunk: %w", err)
		}
		if degrees != "" {
			c.Degrees = strings.Split(degrees, ",")
		}

		var vec []float32
		if d.embedder != nil && embedModel == d.embedModel && len(blob) > 0 {
			vec = decodeVector(blob)
			d.embedded++
		}

		d.chunks = append(d.chunks, c)
		d.terms = append(d.terms, termSet(c.Text))
		d.vectors = append(d.vectors, vec)
	}
	return rows.Err()
}

// Search returns up to topK chunk texts relevant to query, best first.
func (d *Database) Search(ctx context.Context, query string, topK int) []string {
	matches := d.Match(ctx, query, topK)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out
}

// Match searches for query expanded with academic synonyms. Each expanded
// query contributes its topK best chunks scoring above the threshold; the
// union is ranked by score and duplicate texts are dropped. Chunks are ranked
// by cosine similarity when embeddings are available and by keyword coverage
// otherwise.
func (d *Database) Match(ctx context.Context, query string, topK int) []Match {
	if topK < 1 {
		return nil
	}
	queries := ExpandQuery(query)

	matches, ok := d.semanticMatches(ctx, queries, topK)
	if !ok {
		matches = d.keywordMatches(ctx, queries, topK)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	seen := make(map[[md5.Size]byte]struct{}, len(matches))
	out := make([]Match, 0, topK)
	for _, m := range matches {
		key := md5.Sum([]byte(m.Text))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
		if len(out) == topK {
			break
		}
	}
	return out
}

func (d *Database) semanticMatches(ctx context.Context, queries []string, topK int) ([]Match, bool) {
	if d.embedder == nil || d.embedded == 0 {
		return nil, false
	}

	qvecs, err := d.embedder.EmbedStrings(ctx, queries)
	if err != nil || len(qvecs) != len(queries) {
		log.Warn().Err(err).Msg("query embedding failed, falling back to keyword search")
		return nil, false
	}

	var matches []Match
	for _, qv := range qvecs {
		var hits []Match
		for i, vec := range d.vectors {
			if vec == nil {
				continue
			}
			score, ok := cosine(qv, vec)
			if ok && score > d.minScore {
				hits = append(hits, Match{Chunk: d.chunks[i], Score: score})
			}
		}
		matches = append(matches, best(hits, topK)...)
	}
	return matches, true
}

func (d *Database) keywordMatches(ctx context.Context, queries []string, topK int) []Match {
	var matches []Match
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		qterms := queryTerms(q)
		if len(qterms) == 0 {
			continue
		}
		var hits []Match
		for i, terms := range d.terms {
			score := coverage(qterms, terms)
			if score > keywordMinCoverage {
				hits = append(hits, Match{Chunk: d.chunks[i], Score: score})
			}
		}
		matches = append(matches, best(hits, topK)...)
	}
	return matches
}

func best(hits []Match, topK int) []Match {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func cosine(q []float64, v []float32) (float64, bool) {
	if len(q) != len(v) || len(q) == 0 {
		return 0, false
	}
	var dot, qn, vn float64
	for i := range q {
		x := float64(v[i])
		dot += q[i] * x
		qn += q[i] * q[i]
		vn += x * x
	}
	if qn == 0 || vn == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(qn) * math.Sqrt(vn)), true
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
