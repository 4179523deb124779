package scene

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/1ureka/aselink/internal/protocol"
)

// SQLiteStore is a Store persisted in a SQLite database, so textures and
// timelines survive host restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for a
// throwaway store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
        PRAGMA foreign_keys = ON;
        PRAGMA journal_mode = WAL;
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMA: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Images
// ---------------------------------------------------------------------------

const imageColumns = "name, source, width, height, frame, flags, sheet, pixels"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*Image, error) {
	var (
		img   Image
		flags string
		sheet int
	)
	if err := row.Scan(&img.Name, &img.Source, &img.Width, &img.Height, &img.Frame, &flags, &sheet, &img.Pixels); err != nil {
		return nil, err
	}
	img.Flags = parseFlags(flags)
	img.Sheet = sheet != 0
	return &img, nil
}

func formatFlags(f protocol.SyncFlags) string {
	return strings.Join(f.Sorted(), ",")
}

func parseFlags(s string) protocol.SyncFlags {
	f := protocol.NewSyncFlags()
	if s == "" {
		return f
	}
	for _, name := range strings.Split(s, ",") {
		f.Add(name)
	}
	return f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteStore) ListImages(ctx context.Context) ([]Image, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+imageColumns+" FROM images ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}
	return images, nil
}

func (s *SQLiteStore) FindImage(ctx context.Context, name string) (*Image, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, "SELECT "+imageColumns+" FROM images WHERE name = ?", name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: image %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query image: %w", err)
	}
	return img, nil
}

func (s *SQLiteStore) ReplacePixels(ctx context.Context, name string, u PixelUpdate) error {
	var flags sql.NullString
	if u.Flags != nil {
		flags = sql.NullString{String: formatFlags(u.Flags), Valid: true}
	}
	pixels := u.Pixels
	if pixels == nil {
		pixels = []byte{}
	}
	result, err := s.db.ExecContext(ctx, `
        UPDATE images SET
            width = ?, height = ?, frame = ?,
            flags = COALESCE(?, flags),
            pixels = ?
        WHERE name = ?
    `, u.Width, u.Height, u.Frame, flags, pixels, name)
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: image %q", ErrNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) CreatePlaceholder(ctx context.Context, p Placeholder) (*Image, error) {
	result, err := s.db.ExecContext(ctx, `
        INSERT INTO images (name, source, width, height, flags, sheet)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(name) DO NOTHING
    `, p.Name, p.Source, p.Width, p.Height, formatFlags(p.Flags), boolInt(p.Sheet))
	if err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	img, ferr := s.FindImage(ctx, p.Name)
	if ferr != nil {
		return nil, ferr
	}
	if affected == 0 {
		return img, fmt.Errorf("%w: image %q", ErrExists, p.Name)
	}
	return img, nil
}

func (s *SQLiteStore) Rename(ctx context.Context, oldName, newName string) (int, error) {
	if oldName == newName {
		return 0, nil
	}

	var changed int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, pair := range renamePairs(oldName, newName) {
			var n int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM images WHERE name IN (?, ?)", pair[0], pair[1],
			).Scan(&n); err != nil {
				return fmt.Errorf("failed to check rename target: %w", err)
			}
			if n == 2 {
				return fmt.Errorf("%w: image %q", ErrExists, pair[1])
			}
		}
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM timelines WHERE sprite IN (?, ?)", oldName, newName,
		).Scan(&n); err != nil {
			return fmt.Errorf("failed to check rename target: %w", err)
		}
		if n == 2 {
			return fmt.Errorf("%w: timeline %q", ErrExists, newName)
		}

		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM images WHERE source = ? OR name = ? OR name = ?",
			oldName, oldName, SheetName(oldName),
		).Scan(&changed); err != nil {
			return fmt.Errorf("failed to count images: %w", err)
		}

		updates := []struct {
			query string
			args  []any
		}{
			{"UPDATE images SET source = ? WHERE source = ?", []any{newName, oldName}},
			{"UPDATE images SET name = ? WHERE name = ?", []any{newName, oldName}},
			{"UPDATE images SET name = ? WHERE name = ?", []any{SheetName(newName), SheetName(oldName)}},
			{"UPDATE timelines SET sprite = ? WHERE sprite = ?", []any{newName, oldName}},
		}
		for _, u := range updates {
			if _, err := tx.ExecContext(ctx, u.query, u.args...); err != nil {
				return fmt.Errorf("failed to rename %q: %w", oldName, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// ---------------------------------------------------------------------------
// Timelines
// ---------------------------------------------------------------------------

func encodeFrames(frames []protocol.FrameDuration) []byte {
	w := protocol.NewWriterSize(4 + 6*len(frames))
	w.PutUint32(uint32(len(frames)))
	for _, f := range frames {
		w.PutFrame(f)
	}
	return w.Bytes()
}

func decodeFrames(b []byte) ([]protocol.FrameDuration, error) {
	c := protocol.NewCursor(b)
	n, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	frames := make([]protocol.FrameDuration, 0, min(int(n), c.Remaining()/6))
	for i := uint32(0); i < n; i++ {
		f, err := c.TakeFrame()
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func encodeTags(tags []protocol.AnimTag) ([]byte, error) {
	w := protocol.NewWriter()
	w.PutUint32(uint32(len(tags)))
	for _, t := range tags {
		w.PutTag(t)
	}
	return w.Bytes(), w.Err()
}

func decodeTags(b []byte) ([]protocol.AnimTag, error) {
	c := protocol.NewCursor(b)
	n, err := c.TakeUint32()
	if err != nil {
		return nil, err
	}
	tags := make([]protocol.AnimTag, 0, min(int(n), c.Remaining()/7))
	for i := uint32(0); i < n; i++ {
		t, err := c.TakeTag()
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (s *SQLiteStore) UpdateTimeline(ctx context.Context, tl Timeline) error {
	return s.putTimeline(ctx, s.db, tl)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) putTimeline(ctx context.Context, ex execer, tl Timeline) error {
	tags, err := encodeTags(tl.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	_, err = ex.ExecContext(ctx, `
        INSERT INTO timelines (sprite, start, current_frame, grid_columns, grid_rows, frames, tags)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(sprite) DO UPDATE SET
            start = excluded.start,
            current_frame = excluded.current_frame,
            grid_columns = excluded.grid_columns,
            grid_rows = excluded.grid_rows,
            frames = excluded.frames,
            tags = excluded.tags
    `, tl.Sprite, tl.Start, tl.CurrentFrame, tl.Columns, tl.Rows, encodeFrames(tl.Frames), tags)
	if err != nil {
		return fmt.Errorf("failed to upsert timeline: %w", err)
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getTimeline(ctx context.Context, q rowQuerier, sprite string) (*Timeline, error) {
	var (
		tl           Timeline
		frames, tags []byte
	)
	err := q.QueryRowContext(ctx, `
        SELECT sprite, start, current_frame, grid_columns, grid_rows, frames, tags
        FROM timelines WHERE sprite = ?
    `, sprite).Scan(&tl.Sprite, &tl.Start, &tl.CurrentFrame, &tl.Columns, &tl.Rows, &frames, &tags)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: timeline %q", ErrNotFound, sprite)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	if tl.Frames, err = decodeFrames(frames); err != nil {
		return nil, fmt.Errorf("corrupt frames for %q: %w", sprite, err)
	}
	if tl.Tags, err = decodeTags(tags); err != nil {
		return nil, fmt.Errorf("corrupt tags for %q: %w", sprite, err)
	}
	return &tl, nil
}

// Timeline loads sprite's timeline.
func (s *SQLiteStore) Timeline(ctx context.Context, sprite string) (*Timeline, error) {
	return s.getTimeline(ctx, s.db, sprite)
}

func (s *SQLiteStore) SetFrame(ctx context.Context, sprite string, frame int, start int, frames []protocol.FrameDuration) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		tl, err := s.getTimeline(ctx, tx, sprite)
		if err != nil {
			return err
		}
		tl.CurrentFrame = frame
		tl.Start = int32(start)
		if len(frames) > 0 {
			tl.Frames = frames
		}
		for i := range tl.Tags {
			if tl.Tags[i].Name == ViewTag {
				tl.Tags[i].Start, tl.Tags[i].End = uint16(frame), uint16(frame)
			}
		}
		return s.putTimeline(ctx, tx, *tl)
	})
}

// ---------------------------------------------------------------------------
// Layers
// ---------------------------------------------------------------------------

// UpdateLayers stores the stack in its wire encoding.
func (s *SQLiteStore) UpdateLayers(ctx context.Context, stack *protocol.ImageLayers) error {
	if stack == nil || strings.TrimSpace(stack.Name) == "" {
		return fmt.Errorf("%w: layer stack without a name", protocol.ErrInvalidMessage)
	}
	body, err := protocol.Encode(stack)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO layer_stacks (name, width, height, body)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            width = excluded.width,
            height = excluded.height,
            body = excluded.body
    `, stack.Name, stack.Width, stack.Height, body)
	if err != nil {
		return fmt.Errorf("failed to upsert layers: %w", err)
	}
	return nil
}

// Layers loads the stack stored for name.
func (s *SQLiteStore) Layers(ctx context.Context, name string) (*protocol.ImageLayers, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, "SELECT body FROM layer_stacks WHERE name = ?", name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: layers %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query layers: %w", err)
	}
	msg, err := protocol.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("corrupt layers for %q: %w", name, err)
	}
	stack, ok := msg.(*protocol.ImageLayers)
	if !ok {
		return nil, fmt.Errorf("corrupt layers for %q: stored %s", name, msg.Tag())
	}
	return stack, nil
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

const identifierKey = "identifier"

// Identifier returns the identifier stored in this database, storing the
// result of generate the first time.
func (s *SQLiteStore) Identifier(ctx context.Context, generate func() string) (string, error) {
	var id string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", identifierKey).Scan(&id)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query identifier: %w", err)
		}
		id = generate()
		if _, err := tx.ExecContext(ctx, "INSERT INTO meta (key, value) VALUES (?, ?)", identifierKey, id); err != nil {
			return fmt.Errorf("failed to store identifier: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
