// ABOUTME: Markdown file Repository storing one file per calendar day.
// ABOUTME: Files live at entries/YYYY/MM/YYYY-MM-DD.md with YAML frontmatter.

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/harperreed/biomarkers/internal/models"
	"gopkg.in/yaml.v3"
)

const (
	frontmatterDelim = "---"
	nextIDFile       = ".next_id"
)

// MarkdownStore provides file-based storage for entries using markdown files.
// The day file is created with a hard link, which fails if the file exists,
// so two writers can never both claim a day.
type MarkdownStore struct {
	dataDir string

	// mu serializes writers within this process.
	mu sync.Mutex
}

// Compile-time check that MarkdownStore implements Repository.
var _ Repository = (*MarkdownStore)(nil)

// NewMarkdownStore creates a new markdown-backed store rooted at dataDir.
func NewMarkdownStore(dataDir string) (*MarkdownStore, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "entries"), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &MarkdownStore{dataDir: dataDir}, nil
}

// Close releases resources. For MarkdownStore this is a no-op.
func (s *MarkdownStore) Close() error {
	return nil
}

func (s *MarkdownStore) entriesDir() string {
	return filepath.Join(s.dataDir, "entries")
}

// entryPath returns entries/YYYY/MM/YYYY-MM-DD.md for day.
func (s *MarkdownStore) entryPath(day models.CalendarDay) string {
	return filepath.Join(s.entriesDir(),
		fmt.Sprintf("%04d", day.Year),
		fmt.Sprintf("%02d", int(day.Month)),
		day.String()+".md")
}

// List returns all entries ascending by day.
func (s *MarkdownStore) List(ctx context.Context) ([]*models.Entry, error) {
	entries := make([]*models.Entry, 0)
	err := s.walk(ctx, func(_ string, e *models.Entry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	models.SortEntries(entries)
	return entries, nil
}

// Get scans the entry files for id.
func (s *MarkdownStore) Get(ctx context.Context, id int64) (*models.Entry, error) {
	_, e, err := s.findByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

// FindByDate reads the file for day directly.
func (s *MarkdownStore) FindByDate(ctx context.Context, day models.CalendarDay) (*models.Entry, error) {
	e, err := readEntryFile(s.entryPath(day))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entry for %s: %w", day, err)
	}
	return e, nil
}

// Create writes the day file. An existing file means the day is taken.
func (s *MarkdownStore) Create(ctx context.Context, day models.CalendarDay, m models.Measurements) (*models.Entry, error) {
	if err := validateNew(day, m); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.entryPath(day)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, ErrDuplicateDate)
	}

	id, err := s.readNextID()
	if err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}

	e := models.NewEntry(day, m)
	e.ID = id
	if err := s.writeEntryFile(e); err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}
	if err := s.writeNextID(id + 1); err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", day, err)
	}
	return e, nil
}

// Delete removes the file holding id.
func (s *MarkdownStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, _, err := s.findByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}
	s.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

// Import writes entries keeping their ids. Conflicts are checked before
// any file is written.
func (s *MarkdownStore) Import(ctx context.Context, entries []*models.Entry) error {
	if err := validateImport(entries); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[int64]bool)
	err := s.walk(ctx, func(_ string, e *models.Entry) error {
		ids[e.ID] = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("import entries: %w", err)
	}
	for _, e := range entries {
		if ids[e.ID] {
			return fmt.Errorf("import entry %d: %w", e.ID, ErrDuplicateID)
		}
		if _, err := os.Stat(s.entryPath(e.Date)); err == nil {
			return fmt.Errorf("import entry for %s: %w", e.Date, ErrDuplicateDate)
		}
	}

	next, err := s.readNextID()
	if err != nil {
		return fmt.Errorf("import entries: %w", err)
	}
	for _, e := range entries {
		if err := s.writeEntryFile(e); err != nil {
			return fmt.Errorf("import entry %d: %w", e.ID, err)
		}
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	return s.writeNextID(next)
}

// NextID returns the counter kept in the .next_id file.
func (s *MarkdownStore) NextID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readNextID()
}

// AdvanceNextID raises the .next_id counter to next.
func (s *MarkdownStore) AdvanceNextID(ctx context.Context, next int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.readNextID()
	if err != nil {
		return err
	}
	if next <= cur {
		return nil
	}
	return s.writeNextID(next)
}

// walk reads every entry file and calls fn for each.
func (s *MarkdownStore) walk(ctx context.Context, fn func(path string, e *models.Entry) error) error {
	return filepath.WalkDir(s.entriesDir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		e, err := readEntryFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			// Removed between listing and reading.
			return nil
		}
		if err != nil {
			return fmt.Errorf("read entry file %s: %w", path, err)
		}
		return fn(path, e)
	})
}

func (s *MarkdownStore) findByID(ctx context.Context, id int64) (string, *models.Entry, error) {
	var foundPath string
	var found *models.Entry
	err := s.walk(ctx, func(path string, e *models.Entry) error {
		if e.ID == id {
			foundPath = path
			found = e
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return foundPath, found, nil
}

// writeEntryFile renders e to a temp file and links it into place. The link
// fails with ErrDuplicateDate if another writer got there first.
func (s *MarkdownStore) writeEntryFile(e *models.Entry) error {
	content, err := renderEntry(e)
	if err != nil {
		return err
	}

	path := s.entryPath(e.Date)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return ErrDuplicateDate
		}
		return fmt.Errorf("link entry file: %w", err)
	}
	return nil
}

func (s *MarkdownStore) readNextID() (int64, error) {
	data, err := os.ReadFile(filepath.Join(s.dataDir, nextIDFile))
	if errors.Is(err, fs.ErrNotExist) {
		return s.recoverNextID()
	}
	if err != nil {
		return 0, fmt.Errorf("read next id: %w", err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse next id: %w", err)
	}
	return id, nil
}

// recoverNextID rebuilds the counter from the highest id on disk when the
// counter file is missing.
func (s *MarkdownStore) recoverNextID() (int64, error) {
	next := int64(1)
	err := s.walk(context.Background(), func(_ string, e *models.Entry) error {
		if e.ID >= next {
			next = e.ID + 1
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("recover next id: %w", err)
	}
	return next, nil
}

func (s *MarkdownStore) writeNextID(id int64) error {
	path := filepath.Join(s.dataDir, nextIDFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(id, 10)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write next id: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write next id: %w", err)
	}
	return nil
}

// pruneEmptyDirs removes empty month and year directories after a delete.
func (s *MarkdownStore) pruneEmptyDirs(dir string) {
	root := s.entriesDir()
	for dir != root && strings.HasPrefix(dir, root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// renderEntry builds the file: frontmatter with scores in canonical order,
// then a readable table.
func renderEntry(e *models.Entry) ([]byte, error) {
	var fm bytes.Buffer
	enc := yaml.NewEncoder(&fm)
	enc.SetIndent(2)
	if err := enc.Encode(entryNode(e)); err != nil {
		return nil, fmt.Errorf("render frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("render frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(fm.Bytes())
	buf.WriteString(frontmatterDelim + "\n\n")
	fmt.Fprintf(&buf, "# %s\n\n", e.Date)
	buf.WriteString("| Biomarker | Score |\n|---|---|\n")
	for _, b := range models.AllBiomarkers {
		fmt.Fprintf(&buf, "| %s | %d |\n", b.Label(), e.Score(b))
	}
	return buf.Bytes(), nil
}

// entryNode returns e as a YAML mapping with keys in canonical order.
func entryNode(e *models.Entry) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key, tag, value string) {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value},
		)
	}
	add("id", "!!int", strconv.FormatInt(e.ID, 10))
	add("date", "!!str", e.Date.String())
	for _, b := range models.AllBiomarkers {
		add(string(b), "!!int", strconv.Itoa(e.Score(b)))
	}
	return node
}

// entryFrontmatter is decoded from the YAML header. Scores are read from
// the same mapping.
type entryFrontmatter struct {
	ID   int64  `yaml:"id"`
	Date string `yaml:"date"`
}

func readEntryFile(path string) (*models.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseEntry(data)
}

func parseEntry(data []byte) (*models.Entry, error) {
	header, ok := splitFrontmatter(string(data))
	if !ok {
		return nil, errors.New("no frontmatter")
	}

	var fm entryFrontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(header), &fields); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	day, err := models.ParseDay(fm.Date, nil)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", fm.Date, err)
	}

	m := make(models.Measurements, len(models.AllBiomarkers))
	for _, b := range models.AllBiomarkers {
		v, ok := fields[string(b)].(int)
		if !ok {
			return nil, fmt.Errorf("frontmatter field %s missing or not an integer", b)
		}
		m[b] = v
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &models.Entry{ID: fm.ID, Date: day, Measurements: m}, nil
}

// splitFrontmatter returns the YAML between the leading delimiter lines.
func splitFrontmatter(content string) (string, bool) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(content, frontmatterDelim+"\n") {
		return "", false
	}
	rest := content[len(frontmatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelim+"\n")
	if end < 0 {
		return "", false
	}
	return rest[:end+1], true
}
