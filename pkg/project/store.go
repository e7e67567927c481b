// Package project persists layout documents and uploaded media on disk,
// one directory per project under a common root.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fiona/folio/pkg/layout"
)

// DefaultProject is the project used when no name is given.
const DefaultProject = "default"

const layoutFileName = "layout.json"

var projectSeparators = regexp.MustCompile(`[^0-9a-z._-]+`)

// SanitizeName lowercases a project name and collapses anything outside
// [0-9a-z._-] to dashes. An empty or fully invalid name maps to the
// default project.
func SanitizeName(name string) string {
	text := strings.ToLower(strings.TrimSpace(name))
	if text == "" {
		return DefaultProject
	}
	text = projectSeparators.ReplaceAllString(text, "-")
	text = strings.Trim(text, ".-_")
	if text == "" {
		return DefaultProject
	}
	return text
}

// Store reads and writes project layouts and media. Writes to the same
// project are serialized through a per-project mutex; the layout file is
// replaced atomically so a crashed write never leaves a torn document.
type Store struct {
	root   string
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(root string, logger zerolog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("projects root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create projects root: %w", err)
	}
	return &Store{
		root:   root,
		logger: logger.With().Str("component", "project_store").Logger(),
		locks:  map[string]*sync.Mutex{},
	}, nil
}

// Root returns the projects root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) projectLock(project string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[project]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[project] = lock
	}
	return lock
}

// Dir returns the directory for a project, creating it if needed.
func (s *Store) Dir(project string) (string, error) {
	dir := filepath.Join(s.root, SanitizeName(project))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}
	return dir, nil
}

// LayoutPath returns the layout file path for a project.
func (s *Store) LayoutPath(project string) string {
	return filepath.Join(s.root, SanitizeName(project), layoutFileName)
}

// Load reads and normalizes a project's layout. A missing or corrupt file
// yields the default document rather than an error; persisting garbage
// must never lock a project out of its canvas.
func (s *Store) Load(project string) *layout.Document {
	project = SanitizeName(project)
	raw, err := os.ReadFile(s.LayoutPath(project))
	if err != nil {
		return layout.NormalizeDocument(project, nil)
	}
	var overlay map[string]any
	if err := json.Unmarshal(raw, &overlay); err != nil {
		s.logger.Warn().Str("project", project).Err(err).Msg("Layout file corrupt, serving defaults")
		return layout.NormalizeDocument(project, nil)
	}
	return layout.NormalizeDocument(project, overlay)
}

// Save normalizes and persists a document, returning the normalized form.
func (s *Store) Save(project string, doc *layout.Document) (*layout.Document, error) {
	overlay, err := doc.Overlay()
	if err != nil {
		return nil, err
	}
	return s.SaveOverlay(project, overlay)
}

// SaveOverlay normalizes an untrusted partial document and persists it.
func (s *Store) SaveOverlay(project string, overlay map[string]any) (*layout.Document, error) {
	project = SanitizeName(project)
	normalized := layout.NormalizeDocument(project, overlay)

	raw, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal layout: %w", err)
	}

	lock := s.projectLock(project)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.Dir(project); err != nil {
		return nil, err
	}
	path := s.LayoutPath(project)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, raw, 0o644); err != nil {
		return nil, fmt.Errorf("write layout: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("replace layout: %w", err)
	}

	s.logger.Debug().Str("project", project).Int("blocks", len(normalized.Blocks)).Msg("Layout saved")
	return normalized, nil
}

// List returns all known project names, the default project included even
// before anything was saved to it.
func (s *Store) List() ([]string, error) {
	seen := map[string]bool{DefaultProject: true}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read projects root: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			seen[entry.Name()] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SaveMedia stores an uploaded file under the project's media directory
// with a collision-proof name derived from the hint, and returns that name.
func (s *Store) SaveMedia(project, filenameHint string, data []byte) (string, error) {
	project = SanitizeName(project)
	safe := sanitizeFilename(filenameHint)
	ext := filepath.Ext(safe)
	if ext == "" {
		ext = ".bin"
	}
	stem := strings.TrimSuffix(safe, ext)
	unique := fmt.Sprintf("%s-%s%s", stem, strings.ReplaceAll(uuid.NewString(), "-", "")[:10], ext)

	dir, err := s.Dir(project)
	if err != nil {
		return "", err
	}
	mediaDir := filepath.Join(dir, "media")
	if err := os.MkdirAll(mediaDir, 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(mediaDir, unique), data, 0o644); err != nil {
		return "", fmt.Errorf("write media file: %w", err)
	}

	s.logger.Debug().Str("project", project).Str("file", unique).Msg("Media stored")
	return unique, nil
}

// MediaPath resolves a stored media file, rejecting names that escape the
// project's media directory.
func (s *Store) MediaPath(project, filename string) (string, error) {
	project = SanitizeName(project)
	mediaDir := filepath.Join(s.root, project, "media")
	path := filepath.Join(mediaDir, filepath.Clean("/"+filename))
	if !strings.HasPrefix(path, mediaDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid media path: %s", filename)
	}
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

var filenameSeparators = regexp.MustCompile(`[^0-9A-Za-z._-]+`)

func sanitizeFilename(hint string) string {
	base := filepath.Base(strings.TrimSpace(hint))
	base = filenameSeparators.ReplaceAllString(base, "-")
	base = strings.Trim(base, ".-_")
	if base == "" {
		return "upload"
	}
	return base
}
