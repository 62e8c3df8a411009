package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grammarkit/mining-service/internal/models"
)

// grammarExtensions lists the definition formats the repository stores, in
// lookup order.
var grammarExtensions = []string{".json", ".yaml", ".yml"}

type GrammarRepository struct {
	grammarRoot string
}

func NewGrammarRepository(grammarRoot string) *GrammarRepository {
	return &GrammarRepository{
		grammarRoot: grammarRoot,
	}
}

func (r *GrammarRepository) ensureDir(dir string) error {
	fullPath := filepath.Join(r.grammarRoot, dir)
	return os.MkdirAll(fullPath, 0755)
}

func extensionFor(format string) string {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return ".yaml"
	default:
		return ".json"
	}
}

func formatFor(ext string) string {
	switch ext {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// grammarMeta is the sidecar document stored next to each definition file. It
// carries the attributes that have no place inside the definition itself.
type grammarMeta struct {
	Description string `json:"description,omitempty"`
	Start       string `json:"start,omitempty"`
}

const metaSuffix = ".meta.json"

func (r *GrammarRepository) metaPath(dir, name string) string {
	return filepath.Join(r.grammarRoot, dir, name+metaSuffix)
}

func (r *GrammarRepository) writeMeta(dir, name, description, start string) error {
	b, err := json.Marshal(grammarMeta{Description: description, Start: start})
	if err != nil {
		return err
	}
	return os.WriteFile(r.metaPath(dir, name), b, 0644)
}

// readMeta tolerates a missing or unreadable sidecar; the grammar is still
// usable without one.
func (r *GrammarRepository) readMeta(dir, name string) grammarMeta {
	var meta grammarMeta
	if b, err := os.ReadFile(r.metaPath(dir, name)); err == nil {
		_ = json.Unmarshal(b, &meta)
	}
	return meta
}

// findGrammarPath locates an existing definition file for dir/name in any
// supported format.
func (r *GrammarRepository) findGrammarPath(dir, name string) (string, bool) {
	for _, ext := range grammarExtensions {
		path := filepath.Join(r.grammarRoot, dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// CreateGrammar stores a new grammar definition file
func (r *GrammarRepository) CreateGrammar(dir, name, format, content, description, start string) (*models.Grammar, error) {
	if err := r.ensureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create directory: %v", err)
	}

	if _, exists := r.findGrammarPath(dir, name); exists {
		return nil, fmt.Errorf("grammar %s/%s already exists", dir, name)
	}

	grammarPath := filepath.Join(r.grammarRoot, dir, name+extensionFor(format))
	if err := os.WriteFile(grammarPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to write grammar file: %v", err)
	}

	if err := r.writeMeta(dir, name, description, start); err != nil {
		return nil, fmt.Errorf("failed to write grammar metadata: %v", err)
	}

	info, err := os.Stat(grammarPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %v", err)
	}

	return &models.Grammar{
		Name:        name,
		Directory:   dir,
		Description: description,
		Format:      formatFor(filepath.Ext(grammarPath)),
		Definition:  content,
		Start:       start,
		Size:        info.Size(),
		Created:     info.ModTime(),
		Modified:    info.ModTime(),
	}, nil
}

// GetGrammar retrieves a stored grammar definition
func (r *GrammarRepository) GetGrammar(dir, name string) (*models.Grammar, error) {
	grammarPath, ok := r.findGrammarPath(dir, name)
	if !ok {
		return nil, fmt.Errorf("grammar %s/%s not found", dir, name)
	}

	info, err := os.Stat(grammarPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access grammar file: %v", err)
	}

	content, err := os.ReadFile(grammarPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read grammar file: %v", err)
	}

	meta := r.readMeta(dir, name)

	return &models.Grammar{
		Name:        name,
		Directory:   dir,
		Description: meta.Description,
		Format:      formatFor(filepath.Ext(grammarPath)),
		Definition:  string(content),
		Start:       meta.Start,
		Size:        info.Size(),
		Created:     info.ModTime(), // Approximation
		Modified:    info.ModTime(),
	}, nil
}

// UpdateGrammar overwrites an existing grammar definition
func (r *GrammarRepository) UpdateGrammar(dir, name, format, content, description, start string) (*models.Grammar, error) {
	grammarPath, ok := r.findGrammarPath(dir, name)
	if !ok {
		return nil, fmt.Errorf("grammar %s/%s not found", dir, name)
	}

	// A format change replaces the definition file.
	newPath := filepath.Join(r.grammarRoot, dir, name+extensionFor(format))
	if newPath != grammarPath {
		if err := os.Remove(grammarPath); err != nil {
			return nil, fmt.Errorf("failed to replace grammar file: %v", err)
		}
		grammarPath = newPath
	}

	if err := os.WriteFile(grammarPath, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("failed to update grammar file: %v", err)
	}

	if err := r.writeMeta(dir, name, description, start); err != nil {
		return nil, fmt.Errorf("failed to update grammar metadata: %v", err)
	}

	info, err := os.Stat(grammarPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %v", err)
	}

	return &models.Grammar{
		Name:        name,
		Directory:   dir,
		Description: description,
		Format:      formatFor(filepath.Ext(grammarPath)),
		Definition:  content,
		Start:       start,
		Size:        info.Size(),
		Modified:    info.ModTime(),
	}, nil
}

// DeleteGrammar removes a grammar definition file
func (r *GrammarRepository) DeleteGrammar(dir, name string) error {
	grammarPath, ok := r.findGrammarPath(dir, name)
	if !ok {
		return fmt.Errorf("grammar %s/%s not found", dir, name)
	}

	_ = os.Remove(r.metaPath(dir, name))
	return os.Remove(grammarPath)
}

// ListGrammars lists all grammar definitions in a directory
func (r *GrammarRepository) ListGrammars(dir string) ([]*models.Grammar, error) {
	dirPath := filepath.Join(r.grammarRoot, dir)

	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return []*models.Grammar{}, nil // Empty list for non-existent directory
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %v", err)
	}

	var grammars []*models.Grammar
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || !supportedExtension(ext) || strings.HasSuffix(entry.Name(), metaSuffix) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), ext)
		info, err := entry.Info()
		if err != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			continue
		}

		meta := r.readMeta(dir, name)

		grammars = append(grammars, &models.Grammar{
			Name:        name,
			Directory:   dir,
			Description: meta.Description,
			Format:      formatFor(ext),
			Definition:  string(content),
			Start:       meta.Start,
			Size:        info.Size(),
			Created:     info.ModTime(),
			Modified:    info.ModTime(),
		})
	}

	return grammars, nil
}

func supportedExtension(ext string) bool {
	for _, e := range grammarExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// ListDirectories lists all available grammar directories
func (r *GrammarRepository) ListDirectories() ([]string, error) {
	entries, err := os.ReadDir(r.grammarRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read grammar root: %v", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}

	return dirs, nil
}

// CreateDirectory creates a new grammar directory
func (r *GrammarRepository) CreateDirectory(name string) error {
	dirPath := filepath.Join(r.grammarRoot, name)

	if _, err := os.Stat(dirPath); err == nil {
		return fmt.Errorf("directory %s already exists", name)
	}

	return os.MkdirAll(dirPath, 0755)
}

// DeleteDirectory removes a grammar directory and all its contents
func (r *GrammarRepository) DeleteDirectory(name string) error {
	dirPath := filepath.Join(r.grammarRoot, name)

	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return fmt.Errorf("directory %s not found", name)
	}

	return os.RemoveAll(dirPath)
}
