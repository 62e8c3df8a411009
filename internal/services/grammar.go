package services

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/grammarkit/mining-service/internal/grammar"
	"github.com/grammarkit/mining-service/internal/models"
	"github.com/grammarkit/mining-service/internal/repository"
)

// DefaultStartSymbol is used when a grammar definition does not name its own
// start symbol.
const DefaultStartSymbol = "<start>"

type GrammarService struct {
	repo *repository.GrammarRepository
}

func NewGrammarService(grammarRoot string) *GrammarService {
	return &GrammarService{
		repo: repository.NewGrammarRepository(grammarRoot),
	}
}

// CreateGrammar stores a new grammar definition after validating it
func (s *GrammarService) CreateGrammar(req models.CreateGrammarRequest) (*models.Grammar, error) {
	if err := s.validateGrammarName(req.Name); err != nil {
		return nil, err
	}

	if err := s.validateDirectoryName(req.Directory); err != nil {
		return nil, err
	}

	dir := req.Directory
	if dir == "" {
		dir = "default"
	}

	start := req.Start
	if start == "" {
		start = DefaultStartSymbol
	}

	// Reject definitions that do not decode or reference undefined nonterminals
	if err := s.checkDefinition(req.Definition, req.Format, start); err != nil {
		return nil, err
	}

	slog.Info("Creating grammar", "name", req.Name, "directory", dir, "format", req.Format, "size", len(req.Definition))

	return s.repo.CreateGrammar(dir, req.Name, req.Format, req.Definition, req.Description, start)
}

// GetGrammar retrieves a stored grammar definition
func (s *GrammarService) GetGrammar(dir, name string) (*models.Grammar, error) {
	if dir == "" {
		dir = "default"
	}

	return s.repo.GetGrammar(dir, name)
}

// UpdateGrammar replaces an existing grammar definition
func (s *GrammarService) UpdateGrammar(dir, name string, req models.UpdateGrammarRequest) (*models.Grammar, error) {
	if dir == "" {
		dir = "default"
	}

	start := req.Start
	if start == "" {
		start = DefaultStartSymbol
	}

	if err := s.checkDefinition(req.Definition, req.Format, start); err != nil {
		return nil, err
	}

	slog.Info("Updating grammar", "name", name, "directory", dir, "format", req.Format, "size", len(req.Definition))

	return s.repo.UpdateGrammar(dir, name, req.Format, req.Definition, req.Description, start)
}

// DeleteGrammar removes a grammar definition
func (s *GrammarService) DeleteGrammar(dir, name string) error {
	if dir == "" {
		dir = "default"
	}

	slog.Info("Deleting grammar", "name", name, "directory", dir)

	return s.repo.DeleteGrammar(dir, name)
}

// ListGrammars lists all grammars in a directory
func (s *GrammarService) ListGrammars(dir string) (*models.GrammarListResponse, error) {
	if dir == "" {
		dir = "default"
	}

	grammars, err := s.repo.ListGrammars(dir)
	if err != nil {
		return nil, err
	}

	return &models.GrammarListResponse{
		Directory: dir,
		Grammars:  grammars,
	}, nil
}

// ListDirectories lists all available directories
func (s *GrammarService) ListDirectories() (*models.DirectoryListResponse, error) {
	dirs, err := s.repo.ListDirectories()
	if err != nil {
		return nil, err
	}

	return &models.DirectoryListResponse{
		Directories: dirs,
	}, nil
}

// CreateDirectory creates a new grammar directory
func (s *GrammarService) CreateDirectory(req models.CreateDirectoryRequest) error {
	if err := s.validateDirectoryName(req.Name); err != nil {
		return err
	}

	slog.Info("Creating grammar directory", "name", req.Name)

	return s.repo.CreateDirectory(req.Name)
}

// DeleteDirectory removes a directory and all its grammars
func (s *GrammarService) DeleteDirectory(name string) error {
	if name == "default" {
		return fmt.Errorf("cannot delete default directory")
	}

	slog.Info("Deleting grammar directory", "name", name)

	return s.repo.DeleteDirectory(name)
}

// ResolveGrammar resolves a grammar reference to a decoded grammar. The
// reference is either an inline JSON definition or a dir/name pointer to a
// stored definition.
func (s *GrammarService) ResolveGrammar(grammarRef, startRef string) (grammar.Grammar, string, error) {
	if grammarRef == "" {
		return nil, "", fmt.Errorf("no grammar provided")
	}

	start := startRef
	if start == "" {
		start = DefaultStartSymbol
	}

	// Inline JSON definitions start with the rule object itself
	if strings.HasPrefix(strings.TrimSpace(grammarRef), "{") {
		slog.Debug("Using inline grammar", "length", len(grammarRef))
		g, err := grammar.DecodeJSON([]byte(grammarRef))
		if err != nil {
			return nil, "", err
		}
		return g, start, nil
	}

	// Parse path reference (dir/name or just name)
	parts := strings.Split(grammarRef, "/")
	var dir, name string

	if len(parts) == 1 {
		dir = "default"
		name = parts[0]
	} else if len(parts) == 2 {
		dir = parts[0]
		name = parts[1]
	} else {
		return nil, "", fmt.Errorf("invalid grammar reference format: %s", grammarRef)
	}

	stored, err := s.repo.GetGrammar(dir, name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve grammar %s: %v", grammarRef, err)
	}

	g, err := grammar.Decode([]byte(stored.Definition), stored.Format)
	if err != nil {
		return nil, "", fmt.Errorf("stored grammar %s does not decode: %v", grammarRef, err)
	}

	if startRef == "" && stored.Start != "" {
		start = stored.Start
	}

	slog.Info("Resolved grammar reference", "ref", grammarRef, "dir", dir, "name", name, "start", start)
	return g, start, nil
}

func (s *GrammarService) checkDefinition(definition, format, start string) error {
	if !grammar.IsNonterminal(start) {
		return fmt.Errorf("start symbol %q is not written as a nonterminal", start)
	}
	g, err := grammar.Decode([]byte(definition), format)
	if err != nil {
		return fmt.Errorf("invalid grammar definition: %v", err)
	}
	if err := grammar.Validate(g, start); err != nil {
		return err
	}
	return nil
}

func (s *GrammarService) validateGrammarName(name string) error {
	if name == "" {
		return fmt.Errorf("grammar name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\:*?\"<>|") {
		return fmt.Errorf("grammar name contains invalid characters")
	}
	return nil
}

func (s *GrammarService) validateDirectoryName(dir string) error {
	if dir == "" {
		return nil // Empty is valid (will use default)
	}
	if strings.ContainsAny(dir, "\\:*?\"<>|") {
		return fmt.Errorf("directory name contains invalid characters")
	}
	if filepath.IsAbs(dir) {
		return fmt.Errorf("directory name cannot be absolute path")
	}
	return nil
}
