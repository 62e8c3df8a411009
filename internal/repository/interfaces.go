package repository

import (
	"context"

	"github.com/grammarkit/mining-service/internal/models"
)

// Repository aggregates all repository interfaces
type Repository interface {
	Grammar() GrammarRepositoryInterface
	Run() RunRepositoryInterface
	Event() EventRepositoryInterface
}

// GrammarRepositoryInterface defines grammar definition storage operations
type GrammarRepositoryInterface interface {
	CreateGrammar(dir, name, format, content, description, start string) (*models.Grammar, error)
	GetGrammar(dir, name string) (*models.Grammar, error)
	UpdateGrammar(dir, name, format, content, description, start string) (*models.Grammar, error)
	DeleteGrammar(dir, name string) error
	ListGrammars(dir string) ([]*models.Grammar, error)
	ListDirectories() ([]string, error)
	CreateDirectory(name string) error
	DeleteDirectory(name string) error
}

// RunRepositoryInterface defines mining run logging operations
type RunRepositoryInterface interface {
	LogRun(ctx context.Context, run *models.RunLog) error
	GetRunLogs(ctx context.Context, limit int) ([]*models.RunLog, error)
}

// EventRepositoryInterface defines event logging operations
type EventRepositoryInterface interface {
	LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error
}
