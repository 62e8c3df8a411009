package models

import (
	"time"
)

// Grammar represents a stored grammar definition file
type Grammar struct {
	Name        string    `json:"name"`
	Directory   string    `json:"directory"`
	Description string    `json:"description"`
	Format      string    `json:"format"`
	Definition  string    `json:"definition"`
	Start       string    `json:"start"`
	Size        int64     `json:"size"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
}

// CreateGrammarRequest represents a request to store a new grammar definition
type CreateGrammarRequest struct {
	Name        string `json:"name" validate:"required"`
	Directory   string `json:"directory"`
	Description string `json:"description"`
	Format      string `json:"format"`
	Definition  string `json:"definition" validate:"required"`
	Start       string `json:"start"`
}

// UpdateGrammarRequest represents a request to update an existing grammar definition
type UpdateGrammarRequest struct {
	Description string `json:"description"`
	Format      string `json:"format"`
	Definition  string `json:"definition" validate:"required"`
	Start       string `json:"start"`
}

// GrammarListResponse represents the response for listing grammars
type GrammarListResponse struct {
	Directory string     `json:"directory"`
	Grammars  []*Grammar `json:"grammars"`
}

// DirectoryListResponse represents the response for listing directories
type DirectoryListResponse struct {
	Directories []string `json:"directories"`
}

// CreateDirectoryRequest represents a request to create a directory
type CreateDirectoryRequest struct {
	Name string `json:"name" validate:"required"`
}
