package pipeline

import (
	"context"

	"docflow/internal/classify"
	"docflow/internal/store"
)

// TextExtractor produces the machine-readable text of a scanned document.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Analyzer derives a company name and content summary from extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (classify.Analysis, error)
}

// FolderResolver maps a watch folder to a readable local path.
type FolderResolver interface {
	Resolve(ctx context.Context, folder *store.Folder) (string, error)
}
