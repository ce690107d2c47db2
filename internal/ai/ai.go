// Package ai holds the optional Gemini-backed collaborators: bill document
// extraction for the utility form and a narrative summary of the matrix
// network. Both are advisory. Every caller must treat a failure here as
// "feature unavailable" and fall back to manual input.
package ai

import (
	"context"
	"errors"

	"github.com/avetrano/matrixflow/internal/model"
)

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = errors.New("ai features disabled: no API key configured")

// Extraction is what the model could read off a utility bill document.
// Empty fields mean the model was not confident; the form keeps whatever the
// user typed.
type Extraction struct {
	Provider string            `json:"provider"`
	Type     model.UtilityType `json:"type"`
}

// Extractor reads provider and contract type from an uploaded bill.
type Extractor interface {
	ExtractBill(ctx context.Context, document []byte, mimeType string) (*Extraction, error)
}

// Analyzer produces a short plain-language report on the network tree.
type Analyzer interface {
	Summarize(ctx context.Context, node *model.MatrixNode) (string, error)
}

// Disabled satisfies both interfaces when no key is present.
type Disabled struct{}

func (Disabled) ExtractBill(context.Context, []byte, string) (*Extraction, error) {
	return nil, ErrDisabled
}

func (Disabled) Summarize(context.Context, *model.MatrixNode) (string, error) {
	return "", ErrDisabled
}
