package diff

import "gridvault/internal/core"

// TextDescriber adapts this package to core.ChangeDescriber.
type TextDescriber struct{}

func NewTextDescriber() TextDescriber { return TextDescriber{} }

// Describe implements core.ChangeDescriber.
func (TextDescriber) Describe(before, after string) string {
	return Describe(before, after)
}

var _ core.ChangeDescriber = TextDescriber{}
