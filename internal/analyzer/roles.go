package analyzer

import (
	"context"

	"go.uber.org/zap"

	"github.com/rk-analyzer/internal/address"
)

// SuggestRoles proposes address roles for the undeclared string fields of the
// dataset. Nothing is written.
func (a *Analyzer) SuggestRoles(ctx context.Context, name string) ([]address.Suggestion, error) {
	fields, err := a.store.Fields(ctx, name)
	if err != nil {
		return nil, err
	}
	pop, err := Sample(ctx, a.store, name, a.env.Settings.RecordsToProcess)
	if err != nil {
		return nil, err
	}

	parser := address.NewParser(a.env.Dictionary, a.env.Settings.Locale)
	suggestions, err := address.SuggestRoles(ctx, a.store, pop, fields, parser)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Roles suggested", zap.String("dataset", name), zap.Int("suggestions", len(suggestions)))
	return suggestions, nil
}
