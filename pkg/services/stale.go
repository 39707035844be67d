package services

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/recall/pkg/store"
)

// findStaleReferences returns one warning per superseded item the text still
// matches. Both retrieval and the consistency audit surface these.
func findStaleReferences(ctx context.Context, st *store.Store, threadID, text string, limit int) ([]string, error) {
	items, err := st.SupersededMatching(ctx, threadID, text, limit)
	if err != nil {
		return nil, err
	}
	notes := make([]string, 0, len(items))
	for _, item := range items {
		notes = append(notes, fmt.Sprintf("Plan references superseded item '%s'. Use newer decision if available.", item.Title))
	}
	return notes, nil
}
