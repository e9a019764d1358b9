package edges

import "context"

// GroupUpdate describes how to resolve every provisional edge sharing one
// exact text: the resulting status, the resolved target (nil to keep the
// placeholder sink), and process marker tags to append.
type GroupUpdate struct {
	Status Status
	Target *string
	Tags   []string
}

// System defines the public contract for annotation edge operations.
type System interface {
	// WriteBatch persists a set of edges.
	WriteBatch(ctx context.Context, batch []Edge) error

	// CleanDocument removes previously written edges for a document so a
	// first-pass reprocess is idempotent. Returns the number removed.
	CleanDocument(ctx context.Context, documentID string) (int, error)

	ListByDocument(ctx context.Context, documentID string) ([]Edge, error)

	// ListPromotableTexts returns up to limit distinct texts among
	// Suggested provisional edges that promotion has not yet attempted.
	ListPromotableTexts(ctx context.Context, limit int) ([]string, error)

	// ListProvisionalByText returns the Suggested provisional edges sharing
	// one exact text.
	ListProvisionalByText(ctx context.Context, text string) ([]Edge, error)

	// UpdateGroup applies a GroupUpdate to every Suggested provisional edge
	// sharing the exact text. Returns the number of edges updated.
	UpdateGroup(ctx context.Context, text string, update GroupUpdate) (int, error)
}
