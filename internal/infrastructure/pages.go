package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/cognitedata/annotator/pkg/archive"
	"github.com/cognitedata/annotator/pkg/cache"
)

// DocumentPages derives page counts from archived source documents using
// pdfcpu. State records created without a known page count fall back to
// this during launch. Counts are immutable per document, so they memoize
// in the given cache.
type DocumentPages struct {
	archive archive.System
	counts  cache.Store
	logger  *slog.Logger
}

// NewDocumentPages creates a DocumentPages over the given archive.
func NewDocumentPages(arch archive.System, counts cache.Store, logger *slog.Logger) *DocumentPages {
	return &DocumentPages{
		archive: arch,
		counts:  counts,
		logger:  logger.With("system", "pages"),
	}
}

// PageCount fetches the archived source PDF for a document and counts its
// pages.
func (p *DocumentPages) PageCount(ctx context.Context, documentID string) (int, error) {
	if cached, ok := p.counts.Get(documentID); ok {
		if count, ok := cached.(int); ok {
			return count, nil
		}
	}

	key := documentKey(documentID)

	rc, err := p.archive.Fetch(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("fetch document %s: %w", documentID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, fmt.Errorf("read document %s: %w", documentID, err)
	}

	count, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", documentID, err)
	}

	p.counts.Put(documentID, count, 0)
	return count, nil
}

func documentKey(documentID string) string {
	return fmt.Sprintf("documents/%s.pdf", documentID)
}
