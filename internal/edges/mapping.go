package edges

import (
	"encoding/json"
	"fmt"

	"github.com/cognitedata/annotator/pkg/query"
	"github.com/cognitedata/annotator/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "annotation_edges", "g").
	Project("id", "ID").
	Project("source_document", "SourceDocument").
	Project("target_entity", "TargetEntity").
	Project("text", "Text").
	Project("confidence", "Confidence").
	Project("page", "Page").
	Project("x_min", "XMin").
	Project("y_min", "YMin").
	Project("x_max", "XMax").
	Project("y_max", "YMax").
	Project("status", "Status").
	Project("tags", "Tags").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: false,
}

func scanEdge(s repository.Scanner) (Edge, error) {
	var e Edge
	var tagsRaw []byte

	err := s.Scan(
		&e.ID,
		&e.SourceDocument,
		&e.TargetEntity,
		&e.Text,
		&e.Confidence,
		&e.Region.Page,
		&e.Region.XMin,
		&e.Region.YMin,
		&e.Region.XMax,
		&e.Region.YMax,
		&e.Status,
		&tagsRaw,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return e, err
	}

	if len(tagsRaw) > 0 {
		if err := json.Unmarshal(tagsRaw, &e.Tags); err != nil {
			return e, fmt.Errorf("unmarshal tags: %w", err)
		}
	}

	if e.Tags == nil {
		e.Tags = []string{}
	}

	return e, nil
}
