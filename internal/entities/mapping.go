package entities

import (
	"encoding/json"
	"fmt"

	"github.com/cognitedata/annotator/pkg/query"
	"github.com/cognitedata/annotator/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "entities", "e").
	Project("id", "ID").
	Project("name", "Name").
	Project("aliases", "Aliases").
	Project("scope_key", "ScopeKey")

var defaultSort = query.SortField{
	Field:      "Name",
	Descending: false,
}

func scanEntity(s repository.Scanner) (Entity, error) {
	var e Entity
	var aliasesRaw []byte

	err := s.Scan(
		&e.ID,
		&e.Name,
		&aliasesRaw,
		&e.ScopeKey,
	)
	if err != nil {
		return e, err
	}

	if len(aliasesRaw) > 0 {
		if err := json.Unmarshal(aliasesRaw, &e.Aliases); err != nil {
			return e, fmt.Errorf("unmarshal aliases: %w", err)
		}
	}

	if e.Aliases == nil {
		e.Aliases = []string{}
	}

	return e, nil
}

func scanScopeCache(s repository.Scanner) (ScopeCache, error) {
	var c ScopeCache
	var entitiesRaw, patternsRaw []byte

	err := s.Scan(
		&c.ScopeKey,
		&entitiesRaw,
		&patternsRaw,
		&c.GeneratedAt,
	)
	if err != nil {
		return c, err
	}

	if len(entitiesRaw) > 0 {
		if err := json.Unmarshal(entitiesRaw, &c.Entities); err != nil {
			return c, fmt.Errorf("unmarshal cached entities: %w", err)
		}
	}

	if len(patternsRaw) > 0 {
		if err := json.Unmarshal(patternsRaw, &c.Patterns); err != nil {
			return c, fmt.Errorf("unmarshal cached patterns: %w", err)
		}
	}

	if c.Entities == nil {
		c.Entities = []Entity{}
	}
	if c.Patterns == nil {
		c.Patterns = []string{}
	}

	return c, nil
}
