package graph

import (
	"fmt"
	"strings"
)

// Service implements graph operations that span the stored collections:
// whole-graph snapshots, additive sync, keyword search, and relation
// traversal. It holds no state of its own beyond the injected Store.
type Service struct {
	store Store
}

// NewService creates a Service backed by the given Store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Store exposes the backing store for callers that need direct CRUD.
func (s *Service) Store() Store {
	return s.store
}

// GetGraph returns a snapshot of the user's concepts and relations. The two
// collections are read separately, so the snapshot has a small staleness
// window under concurrent writes.
func (s *Service) GetGraph(userID string) (Data, error) {
	concepts, err := s.store.AllConcepts(userID)
	if err != nil {
		return Data{}, fmt.Errorf("loading concepts: %w", err)
	}
	relations, err := s.store.AllRelations(userID)
	if err != nil {
		return Data{}, fmt.Errorf("loading relations: %w", err)
	}
	if concepts == nil {
		concepts = []Concept{}
	}
	if relations == nil {
		relations = []Relation{}
	}
	return Data{Concepts: concepts, Relations: relations}, nil
}

// SyncGraph batch-upserts both collections and reports counts. The sync is
// additive: records absent from the input are never deleted.
func (s *Service) SyncGraph(userID string, concepts []Concept, relations []Relation) (SyncResult, error) {
	if err := s.store.PutConceptsBatch(userID, concepts); err != nil {
		return SyncResult{}, fmt.Errorf("syncing concepts: %w", err)
	}
	if err := s.store.PutRelationsBatch(userID, relations); err != nil {
		return SyncResult{}, fmt.Errorf("syncing relations: %w", err)
	}
	return SyncResult{ConceptsSynced: len(concepts), RelationsSynced: len(relations)}, nil
}

// ClearGraph deletes all concepts and relations for the user.
func (s *Service) ClearGraph(userID string) (ClearResult, error) {
	conceptsDeleted, err := s.store.ClearConcepts(userID)
	if err != nil {
		return ClearResult{}, fmt.Errorf("clearing concepts: %w", err)
	}
	relationsDeleted, err := s.store.ClearRelations(userID)
	if err != nil {
		return ClearResult{}, fmt.Errorf("clearing relations: %w", err)
	}
	return ClearResult{ConceptsDeleted: conceptsDeleted, RelationsDeleted: relationsDeleted}, nil
}

// SearchConcepts returns concepts whose name, alternate name, or definition
// contains the query (case-insensitive). An empty query returns all
// concepts up to limit.
func (s *Service) SearchConcepts(userID, query string, limit int) ([]Concept, error) {
	concepts, err := s.store.AllConcepts(userID)
	if err != nil {
		return nil, err
	}

	if query == "" {
		if limit > 0 && len(concepts) > limit {
			concepts = concepts[:limit]
		}
		return concepts, nil
	}

	q := strings.ToLower(query)
	var out []Concept
	for _, c := range concepts {
		if strings.Contains(strings.ToLower(c.Name), q) ||
			strings.Contains(strings.ToLower(c.NameEn), q) ||
			strings.Contains(strings.ToLower(c.NameJa), q) ||
			strings.Contains(strings.ToLower(c.Definition), q) {
			out = append(out, c)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// RelatedConcepts resolves the concept's name and expands breadth-first
// over the relation set for depth hops. Relation endpoints are concept
// names, so name is the edge-resolution key; edges are followed in either
// direction. The origin is never part of the result, even when a cycle
// routes back to it, and no node is visited twice.
//
// Depth <= 0 yields an empty result. An unknown concept ID returns
// ErrNotFound.
func (s *Service) RelatedConcepts(userID, conceptID string, depth int) ([]Concept, error) {
	origin, err := s.store.GetConcept(userID, conceptID)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		return []Concept{}, nil
	}

	data, err := s.GetGraph(userID)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]Concept, len(data.Concepts))
	for _, c := range data.Concepts {
		byName[c.Name] = c
	}

	visited := map[string]bool{origin.Name: true}
	frontier := []string{origin.Name}
	var related []Concept

	for hop := 0; hop < depth && len(frontier) > 0; hop++ {
		var next []string
		for _, rel := range data.Relations {
			for _, name := range frontier {
				var neighbor string
				switch name {
				case rel.Source:
					neighbor = rel.Target
				case rel.Target:
					neighbor = rel.Source
				default:
					continue
				}
				c, known := byName[neighbor]
				if !known || visited[neighbor] {
					continue
				}
				visited[neighbor] = true
				next = append(next, neighbor)
				related = append(related, c)
			}
		}
		frontier = next
	}

	if related == nil {
		related = []Concept{}
	}
	return related, nil
}

// Stats summarizes a user's graph by concept and relation type.
type Stats struct {
	TotalConcepts  int            `json:"total_concepts"`
	TotalRelations int            `json:"total_relations"`
	ConceptTypes   map[string]int `json:"concept_types"`
	RelationTypes  map[string]int `json:"relation_types"`
}

// GraphStats aggregates per-type counts over the user's graph.
func (s *Service) GraphStats(userID string) (Stats, error) {
	data, err := s.GetGraph(userID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalConcepts:  len(data.Concepts),
		TotalRelations: len(data.Relations),
		ConceptTypes:   make(map[string]int),
		RelationTypes:  make(map[string]int),
	}
	for _, c := range data.Concepts {
		t := c.ConceptType
		if t == "" {
			t = TypeConcept
		}
		stats.ConceptTypes[t]++
	}
	for _, r := range data.Relations {
		stats.RelationTypes[r.RelationType]++
	}
	return stats, nil
}
