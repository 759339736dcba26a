package graph

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Concept types recognized by the extraction pipeline. "concept" is the
// default for anything the extractor could not classify.
const (
	TypeMethod      = "method"
	TypeModel       = "model"
	TypeDataset     = "dataset"
	TypeTask        = "task"
	TypeMetric      = "metric"
	TypeDomain      = "domain"
	TypeTheory      = "theory"
	TypeApplication = "application"
	TypeConcept     = "concept"
)

// Relation types an author (or the extractor) can assign. RelationSemantic
// is reserved for inferred edges and is never written by the extractor.
const (
	RelationIsA         = "is-a"
	RelationPartOf      = "part-of"
	RelationUses        = "uses"
	RelationImproves    = "improves"
	RelationEvaluatesOn = "evaluates-on"
	RelationAppliedTo   = "applied-to"
	RelationProduces    = "produces"
	RelationRequires    = "requires"
	RelationSemantic    = "semantically-related"
)

// Concept is a typed, named knowledge unit. Name fields carry an optional
// second language; Name is the display name and the key relations resolve
// against.
type Concept struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	NameEn       string `json:"name_en,omitempty"`
	NameJa       string `json:"name_ja,omitempty"`
	Definition   string `json:"definition"`
	DefinitionJa string `json:"definition_ja,omitempty"`
	ConceptType  string `json:"concept_type"`
	SourcePaper  string `json:"source_paper,omitempty"`
}

// Relation is a typed directed edge between two concepts. Source and Target
// are concept names, not IDs: the edge is resolved against current concept
// names at traversal time. Confidence and Suggested are only set on inferred
// edges returned by the similarity engine.
type Relation struct {
	ID           string  `json:"id"`
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	RelationType string  `json:"relation_type"`
	Confidence   float64 `json:"confidence,omitempty"`
	Suggested    bool    `json:"suggested,omitempty"`
}

// Paper is an ingested source document. Concepts may reference it via
// SourcePaper.
type Paper struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Data is a snapshot of one user's graph. The two collections are read
// separately; the snapshot is not transactionally consistent across them.
type Data struct {
	Concepts  []Concept  `json:"concepts"`
	Relations []Relation `json:"relations"`
}

// SyncResult reports how many records a SyncGraph call upserted.
type SyncResult struct {
	ConceptsSynced  int `json:"concepts_synced"`
	RelationsSynced int `json:"relations_synced"`
}

// ClearResult reports how many records a ClearGraph call deleted.
type ClearResult struct {
	ConceptsDeleted  int `json:"concepts_deleted"`
	RelationsDeleted int `json:"relations_deleted"`
}
