package graph

// Store is the persistence interface for per-user graph collections.
//
// Two implementations exist: SQLiteStore (durable, the default when a data
// directory is configured) and MemoryStore (the degraded mode when no
// backing store is available; callers must not assume durability across
// restarts in that mode).
//
// Upserts are last-writer-wins by record ID; there is no optimistic
// concurrency control. Implementations must serialize writes to the same
// record while allowing concurrency across users.
type Store interface {
	// Concepts
	PutConcept(userID string, c Concept) error
	PutConceptsBatch(userID string, concepts []Concept) error
	GetConcept(userID, conceptID string) (Concept, error)
	AllConcepts(userID string) ([]Concept, error)
	DeleteConcept(userID, conceptID string) error
	ClearConcepts(userID string) (int, error)

	// Relations
	PutRelation(userID string, r Relation) error
	PutRelationsBatch(userID string, relations []Relation) error
	AllRelations(userID string) ([]Relation, error)
	DeleteRelation(userID, relationID string) error
	ClearRelations(userID string) (int, error)

	// Papers
	PutPaper(userID string, p Paper) error
	GetPaper(userID, paperID string) (Paper, error)
	AllPapers(userID string) ([]Paper, error)
	DeletePaper(userID, paperID string) error
	ClearPapers(userID string) (int, error)

	Close() error
}
