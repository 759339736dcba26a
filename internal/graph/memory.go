package graph

import "sync"

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps all collections in process memory, scoped by user ID.
// It is the fallback when no data directory is configured. Nothing survives
// a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*userData
}

type userData struct {
	concepts  map[string]Concept
	relations map[string]Relation
	papers    map[string]Paper
	// insertion order, so listings are deterministic
	conceptOrder  []string
	relationOrder []string
	paperOrder    []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*userData)}
}

func (s *MemoryStore) user(userID string) *userData {
	u, ok := s.users[userID]
	if !ok {
		u = &userData{
			concepts:  make(map[string]Concept),
			relations: make(map[string]Relation),
			papers:    make(map[string]Paper),
		}
		s.users[userID] = u
	}
	return u
}

func (s *MemoryStore) PutConcept(userID string, c Concept) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if _, exists := u.concepts[c.ID]; !exists {
		u.conceptOrder = append(u.conceptOrder, c.ID)
	}
	u.concepts[c.ID] = c
	return nil
}

func (s *MemoryStore) PutConceptsBatch(userID string, concepts []Concept) error {
	for _, c := range concepts {
		if err := s.PutConcept(userID, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) GetConcept(userID, conceptID string) (Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return Concept{}, ErrNotFound
	}
	c, ok := u.concepts[conceptID]
	if !ok {
		return Concept{}, ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) AllConcepts(userID string) ([]Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]Concept, 0, len(u.conceptOrder))
	for _, id := range u.conceptOrder {
		out = append(out, u.concepts[id])
	}
	return out, nil
}

func (s *MemoryStore) DeleteConcept(userID, conceptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := u.concepts[conceptID]; !ok {
		return ErrNotFound
	}
	delete(u.concepts, conceptID)
	u.conceptOrder = removeID(u.conceptOrder, conceptID)
	return nil
}

func (s *MemoryStore) ClearConcepts(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	n := len(u.concepts)
	u.concepts = make(map[string]Concept)
	u.conceptOrder = nil
	return n, nil
}

func (s *MemoryStore) PutRelation(userID string, r Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if _, exists := u.relations[r.ID]; !exists {
		u.relationOrder = append(u.relationOrder, r.ID)
	}
	u.relations[r.ID] = r
	return nil
}

func (s *MemoryStore) PutRelationsBatch(userID string, relations []Relation) error {
	for _, r := range relations {
		if err := s.PutRelation(userID, r); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) AllRelations(userID string) ([]Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]Relation, 0, len(u.relationOrder))
	for _, id := range u.relationOrder {
		out = append(out, u.relations[id])
	}
	return out, nil
}

func (s *MemoryStore) DeleteRelation(userID, relationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := u.relations[relationID]; !ok {
		return ErrNotFound
	}
	delete(u.relations, relationID)
	u.relationOrder = removeID(u.relationOrder, relationID)
	return nil
}

func (s *MemoryStore) ClearRelations(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	n := len(u.relations)
	u.relations = make(map[string]Relation)
	u.relationOrder = nil
	return n, nil
}

func (s *MemoryStore) PutPaper(userID string, p Paper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	if _, exists := u.papers[p.ID]; !exists {
		u.paperOrder = append(u.paperOrder, p.ID)
	}
	u.papers[p.ID] = p
	return nil
}

func (s *MemoryStore) GetPaper(userID, paperID string) (Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return Paper{}, ErrNotFound
	}
	p, ok := u.papers[paperID]
	if !ok {
		return Paper{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) AllPapers(userID string) ([]Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	out := make([]Paper, 0, len(u.paperOrder))
	for _, id := range u.paperOrder {
		out = append(out, u.papers[id])
	}
	return out, nil
}

func (s *MemoryStore) DeletePaper(userID, paperID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := u.papers[paperID]; !ok {
		return ErrNotFound
	}
	delete(u.papers, paperID)
	u.paperOrder = removeID(u.paperOrder, paperID)
	return nil
}

func (s *MemoryStore) ClearPapers(userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, nil
	}
	n := len(u.papers)
	u.papers = make(map[string]Paper)
	u.paperOrder = nil
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
