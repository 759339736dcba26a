package graph

import (
	"errors"
	"fmt"
	"testing"
)

// stores returns both Store implementations so every test runs against the
// durable and the degraded backend.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestPutGetConcept(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			want := Concept{
				ID:          "c1",
				Name:        "Transformer",
				NameEn:      "Transformer",
				Definition:  "attention-based sequence model",
				ConceptType: TypeModel,
			}
			if err := s.PutConcept("u1", want); err != nil {
				t.Fatalf("PutConcept: %v", err)
			}

			got, err := s.GetConcept("u1", "c1")
			if err != nil {
				t.Fatalf("GetConcept: %v", err)
			}
			if got != want {
				t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
			}
		})
	}
}

func TestGetConcept_NotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetConcept("u1", "missing"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetConcept(missing) = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestPutConcept_UpsertOverwrites(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first := Concept{ID: "c1", Name: "BERT", Definition: "old", ConceptType: TypeModel}
			second := Concept{ID: "c1", Name: "BERT", Definition: "bidirectional encoder", ConceptType: TypeModel}

			if err := s.PutConcept("u1", first); err != nil {
				t.Fatalf("PutConcept first: %v", err)
			}
			if err := s.PutConcept("u1", second); err != nil {
				t.Fatalf("PutConcept second: %v", err)
			}

			got, err := s.GetConcept("u1", "c1")
			if err != nil {
				t.Fatalf("GetConcept: %v", err)
			}
			if got.Definition != "bidirectional encoder" {
				t.Errorf("Definition = %q, last write should win", got.Definition)
			}

			all, err := s.AllConcepts("u1")
			if err != nil {
				t.Fatalf("AllConcepts: %v", err)
			}
			if len(all) != 1 {
				t.Errorf("got %d concepts after upsert, want 1", len(all))
			}
		})
	}
}

func TestUserIsolation(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutConcept("alice", Concept{ID: "c1", Name: "GAN"}); err != nil {
				t.Fatalf("PutConcept: %v", err)
			}

			if _, err := s.GetConcept("bob", "c1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("bob sees alice's concept: err = %v", err)
			}

			bobs, err := s.AllConcepts("bob")
			if err != nil {
				t.Fatalf("AllConcepts(bob): %v", err)
			}
			if len(bobs) != 0 {
				t.Errorf("bob has %d concepts, want 0", len(bobs))
			}
		})
	}
}

func TestDeleteConcept(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutConcept("u1", Concept{ID: "c1", Name: "SVM"}); err != nil {
				t.Fatalf("PutConcept: %v", err)
			}
			if err := s.DeleteConcept("u1", "c1"); err != nil {
				t.Fatalf("DeleteConcept: %v", err)
			}
			if _, err := s.GetConcept("u1", "c1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("concept still present after delete: err = %v", err)
			}
			if err := s.DeleteConcept("u1", "c1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestClearConcepts_ReturnsCount(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				c := Concept{ID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("concept %d", i)}
				if err := s.PutConcept("u1", c); err != nil {
					t.Fatalf("PutConcept: %v", err)
				}
			}

			n, err := s.ClearConcepts("u1")
			if err != nil {
				t.Fatalf("ClearConcepts: %v", err)
			}
			if n != 3 {
				t.Errorf("ClearConcepts = %d, want 3", n)
			}

			n, err = s.ClearConcepts("u1")
			if err != nil {
				t.Fatalf("second ClearConcepts: %v", err)
			}
			if n != 0 {
				t.Errorf("second ClearConcepts = %d, want 0", n)
			}
		})
	}
}

func TestRelationsRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rels := []Relation{
				{ID: "r1", Source: "CNN", Target: "deep learning", RelationType: RelationIsA},
				{ID: "r2", Source: "CNN", Target: "image classification", RelationType: RelationAppliedTo},
			}
			if err := s.PutRelationsBatch("u1", rels); err != nil {
				t.Fatalf("PutRelationsBatch: %v", err)
			}

			got, err := s.AllRelations("u1")
			if err != nil {
				t.Fatalf("AllRelations: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("got %d relations, want 2", len(got))
			}
			if got[0].ID != "r1" || got[1].ID != "r2" {
				t.Errorf("relations out of insertion order: %v", got)
			}

			if err := s.DeleteRelation("u1", "r1"); err != nil {
				t.Fatalf("DeleteRelation: %v", err)
			}
			n, err := s.ClearRelations("u1")
			if err != nil {
				t.Fatalf("ClearRelations: %v", err)
			}
			if n != 1 {
				t.Errorf("ClearRelations = %d, want 1", n)
			}
		})
	}
}

func TestPapersRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			p := Paper{ID: "p1", Filename: "attention.pdf", Title: "Attention Is All You Need", Status: "processed"}
			if err := s.PutPaper("u1", p); err != nil {
				t.Fatalf("PutPaper: %v", err)
			}

			got, err := s.GetPaper("u1", "p1")
			if err != nil {
				t.Fatalf("GetPaper: %v", err)
			}
			if got != p {
				t.Errorf("round-trip mismatch: got %+v, want %+v", got, p)
			}

			all, err := s.AllPapers("u1")
			if err != nil {
				t.Fatalf("AllPapers: %v", err)
			}
			if len(all) != 1 {
				t.Errorf("got %d papers, want 1", len(all))
			}

			if err := s.DeletePaper("u1", "p1"); err != nil {
				t.Fatalf("DeletePaper: %v", err)
			}
			if _, err := s.GetPaper("u1", "p1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("paper still present after delete: err = %v", err)
			}
		})
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestSQLiteDurability(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.PutConcept("u1", Concept{ID: "c1", Name: "RNN", ConceptType: TypeModel}); err != nil {
		t.Fatalf("PutConcept: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetConcept("u1", "c1")
	if err != nil {
		t.Fatalf("GetConcept after reopen: %v", err)
	}
	if got.Name != "RNN" {
		t.Errorf("Name = %q after reopen, want %q", got.Name, "RNN")
	}
}
