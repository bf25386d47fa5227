package persona

import "testing"

func TestDefaultPrefersCompanion(t *testing.T) {
	store := NewMemoryStore(append([]Persona{{ID: "other", Greeting: "yo"}}, Seed()...))

	if got := store.Default(); got.ID != DefaultID {
		t.Fatalf("expected %s, got %s", DefaultID, got.ID)
	}
}

func TestDefaultFallsBackToSeed(t *testing.T) {
	store := NewMemoryStore(nil)

	got := store.Default()
	if got.ID != DefaultID {
		t.Fatalf("expected seed persona, got %q", got.ID)
	}
	if got.Greeting == "" {
		t.Fatal("seed persona must carry a greeting")
	}
}

func TestListReturnsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	items := store.List()
	items[0].Name = "mutated"

	if p, _ := store.FindByID(DefaultID); p.Name == "mutated" {
		t.Fatal("List must not expose internal storage")
	}
}
