package economy

import (
	"encoding/json"
	"testing"
)

func TestLedgerSetClampsNegative(t *testing.T) {
	l := NewLedger()
	l.Set(KeyFood, -50)
	if got := l.Value(KeyFood); got != 0 {
		t.Errorf("food = %v, want 0", got)
	}
	if got := l.Value("stone"); got != 0 {
		t.Errorf("unset key = %v, want 0", got)
	}
}

func TestLedgerAddRemoveHas(t *testing.T) {
	l := NewLedger()
	l.Set(KeyFood, 50)
	l.Add(KeyFood, 30)
	if got := l.Value(KeyFood); got != 80 {
		t.Fatalf("food = %v, want 80", got)
	}

	if !l.Remove(KeyFood, 30) {
		t.Fatal("remove 30 of 80 failed")
	}
	if l.Remove(KeyFood, 60) {
		t.Fatal("remove 60 of 50 succeeded")
	}
	if got := l.Value(KeyFood); got != 50 {
		t.Errorf("food = %v, want 50 after failed remove", got)
	}

	if !l.Has(KeyFood, 50) || l.Has(KeyFood, 51) {
		t.Errorf("Has boundary wrong at 50")
	}

	l.Add(KeyFood, -500)
	if got := l.Value(KeyFood); got != 0 {
		t.Errorf("food = %v after large negative add, want 0", got)
	}
}

func TestLedgerInitFromCatalogKeepsExisting(t *testing.T) {
	l := NewLedger()
	l.Set(KeyFood, 200)
	l.InitFromCatalog(DefaultCatalog())

	if got := l.Value(KeyFood); got != 200 {
		t.Errorf("food = %v, want existing 200", got)
	}
	if got := l.Value(KeyWater); got != 100 {
		t.Errorf("water = %v, want default 100", got)
	}
	if got := l.Value(KeyMorale); got != 0.5 {
		t.Errorf("morale = %v, want 0.5", got)
	}
}

func TestLedgerExportImportRoundTrip(t *testing.T) {
	src := NewLedger()
	src.Set(KeyFood, 150)
	src.Set(KeyWater, 75)
	src.Set(KeyMorale, 0.9)

	dst := NewLedger()
	dst.Set("stone", 50)
	dst.Import(src.Export())

	for _, k := range []string{KeyFood, KeyWater, KeyMorale} {
		if dst.Value(k) != src.Value(k) {
			t.Errorf("%s = %v, want %v", k, dst.Value(k), src.Value(k))
		}
	}
	if got := dst.Value("stone"); got != 0 {
		t.Errorf("stone = %v, want cleared", got)
	}
	if n := len(dst.Keys()); n != 3 {
		t.Errorf("keys = %d, want 3", n)
	}
}

func TestLedgerExportIsCopy(t *testing.T) {
	l := NewLedger()
	l.Set(KeyFood, 10)
	state := l.Export()
	state[KeyFood] = 99
	if got := l.Value(KeyFood); got != 10 {
		t.Errorf("ledger mutated through export: %v", got)
	}
}

func TestLedgerJSON(t *testing.T) {
	l := NewLedger()
	l.Set(KeyPopulation, 6)
	data, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Ledger
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := back.Value(KeyPopulation); got != 6 {
		t.Errorf("population = %v, want 6", got)
	}
}

func TestDefinitionClamp(t *testing.T) {
	c := DefaultCatalog()
	morale := c[KeyMorale]
	if got := morale.Clamp(1.7); got != 1 {
		t.Errorf("clamp 1.7 = %v, want 1", got)
	}
	if got := morale.Clamp(-0.2); got != 0 {
		t.Errorf("clamp -0.2 = %v, want 0", got)
	}
	if !morale.IsCoefficient() || c[KeyFood].IsCoefficient() {
		t.Error("kind mismatch in default catalog")
	}
}
