package universe

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()
	want := []string{"meme_stocks", "popular_options", "small_cap_momentum", "crypto", "etf_retail"}
	if got := r.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	u, ok := r.Get("crypto")
	if !ok {
		t.Fatal("Get(crypto) not found")
	}
	if u.Name != "Crypto (Retail Dominated)" || len(u.Symbols) != 8 {
		t.Errorf("crypto = %+v", u)
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Default().Resolve("penny_stocks")
	if !errors.Is(err, ErrUnknownUniverse) {
		t.Errorf("Resolve error = %v, want ErrUnknownUniverse", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := Default()
	u, _ := r.Get("etf_retail")
	u.Symbols[0] = "MUTATED"

	again, _ := r.Get("etf_retail")
	if again.Symbols[0] != "SPY" {
		t.Errorf("registry was mutated through Get: %v", again.Symbols[0])
	}
}

func TestNewRegistryValidation(t *testing.T) {
	tests := []struct {
		name string
		in   []Universe
	}{
		{"empty key", []Universe{{Name: "x", Symbols: []string{"A"}}}},
		{"duplicate", []Universe{{Key: "a", Symbols: []string{"A"}}, {Key: "a", Symbols: []string{"B"}}}},
		{"no symbols", []Universe{{Key: "a"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.in...); err == nil {
				t.Error("NewRegistry returned nil error")
			}
		})
	}
}

func TestNormalizeAndSymbols(t *testing.T) {
	r, err := NewRegistry(
		Universe{Key: "a", Symbols: []string{" aapl", "MSFT", "AAPL", ""}},
		Universe{Key: "b", Symbols: []string{"msft", "TSLA"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	a, _ := r.Get("a")
	if !reflect.DeepEqual(a.Symbols, []string{"AAPL", "MSFT"}) {
		t.Errorf("a.Symbols = %v", a.Symbols)
	}
	if got := r.Symbols(); !reflect.DeepEqual(got, []string{"AAPL", "MSFT", "TSLA"}) {
		t.Errorf("Symbols() = %v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universes.yaml")
	content := []byte(`
universes:
  - key: banks
    name: Big Banks
    why: rate sensitive
    symbols: [JPM, BAC, wfc]
  - key: chips
    name: Semis
    symbols: [NVDA, AMD]
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := r.List(); !reflect.DeepEqual(got, []string{"banks", "chips"}) {
		t.Errorf("List() = %v", got)
	}
	banks, _ := r.Get("banks")
	if banks.Rationale != "rate sensitive" || banks.Symbols[2] != "WFC" {
		t.Errorf("banks = %+v", banks)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	r, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if len(r.All()) != len(Defaults) {
		t.Errorf("All() = %d universes, want %d", len(r.All()), len(Defaults))
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile(missing) returned nil error")
	}
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("universes: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile(empty) returned nil error")
	}
}
