package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{"(?i)password", "ssn"})
	if err != nil {
		t.Fatalf("NewPIIMiddleware: %v", err)
	}
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	state := domain.NewTreeState(sessionID, "signup")
	state.Variables = []domain.VariableState{
		{Name: "Username", Value: "jdoe"},
		{Name: "UserPassword", Value: "secret123"},
		{Name: "Details", Value: map[string]any{
			"address":    "123 St",
			"ssn_number": "999-99-9999",
		}},
	}

	if err := secureStore.Save(ctx, sessionID, state); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The caller's snapshot is not modified.
	if len(state.Variables) != 3 || state.Variables[1].Value != "secret123" {
		t.Error("Middleware modified original state in memory!")
	}
	if state.Variables[2].Value.(map[string]any)["ssn_number"] != "999-99-9999" {
		t.Error("Middleware modified a nested map in memory!")
	}

	storedState, err := secureStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(storedState.Variables) != 2 {
		t.Fatalf("Expected the password variable to be dropped, got %+v", storedState.Variables)
	}
	if storedState.Variables[0].Value != "jdoe" {
		t.Error("Username shouldn't be masked")
	}
	details := storedState.Variables[1].Value.(map[string]any)
	if details["ssn_number"] != middleware.Mask {
		t.Errorf("Nested SSN should be masked, got: %v", details["ssn_number"])
	}
	if details["address"] != "123 St" {
		t.Errorf("Address shouldn't be masked, got: %v", details["address"])
	}
}

func TestPIIMiddleware_InvalidPattern(t *testing.T) {
	if _, err := middleware.NewPIIMiddleware([]string{"("}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestChain(t *testing.T) {
	underlyingStore := memory.NewStore()
	pii, _ := middleware.NewPIIMiddleware([]string{"Token"})
	enc, _ := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	store := middleware.Chain(underlyingStore, pii, enc)

	ctx := context.Background()
	st := secretState("s", "kept")
	st.Variables = append(st.Variables, domain.VariableState{Name: "Token", Value: "dropped"})
	if err := store.Save(ctx, "s", st); err != nil {
		t.Fatal(err)
	}
	raw, _ := underlyingStore.Load(ctx, "s")
	if raw.Sealed == "" {
		t.Fatal("Expected the inner store to receive an envelope")
	}
	loaded, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Variables) != 1 || loaded.Variables[0].Value != "kept" {
		t.Errorf("Expected only the unredacted variable, got %+v", loaded.Variables)
	}
}
