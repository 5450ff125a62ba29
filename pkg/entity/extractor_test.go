package entity

import (
	"errors"
	"testing"
)

func TestNewRegistryFallsBackToDefault(t *testing.T) {
	reg := NewRegistry(nil)
	if reg.extractor == nil {
		t.Fatal("NewRegistry(nil) left extractor unset")
	}
}

func TestRegistryExtractDelegates(t *testing.T) {
	called := false
	stub := ExtractorFunc(func(filename string, source []byte) (*EntityList, error) {
		called = true
		return &EntityList{}, nil
	})

	reg := NewRegistry(stub)
	if _, err := reg.Extract("x.go", []byte("package main\n")); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !called {
		t.Fatal("Registry.Extract did not delegate to the injected Extractor")
	}
}

func TestRegistryExtractPropagatesStubError(t *testing.T) {
	wantErr := errors.New("boom")
	stub := ExtractorFunc(func(filename string, source []byte) (*EntityList, error) {
		return nil, wantErr
	})

	reg := NewRegistry(stub)
	_, err := reg.Extract("x.go", nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("Extract error = %v, want %v", err, wantErr)
	}
}

func TestNilRegistryExtractFails(t *testing.T) {
	var reg *Registry
	if _, err := reg.Extract("x.go", nil); err == nil {
		t.Fatal("expected error extracting from a nil registry")
	}
}

func TestDefaultRegistryUsesDefaultExtractor(t *testing.T) {
	reg := DefaultRegistry()
	if reg.extractor == nil {
		t.Fatal("DefaultRegistry produced a registry with no extractor")
	}
}
