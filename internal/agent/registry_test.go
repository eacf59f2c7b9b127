package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func echoHandler(ctx context.Context, params json.RawMessage) (string, error) {
	return string(params), nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(ToolDefinition{
		Name:        "echo",
		Description: "echoes its input",
		Schema:      json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Handler:     echoHandler,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	def, err := reg.Resolve("echo")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if def.Name != "echo" {
		t.Errorf("Name = %q, want echo", def.Name)
	}
	if err := def.ValidatePayload(json.RawMessage(`{"text":"hi"}`)); err != nil {
		t.Errorf("ValidatePayload(valid) = %v", err)
	}
	if err := def.ValidatePayload(json.RawMessage(`{"text":42}`)); err == nil {
		t.Error("ValidatePayload accepted a non-string text")
	}
	if err := def.ValidatePayload(json.RawMessage(`{}`)); err == nil {
		t.Error("ValidatePayload accepted a payload missing a required field")
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve("missing")
	if !errors.Is(err, ErrToolNotSupported) {
		t.Fatalf("Resolve(missing) = %v, want ErrToolNotSupported", err)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewRegistry()
	def := ToolDefinition{Name: "dup", Handler: echoHandler}
	if err := reg.Register(def); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := reg.Register(def); err == nil {
		t.Fatal("second Register of the same name succeeded")
	}
}

func TestRegistryRejectsInvalidSchema(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(ToolDefinition{
		Name:    "broken",
		Schema:  json.RawMessage(`{"type": 42}`),
		Handler: echoHandler,
	})
	if err == nil {
		t.Fatal("Register accepted an invalid schema")
	}
}

func TestRegistrySpecsSortedWithDefaultSchema(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := reg.Register(ToolDefinition{Name: name, Handler: echoHandler}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	specs := reg.Specs()
	if len(specs) != 3 {
		t.Fatalf("len(Specs) = %d, want 3", len(specs))
	}
	want := []string{"alpha", "mike", "zulu"}
	for i, spec := range specs {
		if spec.Name != want[i] {
			t.Errorf("Specs[%d].Name = %q, want %q", i, spec.Name, want[i])
		}
		if len(spec.Schema) == 0 {
			t.Errorf("Specs[%d].Schema is empty, want object default", i)
		}
	}
}
