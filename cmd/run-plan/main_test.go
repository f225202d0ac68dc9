package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aida-engine/internal/application/execution"
)

func TestReadPlan(t *testing.T) {
	plan, err := readPlan(filepath.Join("..", "..", "examples", "flux-plan.json"))
	if err != nil {
		t.Fatalf("sample plan must decode: %v", err)
	}
	if plan.ID == "" || len(plan.Steps) == 0 {
		t.Errorf("unexpected plan: %+v", plan)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readPlan(bad); err == nil {
		t.Error("malformed plan must fail")
	}
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, []execution.ModelEntry{
		{ModelID: "flux-schnell", ProviderID: "bfl", Kind: "http", Timeout: time.Minute, CostPerCall: 0.03},
	})
	out := buf.String()
	if !strings.Contains(out, "MODEL") || !strings.Contains(out, "flux-schnell") || !strings.Contains(out, "0.0300") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
