package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/akiyama0/storemind/internal/config"
)

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "ingest", "ask", "version"}
	for _, name := range want {
		found := false
		for _, sub := range root.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}
}

func TestIngestRequiresPath(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"ingest"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected error without a path argument")
	}
}

func TestAskRequiresStore(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"ask", "how are sales?"})

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "store") {
		t.Fatalf("expected missing --store error, got %v", err)
	}
}

func TestClassifierConfigOverrides(t *testing.T) {
	cfg := &config.Config{TopKDefault: 7, TopKTrend: 9}
	c := classifierConfig(cfg)
	if c.DefaultK != 7 {
		t.Fatalf("DefaultK = %d, want 7", c.DefaultK)
	}
	if c.TrendK != 9 {
		t.Fatalf("TrendK = %d, want 9", c.TrendK)
	}
	// Unset budgets keep their defaults.
	if c.SpecificK == 0 || c.ComprehensiveK == 0 {
		t.Fatalf("unset budgets lost their defaults: %+v", c)
	}
}

func TestDocumentIDFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"manuals/opening-checklist.md", "opening-checklist"},
		{"/abs/path/接客マニュアル.txt", "接客マニュアル"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := documentIDFor(tt.path); got != tt.want {
			t.Errorf("documentIDFor(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
