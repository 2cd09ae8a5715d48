// ABOUTME: Tests for the install-skill command.
// ABOUTME: Validates skill installation, confirmation handling, and embedded content.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSkillFSReadEmbeddedContent(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		t.Fatalf("Failed to read embedded skill/SKILL.md: %v", err)
	}

	contentStr := string(content)
	if !strings.HasPrefix(contentStr, "---") {
		t.Error("Expected SKILL.md to start with YAML frontmatter (---)")
	}

	expectedMarkers := []string{
		"name: biomarkers",
		"description:",
		"## When to use biomarkers",
		"mcp__biomarkers__add_entry",
		"mcp__biomarkers__list_entries",
		"mcp__biomarkers__get_entry",
		"mcp__biomarkers__find_entry_by_date",
		"mcp__biomarkers__delete_entry",
		"mcp__biomarkers__get_series",
	}
	for _, marker := range expectedMarkers {
		if !strings.Contains(contentStr, marker) {
			t.Errorf("Expected SKILL.md to contain %q", marker)
		}
	}
}

func TestSkillDocumentsEveryBiomarker(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		t.Fatalf("Failed to read embedded skill: %v", err)
	}
	for _, name := range []string{"sleep", "sexDrive", "bloating", "gas", "dailyPoop", "overallDigestion",
		"strength", "stamina", "articulation", "mood", "energy", "mindSharpness", "creativity", "inspiration"} {
		if !strings.Contains(string(content), "`"+name+"`") {
			t.Errorf("Expected SKILL.md to document %q", name)
		}
	}
}

func TestInstallSkill(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	skillSkipConfirm = true
	defer func() { skillSkipConfirm = false }()

	var out bytes.Buffer
	if err := installSkill(&out, strings.NewReader("")); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	path := filepath.Join(home, ".claude", "skills", "biomarkers", "SKILL.md")
	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected skill file to be created: %v", err)
	}
	embedded, _ := skillFS.ReadFile("skill/SKILL.md")
	if !bytes.Equal(written, embedded) {
		t.Error("installed file does not match embedded content")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0600 != 0600 {
		t.Errorf("Expected file to be rw for owner, got %v", info.Mode())
	}
	if !strings.Contains(out.String(), "Installed biomarkers skill") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestInstallSkillOverwrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".claude", "skills", "biomarkers")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "SKILL.md")
	if err := os.WriteFile(path, []byte("stale content"), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := installSkill(&out, strings.NewReader("yes\n")); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "stale content") {
		t.Error("Expected skill file to be overwritten")
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("expected overwrite notice, got: %s", out.String())
	}
}

func TestInstallSkillCanceled(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var out bytes.Buffer
	if err := installSkill(&out, strings.NewReader("n\n")); err != nil {
		t.Fatalf("installSkill failed: %v", err)
	}

	if !strings.Contains(out.String(), "Installation canceled.") {
		t.Errorf("expected cancel message, got: %s", out.String())
	}
	if _, err := os.Stat(filepath.Join(home, ".claude")); !os.IsNotExist(err) {
		t.Error("canceled install should not create directories")
	}
}

func TestSkillSkipConfirmFlag(t *testing.T) {
	flag := installSkillCmd.Flags().Lookup("yes")
	if flag == nil {
		t.Fatal("Expected --yes flag to be defined")
	}
	if flag.Shorthand != "y" {
		t.Errorf("Expected shorthand 'y', got %q", flag.Shorthand)
	}
	if flag.DefValue != "false" {
		t.Errorf("Expected default value 'false', got %q", flag.DefValue)
	}
}
