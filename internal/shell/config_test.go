package shell

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolate points HOME and SHELL into a temp dir and clears PATH of it.
func isolate(t *testing.T, shell string) (home, binDir string) {
	t.Helper()
	home = t.TempDir()
	binDir = filepath.Join(home, ".local", "bin")
	t.Setenv("HOME", home)
	t.Setenv("SHELL", shell)
	t.Setenv("PATH", "/usr/bin:/bin")
	return home, binDir
}

// TestEnsurePathEntry_AlreadyOnPath verifies that nothing is written when dir
// is already on PATH.
func TestEnsurePathEntry_AlreadyOnPath(t *testing.T) {
	home, binDir := isolate(t, "/bin/sh")
	t.Setenv("PATH", binDir+string(filepath.ListSeparator)+"/usr/bin")

	status, configFile, err := EnsurePathEntry(binDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != OnPath || configFile != "" {
		t.Errorf("got (%v, %q), want (OnPath, \"\")", status, configFile)
	}
	if _, err := os.Stat(filepath.Join(home, ".profile")); !os.IsNotExist(err) {
		t.Error(".profile was created")
	}
}

// TestEnsurePathEntry_AppendsToProfile verifies the entry is appended without
// overwriting existing content.
func TestEnsurePathEntry_AppendsToProfile(t *testing.T) {
	home, binDir := isolate(t, "/bin/sh")
	profilePath := filepath.Join(home, ".profile")
	existing := "# existing content\n"
	if err := os.WriteFile(profilePath, []byte(existing), 0644); err != nil {
		t.Fatal(err)
	}

	status, configFile, err := EnsurePathEntry(binDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Added || configFile != profilePath {
		t.Errorf("got (%v, %q), want (Added, %q)", status, configFile, profilePath)
	}

	data, err := os.ReadFile(profilePath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, existing) {
		t.Errorf("existing content was overwritten; got:\n%s", content)
	}
	for _, want := range []string{Marker, "export PATH=", binDir, `:"$PATH"`} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in .profile; got:\n%s", want, content)
		}
	}
}

// TestEnsurePathEntry_SecondRunNeedsRestart verifies the entry is written once.
func TestEnsurePathEntry_SecondRunNeedsRestart(t *testing.T) {
	home, binDir := isolate(t, "/bin/bash")

	if status, _, err := EnsurePathEntry(binDir); err != nil || status != Added {
		t.Fatalf("first run = (%v, %v)", status, err)
	}
	status, configFile, err := EnsurePathEntry(binDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(home, ".bash_profile")
	if status != NeedsRestart || configFile != want {
		t.Errorf("got (%v, %q), want (NeedsRestart, %q)", status, configFile, want)
	}

	data, _ := os.ReadFile(want)
	if n := strings.Count(string(data), Marker); n != 1 {
		t.Errorf("marker written %d times", n)
	}
}

func TestEnsurePathEntry_QuotesSpaces(t *testing.T) {
	home, _ := isolate(t, "/bin/zsh")
	binDir := filepath.Join(home, "my bin")

	if _, _, err := EnsurePathEntry(binDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(home, ".zprofile"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "export PATH='"+binDir+"':") {
		t.Errorf("path not single-quoted; got:\n%s", data)
	}
}

// TestEnsurePathEntry_FishUsesFishAddPath verifies fish gets its own syntax
// and conf.d file.
func TestEnsurePathEntry_FishUsesFishAddPath(t *testing.T) {
	home, binDir := isolate(t, "/usr/local/bin/fish")

	status, configFile, err := EnsurePathEntry(binDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(home, ".config", "fish", "conf.d", "condax.fish")
	if status != Added || configFile != want {
		t.Errorf("got (%v, %q), want (Added, %q)", status, configFile, want)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if strings.Contains(content, "export PATH") {
		t.Errorf("fish config should not contain 'export PATH'; got:\n%s", content)
	}
	if !strings.Contains(content, "fish_add_path "+binDir) {
		t.Errorf("expected fish_add_path line; got:\n%s", content)
	}
}

func TestEnsurePathEntry_StaleEntryForOtherDir(t *testing.T) {
	home, binDir := isolate(t, "/bin/sh")
	profilePath := filepath.Join(home, ".profile")
	stale := "\n" + Marker + "\nexport PATH=/old/condax/bin:\"$PATH\"\n"
	if err := os.WriteFile(profilePath, []byte(stale), 0644); err != nil {
		t.Fatal(err)
	}

	status, _, err := EnsurePathEntry(binDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Added {
		t.Errorf("status = %v, want Added", status)
	}
	data, err := os.ReadFile(profilePath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), binDir) {
		t.Errorf("entry for %s not appended; got:\n%s", binDir, data)
	}
}
