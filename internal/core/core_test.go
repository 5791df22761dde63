package core

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/conda/condatest"
	"github.com/blackwell-systems/condax/internal/config"
	"github.com/blackwell-systems/condax/internal/metadata"
	"github.com/blackwell-systems/condax/internal/shim"
	"github.com/blackwell-systems/condax/internal/store"
)

func catalog() map[string]condatest.Package {
	return map[string]condatest.Package{
		"jq":      {Version: "1.6", Build: "h36c2ea0_1000", Apps: []string{"jq"}},
		"gh":      {Version: "2.30.0", Build: "ha8f183a_0", Apps: []string{"gh"}},
		"ipython": {Version: "8.4.0", Apps: []string{"ipython", "ipython3"}},
		"numpy": {
			Version: "1.23.0",
			Apps:    []string{"f2py"},
			Libs:    []string{"lib/python3.10/site-packages/numpy/__init__.py"},
		},
		"ripgrep": {Version: "13.0.0", Apps: []string{"rg"}},
		"xsv":     {Version: "0.13.0", Apps: []string{"xsv"}},
		"python":  {Version: "3.10.6", Libs: []string{"lib/libpython3.10.so"}},
	}
}

type harness struct {
	c    *Condax
	fake *condatest.Manager
	cfg  config.Config
	out  *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake environments use POSIX executable bits")
	}
	root := t.TempDir()
	cfg := config.Config{
		PrefixDir: filepath.Join(root, "envs"),
		BinDir:    filepath.Join(root, "bin"),
		DataDir:   filepath.Join(root, "data"),
		Channels:  []string{"conda-forge"},
	}
	t.Setenv("PATH", cfg.BinDir)
	fake := condatest.New(catalog())
	out := &bytes.Buffer{}
	return &harness{c: New(cfg, fake, nil, out), fake: fake, cfg: cfg, out: out}
}

// wrappers returns the file names in the bin directory, sorted.
func (h *harness) wrappers(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.BinDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (h *harness) owner(t *testing.T, app string) string {
	t.Helper()
	target, err := shim.Read(filepath.Join(h.cfg.BinDir, app))
	if err != nil {
		t.Fatalf("shim.Read(%s) error: %v", app, err)
	}
	return target.EnvName()
}

func (h *harness) metadata(t *testing.T, env string) *metadata.Metadata {
	t.Helper()
	md, err := metadata.Load(h.cfg.EnvPrefix(env))
	if err != nil {
		t.Fatalf("metadata.Load(%s) error: %v", env, err)
	}
	if md == nil {
		t.Fatalf("no metadata for %s", env)
	}
	return md
}

func (h *harness) install(t *testing.T, specs ...string) {
	t.Helper()
	for _, spec := range specs {
		if err := h.c.Install(context.Background(), spec, InstallOptions{}); err != nil {
			t.Fatalf("Install(%s) error: %v", spec, err)
		}
	}
}

func wantUserError(t *testing.T, err error) {
	t.Helper()
	var uerr *Error
	if !errors.As(err, &uerr) {
		t.Fatalf("error = %v, want *core.Error", err)
	}
	if uerr.Code != 1 {
		t.Errorf("Error.Code = %d, want 1", uerr.Code)
	}
}

func TestScenarioA_InstallRemove(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.install(t, "jq")
	prefix := h.cfg.EnvPrefix("jq")
	if !conda.HasEnv(prefix) {
		t.Fatal("environment not created")
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, []string{"jq"}) {
		t.Fatalf("wrappers = %v, want [jq]", got)
	}
	if h.owner(t, "jq") != "jq" {
		t.Errorf("owner(jq) = %q", h.owner(t, "jq"))
	}
	if !strings.Contains(h.out.String(), "`jq` has been installed by condax") {
		t.Errorf("output = %q", h.out.String())
	}
	md := h.metadata(t, "jq")
	if !reflect.DeepEqual(md.MainPackage.Apps, []string{"jq"}) {
		t.Errorf("main apps = %v", md.MainPackage.Apps)
	}

	if err := h.c.Remove(ctx, "jq"); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if _, err := os.Stat(prefix); !os.IsNotExist(err) {
		t.Errorf("environment still exists: %v", err)
	}
	if got := h.wrappers(t); len(got) != 0 {
		t.Errorf("wrappers after remove = %v", got)
	}
	if !strings.Contains(h.out.String(), "`jq` has been removed from condax") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestInstall_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.install(t, "jq")
	wantUserError(t, h.c.Install(ctx, "jq", InstallOptions{}))
	wantUserError(t, h.c.Remove(ctx, "gh"))

	// Force recreates the environment.
	if err := h.c.Install(ctx, "jq=1.5", InstallOptions{Force: true}); err != nil {
		t.Fatalf("Install(force) error: %v", err)
	}
	if _, version, _ := conda.PackageInfo(h.cfg.EnvPrefix("jq"), "jq"); version != "1.5" {
		t.Errorf("version after forced install = %q, want 1.5", version)
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, []string{"jq"}) {
		t.Errorf("wrappers = %v", got)
	}
}

func TestInstall_UnknownPackagePropagatesExitCode(t *testing.T) {
	h := newHarness(t)
	err := h.c.Install(context.Background(), "no-such-package", InstallOptions{})
	var exitErr *conda.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Install() error = %v, want *conda.ExitError", err)
	}
	if got := h.wrappers(t); len(got) != 0 {
		t.Errorf("wrappers = %v, want none", got)
	}
}

func TestInstall_KeepsForeignFileWithoutForce(t *testing.T) {
	h := newHarness(t)
	if err := os.MkdirAll(h.cfg.BinDir, 0755); err != nil {
		t.Fatal(err)
	}
	mine := filepath.Join(h.cfg.BinDir, "jq")
	if err := os.WriteFile(mine, []byte("#!/bin/sh\necho mine\n"), 0755); err != nil {
		t.Fatal(err)
	}

	h.install(t, "jq")
	data, err := os.ReadFile(mine)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "#!/bin/sh\necho mine\n" {
		t.Error("foreign file was overwritten")
	}
}

func TestScenarioB_InjectWithoutApps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "ipython")
	prefix := h.cfg.EnvPrefix("ipython")
	lib := filepath.Join(prefix, "lib", "python3.10", "site-packages", "numpy", "__init__.py")
	want := []string{"ipython", "ipython3"}

	if err := h.c.Inject(ctx, "ipython", []string{"numpy=1.22.4"}, InjectOptions{}); err != nil {
		t.Fatalf("Inject() error: %v", err)
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers after inject = %v, want %v", got, want)
	}
	if _, err := os.Stat(lib); err != nil {
		t.Errorf("injected library missing: %v", err)
	}
	if _, version, _ := conda.PackageInfo(prefix, "numpy"); version != "1.22.4" {
		t.Errorf("numpy version = %q, want 1.22.4", version)
	}
	p, ok := h.metadata(t, "ipython").Injected("numpy")
	if !ok || p.IncludeApps || !reflect.DeepEqual(p.Apps, []string{"f2py"}) {
		t.Errorf("numpy record = %+v, %v", p, ok)
	}

	if err := h.c.Uninject(ctx, "ipython", []string{"numpy"}); err != nil {
		t.Fatalf("Uninject() error: %v", err)
	}
	if _, err := os.Stat(lib); !os.IsNotExist(err) {
		t.Errorf("library still present after uninject: %v", err)
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers after uninject = %v, want %v", got, want)
	}
	if names := h.metadata(t, "ipython").InjectedNames(); len(names) != 0 {
		t.Errorf("injected after uninject = %v", names)
	}
}

func TestScenarioC_InjectWithApps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "gh")
	prefix := h.cfg.EnvPrefix("gh")

	if err := h.c.Inject(ctx, "gh", []string{"ripgrep", "xsv"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatalf("Inject() error: %v", err)
	}
	if got, want := h.wrappers(t), []string{"gh", "rg", "xsv"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("wrappers = %v, want %v", got, want)
	}
	if h.owner(t, "rg") != "gh" {
		t.Errorf("owner(rg) = %q, want gh", h.owner(t, "rg"))
	}

	if err := h.c.Uninject(ctx, "gh", []string{"ripgrep"}); err != nil {
		t.Fatalf("Uninject() error: %v", err)
	}
	if got, want := h.wrappers(t), []string{"gh", "xsv"}; !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers = %v, want %v", got, want)
	}
	if _, err := conda.FindManifest(prefix, "xsv"); err != nil {
		t.Errorf("xsv manifest touched: %v", err)
	}
	if _, err := conda.FindManifest(prefix, "ripgrep"); !errors.Is(err, conda.ErrNoManifest) {
		t.Errorf("ripgrep still installed: %v", err)
	}
}

func TestInject_ReinjectWithoutAppsUnlinks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "gh")

	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{}); err != nil {
		t.Fatal(err)
	}

	md := h.metadata(t, "gh")
	if len(md.InjectedPackages) != 1 || md.InjectedPackages[0].IncludeApps {
		t.Errorf("injected = %+v, want one record without apps", md.InjectedPackages)
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, []string{"gh"}) {
		t.Errorf("wrappers = %v, want [gh]", got)
	}
}

func TestInjectUninject_Preconditions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	wantUserError(t, h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{}))
	wantUserError(t, h.c.Uninject(ctx, "gh", []string{"ripgrep"}))

	h.install(t, "gh")
	before := len(h.fake.CallsFor("uninstall"))
	wantUserError(t, h.c.Uninject(ctx, "gh", []string{"ripgrep"}))
	wantUserError(t, h.c.Uninject(ctx, "gh", []string{"gh"}))
	if after := len(h.fake.CallsFor("uninstall")); after != before {
		t.Errorf("package manager called %d times for a no-op uninject", after-before)
	}
}

func TestUpdate_SetConvergence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.Catalog["gh"] = condatest.Package{Version: "2.30.0", Apps: []string{"gh", "gh-old"}}
	h.install(t, "gh")
	if err := h.c.Inject(ctx, "gh", []string{"xsv"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Inject(ctx, "gh", []string{"numpy"}, InjectOptions{}); err != nil {
		t.Fatal(err)
	}

	// New releases change the app sets.
	h.fake.Catalog["gh"] = condatest.Package{Version: "2.31.0", Apps: []string{"gh", "gh-new"}}
	h.fake.Catalog["xsv"] = condatest.Package{Version: "0.14.0", Apps: []string{"xsv", "xsv2"}}
	h.fake.Catalog["numpy"] = condatest.Package{Version: "1.24.0", Apps: []string{"f2py", "numpy-config"}}

	if err := h.c.Update(ctx, "gh", UpdateOptions{}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	md := h.metadata(t, "gh")
	if got, want := h.wrappers(t), md.ExposedApps(); !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers = %v, want exposed set %v", got, want)
	}
	if got, want := h.wrappers(t), []string{"gh", "gh-new", "xsv", "xsv2"}; !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(md.MainPackage.Apps, []string{"gh", "gh-new"}) {
		t.Errorf("main apps = %v", md.MainPackage.Apps)
	}
	numpy, _ := md.Injected("numpy")
	if !reflect.DeepEqual(numpy.Apps, []string{"f2py", "numpy-config"}) {
		t.Errorf("numpy apps = %v", numpy.Apps)
	}
	if _, version, _ := conda.PackageInfo(h.cfg.EnvPrefix("gh"), "gh"); version != "2.31.0" {
		t.Errorf("gh version = %q", version)
	}
}

func TestUpdate_UpdateSpecs(t *testing.T) {
	h := newHarness(t)
	h.install(t, "jq=1.5")

	if err := h.c.Update(context.Background(), "jq=1.7", UpdateOptions{UpdateSpecs: true}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	calls := h.fake.CallsFor("update")
	if len(calls) != 1 || !reflect.DeepEqual(calls[0].Args, []string{"jq=1.7"}) {
		t.Errorf("update calls = %+v", calls)
	}
	if _, version, _ := conda.PackageInfo(h.cfg.EnvPrefix("jq"), "jq"); version != "1.7" {
		t.Errorf("version = %q, want 1.7", version)
	}
}

func TestUpdate_FailureReinstalls(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "gh")
	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Inject(ctx, "gh", []string{"xsv"}, InjectOptions{}); err != nil {
		t.Fatal(err)
	}

	h.fake.FailUpdate = true
	if err := h.c.Update(ctx, "gh", UpdateOptions{}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	if !strings.Contains(h.out.String(), "could not be updated") {
		t.Errorf("output = %q", h.out.String())
	}
	if len(h.fake.CallsFor("remove")) != 1 || len(h.fake.CallsFor("create")) != 2 {
		t.Errorf("expected one remove and a second create, calls = %+v", h.fake.Calls)
	}
	if got, want := h.wrappers(t), []string{"gh", "rg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers = %v, want %v", got, want)
	}
	md := h.metadata(t, "gh")
	if got := md.InjectedNames(); !reflect.DeepEqual(got, []string{"ripgrep", "xsv"}) {
		t.Errorf("injected after reinstall = %v", got)
	}
	if p, _ := md.Injected("xsv"); p.IncludeApps {
		t.Error("xsv regained include_apps after reinstall")
	}
}

func TestUpdateAll(t *testing.T) {
	h := newHarness(t)
	h.install(t, "jq", "gh")
	h.fake.Catalog["jq"] = condatest.Package{Version: "1.7", Apps: []string{"jq"}}

	if err := h.c.UpdateAll(context.Background(), UpdateOptions{}); err != nil {
		t.Fatalf("UpdateAll() error: %v", err)
	}
	if n := len(h.fake.CallsFor("update")); n != 2 {
		t.Errorf("update calls = %d, want 2", n)
	}
	if _, version, _ := conda.PackageInfo(h.cfg.EnvPrefix("jq"), "jq"); version != "1.7" {
		t.Errorf("jq version = %q", version)
	}
	wantUserError(t, h.c.Update(context.Background(), "ripgrep", UpdateOptions{}))
}

func TestRepair_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "jq", "gh")
	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	want := []string{"gh", "jq", "rg"}

	if err := os.RemoveAll(h.cfg.BinDir); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		res, err := h.c.Repair(ctx)
		if err != nil {
			t.Fatalf("Repair() error: %v", err)
		}
		if res.Envs != 2 || res.Written != 3 {
			t.Errorf("Repair() = %+v", res)
		}
		if got := h.wrappers(t); !reflect.DeepEqual(got, want) {
			t.Errorf("wrappers after repair %d = %v, want %v", i+1, got, want)
		}
	}

	// An environment deleted behind condax's back loses its wrappers.
	if err := os.RemoveAll(h.cfg.EnvPrefix("jq")); err != nil {
		t.Fatal(err)
	}
	res, err := h.c.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair() error: %v", err)
	}
	if !reflect.DeepEqual(res.Pruned, []string{"jq"}) {
		t.Errorf("pruned = %v, want [jq]", res.Pruned)
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, []string{"gh", "rg"}) {
		t.Errorf("wrappers = %v", got)
	}
}

func TestRepair_MetadataLossDropsInjectedApps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "gh")
	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	if err := metadata.Remove(h.cfg.EnvPrefix("gh")); err != nil {
		t.Fatal(err)
	}

	res, err := h.c.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair() error: %v", err)
	}
	if got := h.wrappers(t); !reflect.DeepEqual(got, []string{"gh"}) {
		t.Errorf("wrappers = %v, want [gh]", got)
	}
	if !reflect.DeepEqual(res.Pruned, []string{"rg"}) {
		t.Errorf("pruned = %v, want [rg]", res.Pruned)
	}
	md := h.metadata(t, "gh")
	if len(md.InjectedPackages) != 0 || !reflect.DeepEqual(md.MainPackage.Apps, []string{"gh"}) {
		t.Errorf("rebuilt metadata = %+v", md)
	}
}

func TestRepair_MalformedMetadata(t *testing.T) {
	h := newHarness(t)
	h.install(t, "gh")
	if err := os.WriteFile(metadata.Path(h.cfg.EnvPrefix("gh")), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.c.Repair(context.Background()); !errors.Is(err, metadata.ErrMalformed) {
		t.Errorf("Repair() error = %v, want ErrMalformed", err)
	}
}

func TestList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "jq", "gh")
	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Install(ctx, "python", InstallOptions{}); err != nil {
		t.Fatal(err)
	}
	// A stray directory in the prefix dir is not an environment.
	if err := os.MkdirAll(filepath.Join(h.cfg.PrefixDir, "stray"), 0755); err != nil {
		t.Fatal(err)
	}

	envs, err := h.c.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("List() returned %d envs, want 3", len(envs))
	}
	gh, jq, python := envs[0], envs[1], envs[2]
	if gh.Env != "gh" || gh.Main.Version != "2.30.0" || gh.Main.Build != "ha8f183a_0" {
		t.Errorf("gh = %+v", gh)
	}
	if len(gh.Injected) != 1 || gh.Injected[0].Name != "ripgrep" || gh.Injected[0].Version != "13.0.0" {
		t.Errorf("gh injected = %+v", gh.Injected)
	}
	if !reflect.DeepEqual(jq.Main.Apps, []string{"jq"}) {
		t.Errorf("jq apps = %v", jq.Main.Apps)
	}
	if !python.NoExecutables || python.PythonVersion != "3.10.6" {
		t.Errorf("python = %+v", python)
	}
}

func TestDuplicateApps(t *testing.T) {
	envs := []EnvInfo{
		{Env: "a", Main: PackageInfo{Apps: []string{"tool", "a"}}},
		{Env: "b", Main: PackageInfo{Apps: []string{"b"}}, Injected: []PackageInfo{
			{Apps: []string{"tool"}, IncludeApps: true},
			{Apps: []string{"a"}, IncludeApps: false},
		}},
	}
	if got := DuplicateApps(envs); !reflect.DeepEqual(got, []string{"tool"}) {
		t.Errorf("DuplicateApps() = %v, want [tool]", got)
	}
}

func TestExportImport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "gh", "ipython")
	if err := h.c.Inject(ctx, "gh", []string{"ripgrep"}, InjectOptions{IncludeApps: true}); err != nil {
		t.Fatal(err)
	}
	if err := h.c.Inject(ctx, "gh", []string{"xsv"}, InjectOptions{}); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "exported")
	index, err := h.c.Export(ctx, dir)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if len(index.Envs) != 2 {
		t.Errorf("exported %d envs, want 2", len(index.Envs))
	}

	for _, env := range []string{"gh", "ipython"} {
		if err := h.c.Remove(ctx, env); err != nil {
			t.Fatal(err)
		}
	}
	if got := h.wrappers(t); len(got) != 0 {
		t.Fatalf("wrappers after removal = %v", got)
	}

	imported, err := h.c.Import(ctx, dir, ImportOptions{})
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if !reflect.DeepEqual(imported, []string{"gh", "ipython"}) {
		t.Errorf("imported = %v", imported)
	}
	if got, want := h.wrappers(t), []string{"gh", "ipython", "ipython3", "rg"}; !reflect.DeepEqual(got, want) {
		t.Errorf("wrappers = %v, want %v", got, want)
	}
	if _, err := os.Stat(h.cfg.EnvPrefix("ripgrep")); !os.IsNotExist(err) {
		t.Error("injected package got its own environment")
	}
	if names := h.metadata(t, "gh").InjectedNames(); !reflect.DeepEqual(names, []string{"ripgrep", "xsv"}) {
		t.Errorf("restored injected = %v", names)
	}

	// Existing environments are skipped without --force.
	imported, err = h.c.Import(ctx, dir, ImportOptions{})
	if err != nil {
		t.Fatalf("second Import() error: %v", err)
	}
	if len(imported) != 0 {
		t.Errorf("second import = %v, want none", imported)
	}
}

func TestImport_IncompleteExport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.install(t, "gh", "jq")

	dir := filepath.Join(t.TempDir(), "exported")
	if _, err := h.c.Export(ctx, dir); err != nil {
		t.Fatal(err)
	}
	for _, env := range []string{"gh", "jq"} {
		if err := h.c.Remove(ctx, env); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Remove(filepath.Join(dir, "jq.yml")); err != nil {
		t.Fatal(err)
	}

	_, err := h.c.Import(ctx, dir, ImportOptions{})
	wantUserError(t, err)
	if err != nil && !strings.Contains(err.Error(), "jq.yml") {
		t.Errorf("error %q does not name the missing file", err)
	}
	if envs, _ := h.c.Envs(); len(envs) != 0 {
		t.Errorf("environments created from an incomplete export: %v", envs)
	}
}

func TestHistory(t *testing.T) {
	h := newHarness(t)
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.CreateSchema(); err != nil {
		t.Fatal(err)
	}
	h.c.WithHistory(db)

	h.install(t, "jq=1.6")
	if err := h.c.Remove(context.Background(), "jq"); err != nil {
		t.Fatal(err)
	}

	ops, err := h.c.History("jq", 0)
	if err != nil {
		t.Fatalf("History() error: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("History() returned %d ops, want 2", len(ops))
	}
	actions := map[string]bool{ops[0].Action: true, ops[1].Action: true}
	if !actions[store.ActionInstall] || !actions[store.ActionRemove] {
		t.Errorf("actions = %v", actions)
	}
	spec, err := db.LastSpec("jq")
	if err != nil || spec != "jq=1.6" {
		t.Errorf("LastSpec() = (%q, %v)", spec, err)
	}

	h.install(t, "gh")
	exportDir := filepath.Join(t.TempDir(), "exported")
	if _, err := h.c.Export(context.Background(), exportDir); err != nil {
		t.Fatal(err)
	}
	exports, err := h.c.Exports()
	if err != nil {
		t.Fatalf("Exports() error: %v", err)
	}
	if len(exports) != 1 || exports[0].EnvCount != 1 {
		t.Errorf("Exports() = %+v, want one run of 1 env", exports)
	}
}
