package snapshots

import (
	"time"

	"github.com/blackwell-systems/condax/internal/conda"
	"github.com/blackwell-systems/condax/internal/store"
)

// IndexFile is the summary written at the top of every export directory.
const IndexFile = "condax_export.yaml"

// Index is the YAML summary of an export directory.
type Index struct {
	CreatedAt time.Time  `yaml:"created_at"`
	CondaExe  string     `yaml:"conda_exe"`
	Envs      []IndexEnv `yaml:"envs"`
}

// IndexEnv describes one exported environment.
type IndexEnv struct {
	Name        string   `yaml:"name"`
	MainPackage string   `yaml:"main_package"`
	Version     string   `yaml:"version,omitempty"`
	Injected    []string `yaml:"injected,omitempty"`
}

// Entry is one importable environment found in an export directory.
type Entry struct {
	Env string
	// SpecFile is the package manager's environment file, <env>.yml.
	SpecFile string
	// MetadataFile is <env>.json, or "" when the export has none.
	MetadataFile string
}

// Manager writes and reads export directories.
type Manager struct {
	store *store.Store
	conda conda.Manager
}

// New creates a new snapshot Manager. The store may be nil, in which case
// exports are not recorded in history.
func New(store *store.Store, mgr conda.Manager) *Manager {
	return &Manager{
		store: store,
		conda: mgr,
	}
}
