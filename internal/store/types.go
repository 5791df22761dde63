package store

import "time"

// Actions recorded in the operations table.
const (
	ActionInstall  = "install"
	ActionRemove   = "remove"
	ActionUpdate   = "update"
	ActionInject   = "inject"
	ActionUninject = "uninject"
	ActionRepair   = "repair"
	ActionImport   = "import"
)

// Operation is one recorded change to an environment.
type Operation struct {
	ID        int64
	CreatedAt time.Time
	Action    string
	Env       string
	Package   string
	Spec      string
	Apps      []string
}

// Export records one run of "condax export".
type Export struct {
	ID        int64
	CreatedAt time.Time
	ExportDir string
	EnvCount  int
}

// ExportEnv is an environment included in an export.
type ExportEnv struct {
	ExportID    int64
	Env         string
	MainPackage string
	Version     string
}
