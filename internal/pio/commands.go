package pio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/buckleypaul/meshflash/internal/catalog"
	"github.com/buckleypaul/meshflash/internal/flags"
)

// Operation is the kind of work an orchestrator run performs.
type Operation string

const (
	OpBuild  Operation = "build"
	OpUpload Operation = "upload"
)

// Request is one build or upload invocation.
type Request struct {
	// ID correlates the run with its Result and history record. A random
	// id is assigned when empty.
	ID      string
	Board   string
	Variant string
	// Port is the serial port passed to the upload step. Required for OpUpload.
	Port   string
	Flags  map[string]string
	Custom string
	// Erase prepends an erase target to an upload.
	Erase bool
}

// Plan is a fully resolved request: the environment to build and the
// argument vector for the tool. When Flags is non-empty Args reference the
// derived environment and configuration artifact.
type Plan struct {
	Operation Operation
	Board     catalog.Board
	Variant   catalog.Variant
	BaseEnv   string
	Env       string
	Flags     []string
	Args      []string
	// ConfigPath is the derived configuration artifact, empty when unused.
	ConfigPath string
}

// Command renders the plan as a display string for the given tool path.
func (p Plan) Command(tool string) string {
	parts := append([]string{tool}, p.Args...)
	for i, s := range parts {
		if s == "" || strings.ContainsAny(s, " \t\"'") {
			parts[i] = fmt.Sprintf("%q", s)
		}
	}
	return strings.Join(parts, " ")
}

// baseArgs is the command line for an operation against a named environment.
func baseArgs(op Operation, env string, req Request) []string {
	args := []string{"run", "-e", env}
	if op == OpUpload {
		if req.Erase {
			args = append(args, "--target", "erase")
		}
		args = append(args, "--target", "upload", "--upload-port", req.Port)
	}
	return args
}

// withDerivedEnv replaces "-e base" with "-c config -e derived".
func withDerivedEnv(args []string, base, configPath, derived string) []string {
	out := make([]string, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		if args[i] == "-e" && i+1 < len(args) && args[i+1] == base {
			out = append(out, "-c", configPath, "-e", derived)
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

// resolve checks the request against the catalog and builds its plan.
// It touches no files.
func resolve(cat *catalog.Catalog, workDir string, op Operation, req Request) (Plan, error) {
	if op != OpBuild && op != OpUpload {
		return Plan{}, newError(InvalidConfiguration, "unknown operation %q", op)
	}
	board, err := cat.Board(req.Board)
	if err != nil {
		return Plan{}, wrapError(err, InvalidConfiguration, "invalid board")
	}
	variant, err := cat.Variant(req.Variant)
	if err != nil {
		return Plan{}, wrapError(err, InvalidConfiguration, "invalid variant")
	}
	if !board.Supports(variant.ID) {
		return Plan{}, newError(InvalidConfiguration, "board %s does not support variant %s", board.ID, variant.ID)
	}
	if op == OpUpload && strings.TrimSpace(req.Port) == "" {
		return Plan{}, newError(InvalidConfiguration, "no serial port specified for upload")
	}
	if err := cat.ValidateValues(variant, req.Flags); err != nil {
		return Plan{}, wrapError(err, InvalidConfiguration, "invalid flag values")
	}
	env, err := cat.EnvironmentName(board.ID, variant.ID)
	if err != nil {
		return Plan{}, wrapError(err, ConfigurationMissing, "environment lookup")
	}

	p := Plan{
		Operation: op,
		Board:     board,
		Variant:   variant,
		BaseEnv:   env,
		Env:       env,
		Flags:     flags.Compile(cat, board, variant, req.Flags, req.Custom),
		Args:      baseArgs(op, env, req),
	}
	if len(p.Flags) > 0 {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			abs = workDir
		}
		p.ConfigPath = filepath.Join(abs, CustomConfigName)
		p.Env = DerivedName(env)
		p.Args = withDerivedEnv(p.Args, env, p.ConfigPath, p.Env)
	}
	return p, nil
}
