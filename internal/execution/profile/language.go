// Package profile defines language profiles used by the execution pipeline.
package profile

import (
	"path/filepath"
	"strings"

	appErr "coderun/pkg/errors"
)

// TaskType identifies the pipeline stage a process belongs to.
type TaskType string

const (
	TaskTypeCompile TaskType = "compile"
	TaskTypeRun     TaskType = "run"
)

// ArgsFunc builds the ordered argument list for a command over one path.
type ArgsFunc func(path string) []string

// PathFunc derives one path from another.
type PathFunc func(sourcePath string) string

// Language describes how to compile (optionally) and run source code for one language.
// Values are owned by the registry and must not be mutated after registration.
type Language struct {
	ID         string
	Name       string
	SourceFile string

	// RunCommand is the interpreter or launcher. Empty means the derived
	// binary is executed directly, which only compiled languages may do.
	RunCommand string
	RunArgs    ArgsFunc

	NeedsCompilation bool
	CompileCommand   string
	CompileArgs      ArgsFunc
	BinaryPath       PathFunc
}

// Validate checks the compile/run invariants of a profile.
func (l Language) Validate() error {
	if strings.TrimSpace(l.ID) == "" {
		return appErr.ValidationError("language_id", "required")
	}
	if l.NeedsCompilation {
		if strings.TrimSpace(l.CompileCommand) == "" {
			return appErr.Newf(appErr.InvalidLanguageSpec, "language %s: compile command is required", l.ID)
		}
		if l.BinaryPath == nil {
			return appErr.Newf(appErr.InvalidLanguageSpec, "language %s: binary path function is required", l.ID)
		}
		return nil
	}
	if strings.TrimSpace(l.RunCommand) == "" {
		return appErr.Newf(appErr.InvalidLanguageSpec, "language %s: run command is required for interpreted languages", l.ID)
	}
	return nil
}

// CompileInvocation returns the compiler and its arguments for sourcePath.
func (l Language) CompileInvocation(sourcePath string) (string, []string) {
	return l.CompileCommand, callArgs(l.CompileArgs, sourcePath)
}

// RunInvocation returns the executable and arguments used to run path,
// which is the source for interpreted languages and the binary otherwise.
// A binary named without a directory is run from the working directory,
// never looked up in PATH.
func (l Language) RunInvocation(path string) (string, []string) {
	if l.RunCommand == "" {
		path = localPath(path)
		return path, callArgs(l.RunArgs, path)
	}
	return l.RunCommand, callArgs(l.RunArgs, path)
}

func localPath(path string) string {
	if path == "" || strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	return "." + string(filepath.Separator) + path
}

func callArgs(fn ArgsFunc, path string) []string {
	if fn == nil {
		return nil
	}
	return fn(path)
}

// TrimSuffix returns a PathFunc that drops suffix from the source path.
// Paths without the suffix are returned unchanged.
func TrimSuffix(suffix string) PathFunc {
	return func(sourcePath string) string {
		return strings.TrimSuffix(sourcePath, suffix)
	}
}

// PathArg is the common ArgsFunc that passes the path as the only argument.
func PathArg(path string) []string {
	return []string{path}
}
