package registry

import (
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"coderun/internal/execution/profile"
	appErr "coderun/pkg/errors"
)

// Spec is the config form of a language profile. Command templates are
// split like a shell command line and may reference:
//
//	{src}  the path the command operates on (source or binary)
//	{bin}  same as {src}; reads better in run templates of compiled languages
//	{out}  the derived binary path (compile templates only)
//	{dir}  directory of the path
//	{name} base name of the path
//
// A run template starting with {bin} executes the derived binary directly.
type Spec struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	SourceFile   string `yaml:"sourceFile"`
	SourceSuffix string `yaml:"sourceSuffix"`
	CompileCmd   string `yaml:"compileCmd"`
	RunCmd       string `yaml:"runCmd"`
}

// FromSpec converts a config entry into a language profile.
func FromSpec(spec Spec) (profile.Language, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return profile.Language{}, appErr.ValidationError("language_id", "required")
	}
	lang := profile.Language{
		ID:         spec.ID,
		Name:       spec.Name,
		SourceFile: spec.SourceFile,
	}
	if lang.Name == "" {
		lang.Name = spec.ID
	}

	if strings.TrimSpace(spec.CompileCmd) != "" {
		if spec.SourceSuffix == "" {
			return profile.Language{}, appErr.Newf(appErr.InvalidLanguageSpec, "language %s: sourceSuffix is required when compileCmd is set", spec.ID)
		}
		binaryPath := profile.TrimSuffix(spec.SourceSuffix)
		command, args, err := parseTemplate(spec.CompileCmd, binaryPath)
		if err != nil {
			return profile.Language{}, appErr.Wrapf(err, appErr.InvalidLanguageSpec, "language %s: parse compileCmd failed", spec.ID)
		}
		lang.NeedsCompilation = true
		lang.CompileCommand = command
		lang.CompileArgs = args
		lang.BinaryPath = binaryPath
	}

	if strings.TrimSpace(spec.RunCmd) == "" {
		if !lang.NeedsCompilation {
			return profile.Language{}, appErr.Newf(appErr.InvalidLanguageSpec, "language %s: runCmd is required", spec.ID)
		}
		spec.RunCmd = "{bin}"
	}
	command, args, err := parseTemplate(spec.RunCmd, lang.BinaryPath)
	if err != nil {
		return profile.Language{}, appErr.Wrapf(err, appErr.InvalidLanguageSpec, "language %s: parse runCmd failed", spec.ID)
	}
	if command == "{bin}" || command == "{src}" {
		command = ""
	}
	lang.RunCommand = command
	lang.RunArgs = args

	if err := lang.Validate(); err != nil {
		return profile.Language{}, err
	}
	return lang, nil
}

// FromSpecs converts a list of config entries, stopping at the first invalid one.
func FromSpecs(specs []Spec) ([]profile.Language, error) {
	out := make([]profile.Language, 0, len(specs))
	for _, spec := range specs {
		lang, err := FromSpec(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, lang)
	}
	return out, nil
}

func parseTemplate(tpl string, binaryPath profile.PathFunc) (string, profile.ArgsFunc, error) {
	fields, err := shlex.Split(tpl)
	if err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty")
	}
	command := fields[0]
	rest := fields[1:]
	args := func(path string) []string {
		out := make([]string, 0, len(rest))
		for _, field := range rest {
			out = append(out, expand(field, path, binaryPath))
		}
		return out
	}
	return command, args, nil
}

func expand(field, path string, binaryPath profile.PathFunc) string {
	replacer := strings.NewReplacer(
		"{src}", path,
		"{bin}", path,
		"{dir}", filepath.Dir(path),
		"{name}", filepath.Base(path),
	)
	field = replacer.Replace(field)
	if strings.Contains(field, "{out}") && binaryPath != nil {
		field = strings.ReplaceAll(field, "{out}", binaryPath(path))
	}
	return field
}
