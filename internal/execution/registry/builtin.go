package registry

import (
	"path/filepath"
	"strings"

	"coderun/internal/execution/profile"
)

// Builtin returns the languages available without any configuration.
func Builtin() []profile.Language {
	return []profile.Language{
		interpreted("python", "Python", "python3", "script.py"),
		interpreted("node", "Node.js", "node", "script.js"),
		interpreted("ruby", "Ruby", "ruby", "script.rb"),
		javaLanguage(),
		interpreted("perl", "Perl", "perl", "script.pl"),
		interpreted("php", "PHP", "php", "script.php"),
		native("c", "C", "gcc", "script.c", ".c", func(src string) []string {
			return []string{src, "-o", strings.TrimSuffix(src, ".c")}
		}),
		native("cpp", "C++", "g++", "script.cpp", ".cpp", func(src string) []string {
			return []string{src, "-o", strings.TrimSuffix(src, ".cpp")}
		}),
		native("go", "Go", "go", "script.go", ".go", func(src string) []string {
			return []string{"build", "-o", strings.TrimSuffix(src, ".go"), src}
		}),
		native("rust", "Rust", "rustc", "script.rs", ".rs", func(src string) []string {
			return []string{"-o", strings.TrimSuffix(src, ".rs"), src}
		}),
	}
}

func interpreted(id, name, command, sourceFile string) profile.Language {
	return profile.Language{
		ID:         id,
		Name:       name,
		SourceFile: sourceFile,
		RunCommand: command,
		RunArgs:    profile.PathArg,
	}
}

// native languages compile to an executable next to the source and run it directly.
func native(id, name, compiler, sourceFile, suffix string, compileArgs profile.ArgsFunc) profile.Language {
	return profile.Language{
		ID:               id,
		Name:             name,
		SourceFile:       sourceFile,
		NeedsCompilation: true,
		CompileCommand:   compiler,
		CompileArgs:      compileArgs,
		BinaryPath:       profile.TrimSuffix(suffix),
	}
}

// javaLanguage compiles with javac; the class is loaded from the source directory.
func javaLanguage() profile.Language {
	return profile.Language{
		ID:               "java",
		Name:             "Java",
		SourceFile:       "Main.java",
		RunCommand:       "java",
		RunArgs:          javaRunArgs,
		NeedsCompilation: true,
		CompileCommand:   "javac",
		CompileArgs:      profile.PathArg,
		BinaryPath:       profile.TrimSuffix(".java"),
	}
}

func javaRunArgs(classPath string) []string {
	return []string{"-cp", filepath.Dir(classPath), filepath.Base(classPath)}
}
