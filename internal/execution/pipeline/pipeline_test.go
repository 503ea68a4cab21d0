package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"coderun/internal/execution/process"
	"coderun/internal/execution/profile"
	"coderun/internal/execution/registry"
	"coderun/internal/execution/result"
	appErr "coderun/pkg/errors"
)

type spawnCall struct {
	command string
	args    []string
}

type fakeScript struct {
	stdout   []string
	stderr   []string
	exitCode int
	// echo copies stdin to stdout after stdin is closed.
	echo bool
	// hold keeps the process alive until released.
	hold chan struct{}
}

type fakeStdin struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	closes int
	closed chan struct{}
}

func (s *fakeStdin) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *fakeStdin) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closes == 1 {
		close(s.closed)
	}
	return nil
}

type fakeProcess struct {
	pid      int
	stdin    *fakeStdin
	stdout   chan []byte
	stderr   chan []byte
	done     chan struct{}
	exitCode int
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Stdin() io.WriteCloser { return p.stdin }

func (p *fakeProcess) Stdout() <-chan []byte { return p.stdout }

func (p *fakeProcess) Stderr() <-chan []byte { return p.stderr }

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) ExitCode() int { return p.exitCode }

type fakeSpawner struct {
	mu       sync.Mutex
	calls    []spawnCall
	scripts  map[string]fakeScript
	spawnErr map[string]error
	procs    []*fakeProcess
	nextPid  int
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		scripts:  make(map[string]fakeScript),
		spawnErr: make(map[string]error),
		nextPid:  1000,
	}
}

func (f *fakeSpawner) Spawn(ctx context.Context, command string, args []string) (process.Process, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spawnCall{command: command, args: append([]string(nil), args...)})
	if err := f.spawnErr[command]; err != nil {
		f.mu.Unlock()
		return nil, err
	}
	script := f.scripts[command]
	f.nextPid++
	proc := &fakeProcess{
		pid:      f.nextPid,
		stdin:    &fakeStdin{closed: make(chan struct{})},
		stdout:   make(chan []byte),
		stderr:   make(chan []byte),
		done:     make(chan struct{}),
		exitCode: script.exitCode,
	}
	f.procs = append(f.procs, proc)
	f.mu.Unlock()

	go func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			defer close(proc.stdout)
			for _, chunk := range script.stdout {
				proc.stdout <- []byte(chunk)
			}
			if script.echo {
				<-proc.stdin.closed
				proc.stdin.mu.Lock()
				data := append([]byte(nil), proc.stdin.buf.Bytes()...)
				proc.stdin.mu.Unlock()
				proc.stdout <- data
			}
		}()
		go func() {
			defer wg.Done()
			defer close(proc.stderr)
			for _, chunk := range script.stderr {
				proc.stderr <- []byte(chunk)
			}
		}()
		wg.Wait()
		if script.hold != nil {
			<-script.hold
		}
		close(proc.done)
	}()
	return proc, nil
}

func (f *fakeSpawner) spawnCalls() []spawnCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]spawnCall(nil), f.calls...)
}

type fixedMemory struct {
	mu       sync.Mutex
	readings map[int][]uint64
	calls    map[int]int
}

func (m *fixedMemory) ResidentMemory(pid int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[int]int)
	}
	idx := m.calls[pid]
	m.calls[pid]++
	values := m.readings[pid]
	if idx >= len(values) {
		return 0, os.ErrNotExist
	}
	return values[idx], nil
}

type recordingReporter struct {
	mu      sync.Mutex
	updates []StatusUpdate
}

func (r *recordingReporter) ReportStatus(ctx context.Context, update StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update)
	return nil
}

func (r *recordingReporter) states() []result.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]result.State, 0, len(r.updates))
	for _, u := range r.updates {
		out = append(out, u.State)
	}
	return out
}

func testLanguages() []profile.Language {
	return []profile.Language{
		{ID: "python", RunCommand: "python3", RunArgs: profile.PathArg},
		{
			ID:               "cpp",
			NeedsCompilation: true,
			CompileCommand:   "g++",
			CompileArgs: func(src string) []string {
				return []string{src, "-o", strings.TrimSuffix(src, ".cpp")}
			},
			BinaryPath: profile.TrimSuffix(".cpp"),
		},
	}
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func newTestPipeline(t *testing.T, spawner process.Spawner, memory *fixedMemory, reporter StatusReporter) *Pipeline {
	t.Helper()
	reg, err := registry.New(testLanguages()...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if memory == nil {
		memory = &fixedMemory{}
	}
	p, err := New(Config{
		Resolver:       reg,
		Spawner:        spawner,
		MemoryReader:   memory,
		SampleInterval: time.Millisecond,
		Reporter:       reporter,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestInterpretedLanguageSpawnsOnce(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["python3"] = fakeScript{echo: true, stderr: []string{"warn\n"}}
	reporter := &recordingReporter{}
	p := newTestPipeline(t, spawner, nil, reporter)
	src := writeSource(t, "script.py", "print(sum(map(int, input().split())))\n")

	res, err := p.Execute(context.Background(), Request{RunID: "r1", LanguageID: "python", SourcePath: src, Stdin: []byte("3 4")})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	calls := spawner.spawnCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one spawn, got %d", len(calls))
	}
	if calls[0].command != "python3" || !reflect.DeepEqual(calls[0].args, []string{src}) {
		t.Fatalf("unexpected invocation: %+v", calls[0])
	}
	if string(res.Stdout) != "3 4" || string(res.Stderr) != "warn\n" {
		t.Fatalf("unexpected streams: %q %q", res.Stdout, res.Stderr)
	}
	if spawner.procs[0].stdin.closes != 1 {
		t.Fatalf("stdin must be closed exactly once, got %d", spawner.procs[0].stdin.closes)
	}
	want := []result.State{result.StateRunning, result.StateCompleted}
	if got := reporter.states(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
	if res.RunID != "r1" || res.Language != "python" {
		t.Fatalf("unexpected identity: %+v", res)
	}
}

func TestCompileFailureNeverRuns(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["g++"] = fakeScript{exitCode: 1, stderr: []string{"script.cpp:1: error: ", "expected ';'\n"}}
	reporter := &recordingReporter{}
	p := newTestPipeline(t, spawner, nil, reporter)
	src := writeSource(t, "script.cpp", "int main( {")

	_, err := p.Execute(context.Background(), Request{LanguageID: "cpp", SourcePath: src})
	if !appErr.Is(err, appErr.CompilationError) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if code, _ := appErr.Detail(err, "exit_code"); code != 1 {
		t.Fatalf("expected exit_code detail 1, got %v", code)
	}
	if stderr, _ := appErr.Detail(err, "stderr"); stderr != "script.cpp:1: error: expected ';'\n" {
		t.Fatalf("unexpected stderr detail: %v", stderr)
	}
	if len(spawner.spawnCalls()) != 1 {
		t.Fatalf("run stage must not be spawned after compile failure")
	}
	want := []result.State{result.StateCompiling, result.StateFailed}
	if got := reporter.states(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestCompileFailureWithoutStderr(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["g++"] = fakeScript{exitCode: 4}
	p := newTestPipeline(t, spawner, nil, nil)
	src := writeSource(t, "script.cpp", "")

	_, err := p.Execute(context.Background(), Request{LanguageID: "cpp", SourcePath: src})
	if err == nil || err.Error() != "Compilation process exited with code 4" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompiledLanguageRunsDerivedBinary(t *testing.T) {
	spawner := newFakeSpawner()
	src := writeSource(t, "script.cpp", "int main() {}")
	bin := strings.TrimSuffix(src, ".cpp")
	spawner.scripts["g++"] = fakeScript{stdout: []string{"note\n"}}
	spawner.scripts[bin] = fakeScript{stdout: []string{"ok\n"}}
	reporter := &recordingReporter{}
	p := newTestPipeline(t, spawner, nil, reporter)

	res, err := p.Execute(context.Background(), Request{LanguageID: "cpp", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	calls := spawner.spawnCalls()
	if len(calls) != 2 {
		t.Fatalf("expected compile and run, got %d spawns", len(calls))
	}
	if calls[1].command != bin || len(calls[1].args) != 0 {
		t.Fatalf("unexpected run invocation: %+v", calls[1])
	}
	if string(res.Stdout) != "ok\n" {
		t.Fatalf("compile stdout must not leak into result: %q", res.Stdout)
	}
	want := []result.State{result.StateCompiling, result.StateRunning, result.StateCompleted}
	if got := reporter.states(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestWallTimeExcludesCompilation(t *testing.T) {
	spawner := newFakeSpawner()
	src := writeSource(t, "script.cpp", "int main() {}")
	hold := make(chan struct{})
	spawner.scripts["g++"] = fakeScript{hold: hold}
	p := newTestPipeline(t, spawner, nil, nil)
	go func() {
		time.Sleep(200 * time.Millisecond)
		close(hold)
	}()

	res, err := p.Execute(context.Background(), Request{LanguageID: "cpp", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.WallTimeMs < 0 || res.WallTimeMs >= 200 {
		t.Fatalf("wall time must cover the run stage only, got %f", res.WallTimeMs)
	}
}

func TestPeakIsMaxOfSamples(t *testing.T) {
	spawner := newFakeSpawner()
	hold := make(chan struct{})
	spawner.scripts["python3"] = fakeScript{hold: hold}
	memory := &fixedMemory{readings: map[int][]uint64{1001: {4096, 12288, 8192}}}
	p := newTestPipeline(t, spawner, memory, nil)
	src := writeSource(t, "script.py", "pass\n")
	go func() {
		time.Sleep(100 * time.Millisecond)
		close(hold)
	}()

	res, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.PeakMemoryBytes != 12288 {
		t.Fatalf("expected peak 12288, got %d", res.PeakMemoryBytes)
	}
}

func TestArtifactSizeIsStatAtAssembly(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["python3"] = fakeScript{}
	p := newTestPipeline(t, spawner, nil, nil)
	src := writeSource(t, "script.py", "print('hello')\n")

	res, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	info, _ := os.Stat(src)
	if res.ArtifactSizeBytes != info.Size() {
		t.Fatalf("expected size %d, got %d", info.Size(), res.ArtifactSizeBytes)
	}
}

func TestMissingArtifactIsIOFailure(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["python3"] = fakeScript{}
	reporter := &recordingReporter{}
	p := newTestPipeline(t, spawner, nil, reporter)

	_, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: filepath.Join(t.TempDir(), "missing.py")})
	if !appErr.Is(err, appErr.IOFailure) {
		t.Fatalf("expected IOFailure, got %v", err)
	}
	want := []result.State{result.StateRunning, result.StateFailed}
	if got := reporter.states(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestUnknownLanguageSpawnsNothing(t *testing.T) {
	spawner := newFakeSpawner()
	reporter := &recordingReporter{}
	p := newTestPipeline(t, spawner, nil, reporter)

	_, err := p.Execute(context.Background(), Request{LanguageID: "cobol", SourcePath: "/nonexistent"})
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected LanguageNotSupported, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Unsupported language") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	if len(spawner.spawnCalls()) != 0 {
		t.Fatalf("unknown language must not spawn")
	}
	if got := reporter.states(); !reflect.DeepEqual(got, []result.State{result.StateFailed}) {
		t.Fatalf("unexpected transitions: %v", got)
	}
}

func TestSpawnFailureAbortsRun(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.spawnErr["python3"] = appErr.New(appErr.SpawnFailure).WithMessage("start python3 failed")
	p := newTestPipeline(t, spawner, nil, nil)
	src := writeSource(t, "script.py", "")

	_, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src})
	if !appErr.Is(err, appErr.SpawnFailure) {
		t.Fatalf("expected SpawnFailure, got %v", err)
	}
}

func TestNonZeroExitIsData(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["python3"] = fakeScript{exitCode: 137, stdout: []string{"partial"}}
	p := newTestPipeline(t, spawner, nil, nil)
	src := writeSource(t, "script.py", "")

	res, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src})
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if res.ExitCode != 137 || string(res.Stdout) != "partial" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPerRequestReporter(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["python3"] = fakeScript{}
	global := &recordingReporter{}
	local := &recordingReporter{}
	p := newTestPipeline(t, spawner, nil, global)
	src := writeSource(t, "script.py", "")

	if _, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src, Reporter: local}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !reflect.DeepEqual(global.states(), local.states()) || len(local.states()) != 2 {
		t.Fatalf("both reporters should see every transition: %v %v", global.states(), local.states())
	}
}

func TestConcurrentExecutionsAreIsolated(t *testing.T) {
	spawner := newFakeSpawner()
	spawner.scripts["python3"] = fakeScript{echo: true}
	p := newTestPipeline(t, spawner, nil, nil)
	src := writeSource(t, "script.py", "")

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := fmt.Sprintf("payload-%d", i)
			res, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src, Stdin: []byte(payload)})
			if err != nil {
				errs <- err
				return
			}
			if string(res.Stdout) != payload {
				errs <- fmt.Errorf("request %d got %q", i, res.Stdout)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("isolation violated: %v", err)
	}
}

func shellPipeline(t *testing.T) *Pipeline {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	reg, err := registry.New(
		profile.Language{ID: "sh", RunCommand: "sh", RunArgs: profile.PathArg},
		profile.Language{
			ID:               "shc",
			NeedsCompilation: true,
			CompileCommand:   "cp",
			CompileArgs: func(src string) []string {
				return []string{src, strings.TrimSuffix(src, ".shc") + ".sh"}
			},
			BinaryPath: func(src string) string { return strings.TrimSuffix(src, ".shc") + ".sh" },
			RunCommand: "sh",
			RunArgs:    profile.PathArg,
		},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p, err := New(Config{Resolver: reg, SampleInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func TestRealProcessSumsInput(t *testing.T) {
	p := shellPipeline(t)
	src := writeSource(t, "script.sh", "read a b\necho $((a + b))\n")

	res, err := p.Execute(context.Background(), Request{LanguageID: "sh", SourcePath: src, Stdin: []byte("3 4\n")})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Stdout) != "7\n" || res.ExitCode != 0 {
		t.Fatalf("unexpected result: %q exit=%d", res.Stdout, res.ExitCode)
	}
	if res.ArtifactSizeBytes != int64(len("read a b\necho $((a + b))\n")) {
		t.Fatalf("unexpected artifact size: %d", res.ArtifactSizeBytes)
	}
}

func TestRealProcessKilledStillYieldsResult(t *testing.T) {
	p := shellPipeline(t)
	src := writeSource(t, "script.sh", "echo before\nkill -9 $$\n")

	res, err := p.Execute(context.Background(), Request{LanguageID: "sh", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.ExitCode != 137 || string(res.Stdout) != "before\n" {
		t.Fatalf("unexpected result: %q exit=%d", res.Stdout, res.ExitCode)
	}
}

func TestRealProcessSamplesMemory(t *testing.T) {
	p := shellPipeline(t)
	if p.memory == nil {
		t.Skip("proc filesystem unavailable")
	}
	src := writeSource(t, "script.sh", "sleep 0.3\n")

	res, err := p.Execute(context.Background(), Request{LanguageID: "sh", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.PeakMemoryBytes == 0 {
		t.Fatalf("expected a non-zero memory peak for a 300ms process")
	}
	if res.WallTimeMs < 250 {
		t.Fatalf("expected wall time near 300ms, got %f", res.WallTimeMs)
	}
}

func TestRealCompileStage(t *testing.T) {
	p := shellPipeline(t)
	src := writeSource(t, "script.shc", "echo compiled\n")

	res, err := p.Execute(context.Background(), Request{LanguageID: "shc", SourcePath: src})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Stdout) != "compiled\n" {
		t.Fatalf("unexpected stdout: %q", res.Stdout)
	}

	_, err = p.Execute(context.Background(), Request{LanguageID: "shc", SourcePath: filepath.Join(t.TempDir(), "missing.shc")})
	if !appErr.Is(err, appErr.CompilationError) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
}

func TestRealPythonScenario(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	p, err := New(Config{Resolver: registry.Default()})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	src := writeSource(t, "script.py", "print(sum(map(int, input().split())))\n")

	res, err := p.Execute(context.Background(), Request{LanguageID: "python", SourcePath: src, Stdin: []byte("3 4")})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Stdout) != "7\n" || res.ExitCode != 0 || len(res.Stderr) != 0 {
		t.Fatalf("unexpected result: %q %q exit=%d", res.Stdout, res.Stderr, res.ExitCode)
	}
}

func TestRealCppCompileError(t *testing.T) {
	if _, err := exec.LookPath("g++"); err != nil {
		t.Skip("g++ not available")
	}
	p, err := New(Config{Resolver: registry.Default()})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	src := writeSource(t, "script.cpp", "int main( {")

	_, err = p.Execute(context.Background(), Request{LanguageID: "cpp", SourcePath: src})
	if !appErr.Is(err, appErr.CompilationError) {
		t.Fatalf("expected CompilationError, got %v", err)
	}
	if code, _ := appErr.Detail(err, "exit_code"); code == 0 {
		t.Fatalf("expected non-zero compiler exit")
	}
	if _, statErr := os.Stat(strings.TrimSuffix(src, ".cpp")); statErr == nil {
		t.Fatalf("binary must not exist after failed compile")
	}
}

func TestRealCompiledBinaryFromWorkingDirectory(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	reg, err := registry.New(profile.Language{
		ID:               "shx",
		NeedsCompilation: true,
		CompileCommand:   "sh",
		CompileArgs: func(src string) []string {
			return []string{"-c", `cp "$0" "$1" && chmod +x "$1"`, src, strings.TrimSuffix(src, ".shx")}
		},
		BinaryPath: profile.TrimSuffix(".shx"),
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p, err := New(Config{Resolver: reg})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	// "script" is also a util-linux program on PATH.
	testChdir(t, t.TempDir())
	if err := os.WriteFile("script.shx", []byte("#!/bin/sh\necho ran-compiled\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := p.Execute(ctx, Request{LanguageID: "shx", SourcePath: "script.shx"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Stdout) != "ran-compiled\n" || res.ExitCode != 0 {
		t.Fatalf("expected the compiled binary to run, got %q exit=%d", res.Stdout, res.ExitCode)
	}
}

func TestRealCppBareSourceName(t *testing.T) {
	if _, err := exec.LookPath("g++"); err != nil {
		t.Skip("g++ not available")
	}
	p, err := New(Config{Resolver: registry.Default()})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	testChdir(t, t.TempDir())
	src := "#include <cstdio>\nint main() { std::puts(\"ran-compiled\"); }\n"
	if err := os.WriteFile("script.cpp", []byte(src), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	res, err := p.Execute(ctx, Request{LanguageID: "cpp", SourcePath: "script.cpp"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(res.Stdout) != "ran-compiled\n" {
		t.Fatalf("expected the compiled binary to run, got %q", res.Stdout)
	}
}

// testChdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
