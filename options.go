package procspawn

import "time"

// StdioMode selects how a child's standard streams are wired up, per the
// stdio redirection table in the design notes.
type StdioMode int

const (
	// StdioInherit shares the parent's stdio file descriptors directly.
	StdioInherit StdioMode = iota
	// StdioNull discards the stream (reads return EOF, writes are dropped).
	StdioNull
	// StdioPiped captures the stream into an in-memory pipe the parent can
	// read after Join (spec.md §8 property 9, "stdio capture").
	StdioPiped
	// StdioPTY allocates a pseudo-terminal for the child, adapted from the
	// teacher's interactive relay (see pty.go); useful for child functions
	// that shell out to interactive tools.
	StdioPTY
)

// BacktraceResolution controls whether the child pays the cost of
// symbolicating its own backtrace before sending it, per spec.md §4.4.
type BacktraceResolution int

const (
	// BacktraceRaw captures {pc, file, line} only. Cheap; the default.
	BacktraceRaw BacktraceResolution = iota
	// BacktraceSymbolicated additionally records function names in the
	// child, as reported by runtime.CallersFrames, before sending. Costlier.
	BacktraceSymbolicated
)

// Config enumerates the options recognized by Spawn and by Pool workers.
// Spawn starts from defaultConfig (backtraces captured, raw resolution, a
// 5s KillGracePeriod, library enumeration on) and applies options over it;
// the zero Config is not that default.
type Config struct {
	// Args overrides the child's argv (argv[0] is always the re-exec'd
	// binary path; Args replaces everything after it).
	Args []string

	// Env overrides/extends the child's environment. When nil, the child
	// inherits the parent's environment (minus the marker variable, which
	// is always stripped before user code runs).
	Env []string

	Stdin  StdioMode
	Stdout StdioMode
	Stderr StdioMode

	// CaptureBacktraces enables backtrace capture on child panic.
	CaptureBacktraces bool

	// BacktraceResolution controls symbolication cost when backtraces are
	// captured.
	BacktraceResolution BacktraceResolution

	// KillGracePeriod bounds how long a pool worker is given to exit on its
	// own (WorkerProcess.WaitBounded) before it is forcibly killed. A
	// one-shot JoinHandle does not use it.
	KillGracePeriod time.Duration

	// EnumerateLibraries controls whether Spawn validates function tokens
	// against the full loaded-object table (safe, default) or emits a
	// main-executable-only offset and skips enumeration (opt-out for
	// performance; requires AssertSpawnIsSafe to have been called).
	EnumerateLibraries bool
}

// Option mutates a Config. Functional options, the same shape the teacher
// threads flag-parsed values through (connect.go's New(command, args,
// dialURL, devID, WSModeR, exportEnvs)), generalized into composable
// options instead of one fixed parameter list.
type Option func(*Config)

// WithArgs overrides the child argv.
func WithArgs(args ...string) Option {
	return func(c *Config) { c.Args = args }
}

// WithEnv overrides/extends the child environment.
func WithEnv(env ...string) Option {
	return func(c *Config) { c.Env = env }
}

// WithStdio sets all three stdio modes at once.
func WithStdio(mode StdioMode) Option {
	return func(c *Config) { c.Stdin, c.Stdout, c.Stderr = mode, mode, mode }
}

// WithStdout sets only the stdout mode, leaving stdin/stderr untouched.
func WithStdout(mode StdioMode) Option {
	return func(c *Config) { c.Stdout = mode }
}

// WithStderr sets only the stderr mode.
func WithStderr(mode StdioMode) Option {
	return func(c *Config) { c.Stderr = mode }
}

// WithBacktraces enables or disables backtrace capture on child panic.
func WithBacktraces(enabled bool) Option {
	return func(c *Config) { c.CaptureBacktraces = enabled }
}

// WithBacktraceResolution sets the symbolication cost tradeoff.
func WithBacktraceResolution(r BacktraceResolution) Option {
	return func(c *Config) { c.BacktraceResolution = r }
}

// WithKillGracePeriod bounds how long a pool worker is given to exit on its
// own before it is forcibly killed.
func WithKillGracePeriod(d time.Duration) Option {
	return func(c *Config) { c.KillGracePeriod = d }
}

// WithoutLibraryEnumeration opts out of shared-library enumeration for
// performance. The caller must have called AssertSpawnIsSafe first, and
// must guarantee that no spawned function lives outside the main
// executable (spec.md §4.1's unsound escape hatch).
func WithoutLibraryEnumeration() Option {
	return func(c *Config) { c.EnumerateLibraries = false }
}

func defaultConfig() Config {
	return Config{
		CaptureBacktraces:   true,
		BacktraceResolution: BacktraceRaw,
		KillGracePeriod:     5 * time.Second,
		EnumerateLibraries:  true,
	}
}

func buildConfig(opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
