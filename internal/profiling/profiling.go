// Package profiling records CPU, wall-clock or execution trace profiles of a
// command run, or streams them to a Pyroscope server.
package profiling

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strings"
	"time"

	"github.com/felixge/fgprof"
	"github.com/grafana/pyroscope-go"
)

// Kind selects the local profile type.
type Kind string

// Profile kinds.
const (
	CPU   Kind = "cpu"
	FG    Kind = "fgprof"
	Trace Kind = "trace"
	None  Kind = "none"
)

// minFGDuration covers a few fgprof sample intervals (99 Hz).
const minFGDuration = 50 * time.Millisecond

// Kinds lists the valid profile kinds.
var Kinds = []Kind{CPU, FG, Trace, None}

// ParseKind parses a profile kind case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(s))
	for _, valid := range Kinds {
		if k == valid {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid profile %q (expected cpu, fgprof, trace, none)", s)
}

// Options configures Start.
type Options struct {
	Kind Kind
	// Dir receives the profile files.
	Dir string
	// Label is included in file names and sent as a Pyroscope tag.
	Label string
	// PyroscopeURL streams profiles to this server instead of writing them
	// locally. Credentials are read from PYROSCOPE_BASIC_AUTH_USER and
	// PYROSCOPE_BASIC_AUTH_PASSWORD.
	PyroscopeURL string
}

// Start begins profiling. The returned function stops it and writes the
// profile, plus a heap profile for local runs.
func Start(opts Options) (func() error, error) {
	if opts.PyroscopeURL != "" {
		return startPyroscope(opts)
	}
	if opts.Kind == None || opts.Kind == "" {
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create profile output dir: %w", err)
	}
	label := sanitizeLabel(opts.Label) + "_" + time.Now().UTC().Format("20060102T150405Z")

	stop, err := startProfile(opts.Kind, opts.Dir, label)
	if err != nil {
		return nil, err
	}
	return func() error {
		return errors.Join(stop(), writeHeapProfile(opts.Dir, label))
	}, nil
}

func startPyroscope(opts Options) (func() error, error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   "nasty-data",
		ServerAddress:     opts.PyroscopeURL,
		BasicAuthUser:     os.Getenv("PYROSCOPE_BASIC_AUTH_USER"),
		BasicAuthPassword: os.Getenv("PYROSCOPE_BASIC_AUTH_PASSWORD"),
		UploadRate:        5 * time.Second,
		Tags: map[string]string{
			"command": sanitizeLabel(opts.Label),
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	return profiler.Stop, nil
}

func startProfile(kind Kind, outDir, label string) (func() error, error) {
	switch kind {
	case CPU:
		f, err := os.Create(filepath.Join(outDir, "cpu_"+label+".pprof"))
		if err != nil {
			return nil, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		return func() error {
			pprof.StopCPUProfile()
			return f.Close()
		}, nil
	case FG:
		f, err := os.Create(filepath.Join(outDir, "fgprof_"+label+".pprof"))
		if err != nil {
			return nil, err
		}
		started := time.Now()
		stop := fgprof.Start(f, fgprof.FormatPprof)
		return func() error {
			// fgprof cannot export a profile that holds no sample.
			if wait := minFGDuration - time.Since(started); wait > 0 {
				time.Sleep(wait)
			}
			return errors.Join(stop(), f.Close())
		}, nil
	case Trace:
		f, err := os.Create(filepath.Join(outDir, "trace_"+label+".out"))
		if err != nil {
			return nil, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			return nil, err
		}
		return func() error {
			trace.Stop()
			return f.Close()
		}, nil
	default:
		return nil, fmt.Errorf("unknown profile type: %s", kind)
	}
}

func writeHeapProfile(outDir, label string) error {
	f, err := os.Create(filepath.Join(outDir, "heap_"+label+".pprof"))
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

func sanitizeLabel(value string) string {
	if value == "" {
		return "run"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
