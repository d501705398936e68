package progress

import (
	"fmt"
	"io"
	"iter"
	"os"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Bar is a progress counter with an optional terminal rendering.
//
// The counter is always maintained, so N is exact even for a disabled bar.
// Rendering is delegated to progressbar.
type Bar struct {
	n      atomic.Int64
	total  int64
	desc   string
	unit   string
	scale  bool
	div    int
	writer io.Writer
	hidden bool

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	closed  bool
	console *Console
}

// Option configures a Bar.
type Option func(*Bar)

// WithDescription sets the label shown before the bar.
func WithDescription(desc string) Option {
	return func(b *Bar) { b.desc = desc }
}

// WithTotal sets the expected count. A negative total renders a spinner.
func WithTotal(total int64) Option {
	return func(b *Bar) { b.total = total }
}

// WithUnit sets the display unit, e.g. "docs" or "B".
func WithUnit(unit string) Option {
	return func(b *Bar) { b.unit = unit }
}

// WithUnitScale enables human-readable scaling of the counter.
func WithUnitScale(scale bool) Option {
	return func(b *Bar) { b.scale = scale }
}

// WithUnitDivisor sets the divisor for unit scaling (1000 or 1024).
func WithUnitDivisor(div int) Option {
	return func(b *Bar) { b.div = div }
}

// WithWriter sets where the bar renders. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(b *Bar) { b.writer = w }
}

// Disabled turns off rendering. The counter still advances.
func Disabled() Option {
	return func(b *Bar) { b.hidden = true }
}

// New creates a bar.
func New(opts ...Option) *Bar {
	b := &Bar{
		total:  -1,
		div:    1000,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(b)
	}
	if !b.hidden {
		b.bar = progressbar.NewOptions64(b.total, b.renderOptions()...)
	}
	return b
}

func (b *Bar) renderOptions() []progressbar.Option {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(b.desc),
		progressbar.OptionSetWriter(b.writer),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(b.writer) }),
	}
	switch {
	case b.scale && b.unit == "B":
		opts = append(opts,
			progressbar.OptionShowBytes(true),
			progressbar.OptionUseIECUnits(b.div == 1024),
		)
	case b.unit != "":
		opts = append(opts,
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString(b.unit),
		)
	}
	return opts
}

// Update advances the counter by n.
func (b *Bar) Update(n int64) {
	b.n.Add(n)
	if b.bar != nil {
		//nolint:errcheck // rendering errors are not critical
		b.bar.Add64(n)
	}
}

// Set moves the counter to n.
func (b *Bar) Set(n int64) {
	b.n.Store(n)
	if b.bar != nil {
		//nolint:errcheck // rendering errors are not critical
		b.bar.Set64(n)
	}
}

// N returns the current count.
func (b *Bar) N() int64 { return b.n.Load() }

// Write prints msg on its own line above the bar.
func (b *Bar) Write(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bar == nil || b.closed {
		fmt.Fprintln(b.writer, msg)
		return
	}
	//nolint:errcheck // rendering errors are not critical
	b.bar.Clear()
	fmt.Fprintln(b.writer, msg)
	//nolint:errcheck // rendering errors are not critical
	b.bar.RenderBlank()
}

// Close finishes the bar. It is safe to call more than once.
func (b *Bar) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.console != nil {
		b.console.detach(b)
	}
	if b.bar == nil {
		return nil
	}
	if b.total < 0 {
		return b.bar.Exit()
	}
	return b.bar.Finish()
}

// Factory creates bars. Components that report progress take a Factory so the
// caller decides whether bars render.
type Factory func(opts ...Option) *Bar

// NewFactory returns a Factory whose bars render to w when enabled and are
// disabled otherwise. If w is a *Console, a rendering bar takes over the
// console until it is closed.
func NewFactory(enabled bool, w io.Writer) Factory {
	console, _ := w.(*Console)
	if console != nil {
		w = console.w
	}
	return func(opts ...Option) *Bar {
		base := []Option{WithWriter(w)}
		if !enabled {
			base = append(base, Disabled())
		}
		b := New(append(base, opts...)...)
		if console != nil && b.bar != nil {
			console.attach(b)
		}
		return b
	}
}

// NoBars is a Factory that only counts.
func NoBars(opts ...Option) *Bar {
	return New(append(opts, Disabled())...)
}

// Iterate yields the elements of seq and advances bar by one per element.
// The bar is closed when iteration ends, including when the consumer stops early.
func Iterate[T any](seq iter.Seq[T], bar *Bar) iter.Seq[T] {
	return func(yield func(T) bool) {
		defer bar.Close()
		for v := range seq {
			if !yield(v) {
				return
			}
			bar.Update(1)
		}
	}
}

// Iterate2 is Iterate for two-value sequences.
func Iterate2[K, V any](seq iter.Seq2[K, V], bar *Bar) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		defer bar.Close()
		for k, v := range seq {
			if !yield(k, v) {
				return
			}
			bar.Update(1)
		}
	}
}
