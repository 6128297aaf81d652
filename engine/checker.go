package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-wat/wasm"
)

// Checker compiles binary modules with wazero and reports whether the engine
// accepts them. It never instantiates anything.
type Checker struct {
	runtime  wazero.Runtime
	closed   atomic.Bool
	memLimit uint32
}

// Config holds configuration for checker creation
type Config struct {
	// MemoryLimitPages rejects modules with a memory whose minimum or declared
	// maximum exceeds this many 64KB pages. 0 means the wazero default
	// (65536 pages = 4GB).
	MemoryLimitPages uint32

	// Compiler selects wazero's optimizing compiler. The interpreter is used
	// otherwise, which compiles faster and checks the same rules.
	Compiler bool
}

// NewChecker creates a checker with the default configuration
func NewChecker(ctx context.Context) *Checker {
	return NewCheckerWithConfig(ctx, nil)
}

// NewCheckerWithConfig creates a checker with custom configuration
func NewCheckerWithConfig(ctx context.Context, cfg *Config) *Checker {
	runtimeCfg := wazero.NewRuntimeConfigInterpreter()
	var memLimit uint32
	if cfg != nil {
		if cfg.Compiler {
			runtimeCfg = wazero.NewRuntimeConfigCompiler()
		}
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
			memLimit = cfg.MemoryLimitPages
		}
	}
	runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2)

	return &Checker{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg), memLimit: memLimit}
}

// Check compiles bin and discards the result.
func (c *Checker) Check(ctx context.Context, bin []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("checker is closed")
	}
	if err := c.checkMemoryLimits(bin); err != nil {
		debugf("engine rejected module: %v", err)
		return err
	}
	compiled, err := c.runtime.CompileModule(ctx, bin)
	if err != nil {
		debugf("engine rejected module: %v", err)
		return fmt.Errorf("compile failed: %w", err)
	}
	Logger().Debug("engine accepted module",
		zap.Int("size", len(bin)),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return compiled.Close(ctx)
}

// checkMemoryLimits rejects declared maximums above the page limit, which
// wazero would otherwise cap silently. Undecodable input is left to the
// compiler to report.
func (c *Checker) checkMemoryLimits(bin []byte) error {
	if c.memLimit == 0 {
		return nil
	}
	d := wasm.Decoder{StopOnFirstError: true}
	m, err := d.Decode(bin)
	if err != nil {
		return nil
	}

	var limits []wasm.Limits
	for _, imp := range m.Imports {
		if imp.Desc.Kind == wasm.KindMemory && imp.Desc.Memory != nil {
			limits = append(limits, imp.Desc.Memory.Limits)
		}
	}
	for _, mem := range m.Memories {
		limits = append(limits, mem.Limits)
	}

	for i, l := range limits {
		if l.Min > c.memLimit {
			return fmt.Errorf("memory %d: min %d pages over limit of %d pages", i, l.Min, c.memLimit)
		}
		if l.Max != nil && *l.Max > c.memLimit {
			return fmt.Errorf("memory %d: max %d pages over limit of %d pages", i, *l.Max, c.memLimit)
		}
	}
	return nil
}

// Close releases the underlying runtime. Further checks fail.
func (c *Checker) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.runtime.Close(ctx)
}

var (
	defaultChecker *Checker
	defaultOnce    sync.Once
)

// Default returns a process-wide checker, built on first use. It is safe for
// concurrent use and is never closed.
func Default() *Checker {
	defaultOnce.Do(func() {
		defaultChecker = NewChecker(context.Background())
	})
	return defaultChecker
}
