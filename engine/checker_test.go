package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/wippyai/wasm-wat/wat"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{}
	if cfg.MemoryLimitPages != 0 {
		t.Errorf("expected default MemoryLimitPages 0, got %d", cfg.MemoryLimitPages)
	}
	if cfg.Compiler {
		t.Error("expected interpreter by default")
	}
}

func TestNewCheckerWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{Compiler: true}, "compiler"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := NewCheckerWithConfig(ctx, tc.cfg)
			defer c.Close(ctx)

			if c.runtime == nil {
				t.Error("checker runtime should not be nil")
			}
		})
	}
}

func TestCheck(t *testing.T) {
	ctx := context.Background()
	c := NewChecker(ctx)
	defer c.Close(ctx)

	tests := []struct {
		name string
		wat  string
		err  string
	}{
		{"empty", "(module)", ""},
		{"add", `(module (func (export "add") (param i32 i32) (result i32) (i32.add (local.get 0) (local.get 1))))`, ""},
		{"memory and data", `(module (memory 1) (data (i32.const 0) "hi"))`, ""},
		{"result type mismatch", "(module (func (result i32) (i64.const 0)))", "compile failed"},
		{"stack underflow", "(module (func i32.add drop))", "compile failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, err := wat.Compile(tt.wat)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			err = c.Check(ctx, bin)
			if tt.err == "" {
				if err != nil {
					t.Errorf("Check failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Errorf("expected error containing %q, got %v", tt.err, err)
			}
		})
	}
}

func TestCheck_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	c := NewCheckerWithConfig(ctx, &Config{MemoryLimitPages: 1})
	defer c.Close(ctx)

	tests := []struct {
		name string
		wat  string
		err  string
	}{
		{"within_limit", "(module (memory 1 1))", ""},
		{"no_max", "(module (memory 1))", ""},
		{"max_over", "(module (memory 1 4))", "max 4 pages over limit of 1 pages"},
		{"min_over", "(module (memory 2))", "over limit of 1 pages"},
		{"imported_max_over", `(module (import "env" "mem" (memory 1 2)))`, "memory 0: max 2 pages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bin, err := wat.Compile(tt.wat)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			err = c.Check(ctx, bin)
			if tt.err == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Errorf("expected error containing %q, got %v", tt.err, err)
			}
		})
	}
}

func TestCheck_Closed(t *testing.T) {
	ctx := context.Background()
	c := NewChecker(ctx)
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(ctx); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := c.Check(ctx, []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}); err == nil {
		t.Error("expected closed checker to fail")
	}
}

func TestDefault(t *testing.T) {
	if Default() != Default() {
		t.Error("Default should return the same checker")
	}
	if err := Default().Check(context.Background(), []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}); err != nil {
		t.Errorf("empty module rejected: %v", err)
	}
}
