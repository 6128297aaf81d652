package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	wasmwat "github.com/wippyai/wasm-wat"
	"github.com/wippyai/wasm-wat/config"
	"github.com/wippyai/wasm-wat/engine"
	"github.com/wippyai/wasm-wat/names"
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat"
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

func main() {
	var (
		inFile      = flag.String("in", "", "Input file (.wat or .wasm, detected by content)")
		outFile     = flag.String("out", "", "Output file (default stdout)")
		configFile  = flag.String("config", "", "YAML options file")
		list        = flag.Bool("list", false, "List functions and exit")
		interactive = flag.Bool("i", false, "Interactive function browser")
		verbose     = flag.Bool("v", false, "Debug logging to stderr")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: wasmwat -in <file> [-out file] [-config opts.yaml]")
		fmt.Fprintln(os.Stderr, "       wasmwat -in <file> -list")
		fmt.Fprintln(os.Stderr, "       wasmwat -in <file> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			wasmwat.SetLogger(logger)
			wasm.SetLogger(logger.Named("wasm"))
			wat.SetLogger(logger.Named("wat"))
			names.SetLogger(logger.Named("names"))
			engine.SetLogger(logger.Named("engine"))
			defer func() { _ = logger.Sync() }()
		}
	}

	opts, err := loadOptions(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*inFile, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*inFile, *outFile, opts, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadOptions(path string) (config.Options, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return config.Options{}, fmt.Errorf("read config: %w", err)
		}
	}
	return config.Load(data, os.LookupEnv)
}

func isBinary(data []byte) bool {
	return bytes.HasPrefix(data, wasmMagic)
}

// load decodes the input file in whichever format it holds.
func load(path string, opts config.Options) (*wasmwat.Module, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	if isBinary(data) {
		h, err := wasmwat.BinaryToModule(path, data, opts.DecodeConfig())
		return h, true, err
	}
	h, err := wasmwat.TextToModule(path, string(data), opts.DecodeConfig())
	return h, false, err
}

func run(inFile, outFile string, opts config.Options, listOnly bool) error {
	h, binary, err := load(inFile, opts)
	if err != nil {
		return err
	}
	defer h.Close()

	if listOnly {
		funcs, err := wasmwat.ListFunctions(h)
		if err != nil {
			return err
		}
		styled := outFile == "" && term.IsTerminal(int(os.Stdout.Fd()))
		return writeOutput(outFile, []byte(renderFunctions(funcs, styled)))
	}

	var out []byte
	if binary {
		text, err := wasmwat.ModuleToText(h, opts.EncodeConfig())
		if err != nil {
			return err
		}
		out = []byte(text)
	} else {
		out, err = wasmwat.ModuleToBinary(h, opts.EncodeConfig())
		if err != nil {
			return err
		}
		if outFile == "" && term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("refusing to write binary to a terminal, use -out")
		}
	}
	return writeOutput(outFile, out)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// displayName is the function name for listings, or its index comment.
func displayName(f wasmwat.FunctionSummary) string {
	if f.Name != "" {
		return "$" + f.Name
	}
	return fmt.Sprintf("(;%d;)", f.Index)
}

func matches(f wasmwat.FunctionSummary, filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(f.Name), strings.ToLower(filter))
}
