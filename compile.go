// Package basalt is the top-level entry point of the Basalt compiler: it
// turns a smart-contract source file into a textual MVIR module for the
// downstream VM toolchain.
package basalt

import (
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/mvir"
	"github.com/basalt-lang/basalt/bas/parser"
	"github.com/basalt-lang/basalt/bas/sema"
)

// PackageVersion is the compiler toolchain version.
const PackageVersion = "0.4.2"

// CompilerName prefixes the toolchain identity recorded in artifacts.
const CompilerName = "basaltc"

// Options carries per-compilation settings.
type Options struct {
	// CurrencyTypes lists user-defined type names flagged as currency.
	// Currency types always compile to resources.
	CurrencyTypes []string
}

// Result is a successful compilation.
type Result struct {
	ContractName string
	Module       string
}

// Compile translates one source file with default options.
func Compile(filename string, source []byte) (*Result, diag.Diagnostics) {
	return CompileWithOptions(filename, source, Options{})
}

// CompileWithOptions runs the full pipeline: parse, semantic analysis, and
// MVIR emission. A compilation is a pure function of its inputs; on any
// failure no module text is produced and the diagnostics carry every error
// found up to the failing stage.
func CompileWithOptions(filename string, source []byte, opts Options) (*Result, diag.Diagnostics) {
	mod, diags := parser.ParseFile(filename, source)
	if diags.HasErrors() {
		return nil, diags
	}
	env, semaDiags := sema.Check(filename, mod, opts.CurrencyTypes)
	if semaDiags.HasErrors() {
		return nil, semaDiags
	}
	text, emitDiags := mvir.EmitModule(filename, env, mod)
	if emitDiags.HasErrors() {
		return nil, emitDiags
	}
	return &Result{
		ContractName: mod.Contract.Identifier.Name,
		Module:       text,
	}, nil
}
