package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-isatty"
	"gopkg.in/urfave/cli.v1"

	basalt "github.com/basalt-lang/basalt"
	"github.com/basalt-lang/basalt/bas/diag"
)

func main() {
	app := cli.NewApp()
	app.Name = "basaltc"
	app.Usage = "Basalt smart-contract compiler"
	app.Version = basalt.PackageVersion
	app.Commands = []cli.Command{
		compileCommand,
		checkCommand,
		watchCommand,
		replCommand,
		inspectCommand,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var currencyFlag = cli.StringSliceFlag{
	Name:  "currency",
	Usage: "flag a user-defined type as currency (repeatable)",
}

var compileCommand = cli.Command{
	Name:      "compile",
	Usage:     "Compile a source file to an MVIR module or .bsc artifact",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "o", Usage: "output file (default: stdout, or <file>.bsc with --bsc)"},
		cli.BoolFlag{Name: "bsc", Usage: "emit a .bsc artifact instead of module text"},
		currencyFlag,
	},
	Action: compileAction,
}

var checkCommand = cli.Command{
	Name:      "check",
	Usage:     "Parse and type-check a source file without emitting output",
	ArgsUsage: "<file>",
	Flags:     []cli.Flag{currencyFlag},
	Action:    checkAction,
}

var watchCommand = cli.Command{
	Name:      "watch",
	Usage:     "Recompile a source file whenever it changes",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "o", Usage: "output file rewritten on each successful compile"},
		currencyFlag,
	},
	Action: watchAction,
}

var replCommand = cli.Command{
	Name:   "repl",
	Usage:  "Interactively compile contracts (finish input with a blank line)",
	Flags:  []cli.Flag{currencyFlag},
	Action: replAction,
}

var inspectCommand = cli.Command{
	Name:      "inspect",
	Usage:     "Decode a .bsc artifact and print its metadata",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		cli.BoolFlag{Name: "verify", Usage: "verify hashes and compiler version compatibility"},
		cli.StringFlag{Name: "src", Usage: "source file to verify the artifact's source hash against"},
		cli.BoolFlag{Name: "json", Usage: "print metadata as JSON"},
	},
	Action: inspectAction,
}

func optionsFromContext(ctx *cli.Context) basalt.Options {
	return basalt.Options{CurrencyTypes: ctx.StringSlice("currency")}
}

func sourceArg(ctx *cli.Context) (string, []byte, error) {
	if ctx.NArg() != 1 {
		return "", nil, fmt.Errorf("expected exactly one source file argument")
	}
	name := ctx.Args().First()
	src, err := os.ReadFile(name)
	if err != nil {
		return "", nil, err
	}
	return name, src, nil
}

func compileAction(ctx *cli.Context) error {
	name, src, err := sourceArg(ctx)
	if err != nil {
		return err
	}
	opts := optionsFromContext(ctx)

	if ctx.Bool("bsc") {
		payload, err := basalt.CompileToArtifact(name, src, opts)
		if err != nil {
			if ds, ok := err.(diag.Diagnostics); ok {
				printDiagnostics(ds)
				return cli.NewExitError("", 1)
			}
			return err
		}
		out := ctx.String("o")
		if out == "" {
			out = strings.TrimSuffix(name, ".bas") + ".bsc"
		}
		return os.WriteFile(out, payload, 0o644)
	}

	result, diags := basalt.CompileWithOptions(name, src, opts)
	if diags.HasErrors() {
		printDiagnostics(diags)
		return cli.NewExitError("", 1)
	}
	if out := ctx.String("o"); out != "" {
		return os.WriteFile(out, []byte(result.Module), 0o644)
	}
	fmt.Print(result.Module)
	return nil
}

func checkAction(ctx *cli.Context) error {
	name, src, err := sourceArg(ctx)
	if err != nil {
		return err
	}
	_, diags := basalt.CompileWithOptions(name, src, optionsFromContext(ctx))
	if diags.HasErrors() {
		printDiagnostics(diags)
		return cli.NewExitError("", 1)
	}
	fmt.Fprintf(os.Stderr, "%s: ok\n", name)
	return nil
}

func watchAction(ctx *cli.Context) error {
	name, _, err := sourceArg(ctx)
	if err != nil {
		return err
	}
	opts := optionsFromContext(ctx)

	recompile := func() {
		src, err := os.ReadFile(name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		result, diags := basalt.CompileWithOptions(name, src, opts)
		if diags.HasErrors() {
			printDiagnostics(diags)
			return
		}
		if out := ctx.String("o"); out != "" {
			if err := os.WriteFile(out, []byte(result.Module), 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}
			fmt.Fprintf(os.Stderr, "%s: wrote %s\n", name, out)
			return
		}
		fmt.Print(result.Module)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(name); err != nil {
		return err
	}

	recompile()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				recompile()
			}
			// Editors often replace the file; re-add the path after renames.
			if ev.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				_ = watcher.Add(name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func replAction(ctx *cli.Context) error {
	rl, err := readline.New("basalt> ")
	if err != nil {
		return err
	}
	defer rl.Close()
	opts := optionsFromContext(ctx)

	var lines []string
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
			rl.SetPrompt("   ...> ")
			continue
		}
		if len(lines) == 0 {
			continue
		}
		src := strings.Join(lines, "\n")
		lines = nil
		rl.SetPrompt("basalt> ")

		result, diags := basalt.CompileWithOptions("<repl>", []byte(src), opts)
		if diags.HasErrors() {
			printDiagnostics(diags)
			continue
		}
		fmt.Print(result.Module)
	}
}

func inspectAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one artifact file argument")
	}
	data, err := os.ReadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	if !basalt.IsBSC(data) {
		return fmt.Errorf("not a .bsc artifact")
	}
	artifact, err := basalt.DecodeBSC(data)
	if err != nil {
		return err
	}

	if ctx.Bool("verify") {
		if err := basalt.CompatibleCompilerVersion(artifact.Compiler); err != nil {
			return err
		}
		if srcFile := ctx.String("src"); srcFile != "" {
			src, err := os.ReadFile(srcFile)
			if err != nil {
				return err
			}
			if err := basalt.VerifyBSCSourceHash(artifact, src); err != nil {
				return err
			}
		}
		fmt.Fprintln(os.Stderr, "ok")
		return nil
	}

	if ctx.Bool("json") {
		meta := map[string]any{
			"version":     artifact.Version,
			"compiler":    artifact.Compiler,
			"contract":    artifact.ContractName,
			"source_hash": artifact.SourceHash,
			"module_hash": artifact.ModuleHash,
			"abi":         json.RawMessage(artifact.ABIJSON),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}

	fmt.Printf("contract:    %s\n", artifact.ContractName)
	fmt.Printf("compiler:    %s\n", artifact.Compiler)
	fmt.Printf("format:      %d\n", artifact.Version)
	fmt.Printf("source hash: %s\n", artifact.SourceHash)
	fmt.Printf("module hash: %s\n", artifact.ModuleHash)
	fmt.Printf("module size: %d bytes\n", len(artifact.Module))
	return nil
}

func printDiagnostics(ds diag.Diagnostics) {
	errLabel := "error"
	if isatty.IsTerminal(os.Stderr.Fd()) {
		errLabel = color.RedString("error")
	}
	for _, d := range ds {
		fmt.Fprintf(os.Stderr, "%s: %s\n", errLabel, d.Error())
	}
}
