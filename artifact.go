package basalt

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/crypto/sha3"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/mvir"
	"github.com/basalt-lang/basalt/bas/parser"
	"github.com/basalt-lang/basalt/bas/sema"
)

var bscMagic = [4]byte{'B', 'S', 'C', 0}

// BSCFormatVersion is the binary format version for .bsc artifacts.
const BSCFormatVersion uint16 = 1

// compilerCompatRange is the toolchain version window whose artifacts this
// build accepts for verification.
const compilerCompatRange = ">= 0.4.0, < 0.5.0"

// BSCArtifact is a decoded .bsc payload: the emitted MVIR module wrapped
// with its ABI and integrity hashes.
type BSCArtifact struct {
	Version      uint16
	Compiler     string
	ContractName string
	Module       []byte
	ABIJSON      []byte
	SourceHash   string
	ModuleHash   string
}

type bscABI struct {
	Functions []bscABIFunction `json:"functions"`
	Events    []bscABIEvent    `json:"events"`
}

type bscABIFunction struct {
	Name         string   `json:"name"`
	MangledName  string   `json:"mangled_name"`
	Capabilities []string `json:"capabilities"`
	Public       bool     `json:"public"`
	Params       []string `json:"params,omitempty"`
	Returns      []string `json:"returns,omitempty"`
}

type bscABIEvent struct {
	Name      string   `json:"name"`
	Params    []string `json:"params,omitempty"`
	Signature string   `json:"signature"`
}

// IsBSC reports whether the input starts with .bsc magic bytes.
func IsBSC(data []byte) bool {
	return len(data) >= len(bscMagic) && bytes.Equal(data[:len(bscMagic)], bscMagic[:])
}

// CompileToArtifact compiles source into a .bsc artifact. Compilation
// failures come back as diag.Diagnostics (which implements error); artifact
// assembly failures as plain errors.
func CompileToArtifact(filename string, source []byte, opts Options) ([]byte, error) {
	result, diags := CompileWithOptions(filename, source, opts)
	if diags.HasErrors() {
		return nil, diags
	}
	abiJSON, err := buildABI(filename, source, opts)
	if err != nil {
		return nil, err
	}
	return EncodeBSC(&BSCArtifact{
		Version:      BSCFormatVersion,
		Compiler:     CompilerName + "/" + PackageVersion,
		ContractName: result.ContractName,
		Module:       []byte(result.Module),
		ABIJSON:      abiJSON,
		SourceHash:   keccak256Hex(source),
		ModuleHash:   keccak256Hex([]byte(result.Module)),
	})
}

func buildABI(filename string, source []byte, opts Options) ([]byte, error) {
	mod, diags := parser.ParseFile(filename, source)
	if diags.HasErrors() {
		return nil, diags
	}
	env, semaDiags := sema.Check(filename, mod, opts.CurrencyTypes)
	if semaDiags.HasErrors() {
		return nil, semaDiags
	}

	abi := bscABI{
		Functions: []bscABIFunction{},
		Events:    []bscABIEvent{},
	}
	contractName := mod.Contract.Identifier.Name
	for _, behavior := range mod.Behaviors {
		for _, fn := range behavior.Functions {
			if fn.IsInitializer() {
				continue
			}
			paramTypes := make([]mvir.Type, 0, len(fn.Parameters))
			params := make([]string, 0, len(fn.Parameters))
			for _, p := range fn.Parameters {
				typ, ok := mvir.CanonicalType(p.Type, env)
				if !ok {
					return nil, fmt.Errorf("abi: parameter '%s' of '%s' has no target representation", p.Identifier.Name, fn.Identifier.Name)
				}
				paramTypes = append(paramTypes, typ)
				params = append(params, typ.Render(contractName))
			}
			var returns []string
			if fn.ResultType != nil {
				typ, ok := mvir.CanonicalType(*fn.ResultType, env)
				if !ok {
					return nil, fmt.Errorf("abi: result type of '%s' has no target representation", fn.Identifier.Name)
				}
				returns = []string{typ.Render(contractName)}
			}
			caps := make([]string, 0, len(behavior.CallerCapabilities))
			for _, c := range behavior.CallerCapabilities {
				caps = append(caps, c.Name())
			}
			abi.Functions = append(abi.Functions, bscABIFunction{
				Name:         fn.Identifier.Name,
				MangledName:  mvir.MangleFunctionName(contractName, behavior.CallerCapabilities, fn.Identifier.Name, paramTypes),
				Capabilities: caps,
				Public:       fn.IsPublic(),
				Params:       params,
				Returns:      returns,
			})
		}
	}
	for _, ev := range mod.Events {
		params := make([]string, 0, len(ev.Parameters))
		for _, p := range ev.Parameters {
			typ, ok := mvir.CanonicalType(p.Type, env)
			if !ok {
				return nil, fmt.Errorf("abi: parameter '%s' of event '%s' has no target representation", p.Identifier.Name, ev.Identifier.Name)
			}
			params = append(params, typ.Render(contractName))
		}
		abi.Events = append(abi.Events, bscABIEvent{
			Name:      ev.Identifier.Name,
			Params:    params,
			Signature: eventSignatureHex(ev, params),
		})
	}
	return json.Marshal(abi)
}

func eventSignatureHex(ev ast.EventDeclaration, params []string) string {
	sig := fmt.Sprintf("%s(%s)", ev.Identifier.Name, strings.Join(params, ","))
	sum := keccak256Bytes([]byte(sig))
	return "0x" + hex.EncodeToString(sum[:4])
}

// EncodeBSC serializes an artifact into deterministic binary bytes.
func EncodeBSC(a *BSCArtifact) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil bsc artifact")
	}
	if strings.TrimSpace(a.ContractName) == "" {
		return nil, fmt.Errorf("bsc contract name is required")
	}
	if len(a.Module) == 0 {
		return nil, fmt.Errorf("bsc module text is required")
	}
	version := a.Version
	if version == 0 {
		version = BSCFormatVersion
	}
	if a.Compiler == "" {
		a.Compiler = CompilerName + "/" + PackageVersion
	}
	sourceHash, err := decodeHashHex(a.SourceHash)
	if err != nil {
		return nil, fmt.Errorf("invalid source hash: %w", err)
	}
	moduleHash, err := decodeHashHex(a.ModuleHash)
	if err != nil {
		return nil, fmt.Errorf("invalid module hash: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(bscMagic[:])
	if err := writeU16(&buf, version); err != nil {
		return nil, err
	}
	if err := writeString(&buf, a.Compiler); err != nil {
		return nil, err
	}
	if err := writeString(&buf, strings.TrimSpace(a.ContractName)); err != nil {
		return nil, err
	}
	if err := writeLenBytes(&buf, a.Module); err != nil {
		return nil, err
	}
	if err := writeLenBytes(&buf, a.ABIJSON); err != nil {
		return nil, err
	}
	buf.Write(sourceHash)
	buf.Write(moduleHash)
	return buf.Bytes(), nil
}

// DecodeBSC deserializes a .bsc payload into a structured artifact and
// verifies the embedded module hash.
func DecodeBSC(data []byte) (*BSCArtifact, error) {
	r := &byteReader{b: data}
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("invalid bsc header: %w", err)
	}
	if magic != bscMagic {
		return nil, fmt.Errorf("invalid bsc magic")
	}
	version, err := readU16(r)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc version: %w", err)
	}
	if version != BSCFormatVersion {
		return nil, fmt.Errorf("unsupported bsc version: got=%d want=%d", version, BSCFormatVersion)
	}
	compiler, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc compiler: %w", err)
	}
	contractName, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc contract name: %w", err)
	}
	module, err := readLenBytes(r)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc module payload: %w", err)
	}
	abiJSON, err := readLenBytes(r)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc abi payload: %w", err)
	}
	sourceHash, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc source hash: %w", err)
	}
	moduleHash, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid bsc module hash: %w", err)
	}
	if r.n != len(data) {
		return nil, fmt.Errorf("trailing bytes in bsc payload")
	}
	if strings.TrimSpace(contractName) == "" {
		return nil, fmt.Errorf("bsc contract name is empty")
	}
	if len(module) == 0 {
		return nil, fmt.Errorf("bsc module payload is empty")
	}
	if !bytes.Equal(keccak256Bytes(module), moduleHash) {
		return nil, fmt.Errorf("bsc module hash mismatch")
	}
	return &BSCArtifact{
		Version:      version,
		Compiler:     compiler,
		ContractName: contractName,
		Module:       module,
		ABIJSON:      abiJSON,
		SourceHash:   "0x" + hex.EncodeToString(sourceHash),
		ModuleHash:   "0x" + hex.EncodeToString(moduleHash),
	}, nil
}

// VerifyBSCSourceHash checks whether a decoded artifact matches the given
// source bytes.
func VerifyBSCSourceHash(a *BSCArtifact, source []byte) error {
	if a == nil {
		return fmt.Errorf("nil bsc artifact")
	}
	want := keccak256Hex(source)
	got := strings.ToLower(strings.TrimSpace(a.SourceHash))
	if got != want {
		return fmt.Errorf("bsc source hash mismatch: got=%s want=%s", a.SourceHash, want)
	}
	return nil
}

// CompatibleCompilerVersion checks that the artifact's recorded toolchain
// version falls inside this build's acceptance window.
func CompatibleCompilerVersion(compiler string) error {
	parts := strings.SplitN(compiler, "/", 2)
	if len(parts) != 2 || parts[0] != CompilerName {
		return fmt.Errorf("unrecognized compiler identity %q", compiler)
	}
	v, err := semver.NewVersion(parts[1])
	if err != nil {
		return fmt.Errorf("invalid compiler version %q: %w", parts[1], err)
	}
	c, err := semver.NewConstraint(compilerCompatRange)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("compiler version %s is outside the accepted range %q", v, compilerCompatRange)
	}
	return nil
}

func keccak256Hex(data []byte) string {
	return "0x" + hex.EncodeToString(keccak256Bytes(data))
}

func keccak256Bytes(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}

func decodeHashHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(b))
	}
	return b, nil
}

func writeU16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeString(w io.Writer, s string) error {
	return writeLenBytes(w, []byte(s))
}

func writeLenBytes(w io.Writer, b []byte) error {
	if err := writeU32(w, uint32(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := w.Write(b)
	return err
}

type byteReader struct {
	b []byte
	n int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.n >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.n:])
	r.n += n
	return n, nil
}

func readU16(r *byteReader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

func readU32(r *byteReader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readString(r *byteReader) (string, error) {
	b, err := readLenBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readLenBytes(r *byteReader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if int(n) > len(r.b)-r.n {
		return nil, fmt.Errorf("truncated length-prefixed payload")
	}
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFixedBytes(r *byteReader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
