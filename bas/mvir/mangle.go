package mvir

import (
	"encoding/hex"
	"io"
	"strings"

	"github.com/basalt-lang/basalt/bas/ast"
	"golang.org/x/crypto/sha3"
)

// stagingPrefix marks the synthetic locals that hold contract field values
// inside the initializer before the resource struct is constructed.
const stagingPrefix = "__"

// StagingName returns the staging slot identifier for a contract field.
func StagingName(field string) string { return stagingPrefix + field }

// MangleFunctionName produces the target identifier for a function under
// caller-capability overloading. It is a pure function of the
// (contract, capability list, signature) triple: the suffix is a keccak
// digest over a canonical serialization, so two declarations with the same
// source name but different guards or signatures emit distinct procedures.
func MangleFunctionName(contract string, caps []ast.CallerCapability, name string, paramTypes []Type) string {
	h := sha3.NewLegacyKeccak256()
	_, _ = io.WriteString(h, contract)
	_, _ = h.Write([]byte{0})
	capNames := make([]string, 0, len(caps))
	for _, c := range caps {
		capNames = append(capNames, c.Name())
	}
	_, _ = io.WriteString(h, strings.Join(capNames, ","))
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, name)
	_, _ = h.Write([]byte{0})
	rendered := make([]string, 0, len(paramTypes))
	for _, t := range paramTypes {
		rendered = append(rendered, t.Render(""))
	}
	_, _ = io.WriteString(h, strings.Join(rendered, ","))
	sum := h.Sum(nil)
	return name + "_" + hex.EncodeToString(sum[:4])
}

// MangleLocal mangles a local binding by its name alone. Function
// identifiers always carry a digest suffix, so bare local names cannot
// collide with them.
func MangleLocal(name string) string { return name }
