package mvir

import (
	"strings"
	"testing"

	"github.com/basalt-lang/basalt/bas/ast"
)

func caps(names ...string) []ast.CallerCapability {
	out := make([]ast.CallerCapability, 0, len(names))
	for _, n := range names {
		out = append(out, ast.CallerCapability{Identifier: ast.Identifier{Name: n}})
	}
	return out
}

func TestMangleIsStable(t *testing.T) {
	params := []Type{{Kind: TypeAddress}, {Kind: TypeU64}}
	a := MangleFunctionName("Bank", caps("admin"), "transfer", params)
	b := MangleFunctionName("Bank", caps("admin"), "transfer", params)
	if a != b {
		t.Fatalf("mangling is not stable: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "transfer_") {
		t.Fatalf("mangled name should keep the source name as prefix: %s", a)
	}
}

func TestMangleDistinguishesTriples(t *testing.T) {
	params := []Type{{Kind: TypeU64}}
	base := MangleFunctionName("Bank", caps("admin"), "f", params)
	variants := []string{
		MangleFunctionName("Bank", caps("any"), "f", params),
		MangleFunctionName("Bank", caps("admin", "user"), "f", params),
		MangleFunctionName("Vault", caps("admin"), "f", params),
		MangleFunctionName("Bank", caps("admin"), "f", []Type{{Kind: TypeAddress}}),
		MangleFunctionName("Bank", caps("admin"), "f", nil),
	}
	seen := map[string]struct{}{base: {}}
	for _, v := range variants {
		if _, dup := seen[v]; dup {
			t.Fatalf("mangling collision: %s", v)
		}
		seen[v] = struct{}{}
	}
}

func TestMangleLocalByNameAlone(t *testing.T) {
	if MangleLocal("amount") != MangleLocal("amount") {
		t.Fatalf("local mangling must be pure")
	}
	if MangleLocal("a") == MangleLocal("b") {
		t.Fatalf("distinct locals must stay distinct")
	}
}

func TestStagingName(t *testing.T) {
	if StagingName("x") != "__x" {
		t.Fatalf("unexpected staging slot name: %s", StagingName("x"))
	}
}
