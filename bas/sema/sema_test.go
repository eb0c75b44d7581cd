package sema

import (
	"strings"
	"testing"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/parser"
)

func checkSource(t *testing.T, src string, currencies ...string) (*Environment, diag.Diagnostics) {
	t.Helper()
	mod, diags := parser.ParseFile("<test>", []byte(src))
	if diags.HasErrors() {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	return Check("<test>", mod, currencies)
}

func hasCode(diags diag.Diagnostics, code string) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestCheckMinimal(t *testing.T) {
	env, diags := checkSource(t, `
contract Empty {}
Empty :: [any] {}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if env == nil || !env.IsContractDeclared("Empty") {
		t.Fatalf("expected contract to be registered")
	}
}

func TestCheckRegistersEventsAndCurrencies(t *testing.T) {
	env, diags := checkSource(t, `
contract Wallet { var owner: Address }
event Sent(to: Address)
Wallet :: [any] {
  public mutating func init(o: Address) { self.owner = o }
}
`, "Token")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !env.IsEventDeclared("Sent") {
		t.Fatalf("expected event to be registered")
	}
	if !env.IsCurrency("Token") {
		t.Fatalf("expected currency to be registered")
	}
	if !env.HasGeneratedInitializer("Token") || !env.HasGeneratedInitializer("Wallet") {
		t.Fatalf("expected generated initializers for declared types")
	}
	if _, ok := env.Initializer(); !ok {
		t.Fatalf("expected declared initializer to be found")
	}
}

func TestCheckMissingContract(t *testing.T) {
	_, diags := Check("<test>", nil, nil)
	if !hasCode(diags, diag.CodeSemaMissingContract) {
		t.Fatalf("expected missing contract diagnostic, got %v", diags)
	}
}

func TestCheckDuplicateField(t *testing.T) {
	_, diags := checkSource(t, `
contract C { var x: Int
  var x: Int }
C :: [any] {}
`)
	if !hasCode(diags, diag.CodeSemaDuplicateField) {
		t.Fatalf("expected duplicate field diagnostic, got %v", diags)
	}
}

func TestCheckUnknownBehaviorContract(t *testing.T) {
	_, diags := checkSource(t, `
contract C {}
Other :: [any] {}
`)
	if !hasCode(diags, diag.CodeSemaUnknownBehavior) {
		t.Fatalf("expected unknown behavior diagnostic, got %v", diags)
	}
}

func TestCheckUnresolvedIdentifier(t *testing.T) {
	_, diags := checkSource(t, `
contract C { var x: Int }
C :: [any] {
  public func f() -> Int { return missing }
}
`)
	if !hasCode(diags, diag.CodeSemaUnresolved) {
		t.Fatalf("expected unresolved diagnostic, got %v", diags)
	}
}

func TestCheckUnresolvedCall(t *testing.T) {
	_, diags := checkSource(t, `
contract C { var x: Int }
C :: [any] {
  public func f() { nothere(1) }
}
`)
	if !hasCode(diags, diag.CodeSemaUnresolved) {
		t.Fatalf("expected unresolved diagnostic, got %v", diags)
	}
}

func TestCheckCapabilityViolation(t *testing.T) {
	_, diags := checkSource(t, `
contract Vault { var n: Int }
Vault :: [admin] {
  public func secret() -> Int { return 1 }
}
Vault :: [any] {
  public func peek() -> Int { return secret() }
}
`)
	if !hasCode(diags, diag.CodeSemaCapability) {
		t.Fatalf("expected capability diagnostic, got %v", diags)
	}
}

func TestCheckCapabilityWidening(t *testing.T) {
	// Replacing the callee's guard with [any] must accept the previously
	// rejected call.
	_, diags := checkSource(t, `
contract Vault { var n: Int }
Vault :: [any] {
  public func secret() -> Int { return 1 }
}
Vault :: [user] {
  public func peek() -> Int { return secret() }
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
}

func TestCheckEventArity(t *testing.T) {
	_, diags := checkSource(t, `
contract C { var x: Int }
event Ping(who: Address)
C :: [any] {
  public func f(a: Address) { Ping(a, a) }
}
`)
	if !hasCode(diags, diag.CodeSemaEmitArity) {
		t.Fatalf("expected event arity diagnostic, got %v", diags)
	}
}

func TestCheckCallArity(t *testing.T) {
	_, diags := checkSource(t, `
contract C { var x: Int }
C :: [any] {
  public func g(a: Int) {}
  public func f() { g(1, 2) }
}
`)
	if !hasCode(diags, diag.CodeSemaCallArity) {
		t.Fatalf("expected call arity diagnostic, got %v", diags)
	}
}

func TestCheckDuplicateFunctionSameGuard(t *testing.T) {
	_, diags := checkSource(t, `
contract C { var x: Int }
C :: [any] {
  public func f() {}
  public func f() {}
}
`)
	if !hasCode(diags, diag.CodeSemaDuplicateFunction) {
		t.Fatalf("expected duplicate function diagnostic, got %v", diags)
	}
}

func TestCheckAllowsCapabilityOverload(t *testing.T) {
	env, diags := checkSource(t, `
contract C { var x: Int }
C :: [admin] {
  public func f() -> Int { return 1 }
}
C :: [any] {
  public func f() -> Int { return 2 }
}
`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(env.FunctionsNamed("f")) != 2 {
		t.Fatalf("expected both overloads to be registered")
	}
}

func TestMatchPrefersDirectCapabilityOverAny(t *testing.T) {
	env := NewEnvironment()
	env.AddContract("C")
	adminCaps := []ast.CallerCapability{{Identifier: ast.Identifier{Name: "admin"}}}
	anyCaps := []ast.CallerCapability{{Identifier: ast.Identifier{Name: "any"}}}
	decl := ast.FunctionDeclaration{Identifier: ast.Identifier{Name: "f"}}
	env.AddFunction("C", anyCaps, decl)
	env.AddFunction("C", adminCaps, decl)

	info, result := env.MatchFunctionCall("f", 0, adminCaps)
	if result != MatchedFunction {
		t.Fatalf("unexpected match result: %v", result)
	}
	if len(info.CallerCapabilities) != 1 || info.CallerCapabilities[0].Name() != "admin" {
		t.Fatalf("expected the admin-guarded overload to win: %#v", info.CallerCapabilities)
	}
}

func TestMatchReportsCapabilityFailure(t *testing.T) {
	env := NewEnvironment()
	adminCaps := []ast.CallerCapability{{Identifier: ast.Identifier{Name: "admin"}}}
	userCaps := []ast.CallerCapability{{Identifier: ast.Identifier{Name: "user"}}}
	env.AddFunction("C", adminCaps, ast.FunctionDeclaration{Identifier: ast.Identifier{Name: "f"}})

	if _, result := env.MatchFunctionCall("f", 0, userCaps); result != MatchFailureCapability {
		t.Fatalf("expected capability failure, got %v", result)
	}
	if _, result := env.MatchFunctionCall("g", 0, userCaps); result != MatchFailureNone {
		t.Fatalf("expected no-declaration failure, got %v", result)
	}
	if _, result := env.MatchFunctionCall("f", 3, adminCaps); result != MatchFailureArity {
		t.Fatalf("expected arity failure, got %v", result)
	}
}

func TestDiagnosticRendering(t *testing.T) {
	d := diag.Diagnostic{
		Code:    diag.CodeSemaUnresolved,
		Message: "unresolved identifier 'x'",
		Span: diag.Span{
			File:  "main.bas",
			Start: diag.Position{Line: 3, Column: 7},
			End:   diag.Position{Line: 3, Column: 7},
		},
	}
	if !strings.Contains(d.Error(), "main.bas:3:7") {
		t.Fatalf("unexpected rendering: %s", d.Error())
	}
}
