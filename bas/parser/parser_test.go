package parser

import (
	"testing"

	"github.com/basalt-lang/basalt/bas/ast"
)

func TestParseMinimalModule(t *testing.T) {
	src := []byte(`
contract Empty {}
Empty :: [any] {}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if mod == nil || mod.Contract == nil {
		t.Fatalf("expected contract in AST")
	}
	if mod.Contract.Identifier.Name != "Empty" {
		t.Fatalf("unexpected contract name: %s", mod.Contract.Identifier.Name)
	}
	if len(mod.Behaviors) != 1 {
		t.Fatalf("unexpected behavior count: %d", len(mod.Behaviors))
	}
	if len(mod.Behaviors[0].CallerCapabilities) != 1 || !mod.Behaviors[0].CallerCapabilities[0].IsAny() {
		t.Fatalf("unexpected caller capabilities: %#v", mod.Behaviors[0].CallerCapabilities)
	}
}

func TestParseContractSubset(t *testing.T) {
	src := []byte(`
contract Bank {
  var owner: Address
  var balance: Int
}

event Deposit(who: Address, amount: Int)

Bank :: [manager, any] {
  public mutating func init(o: Address) {
    self.owner = o
    self.balance = 0
  }

  public mutating func deposit(amount: Int) -> Int {
    self.balance = self.balance + amount
    return self.balance
  }
}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(mod.Contract.Variables) != 2 {
		t.Fatalf("unexpected field count: %d", len(mod.Contract.Variables))
	}
	if mod.Contract.Variables[0].Identifier.Name != "owner" || mod.Contract.Variables[0].Type.Basic != ast.BasicAddress {
		t.Fatalf("unexpected first field: %#v", mod.Contract.Variables[0])
	}
	if len(mod.Events) != 1 || mod.Events[0].Identifier.Name != "Deposit" {
		t.Fatalf("unexpected events: %#v", mod.Events)
	}
	if len(mod.Events[0].Parameters) != 2 {
		t.Fatalf("unexpected event params: %#v", mod.Events[0].Parameters)
	}
	b := mod.Behaviors[0]
	if len(b.CallerCapabilities) != 2 || b.CallerCapabilities[0].Name() != "manager" {
		t.Fatalf("unexpected capabilities: %#v", b.CallerCapabilities)
	}
	if len(b.Functions) != 2 {
		t.Fatalf("unexpected function count: %d", len(b.Functions))
	}
	init := b.Functions[0]
	if !init.IsInitializer() || !init.IsPublic() || !init.IsMutating() {
		t.Fatalf("unexpected initializer flags: %#v", init)
	}
	if len(init.Body) != 2 || !init.Body[0].IsAssignment() {
		t.Fatalf("unexpected initializer body: %#v", init.Body)
	}
	dep := b.Functions[1]
	if dep.ResultType == nil || dep.ResultType.Basic != ast.BasicInt {
		t.Fatalf("unexpected result type: %#v", dep.ResultType)
	}
}

func TestParsePrecedence(t *testing.T) {
	src := []byte(`
contract C { var x: Int }
C :: [any] {
  public func f(a: Int, b: Int, c: Int) -> Int {
    return a + b * c
  }
}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	ret := mod.Behaviors[0].Functions[0].Body[0]
	if ret.Kind != ast.StmtReturn {
		t.Fatalf("unexpected statement kind: %s", ret.Kind)
	}
	e := ret.Expr
	if e.Kind != ast.ExprBinary || e.Op != "+" {
		t.Fatalf("expected '+' at the root, got %s %q", e.Kind, e.Op)
	}
	if e.Right.Kind != ast.ExprBinary || e.Right.Op != "*" {
		t.Fatalf("expected '*' to bind tighter, got %s %q", e.Right.Kind, e.Right.Op)
	}
}

func TestParseAssignmentOfDeclaration(t *testing.T) {
	src := []byte(`
contract C { var x: Int }
C :: [any] {
  public func f() {
    let y: Int = 4
    y = y + 1
  }
}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	body := mod.Behaviors[0].Functions[0].Body
	if len(body) != 2 {
		t.Fatalf("unexpected body length: %d", len(body))
	}
	first := body[0].Expr
	if first.Kind != ast.ExprBinary || first.Op != "=" {
		t.Fatalf("expected assignment, got %s %q", first.Kind, first.Op)
	}
	if first.Left.Kind != ast.ExprVarDecl || first.Left.VarDecl.Identifier.Name != "y" {
		t.Fatalf("expected variable declaration on LHS: %#v", first.Left)
	}
	if !first.Left.VarDecl.IsConstant {
		t.Fatalf("expected let binding to be constant")
	}
}

func TestParseSelfMemberAndCall(t *testing.T) {
	src := []byte(`
contract C { var x: Int }
C :: [any] {
  public mutating func f(v: Int) {
    self.x = v
    g(self.x)
  }
  public func g(v: Int) {}
}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	body := mod.Behaviors[0].Functions[0].Body
	assign := body[0].Expr
	if assign.Op != "=" || assign.Left.Op != "." || assign.Left.Left.Kind != ast.ExprSelf {
		t.Fatalf("unexpected self assignment shape: %#v", assign)
	}
	call := body[1].Expr
	if call.Kind != ast.ExprCall || call.Callee.Name != "g" || len(call.Args) != 1 {
		t.Fatalf("unexpected call shape: %#v", call)
	}
	if call.Args[0].Op != "." {
		t.Fatalf("expected member access argument: %#v", call.Args[0])
	}
}

func TestParseIfElse(t *testing.T) {
	src := []byte(`
contract C { var x: Int }
C :: [any] {
  public func f(a: Int) -> Int {
    if a > 2 {
      return a
    } else {
      return 0
    }
  }
}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	stmt := mod.Behaviors[0].Functions[0].Body[0]
	if stmt.Kind != ast.StmtIf || stmt.Cond == nil {
		t.Fatalf("unexpected if statement: %#v", stmt)
	}
	if len(stmt.Then) != 1 || len(stmt.Else) != 1 {
		t.Fatalf("unexpected branch sizes: then=%d else=%d", len(stmt.Then), len(stmt.Else))
	}
}

func TestParseInoutParameter(t *testing.T) {
	src := []byte(`
contract C { var x: Int }
C :: [any] {
  public func f(inout v: Int) {}
}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	p := mod.Behaviors[0].Functions[0].Parameters[0]
	if !p.IsInout() {
		t.Fatalf("expected inout parameter: %#v", p)
	}
	if p.Type.Element == nil || p.Type.Element.Basic != ast.BasicInt {
		t.Fatalf("unexpected pointee: %#v", p.Type)
	}
}

func TestParseCollectionTypes(t *testing.T) {
	src := []byte(`
contract C {
  var xs: [Int]
  var m: [Address: Int]
  var fixed: Int[4]
}
C :: [any] {}
`)
	mod, diags := ParseFile("<test>", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	vars := mod.Contract.Variables
	if vars[0].Type.Kind != ast.TypeArray {
		t.Fatalf("expected array type: %#v", vars[0].Type)
	}
	if vars[1].Type.Kind != ast.TypeDictionary || vars[1].Type.Value == nil {
		t.Fatalf("expected dictionary type: %#v", vars[1].Type)
	}
	if vars[2].Type.Kind != ast.TypeFixedArray || vars[2].Type.Size != 4 {
		t.Fatalf("expected fixed array type: %#v", vars[2].Type)
	}
}

func TestParseReportsUnexpectedToken(t *testing.T) {
	src := []byte(`contract {`)
	_, diags := ParseFile("<test>", src)
	if !diags.HasErrors() {
		t.Fatalf("expected diagnostics for malformed source")
	}
}
