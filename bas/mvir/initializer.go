package mvir

import (
	"fmt"
	"strings"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/sema"
)

// SynthesizeInitializer builds the three procedures the contract
// constructor compiles to:
//
//	new(<params>): Self.T   { <body> }
//	public publish(<params>) { move_to_sender<T>(Self.new(<args>)); return; }
//	public get(addr: address): &mut Self.T { return borrow_global<T>(move(addr)); }
//
// init may be nil: a contract without a declared initializer gets the
// default one with no parameters.
func SynthesizeInitializer(env *sema.Environment, filename string, contract *ast.ContractDeclaration, caps []ast.CallerCapability, init *ast.FunctionDeclaration, diags *diag.Diagnostics) (string, string, string) {
	f := newFunctionContext(env, filename, contract, caps, true, diags)

	var decl ast.FunctionDeclaration
	if init != nil {
		decl = *init
	}

	params := make([]string, 0, len(decl.Parameters))
	argNames := make([]string, 0, len(decl.Parameters))
	for _, p := range decl.Parameters {
		typ, ok := f.canonicalType(p.Type, p.Identifier.Pos)
		if !ok {
			return "", "", ""
		}
		f.declare(p.Identifier.Name, typ)
		params = append(params, MangleLocal(p.Identifier.Name)+": "+typ.Render(f.contractName))
		argNames = append(argNames, MangleLocal(p.Identifier.Name))
	}

	f.synthesizeBody(decl.Body)

	paramList := strings.Join(params, ", ")
	newText := "  new(" + paramList + "): Self.T {\n" + f.finalise("    ") + "  }\n"

	publishArgs := make([]string, 0, len(argNames))
	for _, a := range argNames {
		publishArgs = append(publishArgs, "move("+a+")")
	}
	publishText := "  public publish(" + paramList + ") {\n" +
		"    move_to_sender<T>(Self.new(" + strings.Join(publishArgs, ", ") + "));\n" +
		"    return;\n" +
		"  }\n"

	getText := "  public get(addr: address): &mut Self.T {\n" +
		"    return borrow_global<T>(move(addr));\n" +
		"  }\n"

	return newText, publishText, getText
}

// synthesizeBody runs the two-phase constructor algorithm: staged field
// assignment against the unassigned-tracker, then struct construction with
// self-binding for any statements that follow full assignment.
func (f *FunctionContext) synthesizeBody(body []ast.Statement) {
	unassigned := map[string]struct{}{}
	for _, name := range f.fieldOrder {
		unassigned[name] = struct{}{}
		f.emit(Statement{Kind: StmtExpression, Expr: VarDecl(StagingName(name), f.fields[name], nil)})
	}

	// Phase A: emit statements in order, retiring fields from the
	// unassigned set as their assignments appear.
	consumed := len(body)
	for i, s := range body {
		if len(unassigned) == 0 {
			consumed = i
			break
		}
		if name, ok := f.assignedField(s); ok {
			delete(unassigned, name)
		}
		f.lowerStatement(s)
		if len(unassigned) == 0 {
			consumed = i + 1
		}
	}

	if len(unassigned) > 0 {
		missing := make([]string, 0, len(unassigned))
		for _, name := range f.fieldOrder {
			if _, ok := unassigned[name]; ok {
				missing = append(missing, name)
			}
		}
		f.addDiag(diag.CodeLowerIncompleteInit,
			fmt.Sprintf("initializer never assigns field(s): %s", strings.Join(missing, ", ")),
			ast.SourceLocation{Line: 1, Column: 1})
		return
	}

	// Phase B: construct the resource value from the staging slots.
	fields := make([]StructField, 0, len(f.fieldOrder))
	for _, name := range f.fieldOrder {
		fields = append(fields, StructField{Name: name, Value: Move(Ident(StagingName(name)))})
	}
	constructor := Constructor("T", fields)

	if consumed == len(body) {
		f.emitReleaseReferences()
		f.emit(Statement{Kind: StmtReturn, Expr: constructor})
		return
	}

	// Statements remain after full assignment: bind self and keep lowering
	// under the bound state. The self slot is declared ahead of every
	// Phase-A statement so deferred borrow releases stay well-formed.
	f.state = selfBound
	selfType := Type{Kind: TypeResource, Name: f.contractName}
	f.insertAtFront(Statement{Kind: StmtExpression, Expr: VarDecl("self", selfType, nil)})
	f.emit(Statement{Kind: StmtExpression, Expr: Assignment(Ident("self"), constructor)})

	for _, s := range body[consumed:] {
		f.lowerStatement(s)
	}
	if !f.endsWithReturn() {
		f.emitReleaseReferences()
		f.emit(Statement{Kind: StmtReturn, Expr: Move(Ident("self"))})
	}
}

// assignedField reports which contract field a top-level assignment
// statement stores to, either through a bare identifier naming a field or
// through self.<field>.
func (f *FunctionContext) assignedField(s ast.Statement) (string, bool) {
	if !s.IsAssignment() {
		return "", false
	}
	lhs := unwrapBracketed(s.Expr.Left)
	if lhs == nil {
		return "", false
	}
	switch lhs.Kind {
	case ast.ExprIdentifier:
		name := lhs.Ident.Name
		if _, local := f.lookup(name); local {
			return "", false
		}
		if f.isField(name) {
			return name, true
		}
	case ast.ExprBinary:
		if lhs.Op != "." || lhs.Left == nil || lhs.Left.Kind != ast.ExprSelf {
			return "", false
		}
		if lhs.Right != nil && lhs.Right.Kind == ast.ExprIdentifier && f.isField(lhs.Right.Ident.Name) {
			return lhs.Right.Ident.Name, true
		}
	}
	return "", false
}
