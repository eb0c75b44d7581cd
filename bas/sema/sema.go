package sema

import (
	"fmt"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
)

// Check builds the Environment for a parsed module and validates name
// resolution and capability visibility. The returned Environment is nil when
// diagnostics are present. currencies lists user-defined type names that are
// flagged as currency for this compilation.
func Check(filename string, m *ast.TopLevelModule, currencies []string) (*Environment, diag.Diagnostics) {
	var diags diag.Diagnostics
	if m == nil || m.Contract == nil {
		diags = append(diags, diag.Diagnostic{
			Code:    diag.CodeSemaMissingContract,
			Message: "missing contract declaration",
			Span:    diag.Span{File: filename, Start: diag.Position{Line: 1, Column: 1}, End: diag.Position{Line: 1, Column: 1}},
		})
		return nil, diags
	}

	env := NewEnvironment()
	for _, c := range currencies {
		env.AddCurrency(c)
	}
	contractName := m.Contract.Identifier.Name
	env.AddContract(contractName)

	fieldSeen := map[string]struct{}{}
	for _, v := range m.Contract.Variables {
		if _, ok := fieldSeen[v.Identifier.Name]; ok {
			diags = append(diags, diag.Diagnostic{
				Code:    diag.CodeSemaDuplicateField,
				Message: fmt.Sprintf("duplicate contract field '%s'", v.Identifier.Name),
				Span:    spanAt(filename, v.Identifier.Pos),
			})
			continue
		}
		fieldSeen[v.Identifier.Name] = struct{}{}
	}

	for _, ev := range m.Events {
		if env.IsEventDeclared(ev.Identifier.Name) {
			diags = append(diags, diag.Diagnostic{
				Code:    diag.CodeSemaDuplicateEvent,
				Message: fmt.Sprintf("duplicate event '%s'", ev.Identifier.Name),
				Span:    spanAt(filename, ev.Identifier.Pos),
			})
			continue
		}
		env.AddEvent(ev)
	}

	sawInitializer := false
	for _, b := range m.Behaviors {
		if b.ContractIdentifier.Name != contractName {
			diags = append(diags, diag.Diagnostic{
				Code:    diag.CodeSemaUnknownBehavior,
				Message: fmt.Sprintf("behavior block references undeclared contract '%s'", b.ContractIdentifier.Name),
				Span:    spanAt(filename, b.ContractIdentifier.Pos),
			})
			continue
		}
		for _, fn := range b.Functions {
			if fn.IsInitializer() {
				if sawInitializer {
					diags = append(diags, diag.Diagnostic{
						Code:    diag.CodeSemaDuplicateFunction,
						Message: "multiple initializers are not supported",
						Span:    spanAt(filename, fn.Identifier.Pos),
					})
					continue
				}
				sawInitializer = true
			} else if duplicateFunction(env, b.CallerCapabilities, fn) {
				diags = append(diags, diag.Diagnostic{
					Code:    diag.CodeSemaDuplicateFunction,
					Message: fmt.Sprintf("duplicate function '%s' for the same caller capability set", fn.Identifier.Name),
					Span:    spanAt(filename, fn.Identifier.Pos),
				})
				continue
			}
			env.AddFunction(contractName, b.CallerCapabilities, fn)
		}
	}

	fields := map[string]struct{}{}
	for _, v := range m.Contract.Variables {
		fields[v.Identifier.Name] = struct{}{}
	}
	for _, b := range m.Behaviors {
		if b.ContractIdentifier.Name != contractName {
			continue
		}
		for _, fn := range b.Functions {
			checkFunctionBody(filename, env, fields, b.CallerCapabilities, fn, &diags)
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}
	return env, nil
}

func duplicateFunction(env *Environment, caps []ast.CallerCapability, fn ast.FunctionDeclaration) bool {
	for _, info := range env.FunctionsNamed(fn.Identifier.Name) {
		if len(info.Declaration.Parameters) != len(fn.Parameters) {
			continue
		}
		if sameCapabilitySet(info.CallerCapabilities, caps) {
			return true
		}
	}
	return false
}

func sameCapabilitySet(a, b []ast.CallerCapability) bool {
	if len(a) != len(b) {
		return false
	}
	names := map[string]struct{}{}
	for _, c := range a {
		names[c.Name()] = struct{}{}
	}
	for _, c := range b {
		if _, ok := names[c.Name()]; !ok {
			return false
		}
	}
	return true
}

// checkFunctionBody resolves identifiers and calls within one function,
// tracking a lexical scope seeded with the parameter names.
func checkFunctionBody(filename string, env *Environment, fields map[string]struct{}, caps []ast.CallerCapability, fn ast.FunctionDeclaration, diags *diag.Diagnostics) {
	scope := map[string]struct{}{}
	for _, p := range fn.Parameters {
		scope[p.Identifier.Name] = struct{}{}
	}
	checkStatements(filename, env, fields, caps, fn.Body, scope, diags)
}

func checkStatements(filename string, env *Environment, fields map[string]struct{}, caps []ast.CallerCapability, stmts []ast.Statement, scope map[string]struct{}, diags *diag.Diagnostics) {
	for _, s := range stmts {
		switch s.Kind {
		case ast.StmtExpression:
			checkExpression(filename, env, fields, caps, s.Expr, scope, diags)
		case ast.StmtReturn:
			checkExpression(filename, env, fields, caps, s.Expr, scope, diags)
		case ast.StmtIf:
			checkExpression(filename, env, fields, caps, s.Cond, scope, diags)
			checkStatements(filename, env, fields, caps, s.Then, childScope(scope), diags)
			checkStatements(filename, env, fields, caps, s.Else, childScope(scope), diags)
		}
	}
}

func childScope(parent map[string]struct{}) map[string]struct{} {
	child := map[string]struct{}{}
	for name := range parent {
		child[name] = struct{}{}
	}
	return child
}

func checkExpression(filename string, env *Environment, fields map[string]struct{}, caps []ast.CallerCapability, e *ast.Expression, scope map[string]struct{}, diags *diag.Diagnostics) {
	if e == nil {
		return
	}
	switch e.Kind {
	case ast.ExprIdentifier:
		name := e.Ident.Name
		if _, ok := scope[name]; ok {
			return
		}
		if _, ok := fields[name]; ok {
			return
		}
		*diags = append(*diags, diag.Diagnostic{
			Code:    diag.CodeSemaUnresolved,
			Message: fmt.Sprintf("unresolved identifier '%s'", name),
			Span:    spanAt(filename, e.Ident.Pos),
		})
	case ast.ExprBinary:
		if e.Op == "." {
			// Only the base resolves in the enclosing scope; the member is
			// checked against the base's type during lowering.
			checkExpression(filename, env, fields, caps, e.Left, scope, diags)
			if e.Right != nil && e.Right.Kind == ast.ExprCall {
				checkCall(filename, env, caps, e.Right, scope, fields, diags)
			}
			return
		}
		if e.Op == "=" && e.Left != nil && e.Left.Kind == ast.ExprVarDecl {
			checkExpression(filename, env, fields, caps, e.Right, scope, diags)
			scope[e.Left.VarDecl.Identifier.Name] = struct{}{}
			return
		}
		checkExpression(filename, env, fields, caps, e.Left, scope, diags)
		checkExpression(filename, env, fields, caps, e.Right, scope, diags)
	case ast.ExprCall:
		checkCall(filename, env, caps, e, scope, fields, diags)
	case ast.ExprVarDecl:
		scope[e.VarDecl.Identifier.Name] = struct{}{}
	case ast.ExprBracketed:
		checkExpression(filename, env, fields, caps, e.Inner, scope, diags)
	}
}

func checkCall(filename string, env *Environment, caps []ast.CallerCapability, e *ast.Expression, scope map[string]struct{}, fields map[string]struct{}, diags *diag.Diagnostics) {
	for _, arg := range e.Args {
		checkExpression(filename, env, fields, caps, arg, scope, diags)
	}
	name := e.Callee.Name

	if ev, ok := env.Event(name); ok {
		if len(e.Args) != len(ev.Parameters) {
			*diags = append(*diags, diag.Diagnostic{
				Code:    diag.CodeSemaEmitArity,
				Message: fmt.Sprintf("event '%s' expects %d argument(s), got %d", name, len(ev.Parameters), len(e.Args)),
				Span:    spanAt(filename, e.Callee.Pos),
			})
		}
		return
	}

	if env.HasGeneratedInitializer(name) {
		if len(e.Args) != 1 {
			*diags = append(*diags, diag.Diagnostic{
				Code:    diag.CodeSemaCallArity,
				Message: fmt.Sprintf("initializer coercion '%s' expects exactly one argument, got %d", name, len(e.Args)),
				Span:    spanAt(filename, e.Callee.Pos),
			})
		}
		return
	}

	_, result := env.MatchFunctionCall(name, len(e.Args), caps)
	switch result {
	case MatchedFunction:
	case MatchFailureNone:
		*diags = append(*diags, diag.Diagnostic{
			Code:    diag.CodeSemaUnresolved,
			Message: fmt.Sprintf("unresolved function '%s'", name),
			Span:    spanAt(filename, e.Callee.Pos),
		})
	case MatchFailureCapability:
		*diags = append(*diags, diag.Diagnostic{
			Code:    diag.CodeSemaCapability,
			Message: fmt.Sprintf("function '%s' is not callable from the current caller capability context", name),
			Span:    spanAt(filename, e.Callee.Pos),
		})
	case MatchFailureArity:
		*diags = append(*diags, diag.Diagnostic{
			Code:    diag.CodeSemaCallArity,
			Message: fmt.Sprintf("no visible overload of '%s' takes %d argument(s)", name, len(e.Args)),
			Span:    spanAt(filename, e.Callee.Pos),
		})
	}
}

func spanAt(filename string, pos ast.SourceLocation) diag.Span {
	return diag.Span{
		File:  filename,
		Start: diag.Position{Line: pos.Line, Column: pos.Column},
		End:   diag.Position{Line: pos.Line, Column: pos.Column},
	}
}
