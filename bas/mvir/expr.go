package mvir

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/sema"
)

// lowerStatement translates one source statement into emitted target
// statements. Every return path emits the pending releases first.
func (f *FunctionContext) lowerStatement(s ast.Statement) {
	switch s.Kind {
	case ast.StmtExpression:
		// A bare declaration emits itself; the reference it returns is
		// not a statement.
		if inner := unwrapBracketed(s.Expr); inner != nil && inner.Kind == ast.ExprVarDecl {
			f.lowerExpression(s.Expr, false)
			return
		}
		expr := f.lowerExpression(s.Expr, false)
		f.emit(Statement{Kind: StmtExpression, Expr: expr})
	case ast.StmtReturn:
		var val *Expression
		if s.Expr != nil {
			val = f.lowerExpression(s.Expr, true)
		} else if f.inConstructor && f.state == selfBound {
			val = Move(Ident("self"))
		}
		f.emitReleaseReferences()
		f.emit(Statement{Kind: StmtReturn, Expr: val})
	case ast.StmtIf:
		cond := f.lowerExpression(s.Cond, false)
		f.pushFrame()
		f.pushScope()
		for _, inner := range s.Then {
			f.lowerStatement(inner)
		}
		f.popScope()
		thenStmts := f.popFrame()
		var elseStmts []Statement
		if len(s.Else) > 0 {
			f.pushFrame()
			f.pushScope()
			for _, inner := range s.Else {
				f.lowerStatement(inner)
			}
			f.popScope()
			elseStmts = f.popFrame()
		}
		f.emit(Statement{Kind: StmtIf, Cond: cond, Then: thenStmts, Else: elseStmts})
	}
}

// lowerExpression translates a source expression. forceMove marks a
// value-consuming usage context: identifier reads are wrapped in a move
// transfer there and in a copy transfer everywhere else, which preserves
// the single-consumption discipline for resource values.
func (f *FunctionContext) lowerExpression(e *ast.Expression, forceMove bool) *Expression {
	if e == nil {
		return Noop()
	}
	switch e.Kind {
	case ast.ExprIdentifier:
		return f.lowerIdentifier(e, forceMove)
	case ast.ExprBinary:
		switch e.Op {
		case "=":
			return f.lowerAssignment(e)
		case ".":
			return f.lowerDot(e, forceMove)
		default:
			return Binary(e.Op, f.lowerExpression(e.Left, false), f.lowerExpression(e.Right, false))
		}
	case ast.ExprCall:
		return f.lowerCall(e)
	case ast.ExprLiteral:
		return f.lowerLiteral(e)
	case ast.ExprSelf:
		return f.lowerSelf()
	case ast.ExprVarDecl:
		return f.lowerVarDecl(e)
	case ast.ExprBracketed:
		return f.lowerExpression(e.Inner, forceMove)
	}
	panic(fmt.Sprintf("mvir: malformed expression kind %q", e.Kind))
}

func (f *FunctionContext) lowerIdentifier(e *ast.Expression, forceMove bool) *Expression {
	name := e.Ident.Name
	if _, ok := f.lookup(name); ok {
		id := Ident(MangleLocal(name))
		if forceMove {
			return Move(id)
		}
		return Copy(id)
	}
	if f.isField(name) {
		return f.fieldProjection(name)
	}
	// Post-sema this names a target-level builtin; pass it through.
	return Ident(name)
}

// fieldProjection produces the read/write path for a contract field in the
// current self state: the staging slot before construction, the bound self
// value after it, and a storage projection in ordinary contract functions.
func (f *FunctionContext) fieldProjection(name string) *Expression {
	if f.inConstructor {
		if f.state == selfStaging {
			return Ident(StagingName(name))
		}
		return FieldAccess(Ident("self"), name)
	}
	f.ensureStorageBorrow()
	return Dereference(Reference(true, FieldAccess(Copy(Ident(borrowLocal)), name)))
}

func (f *FunctionContext) lowerSelf() *Expression {
	if f.inConstructor {
		return Ident("self")
	}
	f.ensureStorageBorrow()
	return Copy(Ident(borrowLocal))
}

func (f *FunctionContext) lowerVarDecl(e *ast.Expression) *Expression {
	decl := e.VarDecl
	typ, ok := f.canonicalType(decl.Type, decl.Identifier.Pos)
	if !ok {
		return Noop()
	}
	f.declare(decl.Identifier.Name, typ)
	f.emit(Statement{Kind: StmtExpression, Expr: VarDecl(MangleLocal(decl.Identifier.Name), typ, nil)})
	return Ident(MangleLocal(decl.Identifier.Name))
}

func (f *FunctionContext) lowerDot(e *ast.Expression, forceMove bool) *Expression {
	if e.Right != nil && e.Right.Kind == ast.ExprCall {
		if e.Left == nil || e.Left.Kind != ast.ExprSelf {
			f.addDiag(diag.CodeLowerInvalidTarget, "method calls are only supported on 'self'", e.Pos)
			return Noop()
		}
		return f.lowerCall(e.Right)
	}
	if e.Right == nil || e.Right.Kind != ast.ExprIdentifier {
		panic("mvir: malformed member access")
	}
	member := e.Right.Ident.Name

	if e.Left != nil && e.Left.Kind == ast.ExprSelf {
		if !f.isField(member) {
			f.addDiag(diag.CodeSemaUnresolved, fmt.Sprintf("'%s' is not a field of contract %s", member, f.contractName), e.Right.Ident.Pos)
			return Noop()
		}
		return f.fieldProjection(member)
	}

	// Property access through a parameter or local struct value.
	base := f.lowerExpression(e.Left, false)
	return FieldAccess(base, member)
}

func (f *FunctionContext) lowerLiteral(e *ast.Expression) *Expression {
	switch e.Literal {
	case ast.LiteralNumber:
		if strings.HasPrefix(e.Value, "0x") || strings.HasPrefix(e.Value, "0X") {
			return Literal(addressLiteral(e.Value))
		}
		return Literal(e.Value)
	case ast.LiteralBool:
		return Literal(e.Value)
	case ast.LiteralString:
		text := strings.Trim(e.Value, `"`)
		return Literal(`b"` + hex.EncodeToString([]byte(text)) + `"`)
	}
	panic(fmt.Sprintf("mvir: malformed literal kind %q", e.Literal))
}

// addressLiteral normalizes a source hex literal to a 16-byte target
// address constant.
func addressLiteral(src string) string {
	digits := strings.TrimPrefix(strings.TrimPrefix(src, "0x"), "0X")
	digits = strings.ToLower(digits)
	if len(digits) > 32 {
		digits = digits[len(digits)-32:]
	}
	return "0x" + strings.Repeat("0", 32-len(digits)) + digits
}

// lowerCall dispatches a source call: declared events become event
// emissions, compiler-generated initializers are erased around their single
// argument, and everything else becomes an ordinary call with move/copy
// argument discipline.
func (f *FunctionContext) lowerCall(e *ast.Expression) *Expression {
	name := e.Callee.Name

	if ev, ok := f.env.Event(name); ok {
		return f.lowerEventEmission(ev, e)
	}

	if f.env.HasGeneratedInitializer(name) {
		if len(e.Args) != 1 {
			f.addDiag(diag.CodeSemaCallArity, fmt.Sprintf("initializer coercion '%s' expects exactly one argument", name), e.Callee.Pos)
			return Noop()
		}
		return f.lowerExpression(e.Args[0], true)
	}

	info, result := f.env.MatchFunctionCall(name, len(e.Args), f.callerCaps)
	if result != sema.MatchedFunction {
		f.addDiag(diag.CodeSemaUnresolved, fmt.Sprintf("cannot resolve call to '%s'", name), e.Callee.Pos)
		return Noop()
	}

	paramTypes := make([]Type, 0, len(info.Declaration.Parameters))
	for _, p := range info.Declaration.Parameters {
		typ, ok := f.canonicalType(p.Type, p.Identifier.Pos)
		if !ok {
			return Noop()
		}
		paramTypes = append(paramTypes, typ)
	}

	args := make([]*Expression, 0, len(e.Args))
	for i, arg := range e.Args {
		param := info.Declaration.Parameters[i]
		if param.IsInout() {
			args = append(args, Reference(true, f.lowerLValue(arg)))
			continue
		}
		args = append(args, f.lowerExpression(arg, paramTypes[i].IsResource()))
	}

	target := MangleFunctionName(info.ContractName, info.CallerCapabilities, name, paramTypes)
	return Call("Self."+target, args...)
}

func (f *FunctionContext) lowerEventEmission(ev ast.EventDeclaration, e *ast.Expression) *Expression {
	args := make([]*Expression, 0, len(e.Args))
	for i, arg := range e.Args {
		force := false
		if i < len(ev.Parameters) {
			if typ, ok := CanonicalType(ev.Parameters[i].Type, f.env); ok {
				force = typ.IsResource()
			}
		}
		args = append(args, f.lowerExpression(arg, force))
	}
	return Call(fmt.Sprintf("emit_event<%s>", ev.Identifier.Name), args...)
}

// lowerAssignment distinguishes variable declaration, local rebinding,
// parameter-based property storage, and contract-storage writes by the
// shape of the left-hand side.
func (f *FunctionContext) lowerAssignment(e *ast.Expression) *Expression {
	lhs := unwrapBracketed(e.Left)
	if lhs == nil {
		panic("mvir: assignment without target")
	}

	if lhs.Kind == ast.ExprVarDecl {
		return f.lowerDeclarationAssignment(lhs.VarDecl, e.Right)
	}

	target := f.lowerLValue(lhs)
	if target.Kind == ExprNoop {
		return Noop()
	}
	source := f.lowerExpression(e.Right, true)
	return Assignment(target, source)
}

func (f *FunctionContext) lowerDeclarationAssignment(decl *ast.VariableDeclaration, rhs *ast.Expression) *Expression {
	name := MangleLocal(decl.Identifier.Name)

	// Shadow assignment: binding a name to itself is a no-op.
	if r := unwrapBracketed(rhs); r != nil && r.Kind == ast.ExprIdentifier && MangleLocal(r.Ident.Name) == name {
		if typ, ok := f.lookup(r.Ident.Name); ok {
			f.declare(decl.Identifier.Name, typ)
		}
		return Noop()
	}

	var typ Type
	if decl.Type.Kind != "" {
		var ok bool
		typ, ok = f.canonicalType(decl.Type, decl.Identifier.Pos)
		if !ok {
			return Noop()
		}
	} else {
		typ = f.inferCanonicalType(rhs)
	}
	f.declare(decl.Identifier.Name, typ)
	return VarDecl(name, typ, f.lowerExpression(rhs, true))
}

// lowerLValue lowers an assignment target. Identifier reads are never
// wrapped in transfers here; storage targets resolve to mutable-reference
// projections.
func (f *FunctionContext) lowerLValue(e *ast.Expression) *Expression {
	e = unwrapBracketed(e)
	if e == nil {
		return Noop()
	}
	switch e.Kind {
	case ast.ExprIdentifier:
		name := e.Ident.Name
		if _, ok := f.lookup(name); ok {
			return Ident(MangleLocal(name))
		}
		if f.isField(name) {
			return f.fieldProjection(name)
		}
		f.addDiag(diag.CodeLowerInvalidTarget, fmt.Sprintf("cannot assign to unresolved identifier '%s'", name), e.Ident.Pos)
		return Noop()
	case ast.ExprBinary:
		if e.Op != "." {
			break
		}
		if e.Right == nil || e.Right.Kind != ast.ExprIdentifier {
			break
		}
		member := e.Right.Ident.Name
		if e.Left != nil && e.Left.Kind == ast.ExprSelf {
			if !f.isField(member) {
				f.addDiag(diag.CodeSemaUnresolved, fmt.Sprintf("'%s' is not a field of contract %s", member, f.contractName), e.Right.Ident.Pos)
				return Noop()
			}
			return f.fieldProjection(member)
		}
		if e.Left != nil && e.Left.Kind == ast.ExprIdentifier {
			if _, ok := f.lookup(e.Left.Ident.Name); ok {
				return FieldAccess(Ident(MangleLocal(e.Left.Ident.Name)), member)
			}
		}
	}
	f.addDiag(diag.CodeLowerInvalidTarget, "invalid assignment target", e.Pos)
	return Noop()
}

// inferCanonicalType infers the type of an untyped let binding from its
// right-hand side. Unknown shapes default to u64.
func (f *FunctionContext) inferCanonicalType(e *ast.Expression) Type {
	e = unwrapBracketed(e)
	if e == nil {
		return Type{Kind: TypeU64}
	}
	switch e.Kind {
	case ast.ExprLiteral:
		switch e.Literal {
		case ast.LiteralNumber:
			if strings.HasPrefix(e.Value, "0x") || strings.HasPrefix(e.Value, "0X") {
				return Type{Kind: TypeAddress}
			}
			return Type{Kind: TypeU64}
		case ast.LiteralBool:
			return Type{Kind: TypeBool}
		case ast.LiteralString:
			return Type{Kind: TypeBytearray}
		}
	case ast.ExprIdentifier:
		if typ, ok := f.lookup(e.Ident.Name); ok {
			return typ
		}
		if typ, ok := f.fields[e.Ident.Name]; ok {
			return typ
		}
	case ast.ExprBinary:
		switch e.Op {
		case ".":
			if e.Left != nil && e.Left.Kind == ast.ExprSelf && e.Right != nil && e.Right.Kind == ast.ExprIdentifier {
				if typ, ok := f.fields[e.Right.Ident.Name]; ok {
					return typ
				}
			}
		case "==", "!=", "<", "<=", ">", ">=":
			return Type{Kind: TypeBool}
		default:
			return Type{Kind: TypeU64}
		}
	case ast.ExprCall:
		name := e.Callee.Name
		if f.env.HasGeneratedInitializer(name) {
			if typ, ok := CanonicalType(ast.Type{Kind: ast.TypeUserDefined, Name: name}, f.env); ok {
				return typ
			}
		}
		if info, result := f.env.MatchFunctionCall(name, len(e.Args), f.callerCaps); result == sema.MatchedFunction && info.Declaration.ResultType != nil {
			if typ, ok := CanonicalType(*info.Declaration.ResultType, f.env); ok {
				return typ
			}
		}
	}
	return Type{Kind: TypeU64}
}

func unwrapBracketed(e *ast.Expression) *ast.Expression {
	for e != nil && e.Kind == ast.ExprBracketed {
		e = e.Inner
	}
	return e
}
