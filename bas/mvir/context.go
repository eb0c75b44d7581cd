package mvir

import (
	"strings"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/sema"
)

// selfState tracks self materialization inside the initializer: field
// reads and writes go through staging slots until the resource struct is
// constructed, then through the bound `self` value.
type selfState int

const (
	selfStaging selfState = iota
	selfBound
)

// borrowLocal is the synthesized binding that holds the storage reference
// obtained from borrow_global_mut in contract functions.
const borrowLocal = "_this"

// FunctionContext is the per-body mutable accumulator: emission buffer,
// scope stack, pending borrowed references, and the constructor-mode flag.
// It is owned exclusively by the lowerer invocation that created it and is
// consumed by finalise.
type FunctionContext struct {
	env          *sema.Environment
	filename     string
	contractName string
	callerCaps   []ast.CallerCapability

	inConstructor bool
	state         selfState

	fields     map[string]Type
	fieldOrder []string

	scopes []map[string]Type
	frames [][]Statement
	// pending parallels frames: each frame tracks the borrowed references
	// acquired inside it, so a release is only emitted on return paths the
	// borrow dominates.
	pending [][]string

	diags *diag.Diagnostics
}

func newFunctionContext(env *sema.Environment, filename string, contract *ast.ContractDeclaration, caps []ast.CallerCapability, inConstructor bool, diags *diag.Diagnostics) *FunctionContext {
	f := &FunctionContext{
		env:           env,
		filename:      filename,
		contractName:  contract.Identifier.Name,
		callerCaps:    caps,
		inConstructor: inConstructor,
		state:         selfStaging,
		fields:        map[string]Type{},
		scopes:        []map[string]Type{{}},
		frames:        [][]Statement{{}},
		pending:       [][]string{{}},
		diags:         diags,
	}
	// Field type failures are reported once by the module emitter; silently
	// skip them here so every per-function context does not repeat them.
	for _, v := range contract.Variables {
		if isCollectionType(v.Type) {
			continue
		}
		typ, ok := CanonicalType(v.Type, env)
		if !ok {
			continue
		}
		f.fields[v.Identifier.Name] = typ
		f.fieldOrder = append(f.fieldOrder, v.Identifier.Name)
	}
	return f
}

func (f *FunctionContext) emit(s Statement) {
	top := len(f.frames) - 1
	f.frames[top] = append(f.frames[top], s)
}

// insertAtFront prepends a statement to the function body. The initializer
// synthesizer uses it to declare the `self` slot before any Phase-A
// statement that references a deferred borrow.
func (f *FunctionContext) insertAtFront(s Statement) {
	f.frames[0] = append([]Statement{s}, f.frames[0]...)
}

func (f *FunctionContext) pushFrame() {
	f.frames = append(f.frames, []Statement{})
	f.pending = append(f.pending, []string{})
}

func (f *FunctionContext) popFrame() []Statement {
	top := len(f.frames) - 1
	out := f.frames[top]
	f.frames = f.frames[:top]
	// Borrows acquired inside the frame go out of scope with it; a later
	// storage access outside re-borrows.
	f.pending = f.pending[:top]
	return out
}

func (f *FunctionContext) pushScope() {
	f.scopes = append(f.scopes, map[string]Type{})
}

func (f *FunctionContext) popScope() {
	f.scopes = f.scopes[:len(f.scopes)-1]
}

func (f *FunctionContext) declare(name string, typ Type) {
	f.scopes[len(f.scopes)-1][name] = typ
}

func (f *FunctionContext) lookup(name string) (Type, bool) {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if typ, ok := f.scopes[i][name]; ok {
			return typ, true
		}
	}
	return Type{}, false
}

func (f *FunctionContext) isField(name string) bool {
	_, ok := f.fields[name]
	return ok
}

// ensureStorageBorrow emits the borrow_global_mut acquisition on first use
// and registers its release token with the current frame. A borrow acquired
// in an enclosing frame is still in scope and is reused; one acquired in an
// already-popped branch is not visible here and triggers a fresh borrow.
func (f *FunctionContext) ensureStorageBorrow() {
	for _, frame := range f.pending {
		for _, p := range frame {
			if p == borrowLocal {
				return
			}
		}
	}
	refType := Type{Kind: TypeMutReference, Elem: &Type{Kind: TypeResource, Name: f.contractName}}
	f.emit(Statement{Kind: StmtExpression, Expr: VarDecl(borrowLocal, refType, nil)})
	f.emit(Statement{Kind: StmtExpression, Expr: Assignment(
		Ident(borrowLocal),
		Call("borrow_global_mut<T>", Call("get_txn_sender")),
	)})
	top := len(f.pending) - 1
	f.pending[top] = append(f.pending[top], borrowLocal)
}

// emitReleaseReferences emits the release operations for every borrowed
// reference in scope, innermost frame first and LIFO within each frame.
// The pending lists are not drained: every return the borrows dominate
// needs its own release sequence.
func (f *FunctionContext) emitReleaseReferences() {
	for fi := len(f.pending) - 1; fi >= 0; fi-- {
		frame := f.pending[fi]
		for i := len(frame) - 1; i >= 0; i-- {
			f.emit(Statement{Kind: StmtExpression, Expr: Call("release", Move(Ident(frame[i])))})
		}
	}
}

// endsWithReturn reports whether the emitted body already terminates on
// every path: a trailing return, or a trailing if/else whose branches both
// terminate.
func (f *FunctionContext) endsWithReturn() bool {
	body := f.frames[0]
	if len(body) == 0 {
		return false
	}
	return statementTerminates(body[len(body)-1])
}

func statementTerminates(s Statement) bool {
	switch s.Kind {
	case StmtReturn:
		return true
	case StmtIf:
		if len(s.Then) == 0 || len(s.Else) == 0 {
			return false
		}
		return statementTerminates(s.Then[len(s.Then)-1]) && statementTerminates(s.Else[len(s.Else)-1])
	}
	return false
}

// finalise renders the accumulated body and consumes the context.
func (f *FunctionContext) finalise(indent string) string {
	var b strings.Builder
	renderStatements(&b, f.frames[0], indent, f.contractName)
	return b.String()
}

func (f *FunctionContext) canonicalType(t ast.Type, pos ast.SourceLocation) (Type, bool) {
	if isCollectionType(t) {
		f.addDiag(diag.CodeLowerCollectionType, "collection types have no target representation", pos)
		return Type{}, false
	}
	typ, ok := CanonicalType(t, f.env)
	if !ok {
		f.addDiag(diag.CodeLowerUnknownType, "type cannot be represented in the target", pos)
		return Type{}, false
	}
	return typ, true
}

func (f *FunctionContext) addDiag(code, message string, pos ast.SourceLocation) {
	*f.diags = append(*f.diags, diag.Diagnostic{
		Code:    code,
		Message: message,
		Span: diag.Span{
			File:  f.filename,
			Start: diag.Position{Line: pos.Line, Column: pos.Column},
			End:   diag.Position{Line: pos.Line, Column: pos.Column},
		},
	})
}
