package mvir

import (
	"strings"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/sema"
)

// LowerFunction translates one behavior function into a target procedure.
// The emitted identifier is the mangled form of the
// (contract, capability list, signature) triple.
func LowerFunction(env *sema.Environment, filename string, contract *ast.ContractDeclaration, caps []ast.CallerCapability, fn ast.FunctionDeclaration, diags *diag.Diagnostics) string {
	f := newFunctionContext(env, filename, contract, caps, false, diags)

	paramTypes := make([]Type, 0, len(fn.Parameters))
	params := make([]string, 0, len(fn.Parameters))
	for _, p := range fn.Parameters {
		typ, ok := f.canonicalType(p.Type, p.Identifier.Pos)
		if !ok {
			return ""
		}
		paramTypes = append(paramTypes, typ)
		f.declare(p.Identifier.Name, typ)
		rendered := typ.Render(f.contractName)
		if p.IsInout() {
			rendered = "&mut " + rendered
		}
		params = append(params, MangleLocal(p.Identifier.Name)+": "+rendered)
	}

	for _, s := range fn.Body {
		f.lowerStatement(s)
	}
	if !f.endsWithReturn() {
		f.emitReleaseReferences()
		f.emit(Statement{Kind: StmtReturn})
	}

	var b strings.Builder
	b.WriteString("  ")
	if fn.IsPublic() {
		b.WriteString("public ")
	}
	b.WriteString(MangleFunctionName(f.contractName, caps, fn.Identifier.Name, paramTypes))
	b.WriteString("(" + strings.Join(params, ", ") + ")")
	if fn.ResultType != nil {
		if typ, ok := f.canonicalType(*fn.ResultType, fn.Pos); ok {
			b.WriteString(": " + typ.Render(f.contractName))
		}
	}
	b.WriteString(" {\n")
	b.WriteString(f.finalise("    "))
	b.WriteString("  }\n")
	return b.String()
}
