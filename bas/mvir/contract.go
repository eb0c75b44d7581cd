package mvir

import (
	"strings"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/diag"
	"github.com/basalt-lang/basalt/bas/sema"
)

// EmitModule composes the target module for a checked compilation: the
// resource type T with fields in declaration order, the initializer trio,
// and one procedure per behavior function. On any translation failure the
// module text is empty and the diagnostics carry the causes.
func EmitModule(filename string, env *sema.Environment, m *ast.TopLevelModule) (string, diag.Diagnostics) {
	var diags diag.Diagnostics
	contract := m.Contract
	name := contract.Identifier.Name

	var b strings.Builder
	b.WriteString("module " + name + " {\n")

	b.WriteString("  resource T {\n")
	probe := newFunctionContext(env, filename, contract, nil, false, &diags)
	for _, v := range contract.Variables {
		typ, ok := probe.canonicalType(v.Type, v.Identifier.Pos)
		if !ok {
			continue
		}
		b.WriteString("    " + v.Identifier.Name + ": " + typ.Render(name) + ",\n")
	}
	b.WriteString("  }\n\n")

	var initDecl *ast.FunctionDeclaration
	initCaps := []ast.CallerCapability{{Identifier: ast.Identifier{Name: "any"}}}
	if info, ok := env.Initializer(); ok {
		d := info.Declaration
		initDecl = &d
		initCaps = info.CallerCapabilities
	}
	newText, publishText, getText := SynthesizeInitializer(env, filename, contract, initCaps, initDecl, &diags)
	b.WriteString(newText + "\n")
	b.WriteString(publishText + "\n")
	b.WriteString(getText)

	for _, behavior := range m.Behaviors {
		if behavior.ContractIdentifier.Name != name {
			continue
		}
		for _, fn := range behavior.Functions {
			if fn.IsInitializer() {
				continue
			}
			text := LowerFunction(env, filename, contract, behavior.CallerCapabilities, fn, &diags)
			if text == "" {
				continue
			}
			b.WriteString("\n" + text)
		}
	}

	b.WriteString("}\n")

	if diags.HasErrors() {
		return "", diags
	}
	return b.String(), nil
}
