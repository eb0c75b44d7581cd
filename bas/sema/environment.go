package sema

import "github.com/basalt-lang/basalt/bas/ast"

// MatchResult classifies the outcome of a function call resolution.
type MatchResult int

const (
	// MatchedFunction means a declared function is visible from the caller's
	// capability context.
	MatchedFunction MatchResult = iota
	// MatchFailureNone means no declaration with the called name exists.
	MatchFailureNone
	// MatchFailureCapability means a declaration exists but is not callable
	// from the caller's capability context.
	MatchFailureCapability
	// MatchFailureArity means a visible declaration exists but the argument
	// count does not match.
	MatchFailureArity
)

// FunctionInformation records one declared function together with the
// capability guard of its behavior block.
type FunctionInformation struct {
	Declaration        ast.FunctionDeclaration
	ContractName       string
	CallerCapabilities []ast.CallerCapability
	IsInitializer      bool
}

// Environment is the compilation-wide symbol table. It is populated during
// the semantic-analysis pass and read-only during lowering.
type Environment struct {
	contracts  map[string]struct{}
	currencies map[string]struct{}
	events     map[string]ast.EventDeclaration
	functions  map[string][]FunctionInformation
}

func NewEnvironment() *Environment {
	return &Environment{
		contracts:  map[string]struct{}{},
		currencies: map[string]struct{}{},
		events:     map[string]ast.EventDeclaration{},
		functions:  map[string][]FunctionInformation{},
	}
}

func (e *Environment) AddContract(name string) {
	e.contracts[name] = struct{}{}
}

// AddCurrency flags a user-defined type as currency. Currency types always
// compile to resources.
func (e *Environment) AddCurrency(name string) {
	e.currencies[name] = struct{}{}
}

func (e *Environment) AddEvent(decl ast.EventDeclaration) {
	e.events[decl.Identifier.Name] = decl
}

func (e *Environment) AddFunction(contract string, caps []ast.CallerCapability, decl ast.FunctionDeclaration) {
	name := decl.Identifier.Name
	e.functions[name] = append(e.functions[name], FunctionInformation{
		Declaration:        decl,
		ContractName:       contract,
		CallerCapabilities: caps,
		IsInitializer:      decl.IsInitializer(),
	})
}

func (e *Environment) IsContractDeclared(name string) bool {
	_, ok := e.contracts[name]
	return ok
}

func (e *Environment) IsCurrency(name string) bool {
	_, ok := e.currencies[name]
	return ok
}

func (e *Environment) IsEventDeclared(name string) bool {
	_, ok := e.events[name]
	return ok
}

func (e *Environment) Event(name string) (ast.EventDeclaration, bool) {
	ev, ok := e.events[name]
	return ev, ok
}

// HasGeneratedInitializer reports whether calling the given name denotes the
// compiler-generated initializer of a declared type. Such a call is erased
// during lowering; its single argument is lowered in place.
func (e *Environment) HasGeneratedInitializer(name string) bool {
	return e.IsContractDeclared(name) || e.IsCurrency(name)
}

func (e *Environment) FunctionsNamed(name string) []FunctionInformation {
	return e.functions[name]
}

// Initializer returns the declared initializer of the contract, if any.
func (e *Environment) Initializer() (FunctionInformation, bool) {
	for _, info := range e.functions["init"] {
		if info.IsInitializer {
			return info, true
		}
	}
	return FunctionInformation{}, false
}

// MatchFunctionCall resolves a call by name against the caller's capability
// context. Capability "any" on the callee is the top element of the
// capability lattice and admits every caller; otherwise the caller's set
// must intersect the callee's declared set. When both a directly-guarded
// overload and an any-guarded overload are visible, the direct one wins.
func (e *Environment) MatchFunctionCall(name string, argc int, callerCaps []ast.CallerCapability) (FunctionInformation, MatchResult) {
	candidates := e.functions[name]
	if len(candidates) == 0 {
		return FunctionInformation{}, MatchFailureNone
	}

	var direct, universal []FunctionInformation
	for _, info := range candidates {
		if capabilitiesIntersect(info.CallerCapabilities, callerCaps) {
			direct = append(direct, info)
			continue
		}
		if hasAnyCapability(info.CallerCapabilities) {
			universal = append(universal, info)
		}
	}
	if len(direct) == 0 && len(universal) == 0 {
		return FunctionInformation{}, MatchFailureCapability
	}
	for _, info := range direct {
		if len(info.Declaration.Parameters) == argc {
			return info, MatchedFunction
		}
	}
	for _, info := range universal {
		if len(info.Declaration.Parameters) == argc {
			return info, MatchedFunction
		}
	}
	return FunctionInformation{}, MatchFailureArity
}

func hasAnyCapability(caps []ast.CallerCapability) bool {
	for _, c := range caps {
		if c.IsAny() {
			return true
		}
	}
	return false
}

func capabilitiesIntersect(callee, caller []ast.CallerCapability) bool {
	for _, s := range caller {
		for _, d := range callee {
			if s.Name() == d.Name() {
				return true
			}
		}
	}
	return false
}
