package ast

// SourceLocation is carried by identifiers and declarations for diagnostics.
type SourceLocation struct {
	Line   int
	Column int
	Offset int
}

type Identifier struct {
	Name string
	Pos  SourceLocation
}

// TopLevelModule is the root node: one contract declaration, its event
// declarations, and the behavior blocks that implement it.
type TopLevelModule struct {
	Contract  *ContractDeclaration
	Events    []EventDeclaration
	Behaviors []ContractBehaviorDeclaration
}

// ContractDeclaration declares the persistent state of a contract. Field
// order defines storage order.
type ContractDeclaration struct {
	Identifier Identifier
	Variables  []VariableDeclaration
}

type EventDeclaration struct {
	Identifier Identifier
	Parameters []VariableDeclaration
}

// ContractBehaviorDeclaration binds a group of functions to a caller
// capability guard.
type ContractBehaviorDeclaration struct {
	ContractIdentifier Identifier
	CallerCapabilities []CallerCapability
	Functions          []FunctionDeclaration
}

// CallerCapability names a role; "any" is the universal super-capability.
type CallerCapability struct {
	Identifier Identifier
}

func (c CallerCapability) Name() string { return c.Identifier.Name }
func (c CallerCapability) IsAny() bool  { return c.Identifier.Name == "any" }

type VariableDeclaration struct {
	Identifier  Identifier
	Type        Type
	IsConstant  bool // declared with "let" rather than "var"
}

type Parameter struct {
	Identifier Identifier
	Type       Type
}

func (p Parameter) IsInout() bool { return p.Type.Kind == TypeInout }

type FunctionDeclaration struct {
	Modifiers  []string
	Identifier Identifier
	Parameters []Parameter
	ResultType *Type
	Body       []Statement
	Pos        SourceLocation
}

func (f FunctionDeclaration) IsInitializer() bool { return f.Identifier.Name == "init" }

func (f FunctionDeclaration) IsPublic() bool { return f.hasModifier("public") }

func (f FunctionDeclaration) IsMutating() bool { return f.hasModifier("mutating") }

func (f FunctionDeclaration) hasModifier(m string) bool {
	for _, mod := range f.Modifiers {
		if mod == m {
			return true
		}
	}
	return false
}

// Raw type kinds.
const (
	TypeBasic       = "basic"
	TypeUserDefined = "userDefined"
	TypeInout       = "inout"
	TypeFixedArray  = "fixedArray"
	TypeArray       = "array"
	TypeDictionary  = "dictionary"
)

// Basic type names as they appear in source.
const (
	BasicAddress = "Address"
	BasicInt     = "Int"
	BasicBool    = "Bool"
	BasicString  = "String"
)

// Type is a raw source type before canonicalization.
type Type struct {
	Kind    string
	Basic   string // TypeBasic
	Name    string // TypeUserDefined
	Element *Type  // TypeInout, TypeArray, TypeFixedArray pointee/element; TypeDictionary key
	Value   *Type  // TypeDictionary value
	Size    int    // TypeFixedArray
}

// StripInout returns the pointee for inout types and the type itself
// otherwise.
func (t Type) StripInout() Type {
	if t.Kind == TypeInout && t.Element != nil {
		return *t.Element
	}
	return t
}

// Expression kinds.
const (
	ExprIdentifier = "identifier"
	ExprBinary     = "binary"
	ExprCall       = "call"
	ExprLiteral    = "literal"
	ExprSelf       = "self"
	ExprVarDecl    = "variableDeclaration"
	ExprBracketed  = "bracketed"
)

// Literal kinds.
const (
	LiteralNumber = "number"
	LiteralString = "string"
	LiteralBool   = "bool"
)

type Expression struct {
	Kind    string
	Ident   Identifier           // ExprIdentifier
	Op      string               // ExprBinary
	Left    *Expression          // ExprBinary
	Right   *Expression          // ExprBinary
	Callee  Identifier           // ExprCall
	Args    []*Expression        // ExprCall
	Literal string               // ExprLiteral: literal kind
	Value   string               // ExprLiteral: source text
	VarDecl *VariableDeclaration // ExprVarDecl
	Inner   *Expression          // ExprBracketed
	Pos     SourceLocation
}

// Statement kinds.
const (
	StmtExpression = "expression"
	StmtReturn     = "return"
	StmtIf         = "if"
)

type Statement struct {
	Kind string
	Expr *Expression // StmtExpression payload, StmtReturn value (may be nil)
	Cond *Expression // StmtIf
	Then []Statement
	Else []Statement
}

// IsAssignment reports whether the statement is a top-level '=' binary
// expression. The initializer synthesizer uses it to track field
// assignment.
func (s Statement) IsAssignment() bool {
	return s.Kind == StmtExpression && s.Expr != nil && s.Expr.Kind == ExprBinary && s.Expr.Op == "="
}
