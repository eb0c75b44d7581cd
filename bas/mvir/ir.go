package mvir

import "strings"

// TypeKind enumerates the target type categories.
type TypeKind string

const (
	TypeU64          TypeKind = "u64"
	TypeAddress      TypeKind = "address"
	TypeBool         TypeKind = "bool"
	TypeBytearray    TypeKind = "bytearray"
	TypeStruct       TypeKind = "struct"
	TypeResource     TypeKind = "resource"
	TypeReference    TypeKind = "reference"
	TypeMutReference TypeKind = "mut_reference"
)

// Type is a canonical target type.
type Type struct {
	Kind TypeKind
	Name string // qualified name for struct/resource
	Elem *Type  // reference pointee
}

func (t Type) IsResource() bool { return t.Kind == TypeResource }

// Render produces the textual target form. Inside a contract's own module
// its resource is always the local type T; other resources are qualified by
// their declaring module.
func (t Type) Render(enclosing string) string {
	switch t.Kind {
	case TypeU64, TypeAddress, TypeBool, TypeBytearray:
		return string(t.Kind)
	case TypeStruct:
		return "Self." + t.Name
	case TypeResource:
		if t.Name == enclosing {
			return "Self.T"
		}
		return t.Name + ".T"
	case TypeReference:
		return "&" + t.Elem.Render(enclosing)
	case TypeMutReference:
		return "&mut " + t.Elem.Render(enclosing)
	}
	return ""
}

// Expression kinds.
const (
	ExprIdentifier        = "identifier"
	ExprLiteral           = "literal"
	ExprBinary            = "binary"
	ExprVarDecl           = "variableDeclaration"
	ExprAssignment        = "assignment"
	ExprStructConstructor = "structConstructor"
	ExprCall              = "call"
	ExprTransfer          = "transfer"
	ExprFieldAccess       = "fieldAccess"
	ExprReference         = "reference"
	ExprDereference       = "dereference"
	ExprNoop              = "noop"
)

type StructField struct {
	Name  string
	Value *Expression
}

type Expression struct {
	Kind     string
	Name     string        // identifier / call target / struct type name
	Value    string        // literal text
	Op       string        // binary operator
	Left     *Expression   // binary
	Right    *Expression   // binary
	Type     *Type         // variable declaration type
	Init     *Expression   // variable declaration optional initializer
	Target   *Expression   // assignment
	Source   *Expression   // assignment
	Fields   []StructField // struct constructor, ordered
	Args     []*Expression // call
	Transfer string        // "move" or "copy"
	Inner    *Expression   // transfer / field access base / reference / dereference
	Field    string        // field access member
	Mutable  bool          // reference
}

func Ident(name string) *Expression { return &Expression{Kind: ExprIdentifier, Name: name} }

func Literal(text string) *Expression { return &Expression{Kind: ExprLiteral, Value: text} }

func Binary(op string, left, right *Expression) *Expression {
	return &Expression{Kind: ExprBinary, Op: op, Left: left, Right: right}
}

func Move(inner *Expression) *Expression {
	return &Expression{Kind: ExprTransfer, Transfer: "move", Inner: inner}
}

func Copy(inner *Expression) *Expression {
	return &Expression{Kind: ExprTransfer, Transfer: "copy", Inner: inner}
}

func Call(name string, args ...*Expression) *Expression {
	return &Expression{Kind: ExprCall, Name: name, Args: args}
}

func FieldAccess(base *Expression, field string) *Expression {
	return &Expression{Kind: ExprFieldAccess, Inner: base, Field: field}
}

func Reference(mutable bool, inner *Expression) *Expression {
	return &Expression{Kind: ExprReference, Mutable: mutable, Inner: inner}
}

func Dereference(inner *Expression) *Expression {
	return &Expression{Kind: ExprDereference, Inner: inner}
}

func Assignment(target, source *Expression) *Expression {
	return &Expression{Kind: ExprAssignment, Target: target, Source: source}
}

func VarDecl(name string, typ Type, init *Expression) *Expression {
	t := typ
	return &Expression{Kind: ExprVarDecl, Name: name, Type: &t, Init: init}
}

func Constructor(typeName string, fields []StructField) *Expression {
	return &Expression{Kind: ExprStructConstructor, Name: typeName, Fields: fields}
}

func Noop() *Expression { return &Expression{Kind: ExprNoop} }

// Render serializes the expression to target text. Noop renders to the
// empty string; statement rendering drops empty expressions entirely.
func (e *Expression) Render(enclosing string) string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case ExprIdentifier:
		return e.Name
	case ExprLiteral:
		return e.Value
	case ExprBinary:
		return "(" + e.Left.Render(enclosing) + " " + e.Op + " " + e.Right.Render(enclosing) + ")"
	case ExprVarDecl:
		out := "let " + e.Name + ": " + e.Type.Render(enclosing)
		if e.Init != nil {
			out += " = " + e.Init.Render(enclosing)
		}
		return out
	case ExprAssignment:
		return e.Target.Render(enclosing) + " = " + e.Source.Render(enclosing)
	case ExprStructConstructor:
		if len(e.Fields) == 0 {
			return e.Name + "{}"
		}
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Name+": "+f.Value.Render(enclosing))
		}
		return e.Name + "{ " + strings.Join(parts, ", ") + " }"
	case ExprCall:
		parts := make([]string, 0, len(e.Args))
		for _, a := range e.Args {
			parts = append(parts, a.Render(enclosing))
		}
		return e.Name + "(" + strings.Join(parts, ", ") + ")"
	case ExprTransfer:
		return e.Transfer + "(" + e.Inner.Render(enclosing) + ")"
	case ExprFieldAccess:
		return e.Inner.Render(enclosing) + "." + e.Field
	case ExprReference:
		if e.Mutable {
			return "&mut " + e.Inner.Render(enclosing)
		}
		return "&" + e.Inner.Render(enclosing)
	case ExprDereference:
		return "*" + e.Inner.Render(enclosing)
	case ExprNoop:
		return ""
	}
	return ""
}

// Statement kinds.
const (
	StmtExpression = "expression"
	StmtReturn     = "return"
	StmtIf         = "if"
)

type Statement struct {
	Kind string
	Expr *Expression // expression payload / return value (nil for bare return)
	Cond *Expression
	Then []Statement
	Else []Statement
}

func renderStatements(b *strings.Builder, stmts []Statement, indent, enclosing string) {
	for _, s := range stmts {
		switch s.Kind {
		case StmtExpression:
			text := s.Expr.Render(enclosing)
			if text == "" {
				continue
			}
			b.WriteString(indent + text + ";\n")
		case StmtReturn:
			if s.Expr == nil {
				b.WriteString(indent + "return;\n")
				continue
			}
			b.WriteString(indent + "return " + s.Expr.Render(enclosing) + ";\n")
		case StmtIf:
			b.WriteString(indent + "if (" + s.Cond.Render(enclosing) + ") {\n")
			renderStatements(b, s.Then, indent+"  ", enclosing)
			if len(s.Else) > 0 {
				b.WriteString(indent + "} else {\n")
				renderStatements(b, s.Else, indent+"  ", enclosing)
			}
			b.WriteString(indent + "}\n")
		}
	}
}
