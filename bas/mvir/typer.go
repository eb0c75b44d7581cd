package mvir

import (
	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/sema"
)

// CanonicalType maps a raw source type to its target category:
//
//	Address -> address, Int -> u64, Bool -> bool, String -> bytearray
//	user-defined -> resource when currency-flagged or a declared contract,
//	                struct otherwise
//	inout T -> CanonicalType(T); inout-ness is reintroduced at call sites
//	           through mutable-reference wrapping
//
// Collection types (array, fixed array, dictionary) are not representable
// in the target and yield absence, as does any unknown raw shape.
func CanonicalType(t ast.Type, env *sema.Environment) (Type, bool) {
	switch t.Kind {
	case ast.TypeBasic:
		switch t.Basic {
		case ast.BasicAddress:
			return Type{Kind: TypeAddress}, true
		case ast.BasicInt:
			return Type{Kind: TypeU64}, true
		case ast.BasicBool:
			return Type{Kind: TypeBool}, true
		case ast.BasicString:
			return Type{Kind: TypeBytearray}, true
		}
		return Type{}, false
	case ast.TypeUserDefined:
		if env.IsCurrency(t.Name) || env.IsContractDeclared(t.Name) {
			return Type{Kind: TypeResource, Name: t.Name}, true
		}
		return Type{Kind: TypeStruct, Name: t.Name}, true
	case ast.TypeInout:
		if t.Element == nil {
			return Type{}, false
		}
		return CanonicalType(*t.Element, env)
	default:
		return Type{}, false
	}
}

// isCollectionType reports whether the raw type is one of the collection
// shapes the target has no representation for. They are rejected with a
// dedicated diagnostic rather than collapsed to their element type.
func isCollectionType(t ast.Type) bool {
	switch t.Kind {
	case ast.TypeArray, ast.TypeFixedArray, ast.TypeDictionary:
		return true
	default:
		return false
	}
}
