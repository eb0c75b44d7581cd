package mvir

import (
	"testing"

	"github.com/basalt-lang/basalt/bas/ast"
	"github.com/basalt-lang/basalt/bas/sema"
)

func testEnv() *sema.Environment {
	env := sema.NewEnvironment()
	env.AddContract("Bank")
	env.AddCurrency("Token")
	return env
}

func TestCanonicalBasicTypes(t *testing.T) {
	env := testEnv()
	cases := []struct {
		basic string
		want  TypeKind
	}{
		{ast.BasicAddress, TypeAddress},
		{ast.BasicInt, TypeU64},
		{ast.BasicBool, TypeBool},
		{ast.BasicString, TypeBytearray},
	}
	for _, c := range cases {
		typ, ok := CanonicalType(ast.Type{Kind: ast.TypeBasic, Basic: c.basic}, env)
		if !ok {
			t.Fatalf("%s: expected canonical type", c.basic)
		}
		if typ.Kind != c.want {
			t.Fatalf("%s: got %s want %s", c.basic, typ.Kind, c.want)
		}
	}
}

func TestCanonicalUserDefinedTypes(t *testing.T) {
	env := testEnv()

	typ, ok := CanonicalType(ast.Type{Kind: ast.TypeUserDefined, Name: "Token"}, env)
	if !ok || typ.Kind != TypeResource || typ.Name != "Token" {
		t.Fatalf("currency should map to resource, got %#v ok=%v", typ, ok)
	}

	typ, ok = CanonicalType(ast.Type{Kind: ast.TypeUserDefined, Name: "Bank"}, env)
	if !ok || typ.Kind != TypeResource || typ.Name != "Bank" {
		t.Fatalf("declared contract should map to resource, got %#v ok=%v", typ, ok)
	}

	typ, ok = CanonicalType(ast.Type{Kind: ast.TypeUserDefined, Name: "Point"}, env)
	if !ok || typ.Kind != TypeStruct || typ.Name != "Point" {
		t.Fatalf("plain user type should map to struct, got %#v ok=%v", typ, ok)
	}
}

func TestCanonicalInoutUsesPointee(t *testing.T) {
	env := testEnv()
	inner := ast.Type{Kind: ast.TypeBasic, Basic: ast.BasicInt}
	typ, ok := CanonicalType(ast.Type{Kind: ast.TypeInout, Element: &inner}, env)
	if !ok || typ.Kind != TypeU64 {
		t.Fatalf("inout should canonicalize to its pointee, got %#v ok=%v", typ, ok)
	}
}

func TestCanonicalRejectsCollections(t *testing.T) {
	env := testEnv()
	elem := ast.Type{Kind: ast.TypeBasic, Basic: ast.BasicInt}
	for _, raw := range []ast.Type{
		{Kind: ast.TypeArray, Element: &elem},
		{Kind: ast.TypeFixedArray, Element: &elem, Size: 4},
		{Kind: ast.TypeDictionary, Element: &elem, Value: &elem},
	} {
		if !isCollectionType(raw) {
			t.Fatalf("%s: expected collection classification", raw.Kind)
		}
		if _, ok := CanonicalType(raw, env); ok {
			t.Fatalf("%s: expected absence", raw.Kind)
		}
	}
}

func TestRenderTargetTypes(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{Type{Kind: TypeU64}, "u64"},
		{Type{Kind: TypeAddress}, "address"},
		{Type{Kind: TypeBool}, "bool"},
		{Type{Kind: TypeBytearray}, "bytearray"},
		{Type{Kind: TypeStruct, Name: "Point"}, "Self.Point"},
		{Type{Kind: TypeResource, Name: "Bank"}, "Self.T"},
		{Type{Kind: TypeResource, Name: "Token"}, "Token.T"},
		{Type{Kind: TypeReference, Elem: &Type{Kind: TypeU64}}, "&u64"},
		{Type{Kind: TypeMutReference, Elem: &Type{Kind: TypeResource, Name: "Bank"}}, "&mut Self.T"},
	}
	for _, c := range cases {
		if got := c.typ.Render("Bank"); got != c.want {
			t.Fatalf("render %#v: got %q want %q", c.typ, got, c.want)
		}
	}
}
