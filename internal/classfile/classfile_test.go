package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/class-shrinker/pkg/errors"
)

func sampleClass() *Builder {
	b := NewBuilder("com/example/Main", ObjectClass, "java/lang/Runnable").
		Signature("Ljava/lang/Object;Ljava/lang/Runnable;").
		Annotate("com/example/Keep")
	b.Field(AccPrivate, "count", "I")
	b.Field(AccPublic|AccStatic, "helper", "Lcom/example/Helper;").Annotate("com/example/Inject")
	b.Method(AccPublic, ConstructorName, DefaultCtorDesc).
		InvokeSpecial(ObjectClass, ConstructorName, DefaultCtorDesc)
	b.Method(AccPublic, "run", "()V").
		New("com/example/Helper").
		InvokeSpecial("com/example/Helper", ConstructorName, DefaultCtorDesc).
		InvokeVirtual("com/example/Helper", "help", "([Lcom/example/Arg;)V").
		GetField("com/example/Main", "count", "I").
		CheckCast("[Lcom/example/Cast;").
		Catch("java/io/IOException").
		Throws("com/example/Failure")
	b.Method(AccPublic|AccAbstract, "todo", "()V")
	return b
}

func TestParse_Structure(t *testing.T) {
	cf, err := Parse(sampleClass().Bytes())
	require.NoError(t, err)

	assert.Equal(t, "com/example/Main", cf.Name)
	assert.Equal(t, ObjectClass, cf.SuperName)
	assert.Equal(t, []string{"java/lang/Runnable"}, cf.InterfaceList)
	assert.False(t, cf.IsInterface())
	assert.Equal(t, uint16(52), cf.Major)

	require.Len(t, cf.Fields, 2)
	require.Len(t, cf.Methods, 3)
	assert.Equal(t, "count:I", cf.Fields[0].Key())
	assert.Equal(t, "run:()V", cf.Methods[1].Key())
	assert.Len(t, cf.Members(), 5)

	sig, ok, err := Signature(cf.Pool, cf.Attributes)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Ljava/lang/Object;Ljava/lang/Runnable;", sig)

	ann, err := ReadAnnotations(cf.Pool, cf.Attributes)
	require.NoError(t, err)
	assert.Equal(t, []string{"com/example/Keep"}, ann.Types)

	exc, err := Exceptions(cf.Pool, cf.Methods[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"com/example/Failure"}, exc)
}

func TestParse_Malformed(t *testing.T) {
	data := sampleClass().Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte{0xde, 0xad, 0xbe, 0xef}, data[4:]...)},
		{"truncated", data[:len(data)/2]},
		{"trailing bytes", append(append([]byte{}, data...), 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.True(t, apperrors.IsParseError(err))
		})
	}
}

func TestScanCode(t *testing.T) {
	cf, err := Parse(sampleClass().Bytes())
	require.NoError(t, err)

	refs, err := cf.ScanCode(cf.Methods[1])
	require.NoError(t, err)
	assert.Equal(t, []CodeRef{
		{Kind: RefClass, Class: "com/example/Helper"},
		{Kind: RefMethodCall, Class: "com/example/Helper", Name: ConstructorName, Desc: DefaultCtorDesc, InvokeSpecial: true},
		{Kind: RefMethodCall, Class: "com/example/Helper", Name: "help", Desc: "([Lcom/example/Arg;)V"},
		{Kind: RefFieldAccess, Class: "com/example/Main", Name: "count", Desc: "I"},
		{Kind: RefClass, Class: "com/example/Cast"},
		{Kind: RefClass, Class: "java/io/IOException"},
	}, refs)

	abstract, err := cf.ScanCode(cf.Methods[2])
	require.NoError(t, err)
	assert.Empty(t, abstract)
}

func TestScanCode_ForNameSwitchAndLambda(t *testing.T) {
	b := NewBuilder("a/Lambdas", ObjectClass)
	b.Method(AccPublic|AccStatic, "load", "()V").
		LdcString("a.Plugin").
		InvokeStatic("java/lang/Class", "forName", "(Ljava/lang/String;)Ljava/lang/Class;").
		TableSwitch(3).
		LdcClass("a/Literal").
		Lambda("java/lang/Runnable", "run", "()V", "a/Lambdas", "lambda$load$0", "()V")
	b.Method(AccPrivate|AccStatic|AccSynthetic, "lambda$load$0", "()V")

	cf, err := Parse(b.Bytes())
	require.NoError(t, err)
	refs, err := cf.ScanCode(cf.Methods[0])
	require.NoError(t, err)

	assert.Contains(t, refs, CodeRef{Kind: RefClassForName, Class: "a/Plugin"})
	assert.Contains(t, refs, CodeRef{Kind: RefMethodCall, Class: "java/lang/Class", Name: "forName", Desc: "(Ljava/lang/String;)Ljava/lang/Class;"})
	assert.Contains(t, refs, CodeRef{Kind: RefClass, Class: "a/Literal"})
	assert.Contains(t, refs, CodeRef{Kind: RefMethodType, Desc: "()Ljava/lang/Runnable;"})
	assert.Contains(t, refs, CodeRef{Kind: RefMethodCall, Class: "a/Lambdas", Name: "lambda$load$0", Desc: "()V"})
	assert.Contains(t, refs, CodeRef{Kind: RefMethodCall, Class: "java/lang/invoke/LambdaMetafactory", Name: "metafactory",
		Desc: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"})
}

func TestInterfaceBuilder(t *testing.T) {
	cf, err := Parse(NewInterfaceBuilder("a/I", "a/J").Bytes())
	require.NoError(t, err)
	assert.True(t, cf.IsInterface())
	assert.Equal(t, []string{"a/J"}, cf.InterfaceList)
}

func TestDescriptorHelpers(t *testing.T) {
	assert.Equal(t, []string{"a/B", "c/D"}, DescriptorClasses("(I[La/B;J)Lc/D;"))
	assert.Empty(t, DescriptorClasses("(IJ)V"))

	name, ok := ElementClass("[[La/B;")
	assert.True(t, ok)
	assert.Equal(t, "a/B", name)
	_, ok = ElementClass("[I")
	assert.False(t, ok)

	assert.Equal(t, "a/b/C", ToInternalName("a.b.C"))
	assert.Equal(t, "a.b.C", ToBinaryName("a/b/C"))
}

func TestModifiedUTF8(t *testing.T) {
	for _, s := range []string{"plain", "café", "nul\x00byte", "emoji\U0001F600"} {
		decoded, err := decodeModifiedUTF8(encodeModifiedUTF8(s))
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
	}
	assert.Equal(t, []byte{0xc0, 0x80}, encodeModifiedUTF8("\x00"))
}
