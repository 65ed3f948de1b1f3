package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite_FiltersMembersAndInterfaces(t *testing.T) {
	b := NewBuilder("a/Impl", ObjectClass, "a/KeptIface", "a/GoneIface", "java/io/Serializable").
		Signature("La/Base<La/Gone;>;La/KeptIface;").
		InnerClass("a/Impl$Kept", "a/Impl", "Kept", AccStatic).
		InnerClass("a/Impl$Gone", "a/Impl", "Gone", AccStatic)
	b.Field(AccPrivate, "kept", "I")
	b.Field(AccPrivate, "dropped", "La/Gone;").Signature("Ljava/util/List<La/Gone;>;")
	b.Method(AccPublic, ConstructorName, DefaultCtorDesc)
	b.Method(AccPublic, "unused", "()V")
	b.Method(AccPublic, "generic", "()Ljava/util/List;").Signature("()Ljava/util/List<La/Gone;>;")

	keptMembers := map[string]bool{"kept:I": true, "<init>:()V": true, "generic:()Ljava/util/List;": true}
	out, err := Rewrite(b.Bytes(), RewriteOptions{
		KeepMember: func(key string) bool { return keptMembers[key] },
		KeepClass: func(name string) bool {
			return name != "a/Gone" && name != "a/GoneIface" && name != "a/Impl$Gone"
		},
	})
	require.NoError(t, err)

	cf, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/KeptIface", "java/io/Serializable"}, cf.InterfaceList)

	var keys []string
	for _, m := range cf.Members() {
		keys = append(keys, m.Key())
	}
	assert.Equal(t, []string{"kept:I", "<init>:()V", "generic:()Ljava/util/List;"}, keys)

	sig, _, err := Signature(cf.Pool, cf.Attributes)
	require.NoError(t, err)
	assert.Equal(t, "La/Base<Ljava/lang/Object;>;La/KeptIface;", sig)

	msig, _, err := Signature(cf.Pool, cf.Methods[1].Attributes)
	require.NoError(t, err)
	assert.Equal(t, "()Ljava/util/List<Ljava/lang/Object;>;", msig)

	inner, err := cf.InnerClasses()
	require.NoError(t, err)
	require.Len(t, inner, 1)
	assert.Equal(t, InnerClass{Inner: "a/Impl$Kept", Outer: "a/Impl", Name: "Kept", Access: AccStatic}, inner[0])
	assert.Equal(t, uint16(52), cf.Major)
}

func TestRewrite_KeepEverythingIsIdentity(t *testing.T) {
	data := sampleClass().Bytes()
	out, err := Rewrite(data, RewriteOptions{
		KeepMember: func(string) bool { return true },
		KeepClass:  func(string) bool { return true },
	})
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestRewrite_VersionOverride(t *testing.T) {
	v, err := ParseVersion("1.7")
	require.NoError(t, err)

	out, err := Rewrite(sampleClass().Bytes(), RewriteOptions{
		KeepMember: func(string) bool { return true },
		KeepClass:  func(string) bool { return true },
		Version:    &v,
	})
	require.NoError(t, err)
	cf, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, uint16(51), cf.Major)
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in    string
		major uint16
		ok    bool
	}{
		{"1.6", 50, true},
		{"8", 52, true},
		{"17", 61, true},
		{"52", 52, true},
		{"java8", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v, err := ParseVersion(tt.in)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.major, v.Major)
		})
	}
}
