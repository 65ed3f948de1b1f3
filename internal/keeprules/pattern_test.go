package keeprules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassName(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"com.example.Main", "com/example/Main", true},
		{"com.example.*", "com/example/Main", true},
		{"com.example.*", "com/example/sub/Main", false},
		{"com.example.**", "com/example/sub/Main", true},
		{"com.example.Ma?n", "com/example/Main", true},
		{"com.example.Outer$*", "com/example/Outer$Inner", true},
		{"*", "a/b/C", true},
		{"**.R$*", "com/app/R$string", true},
		{"com.example.Main", "com/example/MainActivity", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"~"+tt.name, func(t *testing.T) {
			ns, err := ClassName(tt.pattern, false)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ns.Matches(tt.name))
		})
	}
}

func TestMatchesClassName(t *testing.T) {
	mustName := func(p string, negated bool) NameSpecification {
		ns, err := ClassName(p, negated)
		require.NoError(t, err)
		return ns
	}

	list := []NameSpecification{mustName("a.Internal", true), mustName("a.*", false)}
	assert.False(t, MatchesClassName(list, "a/Internal"))
	assert.True(t, MatchesClassName(list, "a/Public"))
	assert.False(t, MatchesClassName(list, "b/Other"))

	onlyNegated := []NameSpecification{mustName("a.Internal", true)}
	assert.False(t, MatchesClassName(onlyNegated, "a/Internal"))
	assert.True(t, MatchesClassName(onlyNegated, "a/Public"))

	assert.False(t, MatchesClassName(nil, "a/A"))

	// A leading negation does not accept names the later patterns miss.
	negatedFirst := []NameSpecification{mustName("a.B", true), mustName("x.*", false)}
	assert.False(t, MatchesClassName(negatedFirst, "a/C"))
	assert.False(t, MatchesClassName(negatedFirst, "a/B"))
	assert.True(t, MatchesClassName(negatedFirst, "x/Y"))
}

func TestMethodDescriptorPattern(t *testing.T) {
	tests := []struct {
		args, ret string
		desc      string
		want      bool
	}{
		{"java.lang.String[]", "void", "([Ljava/lang/String;)V", true},
		{"", "", "()V", true},
		{"", "", "(I)V", false},
		{"...", "***", "(ILjava/util/List;)[J", true},
		{"int, long", "boolean", "(IJ)Z", true},
		{"%", "void", "(D)V", true},
		{"%", "void", "(Ljava/lang/Integer;)V", false},
		{"java.util.*", "void", "(Ljava/util/List;)V", true},
		{"java.*", "void", "(Ljava/util/List;)V", false},
		{"java.**", "void", "(Ljava/util/List;)V", true},
	}

	for _, tt := range tests {
		t.Run(tt.args+"->"+tt.desc, func(t *testing.T) {
			ns, err := descriptorPattern(methodDescriptorPattern(tt.args, tt.ret))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ns.Matches(tt.desc))
		})
	}
}

func TestMemberName(t *testing.T) {
	ns, err := MemberName("get*")
	require.NoError(t, err)
	assert.True(t, ns.Matches("getValue"))
	assert.False(t, ns.Matches("setValue"))

	ctor, err := MemberName("<init>")
	require.NoError(t, err)
	assert.True(t, ctor.Matches("<init>"))
	assert.False(t, ctor.Matches("<clinit>"))
}

func TestModifierSpecification(t *testing.T) {
	const (
		public    = 0x0001
		protected = 0x0004
		static    = 0x0008
		final     = 0x0010
		volatile  = 0x0040
		bridge    = 0x0040
	)

	var nilSpec *ModifierSpecification
	assert.True(t, nilSpec.Matches(0, TargetClass))

	publicOrProtected := &ModifierSpecification{}
	publicOrProtected.AddAccessFlag(AccessPublic, false)
	publicOrProtected.AddAccessFlag(AccessProtected, false)
	assert.True(t, publicOrProtected.Matches(public, TargetMethod))
	assert.True(t, publicOrProtected.Matches(protected, TargetMethod))
	assert.False(t, publicOrProtected.Matches(0, TargetMethod))

	notPackage := &ModifierSpecification{}
	notPackage.AddAccessFlag(AccessPackage, true)
	assert.False(t, notPackage.Matches(static, TargetField))
	assert.True(t, notPackage.Matches(public|static, TargetField))

	staticNotFinal := &ModifierSpecification{}
	staticNotFinal.AddModifier(ModStatic, false)
	staticNotFinal.AddModifier(ModFinal, true)
	assert.True(t, staticNotFinal.Matches(public|static, TargetField))
	assert.False(t, staticNotFinal.Matches(public|static|final, TargetField))
	assert.False(t, staticNotFinal.Matches(public, TargetField))

	// 0x0040 is volatile on fields and bridge on methods.
	isVolatile := &ModifierSpecification{}
	isVolatile.AddModifier(ModVolatile, false)
	assert.True(t, isVolatile.Matches(volatile, TargetField))
	isBridge := &ModifierSpecification{}
	isBridge.AddModifier(ModBridge, false)
	assert.True(t, isBridge.Matches(bridge, TargetMethod))
	assert.False(t, isBridge.Matches(bridge, TargetClass))
}
