package classfile

// Magic is the first word of every class file.
const Magic = 0xCAFEBABE

// Access flags shared by classes, fields and methods.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// Constant pool tags.
const (
	TagUTF8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// Attribute names the shrinker reads or rewrites.
const (
	AttrCode                        = "Code"
	AttrSignature                   = "Signature"
	AttrExceptions                  = "Exceptions"
	AttrInnerClasses                = "InnerClasses"
	AttrNestMembers                 = "NestMembers"
	AttrBootstrapMethods            = "BootstrapMethods"
	AttrRuntimeVisibleAnnotations   = "RuntimeVisibleAnnotations"
	AttrRuntimeInvisibleAnnotations = "RuntimeInvisibleAnnotations"
)

// Opcodes that reference the constant pool or have irregular lengths.
const (
	opLdc             = 0x12
	opLdcW            = 0x13
	opLdc2W           = 0x14
	opTableSwitch     = 0xaa
	opLookupSwitch    = 0xab
	opGetStatic       = 0xb2
	opPutStatic       = 0xb3
	opGetField        = 0xb4
	opPutField        = 0xb5
	opInvokeVirtual   = 0xb6
	opInvokeSpecial   = 0xb7
	opInvokeStatic    = 0xb8
	opInvokeInterface = 0xb9
	opInvokeDynamic   = 0xba
	opNew             = 0xbb
	opANewArray       = 0xbd
	opCheckCast       = 0xc0
	opInstanceOf      = 0xc1
	opWide            = 0xc4
	opMultiANewArray  = 0xc5
	opIinc            = 0x84
	opReturn          = 0xb1
)

// Method handle reference kinds.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

// Well known names.
const (
	ObjectClass       = "java/lang/Object"
	ConstructorName   = "<init>"
	StaticInitName    = "<clinit>"
	DefaultCtorDesc   = "()V"
	classForNameOwner = "java/lang/Class"
	classForNameName  = "forName"
	classForNameDesc  = "(Ljava/lang/String;)Ljava/lang/Class;"
)

// instructionLengths holds the fixed length of each opcode including the
// opcode byte. Zero marks variable length or undefined opcodes.
var instructionLengths = func() [256]int {
	var t [256]int
	set := func(from, to, n int) {
		for op := from; op <= to; op++ {
			t[op] = n
		}
	}
	set(0x00, 0x0f, 1)
	t[0x10] = 2
	t[0x11] = 3
	t[opLdc] = 2
	t[opLdcW] = 3
	t[opLdc2W] = 3
	set(0x15, 0x19, 2)
	set(0x1a, 0x35, 1)
	set(0x36, 0x3a, 2)
	set(0x3b, 0x83, 1)
	t[opIinc] = 3
	set(0x85, 0x98, 1)
	set(0x99, 0xa8, 3)
	t[0xa9] = 2
	set(0xac, 0xb1, 1)
	set(opGetStatic, opInvokeStatic, 3)
	t[opInvokeInterface] = 5
	t[opInvokeDynamic] = 5
	t[opNew] = 3
	t[0xbc] = 2
	t[opANewArray] = 3
	t[0xbe] = 1
	t[0xbf] = 1
	t[opCheckCast] = 3
	t[opInstanceOf] = 3
	t[0xc2] = 1
	t[0xc3] = 1
	t[opMultiANewArray] = 4
	t[0xc6] = 3
	t[0xc7] = 3
	t[0xc8] = 5
	t[0xc9] = 5
	t[0xca] = 1
	t[0xfe] = 1
	t[0xff] = 1
	return t
}()
