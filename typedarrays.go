package typedarray

import "strconv"

// Kind identifies the element type of a host-side array object.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt8
	KindUint8
	KindUint8Clamped
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindFloat32
	KindFloat64
	KindArrayBuffer
)

type kindInfo struct {
	name   string
	width  int
	signed bool
	float  bool
}

var kinds = [...]kindInfo{
	KindInvalid:      {name: "Invalid"},
	KindInt8:         {name: "Int8Array", width: 1, signed: true},
	KindUint8:        {name: "Uint8Array", width: 1},
	KindUint8Clamped: {name: "Uint8ClampedArray", width: 1},
	KindInt16:        {name: "Int16Array", width: 2, signed: true},
	KindUint16:       {name: "Uint16Array", width: 2},
	KindInt32:        {name: "Int32Array", width: 4, signed: true},
	KindUint32:       {name: "Uint32Array", width: 4},
	KindFloat32:      {name: "Float32Array", width: 4, signed: true, float: true},
	KindFloat64:      {name: "Float64Array", width: 8, signed: true, float: true},
	KindArrayBuffer:  {name: "ArrayBuffer", width: 1},
}

var kindsByName map[string]Kind

func init() {
	kindsByName = make(map[string]Kind, len(kinds))
	for k := KindInt8; k <= KindArrayBuffer; k++ {
		kindsByName[kinds[k].name] = k
	}
}

// KindByName returns the kind whose host constructor is called name, e.g. "Int32Array".
func KindByName(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

func (k Kind) info() kindInfo {
	if int(k) < len(kinds) {
		return kinds[k]
	}
	return kinds[KindInvalid]
}

// String returns the name of the host constructor for k.
func (k Kind) String() string {
	if int(k) < len(kinds) {
		return kinds[k].name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Width is the element size in bytes. It is 0 for KindInvalid.
func (k Kind) Width() int {
	return k.info().width
}

func (k Kind) Signed() bool {
	return k.info().signed
}

func (k Kind) Float() bool {
	return k.info().float
}

// IsArray reports whether k describes a typed array (as opposed to a raw buffer).
func (k Kind) IsArray() bool {
	return k >= KindInt8 && k <= KindFloat64
}

// compatible reports whether a host array of kind k can be accessed through
// a binding instantiated for kind elem. Clamped and plain byte arrays share
// the Go element type.
func (k Kind) compatible(elem Kind) bool {
	if k == elem {
		return true
	}
	return (k == KindUint8Clamped && elem == KindUint8) || (k == KindUint8 && elem == KindUint8Clamped)
}

// Element is the set of Go types a TypedArray can be instantiated with.
type Element interface {
	int8 | uint8 | int16 | uint16 | int32 | uint32 | float32 | float64
}

// KindOf returns the host kind used for arrays of T.
func KindOf[T Element]() Kind {
	var zero T
	switch any(zero).(type) {
	case int8:
		return KindInt8
	case uint8:
		return KindUint8
	case int16:
		return KindInt16
	case uint16:
		return KindUint16
	case int32:
		return KindInt32
	case uint32:
		return KindUint32
	case float32:
		return KindFloat32
	case float64:
		return KindFloat64
	}
	panic("unreachable")
}
