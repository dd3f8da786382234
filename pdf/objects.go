package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
)

// Object is any serializable PDF value: Name, Integer, Real, String,
// Boolean, Array, Dict, Ref, or *Stream.
type Object interface{}

type Name string

type Integer int64

type Real float64

type String []byte

type Boolean bool

type Array []Object

// Dict is a PDF dictionary. Keys serialize in sorted order so output is
// deterministic across runs.
type Dict map[Name]Object

// Ref is an indirect object reference.
type Ref struct {
	Num int
	Gen int
}

// Stream pairs a dictionary with raw stream data. The Length entry is
// filled in at serialization time.
type Stream struct {
	Dict Dict
	Data []byte
}

func serializeObject(ref Ref, obj Object) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes()
}

func serializePrimitive(o Object) []byte {
	switch v := o.(type) {
	case Name:
		return []byte("/" + string(v))
	case Integer:
		return strconv.AppendInt(nil, int64(v), 10)
	case Real:
		return []byte(strconv.FormatFloat(float64(v), 'f', 4, 64))
	case Boolean:
		if v {
			return []byte("true")
		}
		return []byte("false")
	case String:
		return []byte("(" + string(v) + ")")
	case Ref:
		return fmt.Appendf(nil, "%d %d R", v.Num, v.Gen)
	case Array:
		var b bytes.Buffer
		b.WriteByte('[')
		for i, it := range v {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.Write(serializePrimitive(it))
		}
		b.WriteByte(']')
		return b.Bytes()
	case Dict:
		return serializeDict(v)
	case *Stream:
		var b bytes.Buffer
		dict := Dict{}
		for k, val := range v.Dict {
			dict[k] = val
		}
		dict["Length"] = Integer(len(v.Data))
		b.Write(serializeDict(dict))
		b.WriteString("\nstream\n")
		b.Write(v.Data)
		b.WriteString("\nendstream")
		return b.Bytes()
	default:
		return []byte("null")
	}
}

func serializeDict(d Dict) []byte {
	var b bytes.Buffer
	b.WriteString("<<")
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" /" + k + " ")
		b.Write(serializePrimitive(d[Name(k)]))
	}
	b.WriteString(" >>")
	return b.Bytes()
}
