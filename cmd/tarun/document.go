package main

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"

	typedarray "github.com/dop251/goja_typedarray"
)

// Document is the yaml shape of both the --input file and the output.
type Document struct {
	Arrays map[string]ArrayDoc `yaml:"arrays"`
}

type ArrayDoc struct {
	Type   string    `yaml:"type"`
	Values []float64 `yaml:"values,flow"`
}

func readDocument(r io.Reader) (*Document, error) {
	doc := &Document{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding input: %w", err)
	}
	if doc.Arrays == nil {
		doc.Arrays = map[string]ArrayDoc{}
	}
	return doc, nil
}

func writeDocument(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func (d *Document) names() []string {
	names := make([]string, 0, len(d.Arrays))
	for name := range d.Arrays {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// array is the part of a TypedArray the CLI needs without knowing T.
type array interface {
	Ref() typedarray.Ref
	Kind() typedarray.Kind
	Close() error
	values() ([]float64, error)
}

type floats[T typedarray.Element] struct {
	*typedarray.TypedArray[T]
}

func (f floats[T]) values() ([]float64, error) {
	s, err := f.ToSlice()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out, nil
}

// narrow converts f to T the way a host typed array store does for
// integral input: the value is truncated and wraps modulo 2^width, NaN and
// infinities become 0.
func narrow[T typedarray.Element](f float64) T {
	if typedarray.KindOf[T]().Float() {
		return T(f)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return T(int64(math.Mod(math.Trunc(f), 1<<32)))
}

func load[T typedarray.Element](b typedarray.Bridge, vals []float64, opts []typedarray.Option) (array, error) {
	s := make([]T, len(vals))
	for i, f := range vals {
		s[i] = narrow[T](f)
	}
	a, err := typedarray.FromSlice(b, s, opts...)
	if err != nil {
		return nil, err
	}
	return floats[T]{a}, nil
}

func wrap[T typedarray.Element](b typedarray.Bridge, ref typedarray.Ref, opts []typedarray.Option) (array, error) {
	a, err := typedarray.Wrap[T](b, ref, opts...)
	if err != nil {
		return nil, err
	}
	return floats[T]{a}, nil
}

// materialize creates a host array of the requested type holding doc's values.
func materialize(b typedarray.Bridge, doc ArrayDoc, opts []typedarray.Option) (array, error) {
	kind, ok := typedarray.KindByName(doc.Type)
	if !ok || !kind.IsArray() {
		return nil, fmt.Errorf("unsupported array type %q", doc.Type)
	}
	vals := doc.Values
	if vals == nil {
		vals = []float64{}
	}
	switch kind {
	case typedarray.KindInt8:
		return load[int8](b, vals, opts)
	case typedarray.KindUint8:
		return load[uint8](b, vals, opts)
	case typedarray.KindInt16:
		return load[int16](b, vals, opts)
	case typedarray.KindUint16:
		return load[uint16](b, vals, opts)
	case typedarray.KindInt32:
		return load[int32](b, vals, opts)
	case typedarray.KindUint32:
		return load[uint32](b, vals, opts)
	case typedarray.KindFloat32:
		return load[float32](b, vals, opts)
	case typedarray.KindFloat64:
		return load[float64](b, vals, opts)
	}
	return nil, fmt.Errorf("array type %q cannot be created from input", doc.Type)
}

// adopt wraps an existing host reference of the given kind.
func adopt(b typedarray.Bridge, ref typedarray.Ref, kind typedarray.Kind, opts []typedarray.Option) (array, error) {
	switch kind {
	case typedarray.KindInt8:
		return wrap[int8](b, ref, opts)
	case typedarray.KindUint8, typedarray.KindUint8Clamped:
		return wrap[uint8](b, ref, opts)
	case typedarray.KindInt16:
		return wrap[int16](b, ref, opts)
	case typedarray.KindUint16:
		return wrap[uint16](b, ref, opts)
	case typedarray.KindInt32:
		return wrap[int32](b, ref, opts)
	case typedarray.KindUint32:
		return wrap[uint32](b, ref, opts)
	case typedarray.KindFloat32:
		return wrap[float32](b, ref, opts)
	case typedarray.KindFloat64:
		return wrap[float64](b, ref, opts)
	}
	return nil, fmt.Errorf("%s is not a typed array: %w", kind, typedarray.ErrInvalidArgument)
}
