// params.go - Parameter-Sammlung ueber weight-Tags
//
// Collect durchlaeuft Structs rekursiv und sammelt alle *ml.Tensor Felder mit
// weight-Tag, die Gradienten benoetigen. Eingefrorene Puffer (z.B. Zeit-Frequenzen)
// tragen zwar einen Tag, werden aber nicht als Parameter gefuehrt.
package nn

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/lucidrains/tri-lbm/ml"
)

// Parameter is a named trainable tensor.
type Parameter struct {
	Name  string
	Value *ml.Tensor
}

var tensorType = reflect.TypeFor[*ml.Tensor]()

// Collect returns the trainable tensors reachable from v, named by the path
// of weight tags leading to them.
func Collect(prefix string, v any) []Parameter {
	var params []Parameter
	collect(prefix, reflect.ValueOf(v), &params)
	return params
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func collect(prefix string, v reflect.Value, params *[]Parameter) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		if v.Type() == tensorType {
			if t := v.Interface().(*ml.Tensor); t.RequiresGrad() {
				*params = append(*params, Parameter{Name: prefix, Value: t})
			}
			return
		}
		collect(prefix, v.Elem(), params)
	case reflect.Interface:
		if !v.IsNil() {
			collect(prefix, v.Elem(), params)
		}
	case reflect.Struct:
		for i := range v.NumField() {
			f := v.Type().Field(i)
			tag, ok := f.Tag.Lookup("weight")
			if !ok || !f.IsExported() {
				continue
			}
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			collect(join(prefix, name), v.Field(i), params)
		}
	case reflect.Slice, reflect.Array:
		for i := range v.Len() {
			collect(join(prefix, strconv.Itoa(i)), v.Index(i), params)
		}
	}
}

// Count returns the total number of scalar parameters.
func Count(params []Parameter) int {
	var n int
	for _, p := range params {
		n += p.Value.Numel()
	}
	return n
}

// ZeroGrad clears the gradients of params.
func ZeroGrad(params []Parameter) {
	for _, p := range params {
		p.Value.ZeroGrad()
	}
}
