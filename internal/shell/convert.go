package shell

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/scigolib/h5inspect/hdf5"
)

const (
	listType   = "h5.list"
	recordType = "h5.record"
	shapeType  = "h5.shape"
)

// toString converts the value at index like tostring() and leaves the
// stack unchanged.
func toString(l *lua.State, index int) string {
	index = l.AbsIndex(index)
	s, _ := lua.ToStringMeta(l, index)
	l.Pop(1)
	return s
}

// pushValue pushes a decoded Go value. Slices become lists, maps become
// records and HDF5 objects become userdata.
func (s *Shell) pushValue(v any) {
	l := s.state
	switch x := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(x)
	case string:
		l.PushString(x)
	case []byte:
		s.pushList(reflect.ValueOf(x))
	case float64:
		l.PushNumber(x)
	case float32:
		l.PushNumber(float64(x))
	case int:
		l.PushInteger(x)
	case *hdf5.File:
		l.PushUserData(x)
		lua.SetMetaTableNamed(l, fileType)
	case *hdf5.Group:
		l.PushUserData(x)
		lua.SetMetaTableNamed(l, groupType)
	case *hdf5.Dataset:
		l.PushUserData(x)
		lua.SetMetaTableNamed(l, datasetType)
	case hdf5.Shape:
		l.CreateTable(len(x), 0)
		for i, d := range x {
			l.PushNumber(float64(d))
			l.RawSetInt(-2, i+1)
		}
		lua.SetMetaTableNamed(l, shapeType)
	case map[string]any:
		l.CreateTable(0, len(x))
		for k, e := range x {
			s.pushValue(e)
			l.SetField(-2, k)
		}
		lua.SetMetaTableNamed(l, recordType)
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			l.PushNumber(float64(rv.Int()))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
			l.PushNumber(float64(rv.Uint()))
		case reflect.Complex64, reflect.Complex128:
			l.PushString(fmt.Sprint(rv.Complex()))
		case reflect.Slice, reflect.Array:
			s.pushList(rv)
		default:
			l.PushString(fmt.Sprint(v))
		}
	}
}

func (s *Shell) pushList(rv reflect.Value) {
	l := s.state
	l.CreateTable(rv.Len(), 0)
	for i := range rv.Len() {
		s.pushValue(rv.Index(i).Interface())
		l.RawSetInt(-2, i+1)
	}
	lua.SetMetaTableNamed(l, listType)
}

// truncate returns at most n leading elements of a slice.
func truncate(v any, n int) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Len() <= n {
		return v
	}
	return rv.Slice(0, n).Interface()
}

func registerValueTypes(l *lua.State) {
	lua.NewMetaTable(l, listType)
	lua.SetFunctions(l, []lua.RegistryFunction{{Name: "__tostring", Function: listToString}}, 0)
	l.Pop(1)

	lua.NewMetaTable(l, recordType)
	lua.SetFunctions(l, []lua.RegistryFunction{{Name: "__tostring", Function: recordToString}}, 0)
	l.Pop(1)

	lua.NewMetaTable(l, shapeType)
	lua.SetFunctions(l, []lua.RegistryFunction{{Name: "__tostring", Function: shapeToString}}, 0)
	l.Pop(1)
}

// element renders a list item: strings are quoted.
func element(l *lua.State, index int) string {
	if l.TypeOf(index) == lua.TypeString {
		s, _ := l.ToString(index)
		return fmt.Sprintf("%q", s)
	}
	return toString(l, index)
}

func listToString(l *lua.State) int {
	n := l.RawLength(1)
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(1, i)
		parts[i-1] = element(l, -1)
		l.Pop(1)
	}
	l.PushString("[" + strings.Join(parts, ", ") + "]")
	return 1
}

func recordToString(l *lua.State) int {
	fields := map[string]string{}
	l.PushNil()
	for l.Next(1) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			fields[key] = element(l, -1)
		}
		l.Pop(1)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + fields[k]
	}
	l.PushString("{" + strings.Join(parts, ", ") + "}")
	return 1
}

func shapeToString(l *lua.State) int {
	shape, err := checkDims(l, 1)
	if err != nil {
		lua.Errorf(l, "%s", err.Error())
	}
	l.PushString(hdf5.Shape(shape).String())
	return 1
}

// checkDims reads a list of non-negative integers.
func checkDims(l *lua.State, index int) ([]uint64, error) {
	if l.TypeOf(index) != lua.TypeTable {
		return nil, fmt.Errorf("bad argument #%d (table expected, got %s)", index, lua.TypeNameOf(l, index))
	}
	n := l.RawLength(index)
	dims := make([]uint64, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(index, i)
		v, ok := l.ToNumber(-1)
		l.Pop(1)
		if !ok || v < 0 || v != float64(uint64(v)) {
			return nil, fmt.Errorf("bad argument #%d (element %d is not a non-negative integer)", index, i)
		}
		dims[i-1] = uint64(v)
	}
	return dims, nil
}
