package shell

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/scigolib/h5inspect/hdf5"
	"github.com/scigolib/h5inspect/internal/hexdump"
	"github.com/scigolib/h5inspect/internal/report"
)

const (
	fileType    = "hdf5.File"
	groupType   = "hdf5.Group"
	datasetType = "hdf5.Dataset"
	statsType   = "h5.stats"

	histWidth      = 40
	hexdumpDefault = 128
)

// fieldFunc pushes the named field of v and reports whether it exists.
type fieldFunc func(l *lua.State, v any, key string) bool

func (s *Shell) registerTypes() {
	l := s.state
	registerValueTypes(l)

	s.registerType(fileType, fileFields, map[string]lua.Function{
		"keys":     s.fileKeys,
		"contains": s.fileContains,
		"get":      s.fileGet,
		"tree":     s.fileTree,
		"info":     s.fileInfo,
		"attrs":    s.fileAttrs,
		"hexdump":  s.fileHexdump,
	})
	s.registerType(groupType, groupFields, map[string]lua.Function{
		"keys":  s.groupKeys,
		"get":   s.groupGet,
		"attrs": s.groupAttrs,
		"info":  s.groupInfo,
	})
	s.registerType(datasetType, datasetFields, map[string]lua.Function{
		"read":  s.datasetRead,
		"slice": s.datasetSlice,
		"attrs": s.datasetAttrs,
		"info":  s.datasetInfo,
		"stats": s.datasetStats,
		"hist":  s.datasetHist,
	})

	lua.NewMetaTable(l, statsType)
	lua.SetFunctions(l, []lua.RegistryFunction{{Name: "__tostring", Function: statsToString}}, 0)
	l.Pop(1)
}

func (s *Shell) registerType(name string, fields fieldFunc, methods map[string]lua.Function) {
	l := s.state
	lua.NewMetaTable(l, name)
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "__index", Function: func(l *lua.State) int {
			v := lua.CheckUserData(l, 1, name)
			key := lua.CheckString(l, 2)
			if fields(l, v, key) {
				return 1
			}
			if m, ok := methods[key]; ok {
				l.PushGoFunction(m)
				return 1
			}
			l.PushNil()
			return 1
		}},
		{Name: "__tostring", Function: func(l *lua.State) int {
			l.PushString(fmt.Sprint(lua.CheckUserData(l, 1, name)))
			return 1
		}},
	}, 0)
	l.Pop(1)
}

// raise turns err into a Lua error. It does not return.
func raise(l *lua.State, err error) {
	lua.Errorf(l, "%s", err.Error())
}

func checkFile(l *lua.State) *hdf5.File {
	f, _ := lua.CheckUserData(l, 1, fileType).(*hdf5.File)
	if f == nil {
		lua.ArgumentError(l, 1, "file expected")
	}
	return f
}

func checkGroup(l *lua.State) *hdf5.Group {
	g, _ := lua.CheckUserData(l, 1, groupType).(*hdf5.Group)
	if g == nil {
		lua.ArgumentError(l, 1, "group expected")
	}
	return g
}

func checkDataset(l *lua.State) *hdf5.Dataset {
	d, _ := lua.CheckUserData(l, 1, datasetType).(*hdf5.Dataset)
	if d == nil {
		lua.ArgumentError(l, 1, "dataset expected")
	}
	return d
}

func fileFields(l *lua.State, v any, key string) bool {
	f := v.(*hdf5.File)
	switch key {
	case "filename":
		l.PushString(f.Filename())
	case "name":
		l.PushString("/")
	case "mode":
		l.PushString("r")
	default:
		return false
	}
	return true
}

func groupFields(l *lua.State, v any, key string) bool {
	if key != "name" {
		return false
	}
	l.PushString(v.(*hdf5.Group).Name())
	return true
}

func datasetFields(l *lua.State, v any, key string) bool {
	d := v.(*hdf5.Dataset)
	switch key {
	case "name":
		l.PushString(d.Name())
	case "dtype":
		l.PushString(d.Dtype().String())
	case "size":
		l.PushNumber(float64(d.Size()))
	case "ndim":
		l.PushInteger(d.Shape().Rank())
	case "shape":
		if d.IsNull() {
			l.PushNil()
			break
		}
		shape := d.Shape()
		l.CreateTable(len(shape), 0)
		for i, n := range shape {
			l.PushNumber(float64(n))
			l.RawSetInt(-2, i+1)
		}
		lua.SetMetaTableNamed(l, shapeType)
	default:
		return false
	}
	return true
}

func (s *Shell) fileKeys(l *lua.State) int {
	f := checkFile(l)
	g, err := f.Group(lua.OptString(l, 2, "/"))
	if err != nil {
		raise(l, err)
	}
	keys, err := g.Keys()
	if err != nil {
		raise(l, err)
	}
	s.pushValue(keys)
	return 1
}

func (s *Shell) fileContains(l *lua.State) int {
	f := checkFile(l)
	l.PushBoolean(f.Contains(lua.CheckString(l, 2)))
	return 1
}

func (s *Shell) fileGet(l *lua.State) int {
	f := checkFile(l)
	obj, err := f.Get(lua.CheckString(l, 2))
	if err != nil {
		raise(l, err)
	}
	s.pushValue(obj)
	return 1
}

func (s *Shell) fileTree(l *lua.State) int {
	f := checkFile(l)
	var sb strings.Builder
	if err := report.Tree(&sb, f); err != nil {
		raise(l, err)
	}
	l.PushString(strings.TrimSuffix(sb.String(), "\n"))
	return 1
}

func (s *Shell) fileInfo(l *lua.State) int {
	f := checkFile(l)
	p, err := report.FilePanel(f)
	if err != nil {
		raise(l, err)
	}
	pushPanel(l, p)
	return 1
}

func (s *Shell) fileAttrs(l *lua.State) int {
	f := checkFile(l)
	s.pushAttributes(l, f.Root())
	return 1
}

func (s *Shell) fileHexdump(l *lua.State) int {
	f := checkFile(l)
	offset := lua.CheckInteger(l, 2)
	length := lua.OptInteger(l, 3, hexdumpDefault)
	var sb strings.Builder
	if _, err := hexdump.Dump(&sb, f, f.Size(), int64(offset), length); err != nil {
		raise(l, err)
	}
	l.PushString(strings.TrimSuffix(sb.String(), "\n"))
	return 1
}

func (s *Shell) groupKeys(l *lua.State) int {
	keys, err := checkGroup(l).Keys()
	if err != nil {
		raise(l, err)
	}
	s.pushValue(keys)
	return 1
}

func (s *Shell) groupGet(l *lua.State) int {
	g := checkGroup(l)
	obj, err := g.Get(lua.CheckString(l, 2))
	if err != nil {
		raise(l, err)
	}
	s.pushValue(obj)
	return 1
}

func (s *Shell) groupAttrs(l *lua.State) int {
	s.pushAttributes(l, checkGroup(l))
	return 1
}

func (s *Shell) groupInfo(l *lua.State) int {
	p, err := report.GroupPanel(checkGroup(l))
	if err != nil {
		raise(l, err)
	}
	pushPanel(l, p)
	return 1
}

func (s *Shell) datasetRead(l *lua.State) int {
	d := checkDataset(l)
	n := lua.OptInteger(l, 2, s.maxPrint)
	if n < 1 {
		lua.ArgumentError(l, 2, "element count must be positive")
	}
	vals, err := readFirst(d, n)
	if err != nil {
		raise(l, err)
	}
	if d.Shape().Rank() == 0 {
		rv := reflect.ValueOf(vals)
		if rv.Kind() == reflect.Slice && rv.Len() == 1 {
			vals = rv.Index(0).Interface()
		}
	}
	s.pushValue(vals)
	return 1
}

// readFirst reads at least the first n elements in row-major order,
// touching only the leading rows that hold them.
func readFirst(d *hdf5.Dataset, n int) (any, error) {
	shape := d.Shape()
	if shape.Rank() == 0 || uint64(n) >= d.Size() {
		vals, err := d.Read()
		if err != nil {
			return nil, err
		}
		return truncate(vals, n), nil
	}
	row := shape[1:].Size()
	rows := (uint64(n) + row - 1) / row
	start := make([]uint64, len(shape))
	count := append([]uint64{rows}, shape[1:]...)
	vals, err := d.ReadSlice(start, count)
	if err != nil {
		return nil, err
	}
	return truncate(vals, n), nil
}

func (s *Shell) datasetSlice(l *lua.State) int {
	d := checkDataset(l)
	start, err := checkDims(l, 2)
	if err != nil {
		raise(l, err)
	}
	count, err := checkDims(l, 3)
	if err != nil {
		raise(l, err)
	}
	vals, err := d.ReadSlice(start, count)
	if err != nil {
		raise(l, err)
	}
	s.pushValue(vals)
	return 1
}

func (s *Shell) datasetAttrs(l *lua.State) int {
	s.pushAttributes(l, checkDataset(l))
	return 1
}

func (s *Shell) datasetInfo(l *lua.State) int {
	p, err := report.DatasetPanel(checkDataset(l))
	if err != nil {
		raise(l, err)
	}
	pushPanel(l, p)
	return 1
}

func (s *Shell) datasetStats(l *lua.State) int {
	d := checkDataset(l)
	if !d.Dtype().IsNumeric() {
		raise(l, fmt.Errorf("dataset %s has non-numeric type %s", d.Name(), d.Dtype()))
	}
	vals, err := d.ReadFloat64()
	if err != nil {
		raise(l, err)
	}
	st := report.ComputeStats(vals)

	l.CreateTable(0, 6)
	l.PushInteger(st.Count)
	l.SetField(-2, "count")
	l.PushInteger(st.NaN)
	l.SetField(-2, "nan")
	for _, f := range []struct {
		name string
		v    float64
	}{{"min", st.Min}, {"max", st.Max}, {"mean", st.Mean}, {"std", st.Std}} {
		l.PushNumber(f.v)
		l.SetField(-2, f.name)
	}
	lua.SetMetaTableNamed(l, statsType)
	return 1
}

func statsToString(l *lua.State) int {
	number := func(key string) float64 {
		l.PushString(key)
		l.RawGet(1)
		v, _ := l.ToNumber(-1)
		l.Pop(1)
		return v
	}
	st := report.Stats{
		Count: int(number("count")),
		NaN:   int(number("nan")),
		Min:   number("min"),
		Max:   number("max"),
		Mean:  number("mean"),
		Std:   number("std"),
	}
	pushPanel(l, st.Panel())
	return 1
}

func (s *Shell) datasetHist(l *lua.State) int {
	d := checkDataset(l)
	bins := lua.OptInteger(l, 2, s.histBins)
	if !d.Dtype().IsNumeric() {
		raise(l, fmt.Errorf("dataset %s has non-numeric type %s", d.Name(), d.Dtype()))
	}
	vals, err := d.ReadFloat64()
	if err != nil {
		raise(l, err)
	}
	hist, err := report.Histogram(vals, bins)
	if err != nil {
		raise(l, err)
	}
	var sb strings.Builder
	if err := report.RenderHistogram(&sb, hist, histWidth); err != nil {
		raise(l, err)
	}
	l.PushString(strings.TrimSuffix(sb.String(), "\n"))
	return 1
}

func (s *Shell) pushAttributes(l *lua.State, obj hdf5.Object) {
	attrs, err := obj.Attributes()
	if err != nil {
		raise(l, err)
	}
	m := make(map[string]any, len(attrs))
	for _, a := range attrs {
		m[a.Name] = a.Value
	}
	s.pushValue(m)
}

func pushPanel(l *lua.State, p report.Panel) {
	l.PushString(strings.TrimSuffix(p.String(), "\n"))
}
