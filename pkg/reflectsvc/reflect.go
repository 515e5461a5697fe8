// Package reflectsvc implements the reflection collaborator: turning
// a Go value (a struct, or a plain function) into the Dispatchable
// values the dispatch table registers and invokes through, via Go's
// reflect package. Grounded in the teacher's pkg/utils reflective
// helpers pattern, generalized to produce dispatch.Dispatchable and
// dispatch.Param shapes spec §6 requires of reflectClass/reflectFunction.
package reflectsvc

import (
	"fmt"
	"reflect"

	"amfgw/pkg/cast"
	"amfgw/pkg/dispatch"
)

// MethodReflection describes one method reflectClass discovered.
type MethodReflection struct {
	Name           string
	Prototype      []dispatch.Param
	DeclaringClass string
	IsStatic       bool
	fixedArgs      []interface{}
	invoke         func(target interface{}, args []interface{}) (interface{}, error)
}

func (m *MethodReflection) QualifiedName() string { return m.Name }
func (m *MethodReflection) ParameterPrototypes() [][]dispatch.Param {
	return [][]dispatch.Param{m.Prototype}
}
func (m *MethodReflection) FixedArgs() []interface{} { return m.fixedArgs }
func (m *MethodReflection) Target() dispatch.TargetKind {
	if m.IsStatic {
		return dispatch.TargetStaticOnClass
	}
	return dispatch.TargetInstanceOfClass
}
func (m *MethodReflection) Invoke(target interface{}, args []interface{}) (interface{}, error) {
	return m.invoke(target, args)
}

// ClassReflection is the result of reflecting a class or instance.
type ClassReflection struct {
	ClassName string
	methods   []*MethodReflection
}

// GetMethods returns the invocables reflectClass discovered.
func (c *ClassReflection) GetMethods() []*MethodReflection { return c.methods }

// FunctionReflection is the result of reflecting a free function.
type FunctionReflection struct {
	*MethodReflection
}

// Service turns Go values into Dispatchable-producing reflections
// using Go's reflect package.
type Service struct{}

// NewService returns a reflection collaborator.
func NewService() *Service { return &Service{} }

// ReflectClass reflects every exported method of class (a struct
// value or pointer) into a ClassReflection. fixedArgs are appended
// onto every discovered method's argument list at invoke time.
// namespace is recorded as the declaring class name if class has no
// discoverable type name.
func (s *Service) ReflectClass(class interface{}, fixedArgs []interface{}, namespace string) (*ClassReflection, error) {
	val := reflect.ValueOf(class)
	typ := val.Type()
	className := typ.Name()
	if className == "" {
		className = namespace
	}

	refl := &ClassReflection{ClassName: className}
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		if !method.IsExported() {
			continue
		}
		mval := val.Method(i)
		refl.methods = append(refl.methods, &MethodReflection{
			Name:           method.Name,
			Prototype:      paramsFromFunc(method.Type, true),
			DeclaringClass: className,
			IsStatic:       false,
			fixedArgs:      fixedArgs,
			invoke:         boundInvoker(mval),
		})
	}
	return refl, nil
}

// ReflectFunction reflects a single free function into a
// FunctionReflection.
func (s *Service) ReflectFunction(fn interface{}, fixedArgs []interface{}, namespace string) (*FunctionReflection, error) {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func {
		return nil, fmt.Errorf("reflectsvc: %v is not a function", val.Kind())
	}
	name := runtimeFuncName(val)
	return &FunctionReflection{
		MethodReflection: &MethodReflection{
			Name:      name,
			Prototype: paramsFromFunc(val.Type(), false),
			fixedArgs: fixedArgs,
			invoke:    freeInvoker(val),
		},
	}, nil
}

// AutoLoadResults adapts a ClassReflection's methods into the
// dispatch.AutoLoadResult shape the dispatch table's auto-load path
// registers under namespace.methodName.
func AutoLoadResults(refl *ClassReflection) []dispatch.AutoLoadResult {
	out := make([]dispatch.AutoLoadResult, 0, len(refl.methods))
	for _, m := range refl.methods {
		out = append(out, dispatch.AutoLoadResult{
			ShortName:    m.Name,
			Namespace:    refl.ClassName,
			Dispatchable: m,
		})
	}
	return out
}

// AutoLoader adapts Service into the dispatch table's Reflector seam,
// used on a qualified-name miss to reflect a freshly loaded class.
type AutoLoader struct {
	Service *Service
}

func (a *AutoLoader) ReflectClass(class interface{}) ([]dispatch.AutoLoadResult, error) {
	refl, err := a.Service.ReflectClass(class, nil, "")
	if err != nil {
		return nil, err
	}
	return AutoLoadResults(refl), nil
}

func paramsFromFunc(typ reflect.Type, isMethod bool) []dispatch.Param {
	start := 0
	if isMethod {
		start = 1 // receiver already bound via reflect.Value.Method
	}
	params := make([]dispatch.Param, 0, typ.NumIn()-start)
	for i := start; i < typ.NumIn(); i++ {
		params = append(params, dispatch.Param{
			Name: fmt.Sprintf("arg%d", i-start),
			Type: typeName(typ.In(i)),
		})
	}
	return params
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return typeName(t.Elem()) + "[]"
	case reflect.Ptr:
		return t.Elem().Name()
	default:
		return t.Name()
	}
}

func boundInvoker(mval reflect.Value) func(target interface{}, args []interface{}) (interface{}, error) {
	return func(_ interface{}, args []interface{}) (interface{}, error) {
		return callReflect(mval, args)
	}
}

func freeInvoker(val reflect.Value) func(target interface{}, args []interface{}) (interface{}, error) {
	return func(_ interface{}, args []interface{}) (interface{}, error) {
		return callReflect(val, args)
	}
}

func callReflect(fn reflect.Value, args []interface{}) (result interface{}, err error) {
	in := make([]reflect.Value, len(args))
	typ := fn.Type()
	for i, a := range args {
		if a == nil && i < typ.NumIn() {
			in[i] = reflect.Zero(typ.In(i))
			continue
		}
		in[i] = reflect.ValueOf(a)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reflectsvc: invocable panicked: %v", r)
		}
	}()
	out := fn.Call(in)
	return unpackResult(out)
}

func unpackResult(out []reflect.Value) (interface{}, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if err, ok := last.Interface().(error); ok && !last.IsNil() {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func runtimeFuncName(val reflect.Value) string {
	ptr := val.Pointer()
	return fmt.Sprintf("func_%x", ptr)
}

var _ cast.InstanceChecker = InstanceOf

// InstanceOf is the cast.InstanceChecker example wiring: reports
// whether v's Go type name matches typeName.
func InstanceOf(typeName string, v interface{}) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name() == typeName
}
