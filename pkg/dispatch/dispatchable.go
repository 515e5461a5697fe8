// Package dispatch implements C6: the qualified-name -> Dispatchable
// table the message handler consults to resolve a body's (source,
// method) pair into an invocable. Grounded in the teacher's
// pkg/protocol/rtmp command dispatch (a name-keyed map of handlers
// consulted per incoming command) generalized to namespaced
// registration, duplicate detection, and auto-load-on-miss.
package dispatch

// Param describes one declared parameter of a prototype, consumed by
// C9 parameter casting.
type Param struct {
	Name string
	Type string
}

// TargetKind identifies what an invocable's target is bound to.
type TargetKind int

const (
	TargetFree TargetKind = iota
	TargetStaticOnClass
	TargetInstanceOfClass
)

// Dispatchable is one invocable the table can dispatch to: a free
// function, a static method, or an instance method.
type Dispatchable interface {
	QualifiedName() string
	ParameterPrototypes() [][]Param
	FixedArgs() []interface{}
	Target() TargetKind
	Invoke(target interface{}, args []interface{}) (interface{}, error)
}

// Func adapts a plain Go function into a free Dispatchable with a
// single parameter prototype and no fixed args, for the common case
// of registering a handler without going through the reflection
// collaborator.
type Func struct {
	Name       string
	Prototype  []Param
	Fixed      []interface{}
	Invocable  func(args []interface{}) (interface{}, error)
}

func (f *Func) QualifiedName() string            { return f.Name }
func (f *Func) ParameterPrototypes() [][]Param   { return [][]Param{f.Prototype} }
func (f *Func) FixedArgs() []interface{}         { return f.Fixed }
func (f *Func) Target() TargetKind               { return TargetFree }
func (f *Func) Invoke(_ interface{}, args []interface{}) (interface{}, error) {
	return f.Invocable(args)
}
