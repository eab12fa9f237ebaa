package calc

// Predeclared constants available in every session.
const (
	PiValue = 3.1415926535
	EValue  = 2.7182818284
)

// Variable is a named binding. Const never changes after declaration.
type Variable struct {
	Name  string
	Value float64
	Const bool
}

// SymbolTable is a flat namespace of variables in declaration order.
type SymbolTable struct {
	vars []Variable
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// NewPredeclaredTable returns a table holding the constants pi and e.
func NewPredeclaredTable() *SymbolTable {
	st := NewSymbolTable()
	st.vars = append(st.vars,
		Variable{Name: "pi", Value: PiValue, Const: true},
		Variable{Name: "e", Value: EValue, Const: true},
	)
	return st
}

func (st *SymbolTable) lookup(name string) *Variable {
	for i := range st.vars {
		if st.vars[i].Name == name {
			return &st.vars[i]
		}
	}
	return nil
}

// IsDeclared reports whether name exists.
func (st *SymbolTable) IsDeclared(name string) bool {
	return st.lookup(name) != nil
}

// Declare adds a new variable and returns value unchanged.
func (st *SymbolTable) Declare(name string, value float64, isConst bool) (float64, error) {
	if st.IsDeclared(name) {
		return 0, newError(ErrDuplicateDeclaration, name)
	}
	st.vars = append(st.vars, Variable{Name: name, Value: value, Const: isConst})
	return value, nil
}

// Get returns the current value of name.
func (st *SymbolTable) Get(name string) (float64, error) {
	v := st.lookup(name)
	if v == nil {
		return 0, newError(ErrUndeclaredVariable, name)
	}
	return v.Value, nil
}

// Set overwrites the value of an existing, non-constant variable.
func (st *SymbolTable) Set(name string, value float64) error {
	v := st.lookup(name)
	if v == nil {
		return newError(ErrUndeclaredVariable, name)
	}
	if v.Const {
		return newError(ErrAssignToConst, name)
	}
	v.Value = value
	return nil
}

// Variables returns a copy of all bindings in declaration order.
func (st *SymbolTable) Variables() []Variable {
	out := make([]Variable, len(st.vars))
	copy(out, st.vars)
	return out
}

// Len returns the number of declared variables.
func (st *SymbolTable) Len() int {
	return len(st.vars)
}
