package bytecode

// FreeVarSet is the contract a free-variable analysis pass hands the
// compiler: the only part of that analysis the bytecode format itself
// depends on.
//
// For each user function literal, the analyzer computes the set of names
// read inside the function body that are not bound by its own parameter
// list or local declarations — the names that must resolve through the
// enclosing scope chain at set_cur_callobj time. The compiler does not need
// the set to emit correct code (get_name/set_name already walk the chain at
// runtime), and internal/compiler does not consult it: every function
// literal it compiles is followed by a set_cur_callobj.
type FreeVarSet map[string]struct{}

// NewFreeVarSet returns an empty set.
func NewFreeVarSet() FreeVarSet {
	return make(FreeVarSet)
}

func (s FreeVarSet) Add(name string) {
	s[name] = struct{}{}
}

func (s FreeVarSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s FreeVarSet) Empty() bool {
	return len(s) == 0
}
