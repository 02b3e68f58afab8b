package query

// Key identifies one memoized computation: a query family plus its
// serialized argument. Keys are comparable and used as map keys.
type Key struct {
	Kind string
	Arg  string
}

func (k Key) String() string {
	return k.Kind + "(" + k.Arg + ")"
}
