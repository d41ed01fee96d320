package core

// InstanceKey is the composite identity of a live context instance: the
// definition's type identifier plus the string produced by its key function.
// Within a running process at most one live memory object exists per key;
// this is the system's central identity guarantee.
type InstanceKey struct {
	TypeID  string `json:"type_id"`
	Derived string `json:"derived"`
}

// String renders the key in its canonical "typeID/derived" form. The string
// form is used for map keys, single-flight grouping, log fields and the
// persistence boundary.
func (k InstanceKey) String() string { return k.TypeID + "/" + k.Derived }

// IsZero reports whether the key is the empty composite.
func (k InstanceKey) IsZero() bool { return k.TypeID == "" && k.Derived == "" }
