package store

// OpKind is the kind of a recorded batch write.
type OpKind int

const (
	OpCreate OpKind = iota
	OpSet
	OpDelete
)

// Op is one recorded batch write.
type Op struct {
	Kind       OpKind
	Collection string
	ID         string
	Fields     map[string]any
	Merge      bool
}

// Ops records batch writes in order. Backends embed it and implement
// Commit.
type Ops struct {
	List []Op
}

func (o *Ops) add(op Op) {
	o.List = append(o.List, op)
}

// Collections returns the distinct collections touched, in first-use order.
func (o *Ops) Collections() []string {
	var out []string
	seen := make(map[string]bool)
	for _, op := range o.List {
		if !seen[op.Collection] {
			seen[op.Collection] = true
			out = append(out, op.Collection)
		}
	}
	return out
}

// Record appends a write. Backends wrap it in their Batch methods.
func (o *Ops) Record(kind OpKind, collection, id string, fields map[string]any, merge bool) {
	o.add(Op{Kind: kind, Collection: collection, ID: id, Fields: fields, Merge: merge})
}
