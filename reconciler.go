package confdiff

import "time"

// rootField wraps a root sequence so its records sit at depth 1.
const rootField = ""

// Reconciler computes merge and removal deltas for one identity key spec.
// A Reconciler holds no state between calls and is safe for concurrent use.
type Reconciler struct {
	keys KeySpec
	cfg  config
}

// New constructs a Reconciler for keys.
func New(keys KeySpec, opts ...Option) *Reconciler {
	return &Reconciler{
		keys: keys.Clone(),
		cfg:  applyOptions(opts),
	}
}

// Keys returns a copy of the identity key spec.
func (r *Reconciler) Keys() KeySpec {
	return r.keys.Clone()
}

// Diff returns the merge delta: every field or record desired sets that
// current lacks or holds with another value. Scalar sets contribute only the
// elements to add. Nothing current holds alone ever appears.
func Diff(current, desired Value, keys KeySpec) (Value, error) {
	return New(keys).Diff(current, desired)
}

// Intersect returns the removal delta: the fields current holds where desired
// mentions the same branch, with n_keys bookkeeping on every record. An
// explicitly empty tree or sequence in desired removes current's whole
// subtree with n_keys set to 1.
func Intersect(current, desired Value, keys KeySpec) (Value, error) {
	return New(keys).Intersect(current, desired)
}

// ComplementOptions tunes Complement.
type ComplementOptions struct {
	// IncludeUnlisted removes resource entries desired does not list at all.
	IncludeUnlisted bool
}

// Diff computes the merge delta of current and desired.
func (r *Reconciler) Diff(current, desired Value) (Value, error) {
	const op = "diff"
	c := r.begin(op)
	in, err := r.prepare(op, current, desired, pruneStrict)
	if err != nil {
		return Value{}, r.finish(c, in, Value{}, err)
	}
	var out Value
	switch {
	case in.desiredEmpty:
		out = in.empty()
	case in.currentEmpty:
		out = in.desiredValue
	default:
		out = in.unwrap(diffNode(in.current, in.desired).Denormalize())
	}
	return out, r.finish(c, in, out, nil)
}

// Intersect computes the removal delta of current and desired. It keeps what
// both sides share: for current {id:x, a:1, b:2} and desired {id:x, a:1} with
// id identifying records, the record comes back as {id:x, a:1, n_keys:2}.
// Use Complement for the fields desired dropped, {id:x, b:2, n_keys:2}.
func (r *Reconciler) Intersect(current, desired Value) (Value, error) {
	const op = "intersect"
	c := r.begin(op)
	in, err := r.prepare(op, current, desired, pruneKeepMarkers)
	if err != nil {
		return Value{}, r.finish(c, in, Value{}, err)
	}
	if in.currentEmpty || in.desiredEmpty {
		out := in.empty()
		return out, r.finish(c, in, out, nil)
	}
	out, err := r.removal(c, in, intersectTree(in.current, in.desired, false))
	return out, r.finish(c, in, out, err)
}

// Complement computes a removal delta with replace semantics. Fields and
// records current holds inside a record desired lists, but which desired no
// longer names, are removed together with the record's identity. Scalar sets
// yield current's elements missing from desired. Scalars desired changes are
// left to the merge delta. Entries desired does not list at all are only
// removed with IncludeUnlisted, as whole records.
func (r *Reconciler) Complement(current, desired Value, opts ComplementOptions) (Value, error) {
	const op = "complement"
	c := r.begin(op)
	in, err := r.prepare(op, current, desired, pruneKeepMarkers)
	if err != nil {
		return Value{}, r.finish(c, in, Value{}, err)
	}
	if in.currentEmpty || (in.desiredEmpty && !opts.IncludeUnlisted) {
		out := in.empty()
		return out, r.finish(c, in, out, nil)
	}
	var delta *Normalized
	if in.desiredEmpty {
		delta = eraseRoot(in.current)
	} else {
		cmp := complementer{keys: r.keys, includeUnlisted: opts.IncludeUnlisted}
		delta = cmp.tree(in.current, in.desired, 0, r.keys.FieldsAt(0), true)
	}
	out, err := r.removal(c, in, delta)
	return out, r.finish(c, in, out, err)
}

// eraseAll returns the removal delta deleting everything current holds.
func (r *Reconciler) eraseAll(current Value) (Value, error) {
	const op = "erase"
	c := r.begin(op)
	in, err := r.prepare(op, current, Value{}, pruneKeepMarkers)
	if err != nil {
		return Value{}, r.finish(c, in, Value{}, err)
	}
	if in.currentEmpty {
		out := in.empty()
		return out, r.finish(c, in, out, nil)
	}
	out, err := r.removal(c, in, eraseRoot(in.current))
	return out, r.finish(c, in, out, err)
}

func (r *Reconciler) removal(c *call, in prepared, delta *Normalized) (Value, error) {
	if r.cfg.filter != nil && delta != nil {
		filterer := &removalFilterer{filter: r.cfg.filter}
		filtered, err := filterer.apply(delta, 0, "")
		c.protected = filterer.protected
		if err != nil {
			return Value{}, err
		}
		delta = filtered
	}
	return in.unwrap(delta.Denormalize()), nil
}

// call tracks one facade invocation for logging.
type call struct {
	op        string
	start     time.Time
	protected int
}

func (r *Reconciler) begin(op string) *call {
	return &call{op: op, start: r.cfg.clock()}
}

func (r *Reconciler) finish(c *call, in prepared, out Value, err error) error {
	r.cfg.logger.LogReconcile(LogEvent{
		Operation:  c.op,
		Keys:       r.keys.String(),
		Duration:   r.cfg.clock().Sub(c.start),
		Collisions: in.collisions,
		Protected:  c.protected,
		Empty:      out.IsEmpty(),
		Err:        err,
	})
	return err
}

// prepared holds both inputs pruned, wrapped and normalized.
type prepared struct {
	shape        Kind
	current      *Normalized
	desired      *Normalized
	desiredValue Value
	currentEmpty bool
	desiredEmpty bool
	collisions   int
}

func (r *Reconciler) prepare(op string, current, desired Value, desiredMode pruneMode) (prepared, error) {
	shape, err := rootShape(op, current, desired)
	if err != nil {
		return prepared{}, err
	}
	prunedCurrent, _ := prune(current, pruneKeepMarkers)
	prunedDesired, _ := prune(desired, desiredMode)
	in := prepared{
		shape:        shape,
		desiredValue: prunedDesired,
		currentEmpty: prunedCurrent.IsEmpty(),
		desiredEmpty: prunedDesired.IsEmpty(),
	}
	if in.desiredValue.IsNull() {
		in.desiredValue = in.empty()
	}
	if in.currentEmpty && in.desiredEmpty {
		return in, nil
	}

	n := &normalizer{keys: r.keys, strict: r.cfg.strict}
	if in.current, err = n.normalize(in.wrap(prunedCurrent), 0, ""); err != nil {
		return in, withOp(op, "current", err)
	}
	if in.desired, err = n.normalize(in.wrap(prunedDesired), 0, ""); err != nil {
		return in, withOp(op, "desired", err)
	}
	in.collisions = n.collisions
	return in, nil
}

func (in prepared) empty() Value {
	if in.shape == KindSequence {
		return NewSequence()
	}
	return NewTree(nil)
}

func (in prepared) wrap(v Value) Value {
	if in.shape != KindSequence {
		if v.kind != KindTree {
			return NewTree(nil)
		}
		return v
	}
	if v.kind != KindSequence {
		v = NewSequence()
	}
	return NewTree(Tree{rootField: v})
}

func (in prepared) unwrap(v Value) Value {
	if in.shape != KindSequence {
		if v.kind != KindTree {
			return NewTree(nil)
		}
		return v
	}
	items := v.Get(rootField)
	if items.kind != KindSequence {
		return NewSequence()
	}
	return items
}

// rootShape reports the shared root kind of current and desired. A null root
// takes the other side's kind; scalars and tree/sequence pairs are rejected.
func rootShape(op string, current, desired Value) (Kind, error) {
	if current.kind == KindScalar || desired.kind == KindScalar {
		return KindNull, &ShapeError{Op: op, Current: current.kind, Desired: desired.kind}
	}
	switch {
	case current.kind == KindNull && desired.kind == KindNull:
		return KindTree, nil
	case current.kind == KindNull:
		return desired.kind, nil
	case desired.kind == KindNull:
		return current.kind, nil
	case current.kind != desired.kind:
		return KindNull, &ShapeError{Op: op, Current: current.kind, Desired: desired.kind}
	}
	return current.kind, nil
}
