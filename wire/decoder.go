package wire

import (
	"github.com/anirudhraja/structlite/deferred"
	"github.com/anirudhraja/structlite/internal/logging"
)

// NamedField pairs a field name with its definition
type NamedField struct {
	Name       string
	Definition Definition
}

// Decoder reads fields from a byte source, strictly one after another
type Decoder struct {
	src Source
	ctx *Context
}

// NewDecoder creates a decoder over src
func NewDecoder(src Source, ctx *Context) *Decoder {
	if ctx == nil {
		ctx = DefaultContext()
	}
	return &Decoder{
		src: src,
		ctx: ctx,
	}
}

// DecodeFields reads every field in order, handing each runtime value to
// store before the next field is requested so later fields can see it
// through scope. It stays synchronous while the source has the bytes and
// suspends only on a pending read. The first failure rejects the result.
func (d *Decoder) DecodeFields(fields []NamedField, scope Scope, store func(name string, v Value)) deferred.Value[struct{}] {
	return d.decodeFrom(0, fields, scope, store)
}

func (d *Decoder) decodeFrom(i int, fields []NamedField, scope Scope, store func(string, Value)) deferred.Value[struct{}] {
	for ; i < len(fields); i++ {
		f := fields[i]
		res := f.Definition.Read(f.Name, d.src, scope, d.ctx)

		if res.State() == deferred.StatePending {
			logging.Debug(logging.ComponentStruct, "field read pending", "field", f.Name, "index", i)
			next := i + 1
			res = deferred.Catch(res, func(err error) deferred.Value[Value] {
				return deferred.Rejected[Value](WithField(err, f.Name))
			})
			return deferred.Then(res, func(v Value) deferred.Value[struct{}] {
				store(f.Name, v)
				return d.decodeFrom(next, fields, scope, store)
			})
		}

		v, err := res.Sync()
		if err != nil {
			return deferred.Rejected[struct{}](WithField(err, f.Name))
		}
		store(f.Name, v)
	}
	return deferred.Resolved(struct{}{})
}
