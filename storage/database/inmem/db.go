package inmemdb

import (
	"context"
	"sync"

	"github.com/luna-app/luna/core"
	"github.com/luna-app/luna/core/form"
	"github.com/luna-app/luna/core/response"
	"github.com/luna-app/luna/core/user"
)

// DB keeps every table behind one lock so that cascades and composite writes are atomic.
type DB struct {
	sync.RWMutex
	users     map[string]user.User
	forms     map[string]form.Form
	responses map[string]response.Response
}

var _ core.Store = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		users:     make(map[string]user.User),
		forms:     make(map[string]form.Form),
		responses: make(map[string]response.Response),
	}
}

func (db *DB) Ping(context.Context) error  { return nil }
func (db *DB) Close(context.Context) error { return nil }

func copyForm(frm form.Form) form.Form {
	flds := make([]form.Field, len(frm.Fields))
	for i, fld := range frm.Fields {
		fld.Options = append([]string(nil), fld.Options...)
		flds[i] = fld
	}
	frm.Fields = flds
	return frm
}

func copyResponse(resp response.Response) response.Response {
	resp.Fields = append([]response.FieldResponse{}, resp.Fields...)
	resp.Form = nil
	return resp
}
