package ipc

import (
	"fmt"

	"golang.org/x/sync/singleflight"
)

// Authenticator ties a Registry to a NameValidator and collapses
// concurrent first-auth races for the same component name onto a
// single Register call, via golang.org/x/sync/singleflight — two
// connections racing to establish the same not-yet-registered
// component must observe the same (handle, svcuid) pair rather than
// two distinct registrations under a capacity-one name slot.
type Authenticator struct {
	reg       *Registry
	validator NameValidator
	group     singleflight.Group
}

func NewAuthenticator(reg *Registry, validator NameValidator) *Authenticator {
	if validator == nil {
		validator = AllowAll
	}
	return &Authenticator{reg: reg, validator: validator}
}

// Authenticate runs the get-auth exchange described by §4.3/§4.6: it
// validates that pid is authorized to claim name, then registers (or
// reuses) the component's handle and token.
func (a *Authenticator) Authenticate(pid int, name string) (Handle, SVCUID, error) {
	ok, err := a.validator.ValidateName(pid, name)
	if err != nil {
		return 0, SVCUID{}, fmt.Errorf("ipc: validating name %q for pid %d: %w", name, pid, err)
	}
	if !ok {
		return 0, SVCUID{}, ErrNotAuthenticated
	}
	v, err, _ := a.group.Do(name, func() (any, error) {
		h, tok, err := a.reg.Register(name)
		if err != nil {
			return nil, err
		}
		return [2]any{h, tok}, nil
	})
	if err != nil {
		return 0, SVCUID{}, err
	}
	pair := v.([2]any)
	handle := pair[0].(Handle)
	tok := pair[1].(SVCUID)
	a.reg.BindOwner(handle, pid)
	return handle, tok, nil
}
