// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package model

import (
	"github.com/kilnbuild/kiln/pkg/modeltype"
)

// Reference identifies a model element by type and, optionally, by path.
// References are comparable and are used as map keys.
type Reference struct {
	Type *modeltype.Type
	Path string
}

// Of returns an unpathed reference to the element of type t.
func Of(t *modeltype.Type) Reference {
	return Reference{Type: t}
}

// WithPath returns a copy of r bound to path.
func (r Reference) WithPath(path string) Reference {
	r.Path = path
	return r
}

// IsZero reports whether r has neither type nor path.
func (r Reference) IsZero() bool {
	return r.Type == nil && r.Path == ""
}

func (r Reference) String() string {
	if r.Path == "" {
		return r.Type.String()
	}
	return r.Path + " (" + r.Type.String() + ")"
}
