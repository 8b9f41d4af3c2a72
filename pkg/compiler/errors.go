/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package compiler

import "fmt"

// PortConflictError reports two components declaring the same container
// port. Both component ids are named so the definition author can see
// exactly which pair collides.
type PortConflictError struct {
	Port     int32
	FirstID  string
	SecondID string
}

func (e *PortConflictError) Error() string {
	return fmt.Sprintf("compiler: port %d declared by both %q and %q", e.Port, e.FirstID, e.SecondID)
}

// IDConflictError reports a duplicate component id reaching the compiler.
// The validator catches this earlier; the compiler re-checks because its
// output names are derived from component ids.
type IDConflictError struct {
	ID string
}

func (e *IDConflictError) Error() string {
	return fmt.Sprintf("compiler: duplicate component id %q", e.ID)
}

// ReferenceError reports a component referencing an id that does not
// resolve to a component of the required kind.
type ReferenceError struct {
	ComponentID string
	Target      string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("compiler: component %q references unknown target %q", e.ComponentID, e.Target)
}
