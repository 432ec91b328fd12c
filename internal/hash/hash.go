/*
Copyright © 2020 the geodata authors.
This file is part of geodata.

geodata is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

geodata is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with geodata.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash creates keys for caching results of
// computations on arbitrary inputs.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

// Hash returns a key that identifies the values in parts. The same
// parts will always give the same key.
func Hash(parts ...interface{}) string {
	h := fnv.New128a()
	e := gob.NewEncoder(h)
	for _, p := range parts {
		if err := e.Encode(p); err != nil {
			return spewHash(parts)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// spewHash is used when gob can't encode the input,
// for example when it holds NaN values or nil pointers.
func spewHash(parts []interface{}) string {
	h := fnv.New128a()
	printer := spew.ConfigState{
		Indent:                  " ",
		SortKeys:                true,
		DisableMethods:          true,
		SpewKeys:                true,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
	}
	for _, p := range parts {
		printer.Fprintf(h, "%#v", p)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
