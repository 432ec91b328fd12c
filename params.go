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

package geodata

import (
	"fmt"

	"github.com/spf13/cast"
)

// Params holds provider-specific parameters.
type Params map[string]interface{}

// Copy returns a shallow copy of p that can be modified without
// affecting p.
func (p Params) Copy() Params {
	o := make(Params, len(p))
	for k, v := range p {
		o[k] = v
	}
	return o
}

// String returns parameter key as a string.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", fmt.Errorf("geodata: missing parameter '%s'", key)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("geodata: parameter '%s': %v", key, err)
	}
	return s, nil
}

// StringSlice returns parameter key as a slice of strings.
func (p Params) StringSlice(key string) ([]string, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("geodata: missing parameter '%s'", key)
	}
	s, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("geodata: parameter '%s': %v", key, err)
	}
	return s, nil
}

// Float64 returns parameter key as a float64.
func (p Params) Float64(key string) (float64, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("geodata: missing parameter '%s'", key)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("geodata: parameter '%s': %v", key, err)
	}
	return f, nil
}

// Bool returns parameter key as a bool, or def if it is not set.
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def, fmt.Errorf("geodata: parameter '%s': %v", key, err)
	}
	return b, nil
}
