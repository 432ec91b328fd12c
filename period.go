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
	"time"
)

// periodFormat is the layout used to name per-period files.
const periodFormat = "2006-01"

// Period identifies one month of data. Periods are the unit that the
// time axis of a cutout is split into: each one is prepared and stored
// independently.
type Period struct {
	Year  int
	Month time.Month
}

// String returns the period in YYYY-MM format.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Before reports whether p comes before o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the first instant of the following period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// ParsePeriod parses a period in YYYY-MM format.
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodFormat, s)
	if err != nil {
		return Period{}, fmt.Errorf("geodata: parsing period '%s': %v", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// YearRange is an inclusive range of years.
type YearRange struct {
	Start, Stop int
}

// MonthRange is an inclusive range of months within each year.
type MonthRange struct {
	Start, Stop time.Month
}

// AllMonths covers January through December.
var AllMonths = MonthRange{Start: time.January, Stop: time.December}

func (y YearRange) validate() error {
	if y.Stop < y.Start {
		return fmt.Errorf("geodata: invalid year range %d-%d", y.Start, y.Stop)
	}
	return nil
}

func (m MonthRange) validate() error {
	if m.Start < time.January || m.Stop > time.December || m.Stop < m.Start {
		return fmt.Errorf("geodata: invalid month range %d-%d", m.Start, m.Stop)
	}
	return nil
}

// StackPeriods returns every (year, month) combination of the given
// ranges, ordered by year and then by month.
func StackPeriods(years YearRange, months MonthRange) []Period {
	var o []Period
	for y := years.Start; y <= years.Stop; y++ {
		for m := months.Start; m <= months.Stop; m++ {
			o = append(o, Period{Year: y, Month: m})
		}
	}
	return o
}
