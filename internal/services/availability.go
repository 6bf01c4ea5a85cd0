package services

import "sort"

// IsAvailable reports whether quantity more units fit next to the reserved ones.
func IsAvailable(inventory, reserved, quantity int) bool {
	return inventory-reserved >= quantity
}

// UnavailableDates lists, ascending, the dates on which quantity units cannot be booked.
// Dates without reservations are always available and never listed.
func UnavailableDates(inventory int, reservedByDate map[string]int, quantity int) []string {
	dates := make([]string, 0)
	for date, reserved := range reservedByDate {
		if !IsAvailable(inventory, reserved, quantity) {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates
}
