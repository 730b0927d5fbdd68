package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseYears expands CLI year arguments into a sorted, de-duplicated
// list. Accepts single years ("2024") and inclusive ranges ("2010-2015").
func parseYears(args []string) ([]int, error) {
	seen := map[int]struct{}{}
	for _, arg := range args {
		lo, hi, err := parseYearArg(arg)
		if err != nil {
			return nil, err
		}
		for y := lo; y <= hi; y++ {
			seen[y] = struct{}{}
		}
	}

	years := make([]int, 0, len(seen))
	for y := range seen {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func parseYearArg(arg string) (lo, hi int, err error) {
	if from, to, ok := strings.Cut(arg, "-"); ok {
		lo, err = parseYear(from)
		if err != nil {
			return 0, 0, err
		}
		hi, err = parseYear(to)
		if err != nil {
			return 0, 0, err
		}
		if hi < lo {
			return 0, 0, fmt.Errorf("invalid year range %q", arg)
		}
		return lo, hi, nil
	}

	y, err := parseYear(arg)
	if err != nil {
		return 0, 0, err
	}
	return y, y, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || y < 1750 || y > 9999 {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	return y, nil
}
