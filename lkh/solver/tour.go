package solver

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseTour reads a solver tour file and returns the 0-based node order.
// Tour files list 1-based indices after TOUR_SECTION, terminated by -1.
func parseTour(r io.Reader, n int) ([]int, error) {
	scanner := bufio.NewScanner(r)

	inSection := false
	tour := make([]int, 0, n)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inSection {
			if line == "TOUR_SECTION" {
				inSection = true
			}
			continue
		}
		if line == "-1" || line == "EOF" {
			break
		}
		node, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("invalid node index %q in tour file", line)
		}
		tour = append(tour, node-1)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read tour file: %w", err)
	}
	if !inSection {
		return nil, fmt.Errorf("tour file has no TOUR_SECTION")
	}

	if err := validateTour(tour, n); err != nil {
		return nil, err
	}
	return rotateToStart(tour), nil
}

// validateTour checks that tour is a permutation of [0, n).
func validateTour(tour []int, n int) error {
	if len(tour) != n {
		return fmt.Errorf("tour has %d nodes, want %d", len(tour), n)
	}
	seen := make([]bool, n)
	for _, node := range tour {
		if node < 0 || node >= n {
			return fmt.Errorf("tour node %d out of range [0, %d)", node, n)
		}
		if seen[node] {
			return fmt.Errorf("tour visits node %d twice", node)
		}
		seen[node] = true
	}
	return nil
}

// rotateToStart rotates the cycle so it begins at node 0. Callers treat node 0
// as the current position, so the returned order is the travel order.
func rotateToStart(tour []int) []int {
	for i, node := range tour {
		if node == 0 {
			rotated := make([]int, 0, len(tour))
			rotated = append(rotated, tour[i:]...)
			rotated = append(rotated, tour[:i]...)
			return rotated
		}
	}
	return tour
}

// parseCost extracts the best cost from solver stdout lines like
// "Cost.min = 1234" or "Cost = 1234". Returns false when absent.
func parseCost(stdout string) (float64, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.Contains(line, "Cost.min =") && !strings.Contains(line, "Cost =") {
			continue
		}
		_, rest, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		raw := strings.TrimSpace(rest)
		// Later fields ("Cost.avg = ...") and "1234_5678" gap annotations are
		// cut off at the first separator.
		if idx := strings.IndexAny(raw, " _,"); idx >= 0 {
			raw = raw[:idx]
		}
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return cost, true
	}
	return 0, false
}
