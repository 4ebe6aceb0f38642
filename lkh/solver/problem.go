package solver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Matrix is a square cost matrix in seconds. Values are rounded to integers
// before serialization, the only weight form the solver binary accepts.
type Matrix [][]float64

// Validate checks that the matrix is non-empty and square.
func (m Matrix) Validate() error {
	n := len(m)
	if n == 0 {
		return fmt.Errorf("distance matrix is empty")
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("distance matrix must be square: row %d has %d columns, want %d", i, len(row), n)
		}
	}
	return nil
}

// TourCost sums the cycle cost of tour over the matrix, including the closing
// edge back to the first node.
func (m Matrix) TourCost(tour []int) float64 {
	var cost float64
	n := len(tour)
	for i := 0; i < n; i++ {
		cost += m[tour[i]][tour[(i+1)%n]]
	}
	return cost
}

// problemFile serializes the matrix in TSPLIB explicit full-matrix form.
func problemFile(name string, m Matrix) string {
	n := len(m)
	var b strings.Builder
	fmt.Fprintf(&b, "NAME : %s\n", name)
	b.WriteString("TYPE : TSP\n")
	fmt.Fprintf(&b, "DIMENSION : %d\n", n)
	b.WriteString("EDGE_WEIGHT_TYPE : EXPLICIT\n")
	b.WriteString("EDGE_WEIGHT_FORMAT: FULL_MATRIX\n")
	b.WriteString("EDGE_WEIGHT_SECTION\n")
	for _, row := range m {
		for j, v := range row {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatInt(int64(math.Round(v)), 10))
		}
		b.WriteByte('\n')
	}
	b.WriteString("EOF\n")
	return b.String()
}

// paramFile serializes the solver parameter file.
func paramFile(problemPath, tourPath, initialTourPath string, p Params) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROBLEM_FILE = %s\n", problemPath)
	fmt.Fprintf(&b, "OUTPUT_TOUR_FILE = %s\n", tourPath)
	fmt.Fprintf(&b, "RUNS = %d\n", p.Runs)
	fmt.Fprintf(&b, "MAX_TRIALS = %d\n", p.MaxTrials)
	fmt.Fprintf(&b, "TIME_LIMIT = %d\n", int(p.TimeLimit.Seconds()))
	fmt.Fprintf(&b, "SEED = %d\n", p.Seed)
	b.WriteString("TRACE_LEVEL = 1\n")
	if initialTourPath != "" {
		fmt.Fprintf(&b, "INITIAL_TOUR_FILE = %s\n", initialTourPath)
	}
	return b.String()
}

// initialTourFile serializes a 0-based tour in the solver's 1-based tour file
// form, for warm starts.
func initialTourFile(name string, tour []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NAME : %s\n", name)
	b.WriteString("TYPE : TOUR\n")
	fmt.Fprintf(&b, "DIMENSION : %d\n", len(tour))
	b.WriteString("TOUR_SECTION\n")
	for _, node := range tour {
		fmt.Fprintf(&b, "%d\n", node+1)
	}
	b.WriteString("-1\n")
	b.WriteString("EOF\n")
	return b.String()
}
