package dimacs

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Dimacs holds the variables and clauses that make up a CNF problem
// described in DIMACS format
// see: https://logic.pdmi.ras.ru/~basolver/dimacs.html
type Dimacs struct {
	numVariables int
	clauses      [][]int
}

// Variables returns the variable names, "1" to "n".
func (d *Dimacs) Variables() []string {
	variables := make([]string, 0, d.numVariables)
	for i := 1; i <= d.numVariables; i++ {
		variables = append(variables, strconv.Itoa(i))
	}
	return variables
}

// Clauses returns the clauses as DIMACS literals, without the
// terminating zero.
func (d *Dimacs) Clauses() [][]int {
	return d.clauses
}

// NewDimacs parses the DIMACS formatted stream afforded by dimacsReader.
func NewDimacs(dimacsReader io.Reader) (*Dimacs, error) {
	scanner := bufio.NewScanner(dimacsReader)

	variableSet := map[int]struct{}{}
	numVariables, numClauses := 0, 0
	var clauses [][]int

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		fields := strings.Fields(line)

		switch {
		case len(fields) == 0 || strings.HasPrefix(fields[0], "c"):
			// comments and blank lines
			continue

		case fields[0] == "p":
			if len(fields) != 4 || fields[1] != "cnf" {
				return nil, fmt.Errorf("invalid statement: (%s). Valid format is p cnf <variables> <clauses>", line)
			}
			var err error
			if numVariables, err = strconv.Atoi(fields[2]); err != nil || numVariables < 0 {
				return nil, fmt.Errorf("invalid number (%s) in statement (%s)", fields[2], line)
			}
			if numClauses, err = strconv.Atoi(fields[3]); err != nil || numClauses < 0 {
				return nil, fmt.Errorf("invalid number (%s) in statement (%s)", fields[3], line)
			}
			clauses = make([][]int, 0, numClauses)

		default:
			if clauses == nil {
				return nil, fmt.Errorf("invalid dimacs format: missing header 'p cnf <variable> <clauses>'")
			}
			if fields[len(fields)-1] != "0" {
				return nil, fmt.Errorf("invalid clause (%s): does not end with 0", line)
			}
			clause, err := parseClause(fields[:len(fields)-1], numVariables)
			if err != nil {
				return nil, fmt.Errorf("invalid clause (%s): %w", line, err)
			}

			// remember variables seen to check them against the header
			for _, lit := range clause {
				if lit < 0 {
					lit = -lit
				}
				variableSet[lit] = struct{}{}
			}
			clauses = append(clauses, clause)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading dimacs data: %w", err)
	}

	if numVariables == 0 || numClauses == 0 || len(clauses) == 0 {
		return nil, fmt.Errorf("invalid format: no variables or clauses found")
	}

	if len(clauses) != numClauses {
		return nil, fmt.Errorf("invalid format: number of clauses in header differ from the total number of clauses")
	}

	if len(variableSet) != numVariables {
		return nil, fmt.Errorf("invalid format: number of variables in header differ from the total number of unique variables found in clauses")
	}

	return &Dimacs{
		numVariables: numVariables,
		clauses:      clauses,
	}, nil
}

func parseClause(terms []string, numVariables int) ([]int, error) {
	clause := make([]int, 0, len(terms))
	for _, term := range terms {
		lit, err := strconv.Atoi(term)
		if err != nil {
			return nil, fmt.Errorf("%s is not a number", term)
		}
		if lit == 0 {
			return nil, fmt.Errorf("0 is not a valid variable")
		}
		if lit > numVariables || lit < -numVariables {
			return nil, fmt.Errorf("%s is not a valid variable", term)
		}
		clause = append(clause, lit)
	}
	return clause, nil
}
