package export

// Table is tabular report content ready for rendering. Rows are positional
// and must match the header count.
type Table struct {
	Headers []string
	Rows    [][]string
}
