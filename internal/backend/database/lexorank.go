package database

const (
	// Alphabet bounds used to compute ranks lexicographically.
	// Using ASCII '0'..'z' yields a large space with many available midpoints.
	minChar = '0'
	maxChar = 'z'
	// Default mid character used for simple Next operations.
	midChar = 'U'
)

// Next returns a new rank string that sorts lexicographically after prev.
// If prev is empty, it returns a single midChar.
func Next(prev string) string {
	return prev + string(midChar)
}

// Before returns a rank that sorts strictly before head. An empty head
// means the list is empty and yields the initial rank.
func Before(head string) string {
	if head == "" {
		return Next("")
	}
	return Between("", head)
}

// Between computes a rank string strictly between prev and next using a variable-length
// lexicographic scheme. If next is empty, it returns Next(prev). If prev is empty, it
// chooses a rank strictly less than next.
//
// The algorithm walks character-by-character and selects a midpoint character whenever
// space exists between the lower and upper bound characters. If no space exists at a
// position, it appends the lower bound character and continues deeper, ensuring progress
// and eventual success due to the maxChar upper bound at unbounded positions.
func Between(prev, next string) string {
	if next == "" {
		return Next(prev)
	}

	p := []rune(prev)
	n := []rune(next)

	var out []rune
	for i := 0; ; i++ {
		pr := rune(minChar)
		if i < len(p) {
			pr = p[i]
		}
		nr := rune(maxChar)
		if i < len(n) {
			nr = n[i]
		}

		if pr+1 < nr {
			out = append(out, pr+(nr-pr)/2)
			return string(out)
		}
		// tight bound at this position, carry the lower character and descend
		out = append(out, pr)
	}
}
