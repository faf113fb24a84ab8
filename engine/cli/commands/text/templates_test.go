package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLongDesc(t *testing.T) {
	t.Parallel()

	assert.Empty(t, LongDesc(""))
	assert.Equal(t, "Prints the address.\n\t\tSecond line.", LongDesc(`
		Prints the address.
		Second line.
	`))
}

func TestExamples(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Examples(""))
	assert.Equal(t, "  # Print the address\n  lottery address", Examples(`
		# Print the address
		lottery address
	`))
}
