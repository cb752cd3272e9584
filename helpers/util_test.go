package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "Venvanse 70mg 28 cápsulas", CollapseSpaces("  Venvanse\n\t70mg   28 cápsulas \n"))
	assert.Equal(t, "", CollapseSpaces(" \n "))
}
