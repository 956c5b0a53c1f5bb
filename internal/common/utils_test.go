package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound(t *testing.T) {
	cases := map[float64]int{
		68.5:  69,
		68.49: 68,
		-0.5:  -1,
		-3.2:  -3,
		0:     0,
		74.5:  75,
	}
	for in, want := range cases {
		assert.Equal(t, want, Round(in), "Round(%v)", in)
	}
}
