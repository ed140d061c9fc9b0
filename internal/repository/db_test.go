package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalisePage(t *testing.T) {
	cases := []struct {
		name             string
		page, size       int
		wantPage, wantSz int
	}{
		{"defaults", 0, 0, 1, 10},
		{"negative size", 2, -5, 2, 10},
		{"within bounds", 3, 50, 3, 50},
		{"at cap", 1, 100, 1, 100},
		{"above cap", 1, 101, 1, 100},
		{"far above cap", 4, 5000, 4, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, size := normalisePage(tc.page, tc.size, 10)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantSz, size)
		})
	}
}
