// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	s := Make[string](10)
	assert.Len(t, s, 0)

	s.Insert("i", "k")
	assert.Len(t, s, 2)
	assert.True(t, s.Has("i"))
	assert.True(t, s.Has("k"))
	assert.False(t, s.Has("j"))

	s2 := MakeWith("j", "k")
	s3 := s.Sub(s2)
	assert.Len(t, s3, 1)
	assert.True(t, s3.Has("i"))

	assert.True(t, s.Intersect(s2).Equal(MakeWith("k")))
	assert.True(t, s.Union(s2).Equal(MakeWith("i", "j", "k")))
	assert.Len(t, s.Intersect(MakeWith[string]()), 0)

	delete(s, "k")
	assert.True(t, s.Equal(s3))
	assert.False(t, s.Equal(s2))
	assert.False(t, s.Equal(MakeWith("x")))
}
