// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package errs

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorf(t *testing.T) {
	err := Errorf(ErrIndexMismatch, "label %q used twice in %q", "i", "iij")
	require.ErrorIs(t, err, ErrIndexMismatch)
	require.NotErrorIs(t, err, ErrDimensionMismatch)
	require.Equal(t, `label "i" used twice in "iij": index mismatch`, err.Error())
}

func TestBackend(t *testing.T) {
	require.NoError(t, Backend(nil, "nothing"))

	err := Backend(os.ErrPermission, "mapping %q", "/tmp/x")
	require.ErrorIs(t, err, ErrBackendFailure)
	require.ErrorIs(t, err, os.ErrPermission)
	require.Contains(t, err.Error(), "mapping \"/tmp/x\"")

	// Extra context keeps the kind.
	err = errors.WithMessage(err, "while contracting")
	require.ErrorIs(t, err, ErrBackendFailure)
}
