// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package linalg implements dense decompositions of matrices (rank-2 tensors), delegated to
// gonum's mat package.
//
// Decompositions with several outputs return them in a map, keyed by name. Results are new tensors of the
// same kind as the input, and are owned by the caller.
//
// Errors: a tensor that isn't a matrix fails with ErrIndexMismatch, a non-square matrix where one is required
// fails with ErrDimensionMismatch, and a failed factorization with ErrBackendFailure.
package linalg

import (
	"cmp"
	"math"
	"slices"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorexpr/backends"
	"github.com/gomlx/tensorexpr/pkg/core/errs"
	"github.com/gomlx/tensorexpr/pkg/core/tensors"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"
)

// toDense copies the tensor into a gonum matrix.
func toDense(op string, t tensors.Tensor, square bool) (*mat.Dense, error) {
	if !t.IsValid() {
		return nil, errs.Errorf(errs.ErrBackendFailure, "%s: tensor not built", op)
	}
	if t.Rank() != 2 {
		return nil, errs.Errorf(errs.ErrIndexMismatch, "%s: tensor %q has rank %d, a matrix is required", op, t.Name(), t.Rank())
	}
	rows, cols := t.Dim(0), t.Dim(1)
	if square && rows != cols {
		return nil, errs.Errorf(errs.ErrDimensionMismatch, "%s: matrix %q is %dx%d, a square matrix is required",
			op, t.Name(), rows, cols)
	}
	if rows == 0 || cols == 0 {
		return nil, errs.Errorf(errs.ErrDimensionMismatch, "%s: matrix %q is empty", op, t.Name())
	}
	flat, err := t.Flat()
	if err != nil {
		return nil, err
	}
	klog.V(2).Infof("linalg: %s of %q%s", op, t.Name(), t.Dims())
	return mat.NewDense(rows, cols, flat), nil
}

// guard runs fn, converting panics raised by gonum into ErrBackendFailure errors.
func guard(op string, fn func() error) error {
	var err error
	if exception := exceptions.TryCatch[error](func() { err = fn() }); exception != nil {
		return errs.Backend(exception, "%s", op)
	}
	return err
}

// results collects the output tensors of a decomposition, releasing them all if one fails.
type results struct {
	kind    backends.Kind
	tensors map[string]tensors.Tensor
	err     error
}

func newResults(kind backends.Kind) *results {
	return &results{kind: kind, tensors: make(map[string]tensors.Tensor)}
}

func (r *results) matrix(name string, m mat.Matrix) {
	if r.err != nil {
		return
	}
	rows, cols := m.Dims()
	values := make([]float64, 0, rows*cols)
	for row := range rows {
		for col := range cols {
			values = append(values, m.At(row, col))
		}
	}
	r.add(name, values, rows, cols)
}

func (r *results) vector(name string, values []float64) {
	if r.err != nil {
		return
	}
	r.add(name, values, len(values))
}

func (r *results) add(name string, values []float64, dimensions ...int) {
	t, err := tensors.Build(r.kind, name, dimensions...)
	if err == nil {
		err = t.SetFlat(values)
		if err != nil {
			_ = t.Close()
		}
	}
	if err != nil {
		r.err = err
		return
	}
	r.tensors[name] = t
}

func (r *results) done() (map[string]tensors.Tensor, error) {
	if r.err != nil {
		for _, t := range r.tensors {
			_ = t.Close()
		}
		return nil, r.err
	}
	return r.tensors, nil
}

// single returns the one result of a decomposition.
func (r *results) single(name string) (tensors.Tensor, error) {
	all, err := r.done()
	if err != nil {
		return tensors.Tensor{}, err
	}
	return all[name], nil
}

// symmetric returns the symmetric matrix with the upper triangle of a.
func symmetric(a *mat.Dense) *mat.SymDense {
	n, _ := a.Dims()
	return mat.NewSymDense(n, a.RawMatrix().Data)
}

// permuteColumns returns the matrix with column j taken from column perm[j] of m.
func permuteColumns(m *mat.Dense, perm []int) *mat.Dense {
	rows, cols := m.Dims()
	permuted := mat.NewDense(rows, cols, nil)
	for j, from := range perm {
		for i := range rows {
			permuted.Set(i, j, m.At(i, from))
		}
	}
	return permuted
}

// symmetricEigen returns the eigenvalues, in ascending order, and eigenvectors (as columns) of the symmetric
// matrix given by the upper triangle of a.
func symmetricEigen(op, name string, a *mat.Dense) ([]float64, *mat.Dense, error) {
	var values []float64
	var vectors mat.Dense
	err := guard(op, func() error {
		var eig mat.EigenSym
		if !eig.Factorize(symmetric(a), true) {
			return errs.Errorf(errs.ErrBackendFailure, "%s: eigen-decomposition of %q did not converge", op, name)
		}
		values = eig.Values(nil)
		eig.VectorsTo(&vectors)
		return nil
	})
	return values, &vectors, err
}

// Syev computes the eigenvalues and eigenvectors of a real symmetric matrix. Only the upper triangle
// of t is used.
//
// It returns "eigenvalues" (a vector) and "eigenvectors" (a matrix with the eigenvectors as columns,
// in the same order).
func Syev(t tensors.Tensor, order EigenvalueOrder) (map[string]tensors.Tensor, error) {
	a, err := toDense("Syev", t, true)
	if err != nil {
		return nil, err
	}
	values, vectors, err := symmetricEigen("Syev", t.Name(), a)
	if err != nil {
		return nil, err
	}
	if order == OrderDescending {
		n := len(values)
		perm := make([]int, n)
		for ii := range perm {
			perm[ii] = n - 1 - ii
		}
		slices.Reverse(values)
		vectors = permuteColumns(vectors, perm)
	}
	r := newResults(t.Kind())
	r.vector("eigenvalues", values)
	r.matrix("eigenvectors", vectors)
	return r.done()
}

// Geev computes the eigenvalues and right eigenvectors of a general real square matrix.
//
// It returns "lr" and "li", the real and imaginary parts of the eigenvalues sorted by their real part, and
// "vr", the right eigenvectors as real columns: for a pair of complex conjugate eigenvalues, listed with the
// positive imaginary part first, the two columns hold the real and imaginary parts of the eigenvector of the
// first one.
func Geev(t tensors.Tensor, order EigenvalueOrder) (map[string]tensors.Tensor, error) {
	a, err := toDense("Geev", t, true)
	if err != nil {
		return nil, err
	}
	var values []complex128
	var vectors mat.CDense
	err = guard("Geev", func() error {
		var eig mat.Eigen
		if !eig.Factorize(a, mat.EigenRight) {
			return errs.Errorf(errs.ErrBackendFailure, "Geev: eigen-decomposition of %q did not converge", t.Name())
		}
		values = eig.Values(nil)
		eig.VectorsTo(&vectors)
		return nil
	})
	if err != nil {
		return nil, err
	}

	n := len(values)
	sorted := make([]int, n)
	for ii := range sorted {
		sorted[ii] = ii
	}
	slices.SortStableFunc(sorted, func(i, j int) int {
		byReal := cmp.Compare(real(values[i]), real(values[j]))
		if order == OrderDescending {
			byReal = -byReal
		}
		if byReal != 0 {
			return byReal
		}
		return cmp.Compare(imag(values[j]), imag(values[i]))
	})
	lr := make([]float64, n)
	li := make([]float64, n)
	vr := mat.NewDense(n, n, nil)
	for col, k := range sorted {
		lr[col], li[col] = real(values[k]), imag(values[k])
		for row := range n {
			v := vectors.At(row, k)
			switch {
			case li[col] < 0:
				// Imaginary part of the eigenvector of the conjugate, in the previous column.
				vr.Set(row, col, -imag(v))
			default:
				vr.Set(row, col, real(v))
			}
		}
	}
	r := newResults(t.Kind())
	r.vector("lr", lr)
	r.vector("li", li)
	r.matrix("vr", vr)
	return r.done()
}

// SVD computes the thin singular value decomposition t = U * diag(sigma) * V^T.
//
// For a m x n matrix and k = min(m, n), it returns "U" (m x k), "sigma" (k singular values in descending
// order) and "V" (n x k).
func SVD(t tensors.Tensor) (map[string]tensors.Tensor, error) {
	a, err := toDense("SVD", t, false)
	if err != nil {
		return nil, err
	}
	var sigma []float64
	var u, v mat.Dense
	err = guard("SVD", func() error {
		var svd mat.SVD
		if !svd.Factorize(a, mat.SVDThin) {
			return errs.Errorf(errs.ErrBackendFailure, "SVD of %q did not converge", t.Name())
		}
		sigma = svd.Values(nil)
		svd.UTo(&u)
		svd.VTo(&v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r := newResults(t.Kind())
	r.matrix("U", &u)
	r.vector("sigma", sigma)
	r.matrix("V", &v)
	return r.done()
}

// LU computes the LU decomposition with partial pivoting t = P * L * U.
//
// It returns "L" (lower triangular with unit diagonal), "U" (upper triangular) and "P" (a permutation
// matrix).
func LU(t tensors.Tensor) (map[string]tensors.Tensor, error) {
	a, err := toDense("LU", t, true)
	if err != nil {
		return nil, err
	}
	n, _ := a.Dims()
	var l, u mat.TriDense
	p := mat.NewDense(n, n, nil)
	err = guard("LU", func() error {
		var lu mat.LU
		lu.Factorize(a)
		lu.LTo(&l)
		lu.UTo(&u)
		for ii := range n {
			p.Set(ii, ii, 1)
		}
		p.PermuteRows(lu.RowPivots(nil), true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r := newResults(t.Kind())
	r.matrix("L", &l)
	r.matrix("U", &u)
	r.matrix("P", p)
	return r.done()
}

// QR computes the QR decomposition t = Q * R of a m x n matrix, with Q orthogonal (m x m) and R upper
// triangular (m x n).
func QR(t tensors.Tensor) (map[string]tensors.Tensor, error) {
	a, err := toDense("QR", t, false)
	if err != nil {
		return nil, err
	}
	var q, rMatrix mat.Dense
	err = guard("QR", func() error {
		var qr mat.QR
		qr.Factorize(a)
		qr.QTo(&q)
		qr.RTo(&rMatrix)
		return nil
	})
	if err != nil {
		return nil, err
	}
	r := newResults(t.Kind())
	r.matrix("Q", &q)
	r.matrix("R", &rMatrix)
	return r.done()
}

// cholesky factorizes the symmetric positive definite matrix given by the upper triangle of t.
func cholesky(op string, t tensors.Tensor) (*mat.Cholesky, error) {
	a, err := toDense(op, t, true)
	if err != nil {
		return nil, err
	}
	var chol mat.Cholesky
	err = guard(op, func() error {
		if !chol.Factorize(symmetric(a)) {
			return errs.Errorf(errs.ErrBackendFailure, "%s: matrix %q is not positive definite", op, t.Name())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &chol, nil
}

// Cholesky returns the lower triangular L such that t = L * L^T, for a symmetric positive definite t.
// Only the upper triangle of t is used.
func Cholesky(t tensors.Tensor) (tensors.Tensor, error) {
	chol, err := cholesky("Cholesky", t)
	if err != nil {
		return tensors.Tensor{}, err
	}
	var l mat.TriDense
	chol.LTo(&l)
	r := newResults(t.Kind())
	r.matrix(t.Name()+"_cholesky", &l)
	return r.single(t.Name() + "_cholesky")
}

// CholeskyInverse returns the inverse of a symmetric positive definite matrix, computed from its Cholesky
// decomposition. Only the upper triangle of t is used.
func CholeskyInverse(t tensors.Tensor) (tensors.Tensor, error) {
	chol, err := cholesky("CholeskyInverse", t)
	if err != nil {
		return tensors.Tensor{}, err
	}
	var inv mat.SymDense
	if err = guard("CholeskyInverse", func() error { return chol.InverseTo(&inv) }); err != nil {
		return tensors.Tensor{}, errs.Backend(err, "CholeskyInverse of %q", t.Name())
	}
	r := newResults(t.Kind())
	r.matrix(t.Name()+"_inv", &inv)
	return r.single(t.Name() + "_inv")
}

// Inverse returns the inverse of a square matrix. A singular (or numerically singular) matrix fails with
// ErrBackendFailure.
func Inverse(t tensors.Tensor) (tensors.Tensor, error) {
	a, err := toDense("Inverse", t, true)
	if err != nil {
		return tensors.Tensor{}, err
	}
	var inv mat.Dense
	if err = guard("Inverse", func() error { return inv.Inverse(a) }); err != nil {
		return tensors.Tensor{}, errs.Backend(err, "Inverse of %q", t.Name())
	}
	r := newResults(t.Kind())
	r.matrix(t.Name()+"_inv", &inv)
	return r.single(t.Name() + "_inv")
}

// Power returns t^exponent for a symmetric matrix t, computed from its eigen-decomposition as
// V * diag(lambda^exponent) * V^T. Only the upper triangle of t is used.
//
// Eigenvalues whose absolute value is below condition times the largest absolute eigenvalue are discarded
// (their power is taken as 0), so e.g. Power(t, -1, 1e-12) is a pseudo-inverse.
func Power(t tensors.Tensor, exponent, condition float64) (tensors.Tensor, error) {
	a, err := toDense("Power", t, true)
	if err != nil {
		return tensors.Tensor{}, err
	}
	values, vectors, err := symmetricEigen("Power", t.Name(), a)
	if err != nil {
		return tensors.Tensor{}, err
	}
	maxAbs := 0.0
	for _, v := range values {
		maxAbs = max(maxAbs, math.Abs(v))
	}
	powers := make([]float64, len(values))
	for ii, v := range values {
		if math.Abs(v) >= condition*maxAbs && v != 0 {
			powers[ii] = math.Pow(v, exponent)
		}
	}
	var scaled, result mat.Dense
	scaled.Mul(vectors, mat.NewDiagDense(len(powers), powers))
	result.Mul(&scaled, vectors.T())
	r := newResults(t.Kind())
	r.matrix(t.Name()+"_pow", &result)
	return r.single(t.Name() + "_pow")
}
