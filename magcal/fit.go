package magcal

import "math"

// fitEllipsoid solves the algebraic ellipsoid equation
//
//	ax² + by² + cz² + 2dxy + 2exz + 2fyz + 2gx + 2hy + 2iz = 1
//
// by least squares over the samples, then extracts the hard-iron center
// b = -Q⁻¹u and the soft-iron matrix A = V·sqrt(Λ)·Vᵀ / B from the
// symmetric eigendecomposition of the shape matrix Q, where the field
// strength B satisfies B² = 1 + bᵀQb.
//
// Returns nil when the system is underdetermined or the quadric is not an
// ellipsoid (non-invertible Q, negative eigenvalue, non-positive radius).
func fitEllipsoid(samples [][3]float64) *Calibration {
	if len(samples) < MinSamples {
		return nil
	}

	// Normal equations for D·v = 1, accumulated directly: DᵀD and Dᵀ1.
	var ata [9][9]float64
	var atb [9]float64
	for _, s := range samples {
		x, y, z := s[0], s[1], s[2]
		row := [9]float64{
			x * x, y * y, z * z,
			2 * x * y, 2 * x * z, 2 * y * z,
			2 * x, 2 * y, 2 * z,
		}
		for i := 0; i < 9; i++ {
			atb[i] += row[i]
			for j := 0; j < 9; j++ {
				ata[i][j] += row[i] * row[j]
			}
		}
	}

	v, ok := solve9(ata, atb)
	if !ok {
		return nil
	}

	q := [3][3]float64{
		{v[0], v[3], v[4]},
		{v[3], v[1], v[5]},
		{v[4], v[5], v[2]},
	}
	u := [3]float64{v[6], v[7], v[8]}

	qInv, ok := invert3(q)
	if !ok {
		return nil
	}

	// center = -Q⁻¹·u
	var center [3]float64
	for i := 0; i < 3; i++ {
		center[i] = -(qInv[i][0]*u[0] + qInv[i][1]*u[1] + qInv[i][2]*u[2])
	}

	// B² = 1 + centerᵀ·Q·center
	radiusSq := 1.0
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			radiusSq += center[i] * q[i][j] * center[j]
		}
	}
	if radiusSq <= 0 {
		return nil
	}
	fieldStrength := math.Sqrt(radiusSq)

	eigenvalues, eigenvectors, ok := jacobiEigen3(q)
	if !ok {
		return nil
	}
	for _, ev := range eigenvalues {
		// Negative eigenvalue means the fit found a hyperboloid.
		if ev < 0 {
			return nil
		}
	}

	// sqrt(Q) = V·sqrt(Λ)·Vᵀ, scaled by 1/B.
	var soft [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += eigenvectors[i][k] * math.Sqrt(eigenvalues[k]) * eigenvectors[j][k]
			}
			soft[i][j] = sum / fieldStrength
		}
	}

	out := &Calibration{FieldStrength: float32(fieldStrength)}
	for i := 0; i < 3; i++ {
		out.Offsets[i] = float32(center[i])
		for j := 0; j < 3; j++ {
			out.Scale[i*3+j] = float32(soft[i][j])
		}
	}
	return out
}

// solve9 solves a 9×9 linear system by Gaussian elimination with partial
// pivoting. ok=false when the system is singular.
func solve9(a [9][9]float64, b [9]float64) ([9]float64, bool) {
	const n = 9
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return [9]float64{}, false
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		inv := 1.0 / a[col][col]
		for row := col + 1; row < n; row++ {
			factor := a[row][col] * inv
			if factor == 0 {
				continue
			}
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	var x [9]float64
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, true
}

// invert3 inverts a 3×3 matrix via the adjugate. ok=false near singularity.
func invert3(m [3][3]float64) ([3][3]float64, bool) {
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	if math.Abs(det) < 1e-18 {
		return [3][3]float64{}, false
	}
	inv := 1.0 / det
	var out [3][3]float64
	out[0][0] = (m[1][1]*m[2][2] - m[1][2]*m[2][1]) * inv
	out[0][1] = (m[0][2]*m[2][1] - m[0][1]*m[2][2]) * inv
	out[0][2] = (m[0][1]*m[1][2] - m[0][2]*m[1][1]) * inv
	out[1][0] = (m[1][2]*m[2][0] - m[1][0]*m[2][2]) * inv
	out[1][1] = (m[0][0]*m[2][2] - m[0][2]*m[2][0]) * inv
	out[1][2] = (m[0][2]*m[1][0] - m[0][0]*m[1][2]) * inv
	out[2][0] = (m[1][0]*m[2][1] - m[1][1]*m[2][0]) * inv
	out[2][1] = (m[0][1]*m[2][0] - m[0][0]*m[2][1]) * inv
	out[2][2] = (m[0][0]*m[1][1] - m[0][1]*m[1][0]) * inv
	return out, true
}

// jacobiEigen3 diagonalizes a symmetric 3×3 matrix with cyclic Jacobi
// rotations. Returns eigenvalues and a matrix whose columns are the
// corresponding eigenvectors.
func jacobiEigen3(m [3][3]float64) ([3]float64, [3][3]float64, bool) {
	a := m
	v := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	for sweep := 0; sweep < 50; sweep++ {
		off := a[0][1]*a[0][1] + a[0][2]*a[0][2] + a[1][2]*a[1][2]
		if off < 1e-24 {
			return [3]float64{a[0][0], a[1][1], a[2][2]}, v, true
		}

		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				if a[p][q] == 0 {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c

				for k := 0; k < 3; k++ {
					akp := a[k][p]
					akq := a[k][q]
					a[k][p] = c*akp - s*akq
					a[k][q] = s*akp + c*akq
				}
				for k := 0; k < 3; k++ {
					akp := a[p][k]
					akq := a[q][k]
					a[p][k] = c*akp - s*akq
					a[q][k] = s*akp + c*akq
				}
				for k := 0; k < 3; k++ {
					vkp := v[k][p]
					vkq := v[k][q]
					v[k][p] = c*vkp - s*vkq
					v[k][q] = s*vkp + c*vkq
				}
			}
		}
	}
	return [3]float64{}, [3][3]float64{}, false
}
