// Package matrix implements a cross-target feature-matrix build verifier.
// Matrix definitions are written in Starlark and each applicable feature
// combination is checked by running an external build tool, stopping at the
// first failure.
package matrix
