//go:build !linux

package probe

func kernelNeighbors() (string, error) {
	return "", ErrUnsupported
}
