//go:build !race

package authcore

func passwordHashCost() int {
	return 12
}
