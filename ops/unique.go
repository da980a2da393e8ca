package ops

// Unique returns the elements of seq without repetition, in order of first occurrence.
func Unique[T comparable](seq []T) []T {
	return UniqueFunc(seq, func(v T) T { return v })
}

// UniqueFunc is Unique with elements compared through key.
func UniqueFunc[T any, K comparable](seq []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(seq))
	out := make([]T, 0, len(seq))
	for _, v := range seq {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
