package collections

// Stack is a generic LIFO stack.
type Stack[T any] struct {
	data []T
}

// NewStack creates a stack with the given capacity.
func NewStack[T any](capacity int) *Stack[T] {
	return &Stack[T]{data: make([]T, 0, capacity)}
}

// Push pushes a value onto the stack.
func (s *Stack[T]) Push(v T) {
	s.data = append(s.data, v)
}

// PushReversed pushes vs so that vs[0] is popped first.
func (s *Stack[T]) PushReversed(vs []T) {
	for i := len(vs) - 1; i >= 0; i-- {
		s.data = append(s.data, vs[i])
	}
}

// Pop pops a value from the stack.
func (s *Stack[T]) Pop() (T, bool) {
	if len(s.data) == 0 {
		var zero T
		return zero, false
	}
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v, true
}

// Len returns the number of items in the stack.
func (s *Stack[T]) Len() int {
	return len(s.data)
}
