package model

// Decorator adjusts a descriptor after the builder has validated its
// structure, for example to inject defaults shared by every page.
type Decorator interface {
	Decorate(*Descriptor) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*Descriptor) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(desc *Descriptor) error {
	return fn(desc)
}
