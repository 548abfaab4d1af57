package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// send delivers v on out unless ctx is done first. It reports whether v was sent.
func send[T any](ctx context.Context, out chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- v:
		return true
	}
}

// Slice emits the elements of in, in order, then closes.
func Slice[T any](ctx context.Context, in []T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for i := range in {
			if !send(ctx, out, in[i]) {
				return
			}
		}
	}()
	return out
}

// NDJSON decodes a stream of concatenated JSON values from in.
// Decoding stops at the first malformed value; its error, if any,
// is sent on the buffered error channel, which is closed after out.
func NDJSON[T any](ctx context.Context, in io.Reader) (<-chan T, <-chan error) {
	out := make(chan T)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)
		dec := json.NewDecoder(in)
		for n := 0; ; n++ {
			var element T
			if err := dec.Decode(&element); err != nil {
				if err != io.EOF {
					errs <- fmt.Errorf("ndjson value %d: %w", n, err)
				}
				return
			}
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			case out <- element:
			}
		}
	}()
	return out, errs
}

// Filter passes on the elements of in for which keep is true.
func Filter[T any](ctx context.Context, keep func(T) bool, in <-chan T) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for v := range in {
			if keep(v) && !send(ctx, out, v) {
				return
			}
		}
	}()
	return out
}

// Transform maps each element of in through fn.
func Transform[I any, O any](ctx context.Context, fn func(I) O, in <-chan I) <-chan O {
	out := make(chan O)
	go func() {
		defer close(out)
		for v := range in {
			if !send(ctx, out, fn(v)) {
				return
			}
		}
	}()
	return out
}

// Collect gathers in into a slice, stopping early if ctx is done.
// The result is never nil.
func Collect[T any](ctx context.Context, in <-chan T) []T {
	all := []T{}
	for {
		select {
		case <-ctx.Done():
			return all
		case v, ok := <-in:
			if !ok {
				return all
			}
			all = append(all, v)
		}
	}
}
