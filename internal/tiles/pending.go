package tiles

import (
	"context"
	"image"
)

// Pending is a tile load that may still be in flight.
// Fields are written once before done is closed.
type Pending struct {
	done   chan struct{}
	img    image.Image
	err    error
	source string
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolved returns an already-completed load, used to seed a cache
func Resolved(img image.Image) *Pending {
	p := newPending()
	p.resolve(img, "", nil)
	return p
}

func (p *Pending) resolve(img image.Image, source string, err error) {
	p.img, p.source, p.err = img, source, err
	close(p.done)
}

// Done is closed once the load has finished
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Ready reports whether the load has finished, without blocking
func (p *Pending) Ready() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Image returns the decoded tile, nil while pending or after a failure
func (p *Pending) Image() image.Image {
	if !p.Ready() {
		return nil
	}
	return p.img
}

// Err returns the load error, nil while pending or on success
func (p *Pending) Err() error {
	if !p.Ready() {
		return nil
	}
	return p.err
}

// Source names the tile source that produced the image
func (p *Pending) Source() string {
	if !p.Ready() {
		return ""
	}
	return p.source
}

// Wait blocks until the load finishes or ctx ends
func (p *Pending) Wait(ctx context.Context) (image.Image, error) {
	select {
	case <-p.done:
		return p.img, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
