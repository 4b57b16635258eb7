// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"sync"
)

// pumpDepth bounds the chunks buffered between the reader goroutine and Read
const pumpDepth = 64

// pump runs a blocking read function on its own goroutine and hands the
// results to a non-blocking poll.
type pump struct {
	data   chan []byte
	errc   chan error
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func startPump(read func([]byte) (int, error), chunk int) *pump {
	p := &pump{
		data:   make(chan []byte, pumpDepth),
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	go func() {
		defer close(p.exited)
		buf := make([]byte, chunk)
		for {
			n, err := read(buf)
			if n > 0 {
				out := make([]byte, n)
				copy(out, buf[:n])
				select {
				case p.data <- out:
				case <-p.done:
					return
				}
			}
			if err != nil {
				select {
				case <-p.done:
				default:
					p.errc <- err
				}
				return
			}
			select {
			case <-p.done:
				return
			default:
			}
		}
	}()

	return p
}

// poll returns all buffered bytes without blocking. A read error is returned
// once, after the bytes that preceded it have been delivered.
func (p *pump) poll() ([]byte, error) {
	if out := p.drain(); out != nil {
		return out, nil
	}
	select {
	case err := <-p.errc:
		return nil, err
	default:
		return nil, nil
	}
}

// drain collects every buffered chunk
func (p *pump) drain() []byte {
	var out []byte
	for {
		select {
		case chunk := <-p.data:
			out = append(out, chunk...)
		default:
			return out
		}
	}
}

// stop signals the goroutine to exit. closeFn must unblock the read.
func (p *pump) stop(closeFn func() error) ([]byte, error) {
	leftover := p.drain()
	p.once.Do(func() { close(p.done) })
	err := closeFn()
	<-p.exited
	leftover = append(leftover, p.drain()...)
	return leftover, err
}
